package local

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"slices"
	"strings"
	"time"

	"imagetalk/core"
)

// PlayerConfig configures playback. Command may use the {file} placeholder;
// without one the file path is appended.
type PlayerConfig struct {
	Command     []string      `mapstructure:"command" json:"command"`
	GracePeriod time.Duration `mapstructure:"grace_period" json:"grace_period"`
}

// DefaultPlayerConfig returns a PlayerConfig with sensible defaults
func DefaultPlayerConfig() PlayerConfig {
	return PlayerConfig{
		Command:     defaultPlayCommand(runtime.GOOS),
		GracePeriod: defaultGracePeriod,
	}
}

func defaultPlayCommand(goos string) []string {
	if goos == "darwin" {
		return []string{"afplay", "{file}"}
	}
	return []string{"ffplay", "-nodisp", "-autoexit", "-loglevel", "quiet", "{file}"}
}

// Player plays audio files through a local OS utility.
type Player struct {
	config PlayerConfig
	logger *core.Logger
}

// NewPlayer creates a new player.
func NewPlayer(config PlayerConfig, logger *core.Logger) *Player {
	defaults := DefaultPlayerConfig()
	if len(config.Command) == 0 {
		config.Command = defaults.Command
	}
	if config.GracePeriod == 0 {
		config.GracePeriod = defaults.GracePeriod
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	return &Player{config: config, logger: logger}
}

// Play blocks until the file has been played.
func (p *Player) Play(ctx context.Context, path string) error {
	if path == "" {
		return errors.New("no audio file to play")
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("audio file: %w", err)
	}
	argv := p.argv(path)
	p.logger.Debug("playing audio", "player", argv[0], "file", path)
	return run(ctx, argv, p.config.GracePeriod)
}

func (p *Player) argv(path string) []string {
	if !slices.ContainsFunc(p.config.Command, func(arg string) bool { return strings.Contains(arg, "{file}") }) {
		return append(slices.Clone(p.config.Command), path)
	}
	return expand(p.config.Command, map[string]string{"file": path})
}
