package local

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"time"

	"imagetalk/core"
	"imagetalk/vad/energy"
)

// MicrophoneConfig configures audio capture. Command may use the {rate}
// placeholder and must write raw 16-bit little endian mono PCM to stdout.
type MicrophoneConfig struct {
	Command     []string      `mapstructure:"command" json:"command"`
	SampleRate  int           `mapstructure:"sample_rate" json:"sample_rate" validate:"oneof=8000 16000 22050 24000 44100 48000"`
	GracePeriod time.Duration `mapstructure:"grace_period" json:"grace_period"`
}

// DefaultMicrophoneConfig returns a MicrophoneConfig with sensible defaults
func DefaultMicrophoneConfig() MicrophoneConfig {
	return MicrophoneConfig{
		Command:     defaultRecordCommand(runtime.GOOS),
		SampleRate:  16000,
		GracePeriod: defaultGracePeriod,
	}
}

func defaultRecordCommand(goos string) []string {
	if goos == "linux" {
		return []string{"arecord", "-q", "-f", "S16_LE", "-r", "{rate}", "-c", "1", "-t", "raw"}
	}
	return []string{"rec", "-q", "-t", "raw", "-b", "16", "-e", "signed-integer", "-c", "1", "-r", "{rate}", "-"}
}

// Microphone records a single phrase per Capture call from a recorder
// subprocess, using energy detection to find where the phrase starts and ends.
type Microphone struct {
	config   MicrophoneConfig
	listen   energy.ListenConfig
	detector *energy.Detector
	logger   *core.Logger
}

// NewMicrophone creates a microphone. The detector keeps its threshold
// between captures.
func NewMicrophone(config MicrophoneConfig, detector energy.Config, listen energy.ListenConfig, logger *core.Logger) *Microphone {
	defaults := DefaultMicrophoneConfig()
	if len(config.Command) == 0 {
		config.Command = defaults.Command
	}
	if config.SampleRate == 0 {
		config.SampleRate = defaults.SampleRate
	}
	if config.GracePeriod == 0 {
		config.GracePeriod = defaults.GracePeriod
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	return &Microphone{
		config:   config,
		listen:   listen,
		detector: energy.NewDetector(detector),
		logger:   logger,
	}
}

// Capture starts the recorder, calibrates on ambient audio, and waits up to
// timeout of audio for a phrase. It returns core.ErrNoSpeech when nothing is
// said in time.
func (m *Microphone) Capture(ctx context.Context, ambient, timeout time.Duration) (core.AudioChunk, error) {
	argv := expand(m.config.Command, map[string]string{"rate": strconv.Itoa(m.config.SampleRate)})
	src, err := startStream(ctx, argv, m.config.GracePeriod)
	if err != nil {
		return core.AudioChunk{}, fmt.Errorf("opening microphone: %w", err)
	}
	defer src.Close()

	cfg := m.listen
	cfg.Timeout = timeout
	listener := energy.NewListener(m.detector, cfg, m.logger)

	if ambient > 0 {
		if err := listener.Calibrate(ctx, src, m.config.SampleRate, ambient); err != nil {
			return core.AudioChunk{}, m.describe(src, err)
		}
	}

	m.logger.Debug("listening", "timeout", timeout.String(), "threshold", m.detector.Threshold())
	chunk, err := listener.Listen(ctx, src, m.config.SampleRate)
	if err != nil {
		return core.AudioChunk{}, m.describe(src, err)
	}
	return chunk, nil
}

func (m *Microphone) describe(src *stream, err error) error {
	if errors.Is(err, energy.ErrStreamEnded) {
		if msg := src.failure(); msg != "" {
			return fmt.Errorf("microphone stopped: %w: %s", err, msg)
		}
		return fmt.Errorf("microphone stopped: %w", err)
	}
	return err
}
