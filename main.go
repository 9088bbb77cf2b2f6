package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"imagetalk/core"
	"imagetalk/factories"
	"imagetalk/transports/console"

	"github.com/joho/godotenv"
)

var version = "dev"

func main() {
	var (
		configPath    string
		imagePath     string
		languageCode  string
		skipSelection bool
		showVersion   bool
	)
	flag.StringVar(&configPath, "config", "", "path to a config file (default: search for imagetalk.yaml)")
	flag.StringVar(&imagePath, "image", "", "image to describe (overrides paths.image)")
	flag.StringVar(&languageCode, "language", "", "default language code, e.g. en, hi, kn")
	flag.BoolVar(&skipSelection, "skip-language-selection", false, "use the default language without asking")
	flag.BoolVar(&showVersion, "version", false, "print the version and exit")
	flag.Parse()

	if showVersion {
		fmt.Println("imagetalk", version)
		return
	}

	if err := godotenv.Load(); err != nil {
		core.GetLogger().Debug("no .env file loaded", "error", err)
	}

	settings, err := factories.LoadSettings(configPath)
	if err != nil {
		core.GetLogger().Fatal("failed to load settings", "error", err)
	}
	if imagePath != "" {
		settings.Paths.Image = imagePath
	}
	if languageCode != "" {
		lang, err := core.ParseLanguage(languageCode)
		if err != nil {
			core.GetLogger().Fatal("invalid -language flag", "error", err)
		}
		settings.Language.Default = lang
	}
	if skipSelection {
		settings.Language.Select = false
	}

	core.SetLogger(*core.NewLogger(settings.Logging, os.Stderr))

	if err := run(settings); err != nil {
		core.GetLogger().Fatal("imagetalk stopped", "error", err)
	}
}

func run(settings factories.Settings) error {
	logger := core.GetLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	con, err := console.New()
	if err != nil {
		return err
	}
	defer con.Close()
	// Unblocks a pending prompt on SIGTERM.
	context.AfterFunc(ctx, func() { con.Close() })

	if err := factories.ResolveCredentials(&settings, con); err != nil {
		return err
	}

	session := factories.NewSession(settings, logger)
	defer func() {
		if err := session.Cleanup(); err != nil {
			logger.Warn("cleanup failed", "error", err)
		}
	}()

	r, err := session.Runner(ctx, con)
	if err != nil {
		return err
	}
	logger.Info("starting imagetalk", "version", version, "session_id", r.SessionID())
	return r.Run(ctx)
}
