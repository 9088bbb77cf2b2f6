// Command describe captions one image and prints a short tour-guide
// description of it, optionally speaking it aloud.
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

func main() {
	var (
		configPath   string
		imagePath    string
		languageCode string
		speak        bool
	)
	flag.StringVar(&imagePath, "image", "", "image to describe (overrides paths.image)")
	flag.StringVar(&configPath, "config", "", "path to a config file")
	flag.StringVar(&languageCode, "language", "", "language of the description, e.g. en, hi")
	flag.BoolVar(&speak, "speak", false, "synthesize and play the description")
	flag.Parse()

	godotenv.Load()

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
	core.SetLogger(*core.NewLogger(settings.Logging, os.Stderr))

	if err := describe(settings, speak); err != nil {
		core.GetLogger().Fatal("describe failed", "error", err)
	}
}

func describe(settings factories.Settings, speak bool) error {
	logger := core.GetLogger()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// No microphone here, and no synthesizer unless asked; an empty provider
	// needs no credential.
	settings.Recognizer.Provider = ""
	if !speak {
		settings.TTS.Provider = ""
	}
	con, err := console.New()
	if err != nil {
		return err
	}
	defer con.Close()
	if err := factories.ResolveCredentials(&settings, con); err != nil {
		return err
	}

	session := factories.NewSession(settings, logger)
	defer session.Cleanup()

	captioner, err := session.Captioner(ctx)
	if err != nil {
		return err
	}
	caption, err := captioner.Generate(ctx, settings.Paths.Image)
	if err != nil {
		return err
	}
	fmt.Printf("Caption: %s\n", caption)

	expander, err := session.Expander(ctx)
	if err != nil {
		return err
	}
	lang := settings.Language.Default
	description := expander.DescribeScene(ctx, caption, lang)
	fmt.Printf("Description (%s): %s\n", lang.Info().Name, description)

	if !speak {
		return nil
	}
	synth, err := session.Synthesizer(ctx)
	if err != nil {
		return err
	}
	synth.SetLanguage(lang)
	path, err := synth.Synthesize(ctx, description)
	if err != nil {
		return err
	}
	fmt.Printf("Speech output saved to: %s\n", path)
	return session.Player().Play(ctx, path)
}
