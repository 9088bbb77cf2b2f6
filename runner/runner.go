package runner

import (
	"context"
	"errors"
	"fmt"

	"imagetalk/core"
	"imagetalk/transports/console"

	"github.com/google/uuid"
)

type Captioner interface {
	Generate(ctx context.Context, imagePath string) (core.Caption, error)
}

type LanguageSelector interface {
	Select(ctx context.Context) (core.Language, error)
}

type Recognizer interface {
	Listen(ctx context.Context, lang core.Language) (string, error)
}

type Expander interface {
	BuildPrompt(caption core.Caption, question string, lang core.Language) string
	Expand(ctx context.Context, caption core.Caption, prompt string) string
}

type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (string, error)
}

type Player interface {
	Play(ctx context.Context, path string) error
}

// Console is the user's side of the loop.
type Console interface {
	Next() (console.Intent, error)
	Printf(format string, args ...any)
	Println(args ...any)
}

// Components are constructed once at startup and shared by every turn.
type Components struct {
	Captioner   Captioner
	Selector    LanguageSelector
	Recognizer  Recognizer
	Expander    Expander
	Synthesizer Synthesizer
	Player      Player
	Console     Console
}

type Config struct {
	ImagePath string `mapstructure:"image" json:"image" validate:"required"`
}

// Runner drives one session: caption once, select the language once, then
// answer spoken questions until the user quits.
type Runner struct {
	components Components
	config     Config
	sessionID  string
	logger     *core.Logger
}

func NewRunner(components Components, config Config, logger *core.Logger) *Runner {
	if logger == nil {
		logger = core.GetLogger()
	}
	sessionID := uuid.NewString()
	return &Runner{
		components: components,
		config:     config,
		sessionID:  sessionID,
		logger:     logger.With(map[string]interface{}{"session_id": sessionID}),
	}
}

func (r *Runner) SessionID() string {
	return r.sessionID
}

// Run returns an error only when the caption cannot be generated or the
// console fails. Cancelling ctx ends the session cleanly.
func (r *Runner) Run(ctx context.Context) error {
	c := r.components
	ctx = core.ContextWithSessionLogger(ctx, r.logger)

	caption, err := c.Captioner.Generate(ctx, r.config.ImagePath)
	if err != nil {
		return fmt.Errorf("generating caption: %w", err)
	}
	c.Console.Printf("Generated Caption: %s\n", caption)

	lang, err := c.Selector.Select(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return r.stopped()
		}
		return fmt.Errorf("selecting language: %w", err)
	}
	c.Console.Printf("Language: %s\n", lang.Info().Name)
	r.logger.Info("session started", "image", r.config.ImagePath, "language", string(lang))

	for turns := 0; ; turns++ {
		if ctx.Err() != nil {
			return r.stopped()
		}
		intent, err := c.Console.Next()
		if err != nil {
			return err
		}
		if intent == console.IntentQuit {
			c.Console.Println("Goodbye!")
			r.logger.Info("session ended", "turns", turns)
			return nil
		}
		if err := r.turn(ctx, caption, lang); err != nil {
			return r.stopped()
		}
	}
}

// turn answers one question. Every failure except cancellation only skips
// the rest of the turn.
func (r *Runner) turn(ctx context.Context, caption core.Caption, lang core.Language) error {
	c := r.components
	logger := r.logger.With(map[string]interface{}{"turn_id": uuid.NewString()})
	ctx = core.ContextWithSessionLogger(ctx, logger)

	c.Console.Println("Listening... ask your question.")
	question, err := c.Recognizer.Listen(ctx, lang)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Warn("question not captured", "kind", core.RecognitionKindOf(err).String(), "error", err)
		c.Console.Println(recognitionMessage(err))
		return nil
	}
	c.Console.Printf("You asked: %s\n", question)

	prompt := c.Expander.BuildPrompt(caption, question, lang)
	response := c.Expander.Expand(ctx, caption, prompt)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	c.Console.Printf("Response: %s\n", response)

	path, err := c.Synthesizer.Synthesize(ctx, response)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Warn("response not spoken", "error", err)
		return nil
	}
	c.Console.Printf("Speech output saved to: %s\n", path)

	if err := c.Player.Play(ctx, path); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Warn("playback failed", "path", path, "error", err)
	}
	logger.Debug("turn complete", "question_length", len(question), "response_length", len(response))
	return nil
}

func (r *Runner) stopped() error {
	r.logger.Info("session interrupted")
	return nil
}

func recognitionMessage(err error) string {
	switch core.RecognitionKindOf(err) {
	case core.RecognitionTimeout:
		return "No speech detected within timeout period"
	case core.RecognitionUnintelligible:
		return "Could not understand the audio"
	default:
		var recErr *core.RecognitionError
		if errors.As(err, &recErr) && recErr.Err != nil {
			err = recErr.Err
		}
		return fmt.Sprintf("Could not request results; %v", err)
	}
}
