package tts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"imagetalk/core"

	"github.com/sashabaranov/go-openai"
)

// Config configures OpenAI speech synthesis.
type Config struct {
	APIKey  string        `mapstructure:"api_key" json:"api_key"`
	BaseURL string        `mapstructure:"base_url" json:"base_url"`
	Model   string        `mapstructure:"model" json:"model"`
	Voice   string        `mapstructure:"voice" json:"voice"`
	Format  string        `mapstructure:"format" json:"format" validate:"omitempty,oneof=mp3 wav"`
	Speed   float64       `mapstructure:"speed" json:"speed" validate:"gte=0,lte=4"`
	Timeout time.Duration `mapstructure:"timeout" json:"timeout"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		Model:   string(openai.TTSModel1),
		Voice:   string(openai.VoiceAlloy),
		Format:  "mp3",
		Speed:   1.0,
		Timeout: 30 * time.Second,
	}
}

// OpenAITTS synthesizes speech with the OpenAI audio API. The language is
// carried by the text itself; accents are not configurable on this backend.
type OpenAITTS struct {
	config Config
	client *openai.Client
	logger *core.Logger
}

// NewOpenAITTS creates a new OpenAI TTS service.
func NewOpenAITTS(config Config, logger *core.Logger) *OpenAITTS {
	defaults := DefaultConfig()
	if config.Model == "" {
		config.Model = defaults.Model
	}
	if config.Voice == "" {
		config.Voice = defaults.Voice
	}
	if config.Format == "" {
		config.Format = defaults.Format
	}
	if config.Speed == 0 {
		config.Speed = defaults.Speed
	}
	if config.Timeout == 0 {
		config.Timeout = defaults.Timeout
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	return &OpenAITTS{config: config, logger: logger}
}

func (t *OpenAITTS) Init(ctx context.Context) error {
	if t.config.APIKey == "" {
		return errors.New("OpenAI API key is required")
	}
	clientConfig := openai.DefaultConfig(t.config.APIKey)
	if t.config.BaseURL != "" {
		clientConfig.BaseURL = t.config.BaseURL
	}
	clientConfig.HTTPClient = &http.Client{Timeout: t.config.Timeout}
	t.client = openai.NewClientWithConfig(clientConfig)
	return nil
}

func (t *OpenAITTS) Cleanup() error {
	t.client = nil
	return nil
}

// Synthesize requests speech for text and returns the encoded audio.
func (t *OpenAITTS) Synthesize(ctx context.Context, text string, opts core.SynthesizeOptions) (*core.SynthesisResult, error) {
	if t.client == nil {
		return nil, errors.New("OpenAI TTS service not initialized")
	}
	resp, err := t.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(t.config.Model),
		Input:          text,
		Voice:          openai.SpeechVoice(t.config.Voice),
		ResponseFormat: openai.SpeechResponseFormat(t.config.Format),
		Speed:          t.config.Speed,
	})
	if err != nil {
		return nil, fmt.Errorf("speech request: %w", err)
	}
	defer resp.Close()

	data, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("read speech: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("speech response is empty")
	}
	t.logger.Debug("speech synthesized", "bytes", len(data), "language", string(opts.Language))
	return &core.SynthesisResult{Audio: data, Format: t.config.Format}, nil
}
