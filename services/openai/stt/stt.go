package stt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"imagetalk/core"
	"imagetalk/utils/audio"

	"github.com/sashabaranov/go-openai"
)

// Config configures Whisper transcription. BaseURL allows any
// OpenAI-compatible transcription endpoint (Groq by default in settings).
type Config struct {
	APIKey  string        `mapstructure:"api_key" json:"api_key"`
	BaseURL string        `mapstructure:"base_url" json:"base_url"`
	Model   string        `mapstructure:"model" json:"model"`
	Prompt  string        `mapstructure:"prompt" json:"prompt"`
	Timeout time.Duration `mapstructure:"timeout" json:"timeout"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		Model:   openai.Whisper1,
		Timeout: 30 * time.Second,
	}
}

// WhisperSTTService transcribes captured questions with a Whisper model.
type WhisperSTTService struct {
	config Config
	client *openai.Client
	logger *core.Logger
}

// NewWhisperSTTService creates a new Whisper STT service.
func NewWhisperSTTService(config Config, logger *core.Logger) *WhisperSTTService {
	defaults := DefaultConfig()
	if config.Model == "" {
		config.Model = defaults.Model
	}
	if config.Timeout == 0 {
		config.Timeout = defaults.Timeout
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	return &WhisperSTTService{config: config, logger: logger}
}

func (s *WhisperSTTService) Init(ctx context.Context) error {
	if s.config.APIKey == "" {
		return errors.New("Whisper API key is required")
	}
	clientConfig := openai.DefaultConfig(s.config.APIKey)
	if s.config.BaseURL != "" {
		clientConfig.BaseURL = s.config.BaseURL
	}
	clientConfig.HTTPClient = &http.Client{Timeout: s.config.Timeout}
	s.client = openai.NewClientWithConfig(clientConfig)
	return nil
}

func (s *WhisperSTTService) Cleanup() error {
	s.client = nil
	return nil
}

// Transcribe uploads the chunk as a WAV file and returns the recognized text.
func (s *WhisperSTTService) Transcribe(ctx context.Context, chunk core.AudioChunk, lang core.Language) (string, error) {
	if s.client == nil {
		return "", errors.New("Whisper service not initialized")
	}
	pcm, err := audio.ToPCM(chunk)
	if err != nil {
		return "", err
	}
	wav, err := audio.PCMBytesToWavBytes(pcm, chunk.Channels, chunk.SampleRate)
	if err != nil {
		return "", fmt.Errorf("failed to wrap audio: %w", err)
	}

	resp, err := s.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    s.config.Model,
		FilePath: "question.wav",
		Reader:   bytes.NewReader(wav),
		Prompt:   s.config.Prompt,
		Language: string(lang),
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		return "", fmt.Errorf("transcription request: %w", err)
	}

	text := strings.TrimSpace(resp.Text)
	s.logger.Debug("transcription complete", "model", s.config.Model, "language", string(lang), "text_length", len(text))
	return text, nil
}
