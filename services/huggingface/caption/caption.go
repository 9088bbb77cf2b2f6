package caption

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"imagetalk/core"

	"github.com/bytedance/sonic"
)

// Config configures the Hugging Face image-to-text inference endpoint.
type Config struct {
	APIKey  string        `mapstructure:"api_key" json:"api_key"`
	BaseURL string        `mapstructure:"base_url" json:"base_url"`
	Model   string        `mapstructure:"model" json:"model"`
	Timeout time.Duration `mapstructure:"timeout" json:"timeout"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		BaseURL: "https://router.huggingface.co/hf-inference/models",
		Model:   "Salesforce/blip-image-captioning-base",
		Timeout: 60 * time.Second,
	}
}

type generatedText struct {
	GeneratedText string `json:"generated_text"`
}

type inferenceError struct {
	Error         string  `json:"error"`
	EstimatedTime float64 `json:"estimated_time,omitempty"`
}

// BlipCaptionService captions images with a hosted BLIP model.
type BlipCaptionService struct {
	config Config
	client *http.Client
	logger *core.Logger
}

// NewBlipCaptionService creates a new caption service.
// Use DefaultConfig() to get a config with sensible defaults and override only what you need.
func NewBlipCaptionService(config Config, logger *core.Logger) *BlipCaptionService {
	defaults := DefaultConfig()
	if config.BaseURL == "" {
		config.BaseURL = defaults.BaseURL
	}
	if config.Model == "" {
		config.Model = defaults.Model
	}
	if config.Timeout == 0 {
		config.Timeout = defaults.Timeout
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	return &BlipCaptionService{
		config: config,
		logger: logger,
	}
}

func (s *BlipCaptionService) Init(ctx context.Context) error {
	if s.config.APIKey == "" {
		return errors.New("Hugging Face API token is required")
	}
	s.client = &http.Client{Timeout: s.config.Timeout}
	return nil
}

func (s *BlipCaptionService) Cleanup() error {
	s.client = nil
	return nil
}

// Caption posts the raw image and returns the best generated caption.
func (s *BlipCaptionService) Caption(ctx context.Context, image []byte, mimeType string) (string, error) {
	if s.client == nil {
		return "", errors.New("caption service not initialized")
	}
	url := strings.TrimRight(s.config.BaseURL, "/") + "/" + s.config.Model
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(image))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.config.APIKey)
	req.Header.Set("Content-Type", mimeType)
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("caption request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("reading caption response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr inferenceError
		if sonic.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return "", fmt.Errorf("caption failed (status %d): %s", resp.StatusCode, apiErr.Error)
		}
		return "", fmt.Errorf("caption failed (status %d): %.200s", resp.StatusCode, body)
	}

	var results []generatedText
	if err := sonic.Unmarshal(body, &results); err != nil {
		// Some deployments answer with a single object instead of a list.
		var single generatedText
		if sonic.Unmarshal(body, &single) != nil {
			return "", fmt.Errorf("decoding caption: %w", err)
		}
		results = []generatedText{single}
	}
	if len(results) == 0 || strings.TrimSpace(results[0].GeneratedText) == "" {
		return "", errors.New("caption response contained no text")
	}

	s.logger.Debug("caption generated", "model", s.config.Model)
	return strings.TrimSpace(results[0].GeneratedText), nil
}
