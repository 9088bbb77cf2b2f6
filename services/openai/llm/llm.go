package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"imagetalk/core"

	"github.com/sashabaranov/go-openai"
)

// OpenAILLMService runs chat completions against OpenAI or any
// OpenAI-compatible endpoint (Groq, Together, ...).
type OpenAILLMService struct {
	client *openai.Client
	config Config
	logger *core.Logger

	isInitialized bool
	mu            sync.RWMutex
}

// Config holds the configuration for OpenAI service
type Config struct {
	APIKey      string        `mapstructure:"api_key" json:"api_key"`
	BaseURL     string        `mapstructure:"base_url" json:"base_url"`
	Model       string        `mapstructure:"model" json:"model"`
	MaxTokens   int           `mapstructure:"max_tokens" json:"max_tokens" validate:"gte=1"`
	Temperature float32       `mapstructure:"temperature" json:"temperature" validate:"gte=0,lte=2"`
	Timeout     time.Duration `mapstructure:"timeout" json:"timeout"`
	// VerifyOnInit lists the remote models during Init to fail fast on a bad key.
	VerifyOnInit bool `mapstructure:"verify_on_init" json:"verify_on_init"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		Model:       openai.GPT4oMini,
		MaxTokens:   256,
		Temperature: 0.7,
		Timeout:     30 * time.Second,
	}
}

// NewOpenAILLMService creates a new instance of OpenAILLMService
func NewOpenAILLMService(config Config, logger *core.Logger) *OpenAILLMService {
	defaults := DefaultConfig()
	if config.Model == "" {
		config.Model = defaults.Model
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = defaults.MaxTokens
	}
	if config.Timeout == 0 {
		config.Timeout = defaults.Timeout
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	return &OpenAILLMService{
		config: config,
		logger: logger,
	}
}

// Init initializes the OpenAI client
func (s *OpenAILLMService) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.config.APIKey == "" {
		return errors.New("OpenAI API key is required")
	}

	clientConfig := openai.DefaultConfig(s.config.APIKey)
	if s.config.BaseURL != "" {
		clientConfig.BaseURL = s.config.BaseURL
	}
	clientConfig.HTTPClient = &http.Client{Timeout: s.config.Timeout}
	s.client = openai.NewClientWithConfig(clientConfig)

	if s.config.VerifyOnInit {
		if _, err := s.client.ListModels(ctx); err != nil {
			return fmt.Errorf("failed to connect to OpenAI: %w", err)
		}
	}

	s.isInitialized = true
	return nil
}

// Cleanup performs cleanup operations
func (s *OpenAILLMService) Cleanup() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.client = nil
	s.isInitialized = false
	return nil
}

// Model returns the configured completion model.
func (s *OpenAILLMService) Model() string {
	return s.config.Model
}

// Complete runs a single non-streaming completion and returns the content of
// the first choice.
func (s *OpenAILLMService) Complete(ctx context.Context, llmContext core.LLMContext) (string, error) {
	s.mu.RLock()
	if !s.isInitialized {
		s.mu.RUnlock()
		return "", errors.New("OpenAI service not initialized")
	}
	client := s.client
	s.mu.RUnlock()

	messages, err := s.convertMessages(llmContext.Messages)
	if err != nil {
		return "", fmt.Errorf("failed to convert messages: %w", err)
	}

	req := openai.ChatCompletionRequest{
		Model:       s.config.Model,
		Messages:    messages,
		MaxTokens:   s.config.MaxTokens,
		Temperature: s.config.Temperature,
	}

	start := time.Now()
	resp, err := client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to create completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("completion returned no choices")
	}

	s.logger.Debug("completion finished",
		"model", s.config.Model,
		"latency_ms", time.Since(start).Milliseconds(),
		"total_tokens", resp.Usage.TotalTokens,
	)
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// convertMessages converts core messages to OpenAI messages
func (s *OpenAILLMService) convertMessages(messages []core.LLMMessage) ([]openai.ChatCompletionMessage, error) {
	openAIMessages := make([]openai.ChatCompletionMessage, 0, len(messages))

	for _, msg := range messages {
		openAIMsg := openai.ChatCompletionMessage{
			Role:    s.convertRole(msg.Role),
			Content: msg.Message,
		}

		if msg.Media != nil && len(*msg.Media) > 0 {
			content := []openai.ChatMessagePart{
				{
					Type: openai.ChatMessagePartTypeText,
					Text: msg.Message,
				},
			}

			for _, media := range *msg.Media {
				mediaURL, err := s.convertMediaToURL(media)
				if err != nil {
					return nil, err
				}
				content = append(content, openai.ChatMessagePart{
					Type: openai.ChatMessagePartTypeImageURL,
					ImageURL: &openai.ChatMessageImageURL{
						URL:    mediaURL,
						Detail: openai.ImageURLDetailAuto,
					},
				})
			}

			openAIMsg.MultiContent = content
			openAIMsg.Content = "" // Content and MultiContent are mutually exclusive
		}

		openAIMessages = append(openAIMessages, openAIMsg)
	}

	return openAIMessages, nil
}

// convertRole converts core role to OpenAI role
func (s *OpenAILLMService) convertRole(role core.LLMMessageRole) string {
	switch role {
	case core.LLMMessageRoleAssistant:
		return openai.ChatMessageRoleAssistant
	case core.LLMMessageRoleSystem:
		return openai.ChatMessageRoleSystem
	default:
		return openai.ChatMessageRoleUser
	}
}

// convertMediaToURL converts media to a base64 data URL
func (s *OpenAILLMService) convertMediaToURL(media core.LLMMedia) (string, error) {
	if len(media.Data) == 0 {
		return "", errors.New("media payload is empty")
	}
	mediaType := string(media.MediaType)
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}
	return fmt.Sprintf("data:%s;base64,%s", mediaType, base64.StdEncoding.EncodeToString(media.Data)), nil
}
