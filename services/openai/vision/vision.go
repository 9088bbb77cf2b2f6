package vision

import (
	"context"
	"errors"
	"fmt"

	"imagetalk/core"
	"imagetalk/services/openai/llm"
)

// DefaultInstruction asks for the same kind of output a captioning model gives.
const DefaultInstruction = "Describe this image in one short, plain sentence, like an image caption. Do not add any preamble."

// Config configures the vision captioner. The embedded completion settings
// select the endpoint and model; the model must accept image input.
type Config struct {
	llm.Config  `mapstructure:",squash"`
	Instruction string `mapstructure:"instruction" json:"instruction"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	cfg := Config{Config: llm.DefaultConfig(), Instruction: DefaultInstruction}
	cfg.MaxTokens = 60
	cfg.Temperature = 0
	return cfg
}

// CaptionService captions images with a multimodal chat model.
type CaptionService struct {
	completer   *llm.OpenAILLMService
	instruction string
	logger      *core.Logger
}

// NewCaptionService creates a vision-backed caption service.
func NewCaptionService(config Config, logger *core.Logger) *CaptionService {
	if config.Instruction == "" {
		config.Instruction = DefaultInstruction
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	return &CaptionService{
		completer:   llm.NewOpenAILLMService(config.Config, logger),
		instruction: config.Instruction,
		logger:      logger,
	}
}

func (s *CaptionService) Init(ctx context.Context) error {
	return s.completer.Init(ctx)
}

func (s *CaptionService) Cleanup() error {
	return s.completer.Cleanup()
}

// Caption sends the image as a data URL together with the caption instruction.
func (s *CaptionService) Caption(ctx context.Context, image []byte, mimeType string) (string, error) {
	if len(image) == 0 {
		return "", errors.New("image is empty")
	}
	var llmContext core.LLMContext
	llmContext.AddUserMedia(s.instruction, core.LLMMedia{
		Data:      image,
		MediaType: core.LLMMediaType(mimeType),
	})
	caption, err := s.completer.Complete(ctx, llmContext)
	if err != nil {
		return "", fmt.Errorf("vision caption: %w", err)
	}
	return caption, nil
}
