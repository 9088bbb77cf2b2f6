package context

import (
	"context"
	"fmt"
	"strings"
	"time"

	"imagetalk/core"
)

const (
	questionTemplate = "Based on this image caption: '%s', please answer the following question: %s"
	sceneTemplate    = "Imagine you are a tour guide, give me 2-3 lines brief about the context or the tourist place present in the image caption which is provided :\n\n%s"
)

// Completer runs a single chat completion.
type Completer interface {
	Complete(ctx context.Context, llmContext core.LLMContext) (string, error)
}

// ContextHandler expands a caption into an answer with a remote language
// model. It never fails: on any error the caption itself is the answer.
type ContextHandler struct {
	completer Completer
	config    ContextConfig
	logger    *core.Logger
}

func NewContextHandler(completer Completer, config ContextConfig, logger *core.Logger) *ContextHandler {
	if config.SystemPrompt == "" {
		config.SystemPrompt = DefaultSystemPrompt
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	return &ContextHandler{completer: completer, config: config, logger: logger}
}

// BuildPrompt embeds caption and question verbatim and asks for an answer
// in lang only.
func (h *ContextHandler) BuildPrompt(caption core.Caption, question string, lang core.Language) string {
	return fmt.Sprintf(questionTemplate, caption, question) + " " + languageDirective(lang)
}

// Expand sends prompt and returns the trimmed answer, or caption when the
// request fails or comes back empty.
func (h *ContextHandler) Expand(ctx context.Context, caption core.Caption, prompt string) string {
	var llmContext core.LLMContext
	llmContext.AddSystemMessage(h.config.SystemPrompt)
	llmContext.AddUserMessage(prompt)
	return h.complete(ctx, caption, llmContext)
}

// DescribeScene gives a short tour-guide style description of the captioned scene.
func (h *ContextHandler) DescribeScene(ctx context.Context, caption core.Caption, lang core.Language) string {
	var llmContext core.LLMContext
	llmContext.AddUserMessage(fmt.Sprintf(sceneTemplate, caption) + "\n\n" + languageDirective(lang))
	return h.complete(ctx, caption, llmContext)
}

func (h *ContextHandler) complete(ctx context.Context, caption core.Caption, llmContext core.LLMContext) string {
	logger := core.LoggerFromContext(ctx, h.logger)
	start := time.Now()
	answer, err := h.completer.Complete(ctx, llmContext)
	if err != nil {
		logger.Error("error in expanding caption, answering with the caption", "error", err)
		return caption.String()
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		logger.Warn("language model returned an empty answer, answering with the caption")
		return caption.String()
	}
	logger.Debug("caption expanded", "latency_ms", time.Since(start).Milliseconds(), "chars", len(answer))
	return answer
}

func languageDirective(lang core.Language) string {
	info := lang.Info()
	if info.NativeName == info.Name {
		return fmt.Sprintf("Respond only in %s.", info.Name)
	}
	return fmt.Sprintf("Respond only in %s (%s).", info.Name, info.NativeName)
}
