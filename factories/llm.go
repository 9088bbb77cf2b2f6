package factories

import (
	"fmt"

	"imagetalk/core"
	openaillm "imagetalk/services/openai/llm"
)

// Default base URLs for OpenAI-compatible providers.
const (
	togetherBaseURL   = "https://api.together.xyz/v1"
	groqBaseURL       = "https://api.groq.com/openai/v1"
	deepseekBaseURL   = "https://api.deepseek.com/v1"
	openrouterBaseURL = "https://openrouter.ai/api/v1"
	fireworksBaseURL  = "https://api.fireworks.ai/inference/v1"
	cerebrasBaseURL   = "https://api.cerebras.ai/v1"
	xaiBaseURL        = "https://api.x.ai/v1"
	mistralBaseURL    = "https://api.mistral.ai/v1"
	perplexityBaseURL = "https://api.perplexity.ai"
)

type providerDefaults struct {
	baseURL string
	model   string
}

// All completion providers speak the OpenAI protocol and differ only in
// endpoint and default model.
var llmProviders = map[string]providerDefaults{
	"openai":     {"", "gpt-4o-mini"},
	"groq":       {groqBaseURL, "llama-3.1-8b-instant"},
	"together":   {togetherBaseURL, "meta-llama/Llama-3.3-70B-Instruct-Turbo"},
	"deepseek":   {deepseekBaseURL, "deepseek-chat"},
	"openrouter": {openrouterBaseURL, "openai/gpt-4o"},
	"fireworks":  {fireworksBaseURL, "accounts/fireworks/models/llama-v3p3-70b-instruct"},
	"cerebras":   {cerebrasBaseURL, "llama-3.3-70b"},
	"xai":        {xaiBaseURL, "grok-3"},
	"mistral":    {mistralBaseURL, "mistral-large-latest"},
	"perplexity": {perplexityBaseURL, "sonar-pro"},
}

// BuildLLMService constructs the completion service for the configured
// provider, applying its base URL and model unless set explicitly.
func BuildLLMService(settings LLMSettings, logger *core.Logger) (*openaillm.OpenAILLMService, error) {
	defaults, ok := llmProviders[settings.Provider]
	if !ok {
		return nil, fmt.Errorf("unknown llm provider %q", settings.Provider)
	}
	cfg := settings.Config
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaults.baseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaults.model
	}
	return openaillm.NewOpenAILLMService(cfg, logger), nil
}
