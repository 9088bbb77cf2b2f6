package factories

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// ErrMissingCredential is returned when a required key is found nowhere and
// none was entered.
var ErrMissingCredential = errors.New("missing credential")

// SecretReader prompts the user for a value without echoing it.
type SecretReader interface {
	ReadSecret(prompt string) (string, error)
}

// EnsureAPIKey returns the value of the environment variable name, looking in
// the process environment, then envFile, then asking reader. An entered key
// is added to envFile, keeping its other entries, and exported.
func EnsureAPIKey(name, envFile string, reader SecretReader) (string, error) {
	if value := strings.TrimSpace(os.Getenv(name)); value != "" {
		return value, nil
	}

	stored, err := godotenv.Read(envFile)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("reading %s: %w", envFile, err)
	}
	if value := strings.TrimSpace(stored[name]); value != "" {
		os.Setenv(name, value)
		return value, nil
	}

	if reader == nil {
		return "", fmt.Errorf("%w: %s", ErrMissingCredential, name)
	}
	value, err := reader.ReadSecret(fmt.Sprintf("Enter your %s: ", name))
	if err != nil {
		return "", err
	}
	if value == "" {
		return "", fmt.Errorf("%w: %s", ErrMissingCredential, name)
	}

	if stored == nil {
		stored = make(map[string]string)
	}
	stored[name] = value
	if err := godotenv.Write(stored, envFile); err != nil {
		return "", fmt.Errorf("saving %s: %w", envFile, err)
	}
	if err := os.Setenv(name, value); err != nil {
		return "", err
	}
	return value, nil
}

// Default credential variables per provider.
var providerKeyEnv = map[string]string{
	"huggingface": "HF_TOKEN",
	"groq":        "GROQ_API_KEY",
	"openai":      "OPENAI_API_KEY",
	"together":    "TOGETHER_API_KEY",
	"deepseek":    "DEEPSEEK_API_KEY",
	"openrouter":  "OPENROUTER_API_KEY",
	"fireworks":   "FIREWORKS_API_KEY",
	"cerebras":    "CEREBRAS_API_KEY",
	"xai":         "XAI_API_KEY",
	"mistral":     "MISTRAL_API_KEY",
	"perplexity":  "PERPLEXITY_API_KEY",
	"deepgram":    "DEEPGRAM_API_KEY",
}

// credential is one key the configured providers need.
type credential struct {
	env    string
	target *string
}

// keyEnvFor picks the variable holding a provider key. An explicit name wins;
// an OpenAI-protocol backend pointed at Groq uses the Groq key.
func keyEnvFor(explicit, provider, baseURL string) string {
	if explicit != "" {
		return explicit
	}
	if strings.Contains(baseURL, "api.groq.com") {
		return providerKeyEnv["groq"]
	}
	return providerKeyEnv[provider]
}

func (s *Settings) credentials() []credential {
	var creds []credential
	add := func(env string, target *string) {
		if env != "" && *target == "" {
			creds = append(creds, credential{env: env, target: target})
		}
	}

	switch s.Captioner.Provider {
	case "huggingface":
		add(keyEnvFor(s.Captioner.APIKeyEnv, "huggingface", ""), &s.Captioner.HuggingFace.APIKey)
	case "openai":
		add(keyEnvFor(s.Captioner.APIKeyEnv, "openai", s.Captioner.OpenAI.BaseURL), &s.Captioner.OpenAI.APIKey)
	}

	switch s.Recognizer.Provider {
	case "whisper":
		add(keyEnvFor(s.Recognizer.APIKeyEnv, "openai", s.Recognizer.Whisper.BaseURL), &s.Recognizer.Whisper.APIKey)
	case "deepgram":
		add(keyEnvFor(s.Recognizer.APIKeyEnv, "deepgram", ""), &s.Recognizer.Deepgram.APIKey)
	}

	add(keyEnvFor(s.LLM.APIKeyEnv, s.LLM.Provider, s.LLM.BaseURL), &s.LLM.APIKey)

	switch s.TTS.Provider {
	case "openai":
		add(keyEnvFor(s.TTS.APIKeyEnv, "openai", s.TTS.OpenAI.BaseURL), &s.TTS.OpenAI.APIKey)
	case "deepgram":
		add(keyEnvFor(s.TTS.APIKeyEnv, "deepgram", ""), &s.TTS.Deepgram.APIKey)
	}
	return creds
}

// ResolveCredentials fills in every API key the selected providers need.
// Each distinct variable is asked for at most once.
func ResolveCredentials(s *Settings, reader SecretReader) error {
	resolved := make(map[string]string)
	for _, cred := range s.credentials() {
		value, ok := resolved[cred.env]
		if !ok {
			var err error
			value, err = EnsureAPIKey(cred.env, s.EnvFile, reader)
			if err != nil {
				return err
			}
			resolved[cred.env] = value
		}
		*cred.target = value
	}
	return nil
}
