package tts

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"imagetalk/core"
)

// fallbackAccent is used for languages with no known regional variant.
const fallbackAccent = "com"

type TTSService interface {
	Synthesize(ctx context.Context, text string, opts core.SynthesizeOptions) (*core.SynthesisResult, error)
}

// TTSHandler turns response text into an audio file in the current language.
type TTSHandler struct {
	service TTSService
	config  TTSConfig
	logger  *core.Logger

	mu       sync.RWMutex
	language core.Language
}

func NewTTSHandler(service TTSService, config TTSConfig, logger *core.Logger) *TTSHandler {
	if config.OutputPath == "" {
		config.OutputPath = DefaultConfig().OutputPath
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	return &TTSHandler{
		service:  service,
		config:   config,
		logger:   logger,
		language: core.DefaultLanguage,
	}
}

// SetLanguage changes the language used by later Synthesize calls.
func (h *TTSHandler) SetLanguage(lang core.Language) {
	h.mu.Lock()
	h.language = lang
	h.mu.Unlock()
}

func (h *TTSHandler) Language() core.Language {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.language
}

// Accent returns the regional accent for the current language.
func (h *TTSHandler) Accent() string {
	return h.accentFor(h.Language())
}

func (h *TTSHandler) accentFor(lang core.Language) string {
	if accent, ok := h.config.Accents[string(lang)]; ok && accent != "" {
		return accent
	}
	if lang.Valid() {
		return lang.Info().Accent
	}
	return fallbackAccent
}

// Synthesize writes speech for text to the output path and returns the
// path actually written.
func (h *TTSHandler) Synthesize(ctx context.Context, text string) (string, error) {
	logger := core.LoggerFromContext(ctx, h.logger)
	text = normalizeTextForTTS(text)
	if text == "" {
		logger.Warn("nothing to synthesize after normalization")
		return "", errors.New("nothing to synthesize")
	}

	dir := filepath.Dir(h.config.OutputPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logger.Error("failed to create output directory", "dir", dir, "error", err)
		return "", fmt.Errorf("creating output directory: %w", err)
	}

	lang := h.Language()
	opts := core.SynthesizeOptions{Language: lang, Accent: h.accentFor(lang)}
	result, err := h.service.Synthesize(ctx, text, opts)
	if err != nil {
		logger.Error("text-to-speech failed", "language", string(lang), "error", err)
		return "", fmt.Errorf("synthesizing speech: %w", err)
	}

	path := outputPathFor(h.config.OutputPath, result.Format)
	if err := os.WriteFile(path, result.Audio, 0o644); err != nil {
		logger.Error("failed to write speech", "path", path, "error", err)
		return "", fmt.Errorf("writing speech: %w", err)
	}

	logger.Debug("speech written", "path", path, "language", string(lang), "accent", opts.Accent, "bytes", len(result.Audio))
	return path, nil
}

func outputPathFor(path, format string) string {
	format = strings.TrimPrefix(strings.ToLower(format), ".")
	if format == "" {
		return path
	}
	return strings.TrimSuffix(path, filepath.Ext(path)) + "." + format
}
