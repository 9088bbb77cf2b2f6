package language

import (
	"context"
	"strings"
	"time"
	"unicode"

	"imagetalk/core"
)

// Synthesizer is the speech side of the selector; SetLanguage is called with
// the outcome.
type Synthesizer interface {
	SetLanguage(lang core.Language)
	Synthesize(ctx context.Context, text string) (string, error)
}

type Player interface {
	Play(ctx context.Context, path string) error
}

type Recognizer interface {
	ListenFor(ctx context.Context, lang core.Language, timeout time.Duration) (string, error)
}

// LanguageHandler asks once which language to use. Any failure falls back
// to the configured default; only cancellation of ctx is returned.
type LanguageHandler struct {
	synth      Synthesizer
	player     Player
	recognizer Recognizer
	config     LanguageConfig
	logger     *core.Logger
}

func NewLanguageHandler(synth Synthesizer, player Player, recognizer Recognizer, config LanguageConfig, logger *core.Logger) *LanguageHandler {
	defaults := DefaultConfig()
	if !config.Default.Valid() {
		config.Default = defaults.Default
	}
	if config.SelectionTimeout <= 0 {
		config.SelectionTimeout = defaults.SelectionTimeout
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	return &LanguageHandler{
		synth:      synth,
		player:     player,
		recognizer: recognizer,
		config:     config,
		logger:     logger,
	}
}

// SelectionPrompt lists every supported language by its English name.
func SelectionPrompt() string {
	infos := core.SupportedLanguages()
	names := make([]string, len(infos))
	for i, info := range infos {
		names[i] = info.Name
	}
	last := len(names) - 1
	return "Please say the language you would like me to use: " +
		strings.Join(names[:last], ", ") + ", or " + names[last] + "."
}

// Select runs the selection and applies the result to the synthesizer.
func (h *LanguageHandler) Select(ctx context.Context) (core.Language, error) {
	if !h.config.Select {
		h.synth.SetLanguage(h.config.Default)
		return h.config.Default, nil
	}

	h.synth.SetLanguage(core.ENGLISH)
	h.speak(ctx, SelectionPrompt())

	lang := h.config.Default
	heard, err := h.recognizer.ListenFor(ctx, core.ENGLISH, h.config.SelectionTimeout)
	switch {
	case ctx.Err() != nil:
		return h.config.Default, ctx.Err()
	case err != nil:
		h.logger.Warn("language selection not recognized, using default", "default", string(h.config.Default), "error", err)
	default:
		if match, ok := core.LanguageFromName(trimPunctuation(heard)); ok {
			lang = match
		} else {
			h.logger.Warn("unsupported language requested, using default", "heard", heard, "default", string(h.config.Default))
		}
	}

	h.synth.SetLanguage(lang)
	h.speak(ctx, lang.Info().Confirmation)
	h.logger.Info("language selected", "language", string(lang))
	return lang, nil
}

func (h *LanguageHandler) speak(ctx context.Context, text string) {
	path, err := h.synth.Synthesize(ctx, text)
	if err != nil {
		return // already logged by the synthesizer
	}
	if err := h.player.Play(ctx, path); err != nil {
		h.logger.Warn("playback failed", "path", path, "error", err)
	}
}

// trimPunctuation drops what recognizers add around a single spoken word.
func trimPunctuation(s string) string {
	return strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	})
}
