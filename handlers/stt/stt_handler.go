package stt

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"imagetalk/core"
	"imagetalk/utils/audio"
)

type STTService interface {
	Transcribe(ctx context.Context, chunk core.AudioChunk, lang core.Language) (string, error)
}

// AudioCapturer records one spoken phrase.
type AudioCapturer interface {
	Capture(ctx context.Context, ambient, timeout time.Duration) (core.AudioChunk, error)
}

// STTHandler captures a spoken question and turns it into text. Every
// failure is reported as a *core.RecognitionError, except cancellation of
// ctx, which is returned as is.
type STTHandler struct {
	capturer AudioCapturer
	service  STTService
	config   STTConfig
	logger   *core.Logger
}

func NewSTTHandler(capturer AudioCapturer, service STTService, config STTConfig, logger *core.Logger) *STTHandler {
	if config.ListenTimeout <= 0 {
		config.ListenTimeout = DefaultConfig().ListenTimeout
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	return &STTHandler{
		capturer: capturer,
		service:  service,
		config:   config,
		logger:   logger,
	}
}

// Listen captures one question using the configured timeout.
func (h *STTHandler) Listen(ctx context.Context, lang core.Language) (string, error) {
	return h.ListenFor(ctx, lang, h.config.ListenTimeout)
}

// ListenFor captures one phrase, waiting at most timeout for it to start.
func (h *STTHandler) ListenFor(ctx context.Context, lang core.Language, timeout time.Duration) (string, error) {
	logger := core.LoggerFromContext(ctx, h.logger)
	chunk, err := h.capturer.Capture(ctx, h.config.AmbientDuration, timeout)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if errors.Is(err, core.ErrNoSpeech) {
			return "", core.NewRecognitionError(core.RecognitionTimeout, err)
		}
		return "", core.NewRecognitionError(core.RecognitionService, err)
	}

	h.saveQuestion(chunk, logger)

	text, err := h.service.Transcribe(ctx, chunk, lang)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", core.NewRecognitionError(core.RecognitionService, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", core.NewRecognitionError(core.RecognitionUnintelligible, nil)
	}

	logger.Debug("question recognized", "language", string(lang), "seconds", chunk.GetDurationInSeconds())
	return text, nil
}

func (h *STTHandler) saveQuestion(chunk core.AudioChunk, logger *core.Logger) {
	path := h.config.QuestionAudioPath
	if path == "" {
		return
	}
	wav, err := audio.ChunkToWavBytes(chunk)
	if err == nil {
		if err = os.MkdirAll(filepath.Dir(path), 0o755); err == nil {
			err = os.WriteFile(path, wav, 0o644)
		}
	}
	if err != nil {
		logger.Warn("could not save question audio", "path", path, "error", err)
	}
}
