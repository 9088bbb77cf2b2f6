package caption

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"imagetalk/core"

	"github.com/gabriel-vasile/mimetype"
)

type CaptionService interface {
	Caption(ctx context.Context, image []byte, mimeType string) (string, error)
}

// CaptionHandler produces the single caption a session is built around.
type CaptionHandler struct {
	service CaptionService
	config  CaptionConfig
	logger  *core.Logger
}

func NewCaptionHandler(service CaptionService, config CaptionConfig, logger *core.Logger) *CaptionHandler {
	if logger == nil {
		logger = core.GetLogger()
	}
	return &CaptionHandler{service: service, config: config, logger: logger}
}

// Generate captions the image at imagePath. Problems with the file itself
// wrap core.ErrImageLoad.
func (h *CaptionHandler) Generate(ctx context.Context, imagePath string) (core.Caption, error) {
	image, mimeType, err := h.loadImage(imagePath)
	if err != nil {
		return "", err
	}

	start := time.Now()
	text, err := h.service.Caption(ctx, image, mimeType)
	if err != nil {
		return "", fmt.Errorf("captioning %s: %w", imagePath, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.New("captioning returned an empty caption")
	}
	caption := core.Caption(text)

	h.logger.Info("caption generated", "image", imagePath, "mime", mimeType, "latency_ms", time.Since(start).Milliseconds())
	h.save(caption)
	return caption, nil
}

func (h *CaptionHandler) loadImage(path string) ([]byte, string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", core.ErrImageLoad, err)
	}
	if info.IsDir() {
		return nil, "", fmt.Errorf("%w: %s is a directory", core.ErrImageLoad, path)
	}
	if h.config.MaxImageBytes > 0 && info.Size() > h.config.MaxImageBytes {
		return nil, "", fmt.Errorf("%w: %s is %d bytes, limit %d", core.ErrImageLoad, path, info.Size(), h.config.MaxImageBytes)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", core.ErrImageLoad, err)
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("%w: %s is empty", core.ErrImageLoad, path)
	}

	mtype := mimetype.Detect(data)
	if !strings.HasPrefix(mtype.String(), "image/") {
		return nil, "", fmt.Errorf("%w: %s is %s, not an image", core.ErrImageLoad, path, mtype.String())
	}
	return data, mtype.String(), nil
}

func (h *CaptionHandler) save(caption core.Caption) {
	path := h.config.OutputPath
	if path == "" {
		return
	}
	err := os.MkdirAll(filepath.Dir(path), 0o755)
	if err == nil {
		err = os.WriteFile(path, []byte(caption.String()+"\n"), 0o644)
	}
	if err != nil {
		h.logger.Warn("could not save caption", "path", path, "error", err)
	}
}
