package caption

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"imagetalk/core"
)

// Smallest valid PNG header plus IHDR start is enough for sniffing.
var pngBytes = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R', 0, 0, 0, 1, 0, 0, 0, 1, 8, 2, 0, 0, 0}

type fakeCaptioner struct {
	text     string
	err      error
	mimeType string
	calls    int
}

func (f *fakeCaptioner) Caption(ctx context.Context, image []byte, mimeType string) (string, error) {
	f.calls++
	f.mimeType = mimeType
	return f.text, f.err
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestGenerate_CaptionsAndSaves(t *testing.T) {
	img := writeFile(t, "hall.png", pngBytes)
	out := filepath.Join(t.TempDir(), "outputs", "caption.txt")
	svc := &fakeCaptioner{text: " a large hall with a stage \n"}
	h := NewCaptionHandler(svc, CaptionConfig{OutputPath: out}, core.NewNopLogger())

	caption, err := h.Generate(context.Background(), img)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if caption != "a large hall with a stage" {
		t.Fatalf("unexpected caption %q", caption)
	}
	if svc.mimeType != "image/png" {
		t.Fatalf("expected image/png, got %q", svc.mimeType)
	}
	saved, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("expected caption file: %v", err)
	}
	if string(saved) != "a large hall with a stage\n" {
		t.Fatalf("unexpected saved caption %q", saved)
	}
}

func TestGenerate_ImageLoadFailures(t *testing.T) {
	tests := []struct {
		name string
		path func(t *testing.T) string
		cfg  CaptionConfig
	}{
		{"missing", func(t *testing.T) string { return filepath.Join(t.TempDir(), "nope.jpg") }, CaptionConfig{}},
		{"directory", func(t *testing.T) string { return t.TempDir() }, CaptionConfig{}},
		{"empty", func(t *testing.T) string { return writeFile(t, "empty.jpg", nil) }, CaptionConfig{}},
		{"not an image", func(t *testing.T) string { return writeFile(t, "notes.jpg", []byte("just some text")) }, CaptionConfig{}},
		{"too large", func(t *testing.T) string { return writeFile(t, "big.png", pngBytes) }, CaptionConfig{MaxImageBytes: 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeCaptioner{text: "x"}
			h := NewCaptionHandler(svc, tt.cfg, core.NewNopLogger())
			_, err := h.Generate(context.Background(), tt.path(t))
			if !errors.Is(err, core.ErrImageLoad) {
				t.Fatalf("expected ErrImageLoad, got %v", err)
			}
			if svc.calls != 0 {
				t.Fatal("service should not be called for a bad image")
			}
		})
	}
}

func TestGenerate_ServiceFailure(t *testing.T) {
	img := writeFile(t, "hall.png", pngBytes)
	h := NewCaptionHandler(&fakeCaptioner{err: errors.New("model loading")}, CaptionConfig{}, core.NewNopLogger())
	_, err := h.Generate(context.Background(), img)
	if err == nil || errors.Is(err, core.ErrImageLoad) {
		t.Fatalf("expected service error, got %v", err)
	}
}

func TestGenerate_EmptyCaption(t *testing.T) {
	img := writeFile(t, "hall.png", pngBytes)
	h := NewCaptionHandler(&fakeCaptioner{text: "  "}, CaptionConfig{}, core.NewNopLogger())
	if _, err := h.Generate(context.Background(), img); err == nil {
		t.Fatal("expected error for empty caption")
	}
}

func TestGenerate_SaveFailureIsNotFatal(t *testing.T) {
	img := writeFile(t, "hall.png", pngBytes)
	blocker := writeFile(t, "file", []byte("x"))
	h := NewCaptionHandler(&fakeCaptioner{text: "a hall"}, CaptionConfig{OutputPath: filepath.Join(blocker, "caption.txt")}, core.NewNopLogger())
	if _, err := h.Generate(context.Background(), img); err != nil {
		t.Fatalf("expected save failure to be ignored, got %v", err)
	}
}
