package caption

// CaptionConfig configures caption generation.
type CaptionConfig struct {
	// OutputPath receives the caption text. Empty disables saving.
	OutputPath string `mapstructure:"caption_output" json:"caption_output"`
	// MaxImageBytes rejects larger files before they are uploaded.
	MaxImageBytes int64 `mapstructure:"max_image_bytes" json:"max_image_bytes" validate:"gte=0"`
}

// DefaultConfig returns a CaptionConfig with sensible defaults.
func DefaultConfig() CaptionConfig {
	return CaptionConfig{
		OutputPath:    "outputs/caption.txt",
		MaxImageBytes: 20 << 20,
	}
}
