package language

import (
	"time"

	"imagetalk/core"
)

// LanguageConfig configures the spoken language selection step.
type LanguageConfig struct {
	// Select enables the spoken selection; when false Default is used silently.
	Select           bool          `mapstructure:"select" json:"select"`
	Default          core.Language `mapstructure:"default" json:"default" validate:"required"`
	SelectionTimeout time.Duration `mapstructure:"selection_timeout" json:"selection_timeout" validate:"gte=1s,lte=30s"`
}

// DefaultConfig returns a LanguageConfig with sensible defaults.
func DefaultConfig() LanguageConfig {
	return LanguageConfig{
		Select:           true,
		Default:          core.DefaultLanguage,
		SelectionTimeout: 5 * time.Second,
	}
}
