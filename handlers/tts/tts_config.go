package tts

// TTSConfig configures the speech synthesizer.
type TTSConfig struct {
	// OutputPath is overwritten on every call. Its extension is replaced by
	// the format the service produced.
	OutputPath string `mapstructure:"output_path" json:"output_path" validate:"required"`
	// Accents overrides the regional accent per language code.
	Accents map[string]string `mapstructure:"accents" json:"accents"`
}

// DefaultConfig returns a TTSConfig with sensible defaults.
func DefaultConfig() TTSConfig {
	return TTSConfig{
		OutputPath: "outputs/speech_output.wav",
	}
}
