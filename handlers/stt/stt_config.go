package stt

import "time"

// STTConfig configures question capture.
type STTConfig struct {
	// ListenTimeout bounds the wait for the user to start speaking.
	ListenTimeout time.Duration `mapstructure:"listen_timeout" json:"listen_timeout" validate:"gte=1s,lte=30s"`
	// AmbientDuration is spent calibrating to room noise before each capture.
	AmbientDuration time.Duration `mapstructure:"ambient_duration" json:"ambient_duration" validate:"gte=0,lte=5s"`
	// QuestionAudioPath, when set, receives the captured question as WAV.
	QuestionAudioPath string `mapstructure:"question_audio" json:"question_audio"`
}

// DefaultConfig returns an STTConfig with sensible defaults.
func DefaultConfig() STTConfig {
	return STTConfig{
		ListenTimeout:   5 * time.Second,
		AmbientDuration: time.Second,
	}
}
