package factories

import (
	"fmt"

	"imagetalk/core"
	stthandler "imagetalk/handlers/stt"
	deepgramstt "imagetalk/services/deepgram/stt"
	openaistt "imagetalk/services/openai/stt"
)

type sttService interface {
	stthandler.STTService
	core.IService
}

// BuildSTTService constructs the transcription backend.
func BuildSTTService(settings RecognizerSettings, logger *core.Logger) (sttService, error) {
	switch settings.Provider {
	case "whisper":
		return openaistt.NewWhisperSTTService(settings.Whisper, logger), nil
	case "deepgram":
		cfg := settings.Deepgram
		return deepgramstt.NewDeepgramSTTService(&cfg, logger), nil
	default:
		return nil, fmt.Errorf("unknown recognizer provider %q", settings.Provider)
	}
}
