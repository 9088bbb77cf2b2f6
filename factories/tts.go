package factories

import (
	"fmt"

	"imagetalk/core"
	ttshandler "imagetalk/handlers/tts"
	deepgramtts "imagetalk/services/deepgram/tts"
	googletts "imagetalk/services/google/tts"
	openaitts "imagetalk/services/openai/tts"
)

type ttsService interface {
	ttshandler.TTSService
	core.IService
}

// BuildTTSService constructs the speech synthesis backend.
func BuildTTSService(settings TTSSettings, logger *core.Logger) (ttsService, error) {
	switch settings.Provider {
	case "google":
		return googletts.NewGoogleTTS(settings.Google, logger), nil
	case "openai":
		return openaitts.NewOpenAITTS(settings.OpenAI, logger), nil
	case "deepgram":
		return deepgramtts.NewDeepgramTTS(settings.Deepgram, logger), nil
	default:
		return nil, fmt.Errorf("unknown tts provider %q", settings.Provider)
	}
}
