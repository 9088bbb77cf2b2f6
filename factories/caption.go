package factories

import (
	"fmt"

	"imagetalk/core"
	"imagetalk/handlers/caption"
	hfcaption "imagetalk/services/huggingface/caption"
	"imagetalk/services/openai/vision"
)

type captionService interface {
	caption.CaptionService
	core.IService
}

// BuildCaptionService constructs the image captioning backend.
func BuildCaptionService(settings CaptionerSettings, logger *core.Logger) (captionService, error) {
	switch settings.Provider {
	case "huggingface":
		return hfcaption.NewBlipCaptionService(settings.HuggingFace, logger), nil
	case "openai":
		return vision.NewCaptionService(settings.OpenAI, logger), nil
	default:
		return nil, fmt.Errorf("unknown captioner provider %q", settings.Provider)
	}
}
