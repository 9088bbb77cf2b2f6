package core

type LLMMessageRole string

const (
	LLMMessageRoleUser      LLMMessageRole = "user"
	LLMMessageRoleAssistant LLMMessageRole = "assistant"
	LLMMessageRoleSystem    LLMMessageRole = "system"
)

type LLMMediaType string

const (
	LLMMediaTypeImagePNG  LLMMediaType = "image/png"
	LLMMediaTypeImageJPEG LLMMediaType = "image/jpeg"
	LLMMediaTypeImageGIF  LLMMediaType = "image/gif"
	LLMMediaTypeImageWebP LLMMediaType = "image/webp"
)

type LLMMedia struct {
	Data      []byte       // Raw media data.
	MediaType LLMMediaType // Type of the media (e.g., "image/png").
}

// LLMMessage represents a message exchanged with the LLM.
type LLMMessage struct {
	Role    LLMMessageRole `json:"role"`            // Role of the message sender (user, assistant, system).
	Message string         `json:"message"`         // Content of the message.
	Media   *[]LLMMedia    `json:"media,omitempty"` // Optional media content associated with the message.
}

type LLMContext struct {
	Messages []LLMMessage
}

func (c *LLMContext) AddSystemMessage(text string) {
	c.Messages = append(c.Messages, LLMMessage{Role: LLMMessageRoleSystem, Message: text})
}

func (c *LLMContext) AddUserMessage(text string) {
	c.Messages = append(c.Messages, LLMMessage{Role: LLMMessageRoleUser, Message: text})
}

// AddUserMedia appends a user message carrying the given media attachments.
func (c *LLMContext) AddUserMedia(text string, media ...LLMMedia) {
	m := append([]LLMMedia(nil), media...)
	c.Messages = append(c.Messages, LLMMessage{Role: LLMMessageRoleUser, Message: text, Media: &m})
}

func (c *LLMContext) AddAssistantMessage(text string) {
	c.Messages = append(c.Messages, LLMMessage{Role: LLMMessageRoleAssistant, Message: text})
}

// GetLastAssistantMessage returns the content of the most recent assistant message.
func (c *LLMContext) GetLastAssistantMessage() string {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		if c.Messages[i].Role == LLMMessageRoleAssistant {
			return c.Messages[i].Message
		}
	}
	return ""
}
