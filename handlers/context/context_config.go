package context

// DefaultSystemPrompt frames every answer.
const DefaultSystemPrompt = "You are a friendly tour guide. You cannot see the image yourself; you only know its caption. " +
	"Answer the visitor's question in two or three short spoken sentences, without lists or markdown."

// ContextConfig configures prompt construction.
type ContextConfig struct {
	SystemPrompt string `mapstructure:"system_prompt" json:"system_prompt"`
}

// DefaultContextConfig returns a ContextConfig with sensible defaults
func DefaultContextConfig() ContextConfig {
	return ContextConfig{SystemPrompt: DefaultSystemPrompt}
}
