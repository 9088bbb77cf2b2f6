package factories

import (
	"errors"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strings"
	"sync"
	"time"

	"imagetalk/core"
	"imagetalk/handlers/caption"
	contexthandler "imagetalk/handlers/context"
	"imagetalk/handlers/language"
	stthandler "imagetalk/handlers/stt"
	ttshandler "imagetalk/handlers/tts"
	deepgramstt "imagetalk/services/deepgram/stt"
	deepgramtts "imagetalk/services/deepgram/tts"
	googletts "imagetalk/services/google/tts"
	hfcaption "imagetalk/services/huggingface/caption"
	openaillm "imagetalk/services/openai/llm"
	openaistt "imagetalk/services/openai/stt"
	openaitts "imagetalk/services/openai/tts"
	"imagetalk/services/openai/vision"
	"imagetalk/transports/local"
	"imagetalk/vad/energy"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. IMAGETALK_LLM_PROVIDER.
const EnvPrefix = "IMAGETALK"

// Settings is the complete application configuration.
type Settings struct {
	Paths      PathSettings            `mapstructure:"paths" json:"paths"`
	Language   language.LanguageConfig `mapstructure:"language" json:"language"`
	Captioner  CaptionerSettings       `mapstructure:"captioner" json:"captioner"`
	Recognizer RecognizerSettings      `mapstructure:"recognizer" json:"recognizer"`
	Microphone MicrophoneSettings      `mapstructure:"microphone" json:"microphone"`
	LLM        LLMSettings             `mapstructure:"llm" json:"llm"`
	TTS        TTSSettings             `mapstructure:"tts" json:"tts"`
	Player     local.PlayerConfig      `mapstructure:"player" json:"player"`
	Logging    core.LoggerConfig       `mapstructure:"logging" json:"logging"`
	// EnvFile is read for credentials and receives any entered at the prompt.
	EnvFile string `mapstructure:"env_file" json:"env_file" validate:"required"`
}

type PathSettings struct {
	Image        string `mapstructure:"image" json:"image" validate:"required"`
	Caption      string `mapstructure:"caption" json:"caption"`
	SpeechOutput string `mapstructure:"speech_output" json:"speech_output" validate:"required"`
	// QuestionAudio keeps the last captured question as WAV when set.
	QuestionAudio string `mapstructure:"question_audio" json:"question_audio"`
}

type CaptionerSettings struct {
	Provider      string           `mapstructure:"provider" json:"provider" validate:"oneof=huggingface openai"`
	APIKeyEnv     string           `mapstructure:"api_key_env" json:"api_key_env"`
	MaxImageBytes int64            `mapstructure:"max_image_bytes" json:"max_image_bytes" validate:"gte=0"`
	HuggingFace   hfcaption.Config `mapstructure:"huggingface" json:"huggingface"`
	OpenAI        vision.Config    `mapstructure:"openai" json:"openai"`
}

type RecognizerSettings struct {
	Provider        string                     `mapstructure:"provider" json:"provider" validate:"oneof=whisper deepgram"`
	APIKeyEnv       string                     `mapstructure:"api_key_env" json:"api_key_env"`
	ListenTimeout   time.Duration              `mapstructure:"listen_timeout" json:"listen_timeout" validate:"gte=1s,lte=30s"`
	AmbientDuration time.Duration              `mapstructure:"ambient_duration" json:"ambient_duration" validate:"gte=0,lte=5s"`
	Whisper         openaistt.Config           `mapstructure:"whisper" json:"whisper"`
	Deepgram        deepgramstt.DeepgramConfig `mapstructure:"deepgram" json:"deepgram"`
}

// MicrophoneSettings configures the recorder and phrase detection. The
// recognizer's listen_timeout overrides listen.listen_timeout.
type MicrophoneSettings struct {
	local.MicrophoneConfig `mapstructure:",squash"`
	VAD                    energy.Config       `mapstructure:"vad" json:"vad"`
	Listen                 energy.ListenConfig `mapstructure:"listen" json:"listen"`
}

type LLMSettings struct {
	Provider         string `mapstructure:"provider" json:"provider" validate:"oneof=groq openai together deepseek openrouter fireworks cerebras xai mistral perplexity"`
	APIKeyEnv        string `mapstructure:"api_key_env" json:"api_key_env"`
	SystemPrompt     string `mapstructure:"system_prompt" json:"system_prompt"`
	openaillm.Config `mapstructure:",squash"`
}

type TTSSettings struct {
	Provider  string                        `mapstructure:"provider" json:"provider" validate:"oneof=google openai deepgram"`
	APIKeyEnv string                        `mapstructure:"api_key_env" json:"api_key_env"`
	Accents   map[string]string             `mapstructure:"accents" json:"accents"`
	Google    googletts.Config              `mapstructure:"google" json:"google"`
	OpenAI    openaitts.Config              `mapstructure:"openai" json:"openai"`
	Deepgram  deepgramtts.DeepgramTTSConfig `mapstructure:"deepgram" json:"deepgram"`
}

// DefaultSettings mirrors the behaviour of the single-file assistant: BLIP
// captions, Groq for completions and transcription, Google speech.
func DefaultSettings() Settings {
	captionDefaults := caption.DefaultConfig()
	sttDefaults := stthandler.DefaultConfig()

	llm := openaillm.DefaultConfig()
	llm.Model = ""

	whisper := openaistt.DefaultConfig()
	whisper.BaseURL = groqBaseURL
	whisper.Model = "whisper-large-v3"

	return Settings{
		Paths: PathSettings{
			Image:         "data/hall.jpg",
			Caption:       captionDefaults.OutputPath,
			SpeechOutput:  ttshandler.DefaultConfig().OutputPath,
			QuestionAudio: "outputs/question.wav",
		},
		Language: language.DefaultConfig(),
		Captioner: CaptionerSettings{
			Provider:      "huggingface",
			MaxImageBytes: captionDefaults.MaxImageBytes,
			HuggingFace:   hfcaption.DefaultConfig(),
			OpenAI:        vision.DefaultConfig(),
		},
		Recognizer: RecognizerSettings{
			Provider:        "whisper",
			ListenTimeout:   sttDefaults.ListenTimeout,
			AmbientDuration: sttDefaults.AmbientDuration,
			Whisper:         whisper,
			Deepgram:        *deepgramstt.DefaultConfig(),
		},
		Microphone: MicrophoneSettings{
			MicrophoneConfig: local.DefaultMicrophoneConfig(),
			VAD:              energy.DefaultConfig(),
			Listen:           energy.DefaultListenConfig(),
		},
		LLM: LLMSettings{
			Provider:     "groq",
			SystemPrompt: contexthandler.DefaultSystemPrompt,
			Config:       llm,
		},
		TTS: TTSSettings{
			Provider: "google",
			Google:   googletts.DefaultConfig(),
			OpenAI:   openaitts.DefaultConfig(),
			Deepgram: deepgramtts.DefaultConfig(),
		},
		Player:  local.DefaultPlayerConfig(),
		Logging: core.LoggerConfig{Level: "info", Format: "console"},
		EnvFile: ".env",
	}
}

// LoadSettings reads defaults, then the config file, then IMAGETALK_*
// environment variables. If configFile is empty the standard search order
// applies: ./imagetalk.yaml, ./configs/imagetalk.yaml, $HOME/.imagetalk/imagetalk.yaml.
func LoadSettings(configFile string) (Settings, error) {
	v := viper.New()

	// Only keys viper knows about can be overridden from the environment.
	defaults := DefaultSettings()
	v.SetDefault("paths.image", defaults.Paths.Image)
	v.SetDefault("paths.caption", defaults.Paths.Caption)
	v.SetDefault("paths.speech_output", defaults.Paths.SpeechOutput)
	v.SetDefault("paths.question_audio", defaults.Paths.QuestionAudio)
	v.SetDefault("language.select", defaults.Language.Select)
	v.SetDefault("language.default", string(defaults.Language.Default))
	v.SetDefault("language.selection_timeout", defaults.Language.SelectionTimeout)
	v.SetDefault("captioner.provider", defaults.Captioner.Provider)
	v.SetDefault("captioner.huggingface.model", defaults.Captioner.HuggingFace.Model)
	v.SetDefault("captioner.openai.model", defaults.Captioner.OpenAI.Model)
	v.SetDefault("captioner.openai.base_url", defaults.Captioner.OpenAI.BaseURL)
	v.SetDefault("recognizer.provider", defaults.Recognizer.Provider)
	v.SetDefault("recognizer.listen_timeout", defaults.Recognizer.ListenTimeout)
	v.SetDefault("recognizer.ambient_duration", defaults.Recognizer.AmbientDuration)
	v.SetDefault("recognizer.whisper.base_url", defaults.Recognizer.Whisper.BaseURL)
	v.SetDefault("recognizer.whisper.model", defaults.Recognizer.Whisper.Model)
	v.SetDefault("recognizer.deepgram.model", defaults.Recognizer.Deepgram.Model)
	v.SetDefault("microphone.sample_rate", defaults.Microphone.SampleRate)
	v.SetDefault("microphone.command", defaults.Microphone.Command)
	v.SetDefault("microphone.vad.energy_threshold", defaults.Microphone.VAD.Threshold)
	v.SetDefault("microphone.listen.phrase_limit", defaults.Microphone.Listen.PhraseLimit)
	v.SetDefault("llm.provider", defaults.LLM.Provider)
	v.SetDefault("llm.model", defaults.LLM.Model)
	v.SetDefault("llm.base_url", defaults.LLM.BaseURL)
	v.SetDefault("llm.max_tokens", defaults.LLM.MaxTokens)
	v.SetDefault("llm.temperature", defaults.LLM.Temperature)
	v.SetDefault("tts.provider", defaults.TTS.Provider)
	v.SetDefault("tts.google.slow", defaults.TTS.Google.Slow)
	v.SetDefault("tts.openai.voice", defaults.TTS.OpenAI.Voice)
	v.SetDefault("tts.deepgram.model", defaults.TTS.Deepgram.Model)
	v.SetDefault("player.command", defaults.Player.Command)
	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("logging.format", defaults.Logging.Format)
	v.SetDefault("env_file", defaults.EnvFile)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("imagetalk")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.imagetalk")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The config file is optional; defaults and environment are sufficient.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Settings{}, fmt.Errorf("reading config: %w", err)
		}
	}

	settings := defaults
	if err := v.Unmarshal(&settings); err != nil {
		return Settings{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := settings.Validate(); err != nil {
		return Settings{}, err
	}
	return settings, nil
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("mapstructure"), ",", 2)[0]
			if name == "" || name == "-" {
				return fld.Name
			}
			return name
		})
	})
	return validate
}

// Validate checks value ranges and provider names and normalizes the default
// language code.
func (s *Settings) Validate() error {
	lang, err := core.ParseLanguage(string(s.Language.Default))
	if err != nil {
		return fmt.Errorf("invalid settings: language.default: %w", err)
	}
	s.Language.Default = lang

	perLanguage := []struct {
		key    string
		values map[string]string
	}{
		{"tts.accents", s.TTS.Accents},
		{"tts.deepgram.models", s.TTS.Deepgram.Models},
	}
	for _, section := range perLanguage {
		for _, code := range slices.Sorted(maps.Keys(section.values)) {
			if _, err := core.ParseLanguage(code); err != nil {
				return fmt.Errorf("invalid settings: %s.%s: %w", section.key, code, err)
			}
		}
	}

	err = getValidator().Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("invalid settings: %w", err)
	}
	messages := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		messages = append(messages, formatFieldError(fe))
	}
	return fmt.Errorf("invalid settings: %s", strings.Join(messages, "; "))
}

func formatFieldError(fe validator.FieldError) string {
	// Namespace is "Settings.llm.provider"; drop the root type name.
	field := fe.Namespace()
	if i := strings.IndexByte(field, '.'); i >= 0 {
		field = field[i+1:]
	}
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", field, fe.Param(), fmt.Sprint(fe.Value()))
	case "gte", "lte", "gt", "lt":
		return fmt.Sprintf("%s must be %s %s", field, fe.Tag(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}
