package factories

import (
	"context"
	"errors"
	"fmt"

	"imagetalk/core"
	"imagetalk/handlers/caption"
	contexthandler "imagetalk/handlers/context"
	"imagetalk/handlers/language"
	stthandler "imagetalk/handlers/stt"
	ttshandler "imagetalk/handlers/tts"
	"imagetalk/runner"
	"imagetalk/transports/local"
)

// Session constructs each component once and owns the services behind
// them. Call Cleanup when done.
type Session struct {
	settings Settings
	logger   *core.Logger
	services []core.IService

	synth  *ttshandler.TTSHandler
	player *local.Player
}

func NewSession(settings Settings, logger *core.Logger) *Session {
	if logger == nil {
		logger = core.GetLogger()
	}
	return &Session{settings: settings, logger: logger}
}

func (s *Session) init(ctx context.Context, name string, svc core.IService) error {
	if err := svc.Init(ctx); err != nil {
		return fmt.Errorf("initializing %s: %w", name, err)
	}
	s.services = append(s.services, svc)
	return nil
}

// Captioner builds the caption handler.
func (s *Session) Captioner(ctx context.Context) (*caption.CaptionHandler, error) {
	svc, err := BuildCaptionService(s.settings.Captioner, s.logger)
	if err != nil {
		return nil, err
	}
	if err := s.init(ctx, "captioner", svc); err != nil {
		return nil, err
	}
	return caption.NewCaptionHandler(svc, caption.CaptionConfig{
		OutputPath:    s.settings.Paths.Caption,
		MaxImageBytes: s.settings.Captioner.MaxImageBytes,
	}, s.logger), nil
}

// Expander builds the context handler on top of the completion service.
func (s *Session) Expander(ctx context.Context) (*contexthandler.ContextHandler, error) {
	svc, err := BuildLLMService(s.settings.LLM, s.logger)
	if err != nil {
		return nil, err
	}
	if err := s.init(ctx, "llm", svc); err != nil {
		return nil, err
	}
	return contexthandler.NewContextHandler(svc, contexthandler.ContextConfig{
		SystemPrompt: s.settings.LLM.SystemPrompt,
	}, s.logger), nil
}

// Synthesizer builds the speech synthesizer. It is shared, so the language
// chosen by the selector applies to every later answer.
func (s *Session) Synthesizer(ctx context.Context) (*ttshandler.TTSHandler, error) {
	if s.synth != nil {
		return s.synth, nil
	}
	svc, err := BuildTTSService(s.settings.TTS, s.logger)
	if err != nil {
		return nil, err
	}
	if err := s.init(ctx, "tts", svc); err != nil {
		return nil, err
	}
	s.synth = ttshandler.NewTTSHandler(svc, ttshandler.TTSConfig{
		OutputPath: s.settings.Paths.SpeechOutput,
		Accents:    s.settings.TTS.Accents,
	}, s.logger)
	s.synth.SetLanguage(s.settings.Language.Default)
	return s.synth, nil
}

// Recognizer builds the question capture handler on the local microphone.
func (s *Session) Recognizer(ctx context.Context) (*stthandler.STTHandler, error) {
	svc, err := BuildSTTService(s.settings.Recognizer, s.logger)
	if err != nil {
		return nil, err
	}
	if err := s.init(ctx, "recognizer", svc); err != nil {
		return nil, err
	}
	mic := s.settings.Microphone
	microphone := local.NewMicrophone(mic.MicrophoneConfig, mic.VAD, mic.Listen, s.logger)
	return stthandler.NewSTTHandler(microphone, svc, stthandler.STTConfig{
		ListenTimeout:     s.settings.Recognizer.ListenTimeout,
		AmbientDuration:   s.settings.Recognizer.AmbientDuration,
		QuestionAudioPath: s.settings.Paths.QuestionAudio,
	}, s.logger), nil
}

func (s *Session) Player() *local.Player {
	if s.player == nil {
		s.player = local.NewPlayer(s.settings.Player, s.logger)
	}
	return s.player
}

// Runner assembles the interactive assistant.
func (s *Session) Runner(ctx context.Context, con runner.Console) (*runner.Runner, error) {
	captioner, err := s.Captioner(ctx)
	if err != nil {
		return nil, err
	}
	expander, err := s.Expander(ctx)
	if err != nil {
		return nil, err
	}
	synth, err := s.Synthesizer(ctx)
	if err != nil {
		return nil, err
	}
	recognizer, err := s.Recognizer(ctx)
	if err != nil {
		return nil, err
	}
	player := s.Player()
	selector := language.NewLanguageHandler(synth, player, recognizer, s.settings.Language, s.logger)

	return runner.NewRunner(runner.Components{
		Captioner:   captioner,
		Selector:    selector,
		Recognizer:  recognizer,
		Expander:    expander,
		Synthesizer: synth,
		Player:      player,
		Console:     con,
	}, runner.Config{ImagePath: s.settings.Paths.Image}, s.logger), nil
}

// Cleanup releases services in reverse order of initialization.
func (s *Session) Cleanup() error {
	var errs []error
	for i := len(s.services) - 1; i >= 0; i-- {
		if err := s.services[i].Cleanup(); err != nil {
			errs = append(errs, err)
		}
	}
	s.services = nil
	return errors.Join(errs...)
}
