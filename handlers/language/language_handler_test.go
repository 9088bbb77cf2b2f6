package language

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"imagetalk/core"
)

type fakeSynth struct {
	languages []core.Language
	spoken    []string
	err       error
}

func (f *fakeSynth) SetLanguage(lang core.Language) { f.languages = append(f.languages, lang) }

func (f *fakeSynth) Synthesize(ctx context.Context, text string) (string, error) {
	f.spoken = append(f.spoken, text)
	if f.err != nil {
		return "", f.err
	}
	return "outputs/speech_output.mp3", nil
}

type fakePlayer struct{ played int }

func (f *fakePlayer) Play(ctx context.Context, path string) error {
	f.played++
	return nil
}

type fakeRecognizer struct {
	text    string
	err     error
	timeout time.Duration
	calls   int
}

func (f *fakeRecognizer) ListenFor(ctx context.Context, lang core.Language, timeout time.Duration) (string, error) {
	f.calls++
	f.timeout = timeout
	return f.text, f.err
}

func TestSelect_MatchesSpokenName(t *testing.T) {
	tests := []struct {
		heard string
		want  core.Language
	}{
		{"Hindi", core.HINDI},
		{"hindi.", core.HINDI},
		{"  JAPANESE ", core.JAPANESE},
		{"Español", core.SPANISH},
		{"Klingon", core.ENGLISH},
		{"I want Hindi", core.ENGLISH},
	}
	for _, tt := range tests {
		synth := &fakeSynth{}
		h := NewLanguageHandler(synth, &fakePlayer{}, &fakeRecognizer{text: tt.heard}, DefaultConfig(), core.NewNopLogger())
		got, err := h.Select(context.Background())
		if err != nil {
			t.Fatalf("Select(%q): %v", tt.heard, err)
		}
		if got != tt.want {
			t.Fatalf("Select(%q): expected %q, got %q", tt.heard, tt.want, got)
		}
		if last := synth.languages[len(synth.languages)-1]; last != tt.want {
			t.Fatalf("Select(%q): synthesizer left on %q", tt.heard, last)
		}
	}
}

func TestSelect_ConfirmsOnlyInSelectedLanguage(t *testing.T) {
	synth := &fakeSynth{}
	player := &fakePlayer{}
	h := NewLanguageHandler(synth, player, &fakeRecognizer{text: "German"}, DefaultConfig(), core.NewNopLogger())
	h.Select(context.Background())

	if len(synth.spoken) != 2 {
		t.Fatalf("expected prompt and confirmation, got %q", synth.spoken)
	}
	if synth.spoken[1] != core.GERMAN.Info().Confirmation {
		t.Fatalf("expected German confirmation, got %q", synth.spoken[1])
	}
	if got := synth.languages; len(got) != 2 || got[0] != core.ENGLISH || got[1] != core.GERMAN {
		t.Fatalf("expected prompt in English then German, got %v", got)
	}
	if player.played != 2 {
		t.Fatalf("expected two playbacks, got %d", player.played)
	}
}

func TestSelect_RecognitionErrorFallsBack(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Default = core.TELUGU
	rec := &fakeRecognizer{err: core.NewRecognitionError(core.RecognitionTimeout, core.ErrNoSpeech)}
	h := NewLanguageHandler(&fakeSynth{}, &fakePlayer{}, rec, cfg, core.NewNopLogger())

	got, err := h.Select(context.Background())
	if err != nil || got != core.TELUGU {
		t.Fatalf("expected default te, got %q (%v)", got, err)
	}
	if rec.timeout != 5*time.Second {
		t.Fatalf("expected 5s selection timeout, got %v", rec.timeout)
	}
}

func TestSelect_Disabled(t *testing.T) {
	synth := &fakeSynth{}
	rec := &fakeRecognizer{text: "Hindi"}
	cfg := DefaultConfig()
	cfg.Select = false
	cfg.Default = core.FRENCH
	h := NewLanguageHandler(synth, &fakePlayer{}, rec, cfg, core.NewNopLogger())

	got, _ := h.Select(context.Background())
	if got != core.FRENCH || rec.calls != 0 || len(synth.spoken) != 0 {
		t.Fatalf("expected silent default, got %q calls=%d spoken=%q", got, rec.calls, synth.spoken)
	}
}

func TestSelect_SynthesisFailureStillSelects(t *testing.T) {
	player := &fakePlayer{}
	h := NewLanguageHandler(&fakeSynth{err: errors.New("offline")}, player, &fakeRecognizer{text: "French"}, DefaultConfig(), core.NewNopLogger())
	got, err := h.Select(context.Background())
	if err != nil || got != core.FRENCH {
		t.Fatalf("expected fr, got %q (%v)", got, err)
	}
	if player.played != 0 {
		t.Fatal("nothing should be played without audio")
	}
}

func TestSelect_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	h := NewLanguageHandler(&fakeSynth{}, &fakePlayer{}, &fakeRecognizer{err: context.Canceled}, DefaultConfig(), core.NewNopLogger())
	if _, err := h.Select(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestSelectionPrompt_ListsEveryLanguage(t *testing.T) {
	prompt := SelectionPrompt()
	for _, info := range core.SupportedLanguages() {
		if !strings.Contains(prompt, info.Name) {
			t.Fatalf("prompt missing %s: %q", info.Name, prompt)
		}
	}
}
