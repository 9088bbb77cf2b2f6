package console

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/chzyer/readline"
)

type scriptedReader struct {
	lines   []string
	err     error
	secret  string
	prompts []string
	closed  bool
}

func (s *scriptedReader) SetPrompt(prompt string) { s.prompts = append(s.prompts, prompt) }

func (s *scriptedReader) Readline() (string, error) {
	if len(s.lines) == 0 {
		if s.err != nil {
			return "", s.err
		}
		return "", io.EOF
	}
	line := s.lines[0]
	s.lines = s.lines[1:]
	return line, nil
}

func (s *scriptedReader) ReadPassword(prompt string) ([]byte, error) {
	s.prompts = append(s.prompts, prompt)
	return []byte(s.secret), nil
}

func (s *scriptedReader) Close() error {
	s.closed = true
	return nil
}

func TestNext(t *testing.T) {
	tests := []struct {
		line string
		want Intent
	}{
		{"", IntentAsk},
		{"what is this", IntentAsk},
		{"quit", IntentQuit},
		{"  QUIT ", IntentQuit},
		{"quitting", IntentAsk},
	}
	for _, tt := range tests {
		c := NewWithReader(&scriptedReader{lines: []string{tt.line}}, io.Discard)
		got, err := c.Next()
		if err != nil {
			t.Fatalf("Next(%q): %v", tt.line, err)
		}
		if got != tt.want {
			t.Fatalf("Next(%q): expected %v, got %v", tt.line, tt.want, got)
		}
	}
}

func TestNext_EndOfInputQuits(t *testing.T) {
	for _, err := range []error{io.EOF, readline.ErrInterrupt} {
		c := NewWithReader(&scriptedReader{err: err}, io.Discard)
		got, gotErr := c.Next()
		if gotErr != nil || got != IntentQuit {
			t.Fatalf("expected quit for %v, got %v (%v)", err, got, gotErr)
		}
	}
}

func TestNext_ReadError(t *testing.T) {
	c := NewWithReader(&scriptedReader{err: errors.New("tty gone")}, io.Discard)
	if _, err := c.Next(); err == nil {
		t.Fatal("expected read error")
	}
}

func TestNext_SetsAskPrompt(t *testing.T) {
	r := &scriptedReader{lines: []string{""}}
	NewWithReader(r, io.Discard).Next()
	if len(r.prompts) != 1 || r.prompts[0] != AskPrompt {
		t.Fatalf("expected ask prompt, got %q", r.prompts)
	}
}

func TestReadSecret(t *testing.T) {
	r := &scriptedReader{secret: "  gsk_123 \n"}
	c := NewWithReader(r, io.Discard)
	got, err := c.ReadSecret("Enter GROQ_API_KEY: ")
	if err != nil {
		t.Fatalf("ReadSecret: %v", err)
	}
	if got != "gsk_123" {
		t.Fatalf("expected trimmed secret, got %q", got)
	}
	if r.prompts[0] != "Enter GROQ_API_KEY: " {
		t.Fatalf("unexpected prompt %q", r.prompts[0])
	}
}

func TestPrint(t *testing.T) {
	var out bytes.Buffer
	c := NewWithReader(&scriptedReader{}, &out)
	c.Printf("Caption: %s\n", "a hall")
	c.Println("Response:", "big")
	if out.String() != "Caption: a hall\nResponse: big\n" {
		t.Fatalf("unexpected output %q", out.String())
	}
	c.Close()
}
