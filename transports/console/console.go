// Package console handles the keyboard side of a session: the ask/quit
// prompt, status output and hidden credential entry.
package console

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/chzyer/readline"
)

// AskPrompt is shown before every turn.
const AskPrompt = "Press Enter to ask a question, or type 'quit' to exit: "

// Intent is what the user chose at the turn prompt.
type Intent int

const (
	IntentAsk Intent = iota
	IntentQuit
)

func (i Intent) String() string {
	if i == IntentQuit {
		return "quit"
	}
	return "ask"
}

// LineReader is the subset of *readline.Instance the console needs.
type LineReader interface {
	SetPrompt(prompt string)
	Readline() (string, error)
	ReadPassword(prompt string) ([]byte, error)
	Close() error
}

// Console reads intents and secrets and prints status text.
type Console struct {
	mu  sync.Mutex
	in  LineReader
	out io.Writer
}

// New opens an interactive console on the process terminal.
func New() (*Console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          AskPrompt,
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		return nil, fmt.Errorf("opening console: %w", err)
	}
	return NewWithReader(rl, rl.Stdout()), nil
}

// NewWithReader builds a console over an arbitrary line source.
func NewWithReader(in LineReader, out io.Writer) *Console {
	if out == nil {
		out = os.Stdout
	}
	return &Console{in: in, out: out}
}

// Next waits for the user to press Enter or type quit. End of input and
// interrupts count as quit.
func (c *Console) Next() (Intent, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.in.SetPrompt(AskPrompt)
	line, err := c.in.Readline()
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, readline.ErrInterrupt) {
			return IntentQuit, nil
		}
		return IntentQuit, fmt.Errorf("reading console: %w", err)
	}
	if strings.EqualFold(strings.TrimSpace(line), "quit") {
		return IntentQuit, nil
	}
	return IntentAsk, nil
}

// ReadSecret reads a line without echoing it.
func (c *Console) ReadSecret(prompt string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	secret, err := c.in.ReadPassword(prompt)
	if err != nil {
		return "", fmt.Errorf("reading secret: %w", err)
	}
	return strings.TrimSpace(string(secret)), nil
}

func (c *Console) Printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}

func (c *Console) Println(args ...any) {
	fmt.Fprintln(c.out, args...)
}

func (c *Console) Close() error {
	return c.in.Close()
}
