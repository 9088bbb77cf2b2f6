package local

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"
)

const defaultGracePeriod = 2 * time.Second

// expand replaces {key} placeholders in argv. Arguments without a
// placeholder are kept as they are.
func expand(argv []string, values map[string]string) []string {
	out := make([]string, len(argv))
	for i, arg := range argv {
		for k, v := range values {
			arg = strings.ReplaceAll(arg, "{"+k+"}", v)
		}
		out[i] = arg
	}
	return out
}

// command builds a context-bound command that gets SIGTERM on cancellation
// and SIGKILL after grace.
func command(ctx context.Context, argv []string, grace time.Duration) (*exec.Cmd, error) {
	if len(argv) == 0 || argv[0] == "" {
		return nil, errors.New("command is required")
	}
	if grace <= 0 {
		grace = defaultGracePeriod
	}
	c := exec.CommandContext(ctx, argv[0], argv[1:]...)
	c.Cancel = func() error {
		if c.Process == nil {
			return nil
		}
		return c.Process.Signal(syscall.SIGTERM)
	}
	c.WaitDelay = grace
	return c, nil
}

// run executes argv to completion.
func run(ctx context.Context, argv []string, grace time.Duration) error {
	c, err := command(ctx, argv, grace)
	if err != nil {
		return err
	}
	var stderr bytes.Buffer
	c.Stderr = &stderr

	if err := c.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%s: killed by context: %w", argv[0], ctx.Err())
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%s: %w: %s", argv[0], err, msg)
		}
		return fmt.Errorf("%s: %w", argv[0], err)
	}
	return nil
}

// stream is the stdout of a running recorder process.
type stream struct {
	cmd    *exec.Cmd
	out    io.ReadCloser
	cancel context.CancelFunc
	stderr bytes.Buffer

	closeOnce sync.Once
	closeErr  error
}

func startStream(ctx context.Context, argv []string, grace time.Duration) (*stream, error) {
	ctx, cancel := context.WithCancel(ctx)
	c, err := command(ctx, argv, grace)
	if err != nil {
		cancel()
		return nil, err
	}
	s := &stream{cmd: c, cancel: cancel}
	c.Stderr = &s.stderr

	out, err := c.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%s: %w", argv[0], err)
	}
	if err := c.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("starting %s: %w", argv[0], err)
	}
	s.out = out
	return s, nil
}

func (s *stream) Read(p []byte) (int, error) {
	return s.out.Read(p)
}

// Close stops the process and reaps it. Termination caused by Close itself
// is not an error.
func (s *stream) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		err := s.cmd.Wait()
		var exitErr *exec.ExitError
		if err != nil && !errors.As(err, &exitErr) && !errors.Is(err, exec.ErrWaitDelay) {
			s.closeErr = err
		}
	})
	return s.closeErr
}

// failure reaps the process and returns what it wrote to stderr.
func (s *stream) failure() string {
	s.Close()
	return strings.TrimSpace(s.stderr.String())
}
