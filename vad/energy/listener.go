package energy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"imagetalk/core"
)

// ErrStreamEnded is returned when the audio source closes before any audio
// could be examined.
var ErrStreamEnded = errors.New("audio stream ended")

// ListenConfig controls phrase segmentation. All durations are measured on
// the audio itself, not the wall clock.
type ListenConfig struct {
	FrameDuration time.Duration `mapstructure:"frame_duration" json:"frame_duration"`
	// Timeout bounds the wait for a phrase to start. Zero waits forever.
	Timeout time.Duration `mapstructure:"listen_timeout" json:"listen_timeout"`
	// PhraseLimit bounds the phrase length. Zero means no limit.
	PhraseLimit time.Duration `mapstructure:"phrase_limit" json:"phrase_limit"`
	// PauseThreshold is the silence that ends a phrase.
	PauseThreshold time.Duration `mapstructure:"pause_threshold" json:"pause_threshold"`
	// PhraseThreshold is the minimum speech needed to accept a phrase.
	PhraseThreshold time.Duration `mapstructure:"phrase_threshold" json:"phrase_threshold"`
	// NonSpeaking is the silence kept on both sides of the phrase.
	NonSpeaking time.Duration `mapstructure:"non_speaking_duration" json:"non_speaking_duration"`
}

// DefaultListenConfig returns a ListenConfig with sensible defaults
func DefaultListenConfig() ListenConfig {
	return ListenConfig{
		FrameDuration:   30 * time.Millisecond,
		Timeout:         5 * time.Second,
		PhraseLimit:     12 * time.Second,
		PauseThreshold:  800 * time.Millisecond,
		PhraseThreshold: 300 * time.Millisecond,
		NonSpeaking:     500 * time.Millisecond,
	}
}

// Listener cuts a single phrase out of a raw 16-bit mono PCM stream.
type Listener struct {
	detector *Detector
	config   ListenConfig
	logger   *core.Logger
}

// NewListener creates a listener using detector for speech decisions.
func NewListener(detector *Detector, config ListenConfig, logger *core.Logger) *Listener {
	defaults := DefaultListenConfig()
	if config.FrameDuration <= 0 {
		config.FrameDuration = defaults.FrameDuration
	}
	if config.PauseThreshold <= 0 {
		config.PauseThreshold = defaults.PauseThreshold
	}
	if config.NonSpeaking > config.PauseThreshold {
		config.NonSpeaking = config.PauseThreshold
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	return &Listener{detector: detector, config: config, logger: logger}
}

// Calibrate consumes duration of ambient audio and adjusts the threshold to it.
func (l *Listener) Calibrate(ctx context.Context, r io.Reader, sampleRate int, duration time.Duration) error {
	fr := newFrameReader(r, sampleRate, l.config.FrameDuration)
	for elapsed := time.Duration(0); elapsed < duration; elapsed += l.config.FrameDuration {
		if err := ctx.Err(); err != nil {
			return err
		}
		frame, err := fr.next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return ErrStreamEnded
			}
			return err
		}
		l.detector.Calibrate(frame, l.config.FrameDuration)
	}
	l.logger.Debug("ambient noise calibrated", "threshold", l.detector.Threshold())
	return nil
}

// Listen waits for a phrase and returns it, padded with a little silence on
// both sides. It returns core.ErrNoSpeech when no phrase starts within the
// timeout.
func (l *Listener) Listen(ctx context.Context, r io.Reader, sampleRate int) (core.AudioChunk, error) {
	frameDur := l.config.FrameDuration
	fr := newFrameReader(r, sampleRate, frameDur)

	pauseFrames := framesIn(l.config.PauseThreshold, frameDur)
	phraseFrames := framesIn(l.config.PhraseThreshold, frameDur)
	paddingFrames := framesIn(l.config.NonSpeaking, frameDur)

	var (
		elapsed    time.Duration
		frames     [][]byte
		pauseCount int
		sawAudio   bool
	)

	for {
		// Wait for the first speech frame, keeping a short pre-roll.
		preroll := make([][]byte, 0, paddingFrames+1)
		for {
			if err := ctx.Err(); err != nil {
				return core.AudioChunk{}, err
			}
			if l.config.Timeout > 0 && elapsed > l.config.Timeout {
				return core.AudioChunk{}, core.ErrNoSpeech
			}
			frame, err := fr.next()
			if err != nil {
				if errors.Is(err, io.EOF) {
					if sawAudio {
						return core.AudioChunk{}, core.ErrNoSpeech
					}
					return core.AudioChunk{}, ErrStreamEnded
				}
				return core.AudioChunk{}, err
			}
			sawAudio = true
			elapsed += frameDur

			preroll = append(preroll, frame)
			if len(preroll) > paddingFrames+1 {
				preroll = preroll[1:]
			}
			if l.detector.IsSpeech(frame) {
				break
			}
			l.detector.Adapt(frame, frameDur)
		}

		// Record until a long enough pause or the phrase limit.
		frames = append(frames[:0], preroll...)
		pauseCount = 0
		phraseCount := 0
		phraseStart := elapsed
		ended := false
		for {
			if err := ctx.Err(); err != nil {
				return core.AudioChunk{}, err
			}
			if l.config.PhraseLimit > 0 && elapsed-phraseStart >= l.config.PhraseLimit {
				break
			}
			frame, err := fr.next()
			if err != nil {
				if errors.Is(err, io.EOF) {
					ended = true
					break
				}
				return core.AudioChunk{}, err
			}
			elapsed += frameDur
			frames = append(frames, frame)
			phraseCount++

			if l.detector.IsSpeech(frame) {
				pauseCount = 0
			} else {
				pauseCount++
			}
			if pauseCount > pauseFrames {
				break
			}
		}

		if phraseCount-pauseCount >= phraseFrames || ended {
			break
		}
		l.logger.Debug("discarding short sound", "frames", phraseCount-pauseCount)
	}

	if drop := pauseCount - paddingFrames; drop > 0 {
		frames = frames[:len(frames)-drop]
	}

	size := 0
	for _, f := range frames {
		size += len(f)
	}
	data := make([]byte, 0, size)
	for _, f := range frames {
		data = append(data, f...)
	}
	return core.AudioChunk{Data: &data, SampleRate: sampleRate, Channels: 1, Format: core.PCM}, nil
}

func framesIn(d, frame time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + frame - 1) / frame)
}

// frameReader yields fixed-size frames; a short final frame is returned
// once, trimmed to whole samples, before io.EOF.
type frameReader struct {
	r    io.Reader
	size int
	eof  bool
}

func newFrameReader(r io.Reader, sampleRate int, frame time.Duration) *frameReader {
	samples := int(int64(sampleRate) * int64(frame) / int64(time.Second))
	if samples < 1 {
		samples = 1
	}
	return &frameReader{r: r, size: samples * 2}
}

func (f *frameReader) next() ([]byte, error) {
	if f.eof {
		return nil, io.EOF
	}
	buf := make([]byte, f.size)
	n, err := io.ReadFull(f.r, buf)
	switch {
	case err == nil:
		return buf, nil
	case errors.Is(err, io.ErrUnexpectedEOF):
		f.eof = true
		n -= n % 2
		if n == 0 {
			return nil, io.EOF
		}
		return buf[:n], nil
	case errors.Is(err, io.EOF):
		f.eof = true
		return nil, io.EOF
	default:
		return nil, fmt.Errorf("reading audio: %w", err)
	}
}
