package tts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode"

	"imagetalk/core"
)

// maxCharsPerRequest is the longest text the translate_tts endpoint accepts.
const maxCharsPerRequest = 100

const userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"

// Config configures Google Translate speech synthesis.
type Config struct {
	// URLTemplate receives the accent (top-level domain) through a single %s.
	URLTemplate string        `mapstructure:"url_template" json:"url_template"`
	Slow        bool          `mapstructure:"slow" json:"slow"`
	Timeout     time.Duration `mapstructure:"timeout" json:"timeout"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		URLTemplate: "https://translate.google.%s/translate_tts",
		Timeout:     20 * time.Second,
	}
}

// GoogleTTS produces MP3 speech. The accent selects the regional Google domain,
// which changes the voice (e.g. "co.in" for Indian English).
type GoogleTTS struct {
	config Config
	client *http.Client
	logger *core.Logger
}

// NewGoogleTTS creates a new Google TTS service.
func NewGoogleTTS(config Config, logger *core.Logger) *GoogleTTS {
	defaults := DefaultConfig()
	if config.URLTemplate == "" {
		config.URLTemplate = defaults.URLTemplate
	}
	if config.Timeout == 0 {
		config.Timeout = defaults.Timeout
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	return &GoogleTTS{config: config, logger: logger}
}

func (g *GoogleTTS) Init(ctx context.Context) error {
	if strings.Count(g.config.URLTemplate, "%s") != 1 {
		return fmt.Errorf("url template %q must contain exactly one %%s", g.config.URLTemplate)
	}
	g.client = &http.Client{Timeout: g.config.Timeout}
	return nil
}

func (g *GoogleTTS) Cleanup() error {
	g.client = nil
	return nil
}

// Synthesize splits text into request-sized parts and concatenates the MP3
// streams returned for each part.
func (g *GoogleTTS) Synthesize(ctx context.Context, text string, opts core.SynthesizeOptions) (*core.SynthesisResult, error) {
	if g.client == nil {
		return nil, errors.New("Google TTS service not initialized")
	}
	parts := SplitText(text, maxCharsPerRequest)
	if len(parts) == 0 {
		return nil, errors.New("no text to speak")
	}
	accent := opts.Accent
	if accent == "" {
		accent = "com"
	}
	lang := opts.Language
	if lang == "" {
		lang = core.DefaultLanguage
	}
	endpoint := fmt.Sprintf(g.config.URLTemplate, accent)

	var out bytes.Buffer
	for idx, part := range parts {
		if err := g.fetch(ctx, &out, endpoint, part, lang, idx, len(parts)); err != nil {
			return nil, fmt.Errorf("part %d/%d: %w", idx+1, len(parts), err)
		}
	}

	g.logger.Debug("speech synthesized", "parts", len(parts), "accent", accent, "language", string(lang))
	return &core.SynthesisResult{Audio: out.Bytes(), Format: "mp3"}, nil
}

func (g *GoogleTTS) fetch(ctx context.Context, w io.Writer, endpoint, text string, lang core.Language, idx, total int) error {
	speed := "1"
	if g.config.Slow {
		speed = "0.3"
	}
	q := url.Values{}
	q.Set("ie", "UTF-8")
	q.Set("client", "tw-ob")
	q.Set("tl", string(lang))
	q.Set("q", text)
	q.Set("ttsspeed", speed)
	q.Set("total", strconv.Itoa(total))
	q.Set("idx", strconv.Itoa(idx))
	q.Set("textlen", strconv.Itoa(len([]rune(text))))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Referer", "http://translate.google.com/")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("tts request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("tts failed (status %d): %s", resp.StatusCode, body)
	}
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return fmt.Errorf("reading audio: %w", err)
	}
	if n == 0 {
		return errors.New("empty audio response")
	}
	return nil
}

// SplitText breaks text into parts of at most max runes, preferring sentence
// punctuation, then whitespace, and cutting inside a word only when a single
// word is longer than max.
func SplitText(text string, max int) []string {
	text = strings.Join(strings.Fields(text), " ")
	var parts []string
	runes := []rune(text)
	for len(runes) > 0 {
		if len(runes) <= max {
			parts = appendPart(parts, string(runes))
			break
		}
		cut := lastIndexFunc(runes[:max], isSentenceBreak)
		if cut <= 0 {
			cut = lastIndexFunc(runes[:max+1], unicode.IsSpace)
		}
		if cut <= 0 {
			cut = max
		} else if isSentenceBreak(runes[cut]) {
			cut++ // keep the punctuation with its sentence
		}
		parts = appendPart(parts, string(runes[:cut]))
		runes = runes[cut:]
	}
	return parts
}

func appendPart(parts []string, part string) []string {
	part = strings.TrimSpace(part)
	if part == "" || strings.IndexFunc(part, func(r rune) bool { return !unicode.IsPunct(r) }) < 0 {
		return parts
	}
	return append(parts, part)
}

func lastIndexFunc(runes []rune, f func(rune) bool) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if f(runes[i]) {
			return i
		}
	}
	return -1
}

func isSentenceBreak(r rune) bool {
	switch r {
	case '.', '!', '?', ',', ';', ':', '。', '、', '！', '？', '।':
		return true
	}
	return false
}
