package deepgram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"imagetalk/core"
	"imagetalk/utils/audio"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
)

// maxCharsBeforeFlush is the character limit before a flush is required.
// Deepgram returns DATA-0001 (1008) if too many characters are buffered between flushes.
const maxCharsBeforeFlush = 2000

// DeepgramTTSConfig holds configuration for the Deepgram TTS service
type DeepgramTTSConfig struct {
	APIKey  string `mapstructure:"api_key" json:"api_key"`
	BaseURL string `mapstructure:"base_url" json:"base_url"`
	// Model is used for any language without an entry in Models.
	Model  string            `mapstructure:"model" json:"model"`
	Models map[string]string `mapstructure:"models" json:"models"`
	// Encoding is requested on the wire; the result is always WAV.
	Encoding    string        `mapstructure:"encoding" json:"encoding" validate:"omitempty,oneof=linear16 mulaw"`
	SampleRate  int           `mapstructure:"sample_rate" json:"sample_rate" validate:"gte=0"`
	ReadTimeout time.Duration `mapstructure:"read_timeout" json:"read_timeout"`
}

// DefaultConfig returns a DeepgramTTSConfig with sensible defaults
func DefaultConfig() DeepgramTTSConfig {
	return DeepgramTTSConfig{
		BaseURL: "wss://api.deepgram.com/v1/speak",
		Model:   "aura-2-thalia-en",
		Models: map[string]string{
			"en": "aura-2-thalia-en",
			"es": "aura-2-celeste-es",
		},
		Encoding:    "linear16",
		SampleRate:  24000,
		ReadTimeout: 30 * time.Second,
	}
}

// DeepgramTTS synthesizes one utterance per websocket connection.
type DeepgramTTS struct {
	config DeepgramTTSConfig
	logger *core.Logger
	dialer *websocket.Dialer

	mu            sync.RWMutex
	isInitialized bool
}

// Message types for Deepgram TTS WebSocket protocol
type (
	// Client messages
	speakV1Text struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}

	speakV1Control struct {
		Type string `json:"type"`
	}

	// Server messages
	speakV1Message struct {
		Type        string  `json:"type"`
		ModelName   string  `json:"model_name,omitempty"`
		SequenceID  float64 `json:"sequence_id,omitempty"`
		Description string  `json:"description,omitempty"`
		Code        string  `json:"code,omitempty"`
	}
)

// NewDeepgramTTS creates a new Deepgram TTS service with the provided config.
// Use DefaultConfig() to get a config with sensible defaults and override only what you need.
func NewDeepgramTTS(config DeepgramTTSConfig, logger *core.Logger) *DeepgramTTS {
	defaults := DefaultConfig()
	if config.BaseURL == "" {
		config.BaseURL = defaults.BaseURL
	}
	if config.Model == "" {
		config.Model = defaults.Model
	}
	if config.Models == nil {
		config.Models = defaults.Models
	}
	if config.Encoding == "" {
		config.Encoding = defaults.Encoding
	}
	if config.SampleRate == 0 {
		config.SampleRate = defaults.SampleRate
	}
	if config.ReadTimeout == 0 {
		config.ReadTimeout = defaults.ReadTimeout
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	return &DeepgramTTS{
		config: config,
		logger: logger,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		},
	}
}

// Init initializes the Deepgram TTS service
func (d *DeepgramTTS) Init(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.config.APIKey == "" {
		return errors.New("Deepgram API key is required")
	}
	d.isInitialized = true
	return nil
}

// Cleanup performs cleanup of the Deepgram TTS service
func (d *DeepgramTTS) Cleanup() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.isInitialized = false
	return nil
}

// ModelFor returns the voice model used for lang.
func (d *DeepgramTTS) ModelFor(lang core.Language) string {
	if model, ok := d.config.Models[string(lang)]; ok && model != "" {
		return model
	}
	return d.config.Model
}

// Synthesize streams text to Deepgram, collects the audio until the flush is
// acknowledged and returns it as a WAV file.
func (d *DeepgramTTS) Synthesize(ctx context.Context, text string, opts core.SynthesizeOptions) (*core.SynthesisResult, error) {
	d.mu.RLock()
	ready := d.isInitialized
	d.mu.RUnlock()
	if !ready {
		return nil, errors.New("service not initialized")
	}
	if text == "" {
		return nil, errors.New("text cannot be empty")
	}

	model := d.ModelFor(opts.Language)
	if _, ok := d.config.Models[string(opts.Language)]; !ok && opts.Language != "" {
		d.logger.Warn("no Deepgram voice for language, using default model", "language", string(opts.Language), "model", model)
	}

	conn, err := d.dialConnection(ctx, model)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("failed to establish WebSocket connection: %w", err)
	}
	defer closeConnection(conn)

	// Unblock ReadMessage when the caller gives up.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	chunks := splitRunes(text, maxCharsBeforeFlush-100)
	for _, chunk := range chunks {
		if err := d.sendJSON(conn, speakV1Text{Type: "Speak", Text: chunk}); err != nil {
			return nil, err
		}
		if err := d.sendJSON(conn, speakV1Control{Type: "Flush"}); err != nil {
			return nil, err
		}
	}

	raw, err := d.collect(ctx, conn, len(chunks))
	if err != nil {
		return nil, err
	}
	d.sendJSON(conn, speakV1Control{Type: "Close"})

	pcm := raw
	if d.config.Encoding == "mulaw" {
		pcm = audio.ULawBytesToPCM(raw)
	}
	wav, err := audio.PCMBytesToWavBytes(pcm, 1, d.config.SampleRate)
	if err != nil {
		return nil, fmt.Errorf("wrapping audio: %w", err)
	}
	return &core.SynthesisResult{Audio: wav, Format: "wav"}, nil
}

// collect reads audio frames until the expected number of Flushed messages arrive.
func (d *DeepgramTTS) collect(ctx context.Context, conn *websocket.Conn, flushes int) ([]byte, error) {
	var buf []byte
	for flushes > 0 {
		conn.SetReadDeadline(time.Now().Add(d.config.ReadTimeout))
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("reading audio: %w", err)
		}

		switch messageType {
		case websocket.BinaryMessage:
			buf = append(buf, message...)
		case websocket.TextMessage:
			var msg speakV1Message
			if err := sonic.Unmarshal(message, &msg); err != nil {
				return nil, fmt.Errorf("failed to parse message: %w", err)
			}
			switch msg.Type {
			case "Metadata":
				d.logger.Debug("TTS metadata received", "model", msg.ModelName)
			case "Flushed":
				flushes--
			case "Warning":
				d.logger.Warn("Deepgram TTS warning", "description", msg.Description, "code", msg.Code)
			case "Error":
				return nil, fmt.Errorf("Deepgram error: %s (code: %s)", msg.Description, msg.Code)
			}
		}
	}
	if len(buf) == 0 {
		return nil, errors.New("Deepgram returned no audio")
	}
	return buf, nil
}

// dialConnection makes a single connection attempt.
func (d *DeepgramTTS) dialConnection(ctx context.Context, model string) (*websocket.Conn, error) {
	q := url.Values{}
	q.Set("model", model)
	q.Set("encoding", d.config.Encoding)
	q.Set("sample_rate", strconv.Itoa(d.config.SampleRate))

	// Deepgram requires "Token " prefix for API key
	headers := http.Header{"Authorization": {"Token " + d.config.APIKey}}

	conn, _, err := d.dialer.DialContext(ctx, d.config.BaseURL+"?"+q.Encode(), headers)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func (d *DeepgramTTS) sendJSON(conn *websocket.Conn, msg any) error {
	data, err := sonic.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

func closeConnection(conn *websocket.Conn) {
	conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()
}

// splitRunes cuts s into pieces of at most n runes.
func splitRunes(s string, n int) []string {
	var out []string
	runes := []rune(s)
	for len(runes) > n {
		out = append(out, string(runes[:n]))
		runes = runes[n:]
	}
	if len(runes) > 0 {
		out = append(out, string(runes))
	}
	return out
}
