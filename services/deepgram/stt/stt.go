package stt

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"imagetalk/core"
	"imagetalk/utils/audio"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
)

// frameBytes is 100ms of 16 kHz mono linear16 audio.
const frameBytes = 3200

// DeepgramSTTService transcribes a captured question over Deepgram's
// streaming listen endpoint.
type DeepgramSTTService struct {
	config *DeepgramConfig
	logger *core.Logger
	dialer *websocket.Dialer
}

// DeepgramConfig holds configuration options for Deepgram STT
type DeepgramConfig struct {
	APIKey      string            `mapstructure:"api_key" json:"api_key"`
	BaseURL     string            `mapstructure:"base_url" json:"base_url"`
	Model       string            `mapstructure:"model" json:"model"`
	Punctuate   bool              `mapstructure:"punctuate" json:"punctuate"`
	SmartFormat bool              `mapstructure:"smart_format" json:"smart_format"`
	Numerals    bool              `mapstructure:"numerals" json:"numerals"`
	Keyterms    []string          `mapstructure:"keyterms" json:"keyterms"`
	Extra       map[string]string `mapstructure:"extra" json:"extra"`
	ReadTimeout time.Duration     `mapstructure:"read_timeout" json:"read_timeout"`
}

// DefaultConfig returns a default configuration for Deepgram STT
func DefaultConfig() *DeepgramConfig {
	return &DeepgramConfig{
		BaseURL:     "wss://api.deepgram.com",
		Model:       "nova-2",
		Punctuate:   true,
		SmartFormat: true,
		ReadTimeout: 15 * time.Second,
	}
}

// NewDeepgramSTTService creates a new Deepgram STT service instance.
// Use DefaultConfig() to get a config with sensible defaults and override only what you need.
func NewDeepgramSTTService(config *DeepgramConfig, logger *core.Logger) *DeepgramSTTService {
	if config == nil {
		config = DefaultConfig()
	}
	if config.BaseURL == "" {
		config.BaseURL = "wss://api.deepgram.com"
	}
	if config.ReadTimeout == 0 {
		config.ReadTimeout = DefaultConfig().ReadTimeout
	}
	if logger == nil {
		logger = core.GetLogger()
	}

	return &DeepgramSTTService{
		config: config,
		logger: logger,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		},
	}
}

// Init validates the service configuration
func (d *DeepgramSTTService) Init(ctx context.Context) error {
	if d.config.APIKey == "" {
		return fmt.Errorf("Deepgram API key is required")
	}
	return nil
}

func (d *DeepgramSTTService) Cleanup() error {
	return nil
}

// Transcribe streams the chunk to Deepgram, closes the stream and returns
// the concatenated final transcripts.
func (d *DeepgramSTTService) Transcribe(ctx context.Context, chunk core.AudioChunk, lang core.Language) (string, error) {
	if d.config.APIKey == "" {
		return "", errors.New("Deepgram STT service not initialized")
	}
	pcm, err := audio.ToPCM(chunk)
	if err != nil {
		return "", err
	}

	wsURL, err := d.buildWebSocketURL(lang, chunk.SampleRate, chunk.Channels)
	if err != nil {
		return "", fmt.Errorf("failed to build WebSocket URL: %w", err)
	}
	headers := http.Header{"Authorization": {"Token " + d.config.APIKey}}

	conn, _, err := d.dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		return "", fmt.Errorf("failed to connect to Deepgram: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	writeErr := make(chan error, 1)
	go func() {
		writeErr <- d.stream(conn, pcm)
	}()

	var transcripts []string
	for finished := false; !finished; {
		conn.SetReadDeadline(time.Now().Add(d.config.ReadTimeout))
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return "", errors.New("stream closed before Metadata")
			}
			return "", fmt.Errorf("error reading message: %w", err)
		}
		if messageType != websocket.TextMessage {
			continue
		}
		done, text, err := d.handleMessage(message)
		if err != nil {
			d.logger.Warn("ignoring Deepgram message", "error", err)
			continue
		}
		if text != "" {
			transcripts = append(transcripts, text)
		}
		finished = done
	}

	if err := <-writeErr; err != nil {
		return "", err
	}
	transcript := strings.Join(transcripts, " ")
	d.logger.Debug("transcription complete", "model", d.config.Model, "language", string(lang), "text_length", len(transcript))
	return transcript, nil
}

// stream writes the audio in 100ms frames followed by CloseStream.
func (d *DeepgramSTTService) stream(conn *websocket.Conn, pcm []byte) error {
	for start := 0; start < len(pcm); start += frameBytes {
		end := min(start+frameBytes, len(pcm))
		conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteMessage(websocket.BinaryMessage, pcm[start:end]); err != nil {
			return fmt.Errorf("failed to send audio: %w", err)
		}
	}
	msg, err := sonic.Marshal(ListenV1CloseStream{Type: "CloseStream"})
	if err != nil {
		return fmt.Errorf("failed to marshal close message: %w", err)
	}
	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		return fmt.Errorf("failed to close stream: %w", err)
	}
	return nil
}

// buildWebSocketURL constructs the WebSocket URL with query parameters
func (d *DeepgramSTTService) buildWebSocketURL(lang core.Language, sampleRate, channels int) (string, error) {
	base, err := url.Parse(strings.TrimRight(d.config.BaseURL, "/") + "/v1/listen")
	if err != nil {
		return "", err
	}

	q := base.Query()
	if d.config.Model != "" {
		q.Set("model", d.config.Model)
	}
	if lang != "" {
		q.Set("language", string(lang))
	}
	q.Set("punctuate", strconv.FormatBool(d.config.Punctuate))
	q.Set("smart_format", strconv.FormatBool(d.config.SmartFormat))
	q.Set("numerals", strconv.FormatBool(d.config.Numerals))
	q.Set("interim_results", "false")
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(sampleRate))
	q.Set("channels", strconv.Itoa(channels))

	for _, keyterm := range d.config.Keyterms {
		q.Add("keyterm", keyterm)
	}
	for key, value := range d.config.Extra {
		q.Set(key, value)
	}

	base.RawQuery = q.Encode()
	return base.String(), nil
}

// handleMessage returns the final transcript carried by message, if any, and
// whether the server has finished the stream.
func (d *DeepgramSTTService) handleMessage(message []byte) (bool, string, error) {
	var base struct {
		Type string `json:"type"`
	}
	if err := sonic.Unmarshal(message, &base); err != nil {
		return false, "", fmt.Errorf("failed to parse message type: %w", err)
	}

	switch base.Type {
	case "Results":
		var result ListenV1Results
		if err := sonic.Unmarshal(message, &result); err != nil {
			return false, "", fmt.Errorf("failed to parse results: %w", err)
		}
		if len(result.Channel.Alternatives) == 0 || !(result.IsFinal || result.FromFinalize) {
			return false, "", nil
		}
		return false, strings.TrimSpace(result.Channel.Alternatives[0].Transcript), nil

	case "Metadata":
		// Sent once after CloseStream, when all results are delivered.
		return true, "", nil

	case "SpeechStarted", "UtteranceEnd":
		return false, "", nil

	default:
		return false, "", fmt.Errorf("unknown message type: %s", base.Type)
	}
}

// Message structs based on the AsyncAPI specification

type ListenV1Results struct {
	Type        string  `json:"type"`
	Duration    float64 `json:"duration"`
	Start       float64 `json:"start"`
	IsFinal     bool    `json:"is_final"`
	SpeechFinal bool    `json:"speech_final"`
	Channel     struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
	FromFinalize bool `json:"from_finalize,omitempty"`
}

type ListenV1CloseStream struct {
	Type string `json:"type"`
}
