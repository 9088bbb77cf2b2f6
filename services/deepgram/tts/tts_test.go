package deepgram

import (
	"context"
	"encoding/binary"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"imagetalk/core"

	"github.com/gorilla/websocket"
)

func newSpeakServer(t *testing.T, handle func(conn *websocket.Conn, r *http.Request)) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		handle(conn, r)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestSynthesize_CollectsAudioUntilFlushed(t *testing.T) {
	seen := make(chan [2]string, 1)
	baseURL := newSpeakServer(t, func(conn *websocket.Conn, r *http.Request) {
		model := r.URL.Query().Get("model")
		if got := r.Header.Get("Authorization"); got != "Token dg-test" {
			t.Errorf("expected token auth, got %q", got)
		}
		_, msg, _ := conn.ReadMessage()
		seen <- [2]string{model, string(msg)}
		_, msg, _ = conn.ReadMessage()
		if !strings.Contains(string(msg), "Flush") {
			t.Errorf("expected Flush, got %s", msg)
		}
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"Metadata","model_name":"aura"}`))
		conn.WriteMessage(websocket.BinaryMessage, []byte{1, 0, 2, 0})
		conn.WriteMessage(websocket.BinaryMessage, []byte{3, 0, 4, 0})
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"Flushed","sequence_id":0}`))
		conn.ReadMessage() // Close
	})

	svc := NewDeepgramTTS(DeepgramTTSConfig{APIKey: "dg-test", BaseURL: baseURL}, core.NewNopLogger())
	if err := svc.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}

	res, err := svc.Synthesize(context.Background(), "Hola a todos", core.SynthesizeOptions{Language: core.SPANISH})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	got := <-seen
	model, speak := got[0], got[1]
	if model != "aura-2-celeste-es" {
		t.Fatalf("expected spanish voice, got %q", model)
	}
	if !strings.Contains(speak, `"Hola a todos"`) {
		t.Fatalf("expected speak message with text, got %s", speak)
	}
	if res.Format != "wav" {
		t.Fatalf("expected wav, got %q", res.Format)
	}
	if len(res.Audio) != 44+8 || string(res.Audio[:4]) != "RIFF" {
		t.Fatalf("expected 8 bytes of PCM in a WAV container, got %d bytes", len(res.Audio))
	}
	if rate := binary.LittleEndian.Uint32(res.Audio[24:28]); rate != 24000 {
		t.Fatalf("expected 24000 Hz header, got %d", rate)
	}
}

func TestSynthesize_ServerError(t *testing.T) {
	baseURL := newSpeakServer(t, func(conn *websocket.Conn, r *http.Request) {
		conn.ReadMessage()
		conn.ReadMessage()
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"Error","description":"bad text","code":"DATA-0001"}`))
		conn.ReadMessage()
	})

	svc := NewDeepgramTTS(DeepgramTTSConfig{APIKey: "k", BaseURL: baseURL}, core.NewNopLogger())
	svc.Init(context.Background())
	_, err := svc.Synthesize(context.Background(), "hi", core.SynthesizeOptions{})
	if err == nil || !strings.Contains(err.Error(), "DATA-0001") {
		t.Fatalf("expected Deepgram error, got %v", err)
	}
}

func TestSynthesize_DialsOnceOnHandshakeFailure(t *testing.T) {
	var dials atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dials.Add(1)
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	svc := NewDeepgramTTS(DeepgramTTSConfig{APIKey: "k", BaseURL: "ws" + strings.TrimPrefix(srv.URL, "http")}, core.NewNopLogger())
	svc.Init(context.Background())
	_, err := svc.Synthesize(context.Background(), "hi", core.SynthesizeOptions{})
	if err == nil {
		t.Fatal("expected handshake error")
	}
	if got := dials.Load(); got != 1 {
		t.Fatalf("expected exactly 1 dial, got %d", got)
	}
}

func TestModelFor(t *testing.T) {
	svc := NewDeepgramTTS(DeepgramTTSConfig{Model: "fallback", Models: map[string]string{"fr": "aura-2-agathe-fr"}}, core.NewNopLogger())
	if got := svc.ModelFor(core.FRENCH); got != "aura-2-agathe-fr" {
		t.Fatalf("expected french model, got %q", got)
	}
	if got := svc.ModelFor(core.KANNADA); got != "fallback" {
		t.Fatalf("expected fallback model, got %q", got)
	}
}

func TestSynthesize_RequiresInit(t *testing.T) {
	svc := NewDeepgramTTS(DeepgramTTSConfig{}, core.NewNopLogger())
	if err := svc.Init(context.Background()); err == nil {
		t.Fatal("expected missing key error")
	}
	if _, err := svc.Synthesize(context.Background(), "hi", core.SynthesizeOptions{}); err == nil {
		t.Fatal("expected not initialized error")
	}
}

func TestSplitRunes(t *testing.T) {
	parts := splitRunes(strings.Repeat("é", 5), 2)
	if len(parts) != 3 || parts[2] != "é" {
		t.Fatalf("unexpected split %q", parts)
	}
}
