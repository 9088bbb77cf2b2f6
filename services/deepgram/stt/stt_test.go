package stt

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"imagetalk/core"
	"imagetalk/utils/audio"

	"github.com/gorilla/websocket"
)

func newListenServer(t *testing.T, handle func(conn *websocket.Conn, r *http.Request)) string {
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

func TestTranscribe_CollectsFinalResults(t *testing.T) {
	receivedCh := make(chan int, 1)
	baseURL := newListenServer(t, func(conn *websocket.Conn, r *http.Request) {
		if r.URL.Path != "/v1/listen" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("language") != "de" || q.Get("sample_rate") != "16000" || q.Get("encoding") != "linear16" {
			t.Errorf("unexpected query %v", q)
		}
		if got := r.Header.Get("Authorization"); got != "Token dg-test" {
			t.Errorf("expected token auth, got %q", got)
		}
		received := 0
		for {
			mt, msg, err := conn.ReadMessage()
			if err != nil {
				t.Errorf("read: %v", err)
				return
			}
			if mt == websocket.BinaryMessage {
				received += len(msg)
				continue
			}
			if !strings.Contains(string(msg), "CloseStream") {
				t.Errorf("unexpected control message %s", msg)
			}
			break
		}
		receivedCh <- received
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"Results","is_final":false,"channel":{"alternatives":[{"transcript":"was ist"}]}}`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":"Was ist das"}]}}`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":"für ein Raum?"}]}}`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"Metadata","request_id":"abc"}`))
	})

	svc := NewDeepgramSTTService(&DeepgramConfig{APIKey: "dg-test", BaseURL: baseURL, Model: "nova-2"}, core.NewNopLogger())
	if err := svc.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}

	pcm := make([]byte, 8000) // three frames
	got, err := svc.Transcribe(context.Background(), core.AudioChunk{Data: &pcm, SampleRate: 16000, Channels: 1, Format: core.PCM}, core.GERMAN)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if got != "Was ist das für ein Raum?" {
		t.Fatalf("unexpected transcript %q", got)
	}
	if received := <-receivedCh; received != len(pcm) {
		t.Fatalf("expected %d audio bytes, server got %d", len(pcm), received)
	}
}

func TestTranscribe_EmptyWhenNothingRecognized(t *testing.T) {
	baseURL := newListenServer(t, func(conn *websocket.Conn, r *http.Request) {
		for {
			mt, _, err := conn.ReadMessage()
			if err != nil || mt == websocket.TextMessage {
				break
			}
		}
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"Metadata"}`))
	})

	svc := NewDeepgramSTTService(&DeepgramConfig{APIKey: "k", BaseURL: baseURL}, core.NewNopLogger())
	pcm := make([]byte, 320)
	got, err := svc.Transcribe(context.Background(), core.AudioChunk{Data: &pcm, SampleRate: 16000, Channels: 1}, core.ENGLISH)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if got != "" {
		t.Fatalf("expected empty transcript, got %q", got)
	}
}

func TestTranscribe_SendsSamplesOfWAVChunk(t *testing.T) {
	receivedCh := make(chan int, 1)
	baseURL := newListenServer(t, func(conn *websocket.Conn, r *http.Request) {
		received := 0
		for {
			mt, msg, err := conn.ReadMessage()
			if err != nil || mt == websocket.TextMessage {
				break
			}
			received += len(msg)
		}
		receivedCh <- received
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":"hello"}]}}`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"Metadata"}`))
	})

	pcm := make([]byte, 640)
	wav, err := audio.PCMBytesToWavBytes(pcm, 1, 16000)
	if err != nil {
		t.Fatalf("PCMBytesToWavBytes: %v", err)
	}
	svc := NewDeepgramSTTService(&DeepgramConfig{APIKey: "k", BaseURL: baseURL}, core.NewNopLogger())
	got, err := svc.Transcribe(context.Background(), core.AudioChunk{Data: &wav, SampleRate: 16000, Channels: 1, Format: core.PCM}, core.ENGLISH)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if got != "hello" {
		t.Fatalf("unexpected transcript %q", got)
	}
	if received := <-receivedCh; received != len(pcm) {
		t.Fatalf("expected %d sample bytes without header, server got %d", len(pcm), received)
	}
}

func TestTranscribe_ClosedBeforeMetadataIsError(t *testing.T) {
	baseURL := newListenServer(t, func(conn *websocket.Conn, r *http.Request) {
		conn.ReadMessage()
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	})

	svc := NewDeepgramSTTService(&DeepgramConfig{APIKey: "k", BaseURL: baseURL}, core.NewNopLogger())
	pcm := make([]byte, 320)
	got, err := svc.Transcribe(context.Background(), core.AudioChunk{Data: &pcm, SampleRate: 16000, Channels: 1}, core.ENGLISH)
	if err == nil {
		t.Fatalf("expected error for stream closed early, got transcript %q", got)
	}
	if !strings.Contains(err.Error(), "Metadata") {
		t.Fatalf("expected Metadata in error, got %v", err)
	}
}

func TestHandleMessage(t *testing.T) {
	svc := NewDeepgramSTTService(nil, core.NewNopLogger())
	if _, _, err := svc.handleMessage([]byte(`{"type":"Mystery"}`)); err == nil {
		t.Fatal("expected error for unknown type")
	}
	if _, _, err := svc.handleMessage([]byte(`nope`)); err == nil {
		t.Fatal("expected parse error")
	}
	done, text, err := svc.handleMessage([]byte(`{"type":"Results","from_finalize":true,"channel":{"alternatives":[{"transcript":" hi "}]}}`))
	if err != nil || done || text != "hi" {
		t.Fatalf("unexpected result done=%v text=%q err=%v", done, text, err)
	}
}

func TestInit_RequiresKey(t *testing.T) {
	svc := NewDeepgramSTTService(nil, nil)
	if err := svc.Init(context.Background()); err == nil {
		t.Fatal("expected missing key error")
	}
}
