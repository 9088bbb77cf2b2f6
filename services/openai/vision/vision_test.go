package vision

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"imagetalk/core"
	"imagetalk/services/openai/llm"
)

func TestCaption_SendsInstructionWithImage(t *testing.T) {
	var raw map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&raw)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"a wooden hall with a stage"}}]}`))
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.APIKey = "sk-test"
	cfg.BaseURL = srv.URL + "/v1"
	svc := NewCaptionService(cfg, core.NewNopLogger())
	if err := svc.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer svc.Cleanup()

	got, err := svc.Caption(context.Background(), []byte{0xff, 0xd8, 0xff}, "image/jpeg")
	if err != nil {
		t.Fatalf("Caption: %v", err)
	}
	if got != "a wooden hall with a stage" {
		t.Fatalf("unexpected caption %q", got)
	}
	encoded, _ := json.Marshal(raw["messages"])
	if !strings.Contains(string(encoded), "data:image/jpeg;base64,") || !strings.Contains(string(encoded), "image caption") {
		t.Fatalf("expected instruction and image in request, got %s", encoded)
	}
	if raw["max_tokens"] != float64(60) {
		t.Fatalf("expected max_tokens 60, got %v", raw["max_tokens"])
	}
}

func TestCaption_EmptyImage(t *testing.T) {
	svc := NewCaptionService(Config{Config: llm.Config{APIKey: "k"}}, core.NewNopLogger())
	if _, err := svc.Caption(context.Background(), nil, "image/png"); err == nil {
		t.Fatal("expected error for empty image")
	}
}
