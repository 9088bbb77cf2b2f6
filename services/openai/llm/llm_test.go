package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"imagetalk/core"
)

type capturedRequest struct {
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float32 `json:"temperature"`
	Messages    []struct {
		Role    string          `json:"role"`
		Content json.RawMessage `json:"content"`
	} `json:"messages"`
}

func newTestService(t *testing.T, reply string, captured *capturedRequest) *OpenAILLMService {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("expected bearer key, got %q", got)
		}
		if captured != nil {
			if err := json.NewDecoder(r.Body).Decode(captured); err != nil {
				t.Errorf("decoding request: %v", err)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)

	svc := NewOpenAILLMService(Config{
		APIKey:      "sk-test",
		BaseURL:     srv.URL + "/v1",
		Model:       "llama-3.1-8b-instant",
		MaxTokens:   256,
		Temperature: 0.7,
	}, core.NewNopLogger())
	if err := svc.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return svc
}

func TestComplete_SendsSettingsAndReturnsFirstChoice(t *testing.T) {
	var req capturedRequest
	svc := newTestService(t, `{
		"id": "chatcmpl-1",
		"object": "chat.completion",
		"choices": [{"index": 0, "message": {"role": "assistant", "content": "  The hall seats two hundred people.\n"}, "finish_reason": "stop"}],
		"usage": {"prompt_tokens": 10, "completion_tokens": 7, "total_tokens": 17}
	}`, &req)

	var llmCtx core.LLMContext
	llmCtx.AddSystemMessage("You are a tour guide.")
	llmCtx.AddUserMessage("How many seats?")

	got, err := svc.Complete(context.Background(), llmCtx)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "The hall seats two hundred people." {
		t.Fatalf("expected trimmed answer, got %q", got)
	}
	if req.Model != "llama-3.1-8b-instant" {
		t.Fatalf("expected model llama-3.1-8b-instant, got %q", req.Model)
	}
	if req.MaxTokens != 256 {
		t.Fatalf("expected max_tokens 256, got %d", req.MaxTokens)
	}
	if req.Temperature < 0.69 || req.Temperature > 0.71 {
		t.Fatalf("expected temperature 0.7, got %v", req.Temperature)
	}
	if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Role != "user" {
		t.Fatalf("unexpected messages %+v", req.Messages)
	}
}

func TestComplete_ImageMediaBecomesDataURL(t *testing.T) {
	var req capturedRequest
	svc := newTestService(t, `{"choices":[{"message":{"role":"assistant","content":"a cat"}}]}`, &req)

	var llmCtx core.LLMContext
	llmCtx.AddUserMedia("Describe this image.", core.LLMMedia{Data: []byte{0x89, 'P', 'N', 'G'}, MediaType: core.LLMMediaTypeImagePNG})

	if _, err := svc.Complete(context.Background(), llmCtx); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	content := string(req.Messages[0].Content)
	if !strings.Contains(content, "data:image/png;base64,") {
		t.Fatalf("expected data URL in content, got %s", content)
	}
	if !strings.Contains(content, "Describe this image.") {
		t.Fatalf("expected text part in content, got %s", content)
	}
}

func TestComplete_NoChoices(t *testing.T) {
	svc := newTestService(t, `{"choices":[]}`, nil)

	var llmCtx core.LLMContext
	llmCtx.AddUserMessage("hi")
	if _, err := svc.Complete(context.Background(), llmCtx); err == nil {
		t.Fatal("expected error for empty choices")
	}
}

func TestComplete_RequiresInit(t *testing.T) {
	svc := NewOpenAILLMService(Config{}, core.NewNopLogger())
	if err := svc.Init(context.Background()); err == nil {
		t.Fatal("expected missing key error")
	}
	if _, err := svc.Complete(context.Background(), core.LLMContext{}); err == nil {
		t.Fatal("expected not initialized error")
	}
}

func TestConvertMediaToURL_Empty(t *testing.T) {
	svc := NewOpenAILLMService(Config{}, core.NewNopLogger())
	if _, err := svc.convertMediaToURL(core.LLMMedia{}); err == nil {
		t.Fatal("expected error for empty media")
	}
}
