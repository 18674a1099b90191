package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

func TestOpenAIClient_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("expected /chat/completions, got %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("expected bearer auth, got %q", got)
		}

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Role != "user" {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}
		if req.Messages[1].Content != "classify this" {
			t.Errorf("unexpected user content %q", req.Messages[1].Content)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": `{"categories":["new-listing"]}`}},
			},
		})
	}))
	defer server.Close()

	client, err := NewOpenAIClient("secret", WithBaseURL(server.URL+"/"))
	if err != nil {
		t.Fatalf("NewOpenAIClient: %v", err)
	}

	out, err := client.Complete(context.Background(), "you are an expert", "classify this")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out != `{"categories":["new-listing"]}` {
		t.Errorf("unexpected output %q", out)
	}
	if client.Provider() != ProviderOpenAI {
		t.Errorf("unexpected provider %q", client.Provider())
	}
}

func TestOpenAIClient_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer server.Close()

	client, err := NewOpenAIClient("secret", WithBaseURL(server.URL))
	if err != nil {
		t.Fatalf("NewOpenAIClient: %v", err)
	}

	_, err = client.Complete(context.Background(), "s", "u")
	if err == nil || !strings.Contains(err.Error(), "unexpected status 500") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestOpenAIClient_EmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	client, _ := NewOpenAIClient("secret", WithBaseURL(server.URL))

	_, err := client.Complete(context.Background(), "s", "u")
	if !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("expected ErrEmptyResponse, got %v", err)
	}
}

func TestClaudeClient_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/v1/messages") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if _, ok := body["system"]; !ok {
			t.Error("expected system prompt in request")
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-3-5-haiku-latest",
			"content": [{"type": "text", "text": "{\"confidence\":0.9}"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 10, "output_tokens": 5}
		}`))
	}))
	defer server.Close()

	client, err := NewClaudeClient(Config{APIKey: "secret", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewClaudeClient: %v", err)
	}

	out, err := client.Complete(context.Background(), "you are an expert", "classify this")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out != `{"confidence":0.9}` {
		t.Errorf("unexpected output %q", out)
	}
}

func TestNew_MissingAPIKey(t *testing.T) {
	for _, provider := range []string{"", ProviderOpenAI, ProviderClaude, ProviderGemini} {
		_, err := New(context.Background(), Config{Provider: provider})
		if !errors.Is(err, ErrMissingAPIKey) {
			t.Errorf("provider %q: expected ErrMissingAPIKey, got %v", provider, err)
		}
	}

	if _, err := New(context.Background(), Config{Provider: "unknown", APIKey: "k"}); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestGeminiClient_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	client, err := NewGeminiClient(context.Background(), Config{
		Provider: ProviderGemini,
		APIKey:   "k",
		BaseURL:  server.URL,
		Timeout:  50 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewGeminiClient: %v", err)
	}

	started := time.Now()
	if _, err := client.Complete(context.Background(), "sys", "title"); err == nil {
		t.Fatal("expected timeout error")
	}
	if elapsed := time.Since(started); elapsed > time.Second {
		t.Errorf("call took %s, timeout not applied", elapsed)
	}
}

func TestTruncate_KeepsRuneBoundary(t *testing.T) {
	s := "币安将上线" // 3 bytes per rune
	for n := 1; n < len(s); n++ {
		out := truncate(s, n)
		if !utf8.ValidString(out) {
			t.Fatalf("truncate(%d) produced invalid utf-8 %q", n, out)
		}
		if len(strings.TrimSuffix(out, "...")) > n {
			t.Fatalf("truncate(%d) kept %d bytes", n, len(out))
		}
	}
	if got := truncate("abc", 5); got != "abc" {
		t.Errorf("short input changed: %q", got)
	}
}
