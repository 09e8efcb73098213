package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestChat_SendsSystemAndUserMessages(t *testing.T) {
	var got ChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q, want /chat/completions", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("Authorization = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"{\"ok\":true}"}}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", "gpt-4.1-mini", 2048)
	out, err := c.Chat(context.Background(), "system prompt", "user text")
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if out != `{"ok":true}` {
		t.Errorf("content = %q", out)
	}

	if got.Model != "gpt-4.1-mini" {
		t.Errorf("model = %q", got.Model)
	}
	if got.MaxCompletionTokens != 2048 {
		t.Errorf("max_completion_tokens = %d, want 2048", got.MaxCompletionTokens)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Role != "user" {
		t.Errorf("messages = %+v", got.Messages)
	}
	if got.Messages[1].Content != "user text" {
		t.Errorf("user content = %q", got.Messages[1].Content)
	}
}

func TestChat_UpstreamError(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"message":"boom"}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k", "m", 100)
	_, err := c.Chat(context.Background(), "s", "u")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "500") {
		t.Errorf("error %q should carry upstream status", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want exactly one attempt", calls)
	}
}

func TestChat_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k", "m", 100)
	if _, err := c.Chat(context.Background(), "s", "u"); err == nil {
		t.Fatal("expected error for empty choices")
	}
}
