package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestOpenAIProvider_IsAvailable(t *testing.T) {
	logger := zap.NewNop()

	tests := []struct {
		name   string
		apiKey string
		want   bool
	}{
		{
			name:   "available with api key",
			apiKey: "test-api-key",
			want:   true,
		},
		{
			name:   "not available without api key",
			apiKey: "",
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewOpenAIProvider(tt.apiKey, "gpt-4o-mini", 2000, 30*time.Second, logger)
			if got := p.IsAvailable(); got != tt.want {
				t.Errorf("OpenAIProvider.IsAvailable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOpenAIProvider_Complete(t *testing.T) {
	var got openAIRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %v, want /chat/completions", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"  {\"action\":\"case_closed\"}  "}}]}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider("key", "gpt-4o-mini", 300, 5*time.Second, zap.NewNop()).WithBaseURL(srv.URL)
	answer, err := p.Complete(context.Background(), &CompletionRequest{
		System:   "Answer in JSON",
		Messages: []Message{{Role: RoleUser, Content: "Hi"}},
		JSON:     true,
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if answer != `{"action":"case_closed"}` {
		t.Errorf("Complete() = %v", answer)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Content != "Hi" {
		t.Errorf("messages = %+v, want system then user", got.Messages)
	}
	if got.MaxTokens != 300 || got.ResponseFormat["type"] != "json_object" {
		t.Errorf("request = %+v", got)
	}
}

func TestAnthropicProvider_Complete(t *testing.T) {
	var got anthropicRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "key" || r.Header.Get("anthropic-version") != anthropicVersion {
			t.Errorf("headers = %v", r.Header)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"Bonjour"},{"type":"text","text":" !"}]}`))
	}))
	defer srv.Close()

	p := NewAnthropicProvider("key", "claude-3-5-haiku-latest", 300, 5*time.Second, zap.NewNop()).WithBaseURL(srv.URL)
	answer, err := p.Complete(context.Background(), &CompletionRequest{
		System:   "Be nice",
		Messages: []Message{{Role: RoleUser, Content: "Salut"}},
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if answer != "Bonjour !" {
		t.Errorf("Complete() = %v, want Bonjour !", answer)
	}
	if got.System != "Be nice" || len(got.Messages) != 1 {
		t.Errorf("request = %+v", got)
	}
}

func TestAnthropicProvider_OpensWithUser(t *testing.T) {
	var got anthropicRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"ok"}]}`))
	}))
	defer srv.Close()

	p := NewAnthropicProvider("key", "claude-3-5-haiku-latest", 300, 5*time.Second, zap.NewNop()).WithBaseURL(srv.URL)
	_, err := p.Complete(context.Background(), &CompletionRequest{Messages: []Message{
		{Role: RoleAssistant, Content: "Hello"},
		{Role: RoleUser, Content: "Hi"},
	}})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if len(got.Messages) != 3 || got.Messages[0].Role != "user" || got.Messages[1].Content != "Hello" {
		t.Errorf("messages = %+v, want a user turn first", got.Messages)
	}
}
