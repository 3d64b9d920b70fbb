package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewProviderSelection(t *testing.T) {
	cases := []struct {
		name     string
		provider string
		wantErr  bool
	}{
		{name: "openai", provider: "openai"},
		{name: "anthropic", provider: "Anthropic"},
		{name: "unknown", provider: "bard", wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewProvider(Config{Provider: tc.provider, Model: "m"})
			if tc.wantErr && err == nil {
				t.Fatalf("expected error for provider %q", tc.provider)
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestOpenAIComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req openAIRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("expected system+user messages, got %+v", req.Messages)
		}
		if req.Temperature == nil || *req.Temperature != 0.7 {
			t.Errorf("expected temperature 0.7, got %v", req.Temperature)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "  generated text \n"}},
			},
		})
	}))
	defer srv.Close()

	p := NewOpenAIProvider(Config{Model: "gpt-test", APIURL: srv.URL})
	got, err := p.Complete(context.Background(), Request{
		System:      "you are a writer",
		Prompt:      "write something",
		Temperature: 0.7,
		MaxTokens:   100,
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if got != "generated text" {
		t.Fatalf("expected trimmed content, got %q", got)
	}
}

func TestOpenAICompleteErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewOpenAIProvider(Config{Model: "gpt-test", APIURL: srv.URL})
	if _, err := p.Complete(context.Background(), Request{Prompt: "x"}); err == nil {
		t.Fatalf("expected error on 429")
	}
}

func TestAnthropicComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("anthropic-version") == "" {
			t.Errorf("expected anthropic-version header")
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]any{
				{"type": "text", "text": "first "},
				{"type": "text", "text": "second"},
			},
		})
	}))
	defer srv.Close()

	p := NewAnthropicProvider(Config{Model: "claude-test", APIURL: srv.URL})
	got, err := p.Complete(context.Background(), Request{Prompt: "x"})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if got != "first second" {
		t.Fatalf("expected concatenated blocks, got %q", got)
	}
}
