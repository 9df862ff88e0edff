package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/Twixes/mcpolice/internal/model"
	"github.com/sashabaranov/go-openai"
)

// chatServer returns a mock OpenAI endpoint replying with content
func chatServer(t *testing.T, content string, seen *openai.ChatCompletionRequest) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("Expected path /chat/completions, got %s", r.URL.Path)
		}
		if seen != nil {
			if err := json.NewDecoder(r.Body).Decode(seen); err != nil {
				t.Errorf("decode request: %v", err)
			}
		}

		resp := openai.ChatCompletionResponse{
			ID:      "chatcmpl-123",
			Object:  "chat.completion",
			Created: 1677652288,
			Model:   "gpt-4o-mini",
			Choices: []openai.ChatCompletionChoice{
				{
					Index: 0,
					Message: openai.ChatCompletionMessage{
						Role:    "assistant",
						Content: content,
					},
					FinishReason: "stop",
				},
			},
			Usage: openai.Usage{TotalTokens: 100},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestOpenAIProvider_Complete_Success(t *testing.T) {
	var seen openai.ChatCompletionRequest
	server := chatServer(t, "  A short summary.  ", &seen)

	provider, err := NewOpenAIProvider(Config{
		APIKey:  "test-key",
		BaseURL: server.URL,
		Model:   "gpt-4o-mini",
		Timeout: 5,
	})
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}

	resp, err := provider.Complete(context.Background(), CompletionRequest{System: "sys", Prompt: "hello", MaxTokens: 50})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	if resp.Text != "A short summary." {
		t.Errorf("Unexpected text: %q", resp.Text)
	}
	if resp.TokensUsed != 100 {
		t.Errorf("Expected 100 tokens, got %d", resp.TokensUsed)
	}
	if len(seen.Messages) != 2 || seen.Messages[0].Role != openai.ChatMessageRoleSystem || seen.Messages[1].Content != "hello" {
		t.Errorf("Unexpected messages: %+v", seen.Messages)
	}
	if seen.MaxTokens != 50 {
		t.Errorf("Expected max_tokens 50, got %d", seen.MaxTokens)
	}
}

func TestOpenAIProvider_Complete_APIError(t *testing.T) {
	for _, status := range []int{http.StatusInternalServerError, http.StatusTooManyRequests} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error": {"message": "upstream trouble", "type": "server_error"}}`))
		}))

		provider, err := NewOpenAIProvider(Config{APIKey: "test-key", BaseURL: server.URL, Timeout: 5})
		if err != nil {
			t.Fatalf("Failed to create provider: %v", err)
		}

		_, err = provider.Complete(context.Background(), CompletionRequest{Prompt: "x"})
		if err == nil {
			t.Fatalf("Expected error for status %d, got nil", status)
		}
		if !strings.Contains(err.Error(), "upstream trouble") {
			t.Errorf("Expected API message in error, got %v", err)
		}
		server.Close()
	}
}

func TestOpenAIProvider_Complete_MalformedJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{malformed json`))
	}))
	defer server.Close()

	provider, _ := NewOpenAIProvider(Config{APIKey: "test-key", BaseURL: server.URL, Timeout: 5})
	if _, err := provider.Complete(context.Background(), CompletionRequest{Prompt: "x"}); err == nil {
		t.Fatal("Expected error for malformed JSON, got nil")
	}
}

func TestOpenAIProvider_Complete_ContextDeadline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(500 * time.Millisecond):
		case <-r.Context().Done():
		}
	}))
	defer server.Close()

	provider, _ := NewOpenAIProvider(Config{APIKey: "test-key", BaseURL: server.URL, Timeout: 5})

	// The caller's shorter deadline wins over the configured timeout
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	if _, err := provider.Complete(ctx, CompletionRequest{Prompt: "x"}); err == nil {
		t.Fatal("Expected deadline error, got nil")
	}
	if elapsed := time.Since(start); elapsed > 400*time.Millisecond {
		t.Errorf("Complete ignored the context deadline (%v)", elapsed)
	}
}

func TestNewOpenAIProvider_RequiresKey(t *testing.T) {
	if _, err := NewOpenAIProvider(Config{}); err == nil {
		t.Error("Expected error without API key")
	}
}

func TestNewOllamaProvider(t *testing.T) {
	if _, err := NewOllamaProvider(Config{}); err == nil {
		t.Error("Expected error without model")
	}

	p, err := NewOllamaProvider(Config{Model: "llama3.1"})
	if err != nil {
		t.Fatalf("NewOllamaProvider failed: %v", err)
	}
	if p.Name() != "ollama" {
		t.Errorf("Expected name ollama, got %s", p.Name())
	}
	if p.config.BaseURL != DefaultOllamaURL {
		t.Errorf("Expected default base URL, got %s", p.config.BaseURL)
	}
}

func TestNewProvider(t *testing.T) {
	p, err := NewProvider(Config{})
	if err != nil || p != nil {
		t.Errorf("Expected disabled provider, got %v, %v", p, err)
	}

	p, err = NewProvider(Config{Provider: "OpenAI", APIKey: "k"})
	if err != nil {
		t.Fatalf("NewProvider failed: %v", err)
	}
	if p.Name() != "openai" {
		t.Errorf("Expected openai, got %s", p.Name())
	}

	if _, err := NewProvider(Config{Provider: "anthropic"}); err == nil {
		t.Error("Expected error for unsupported provider")
	}
}

func TestConfigFromModel(t *testing.T) {
	cfg := ConfigFromModel(model.LLMConfig{
		Provider:   "openai",
		Model:      "gpt-4o-mini",
		APIKey:     "k",
		Timeout:    12,
		MaxTokens:  300,
		HTTPSProxy: "http://proxy:3128",
	})
	if cfg.Provider != "openai" || cfg.Timeout != 12 || cfg.MaxTokens != 300 || cfg.HTTPSProxy != "http://proxy:3128" {
		t.Errorf("Unexpected config: %+v", cfg)
	}
}

func TestNewProxyFunc(t *testing.T) {
	fn := newProxyFunc("http://plain:8080", "http://secure:8443")

	req := &http.Request{URL: &url.URL{Scheme: "https", Host: "api.openai.com"}}
	got, err := fn(req)
	if err != nil || got.Host != "secure:8443" {
		t.Errorf("Expected https proxy, got %v (%v)", got, err)
	}

	req = &http.Request{URL: &url.URL{Scheme: "http", Host: "localhost:11434"}}
	got, err = fn(req)
	if err != nil || got.Host != "plain:8080" {
		t.Errorf("Expected http proxy, got %v (%v)", got, err)
	}
}
