package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
)

func newOpenAITestProvider(t *testing.T, handler http.HandlerFunc) *OpenAIProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	provider, err := NewOpenAIProvider(Config{
		APIKey:  "test-key",
		BaseURL: server.URL,
		Model:   "gpt-4o-mini",
		Timeout: 5,
	})
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}
	return provider
}

func TestOpenAIProvider_Judge_Success(t *testing.T) {
	var gotReq openai.ChatCompletionRequest
	provider := newOpenAITestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("Expected path /chat/completions, got %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("Expected Authorization header Bearer test-key, got %s", r.Header.Get("Authorization"))
		}
		_ = json.NewDecoder(r.Body).Decode(&gotReq)

		resp := openai.ChatCompletionResponse{
			ID:    "chatcmpl-123",
			Model: "gpt-4o-mini",
			Choices: []openai.ChatCompletionChoice{{
				Message: openai.ChatCompletionMessage{
					Role:    "assistant",
					Content: `{"verdict":"supported","confidence":88,"rationale":"Well documented.","references":["https://www.cdc.gov/flu"]}`,
				},
				FinishReason: "stop",
			}},
			Usage: openai.Usage{TotalTokens: 100},
		}
		_ = json.NewEncoder(w).Encode(resp)
	})

	j, err := provider.Judge(context.Background(), JudgeRequest{Statement: "Influenza is caused by a virus.", Domain: "healthcare"})
	if err != nil {
		t.Fatalf("Judge failed: %v", err)
	}

	if j.Verdict != VerdictSupported || j.Confidence != 88 {
		t.Errorf("Unexpected judgement: %+v", j)
	}
	if len(j.References) != 1 || j.References[0] != "https://www.cdc.gov/flu" {
		t.Errorf("Unexpected references: %v", j.References)
	}
	if j.TokensUsed != 100 {
		t.Errorf("Unexpected token usage: %d", j.TokensUsed)
	}
	if len(gotReq.Messages) != 2 || gotReq.Messages[0].Role != openai.ChatMessageRoleSystem {
		t.Errorf("Unexpected messages: %+v", gotReq.Messages)
	}
}

func TestOpenAIProvider_Judge_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		content string
	}{
		{name: "server error", status: http.StatusInternalServerError, body: `{"error": {"message": "boom", "type": "server_error"}}`},
		{name: "rate limit", status: http.StatusTooManyRequests, body: `{"error": {"message": "slow down", "type": "rate_limit_error"}}`},
		{name: "malformed body", status: http.StatusOK, body: `{malformed json`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := newOpenAITestProvider(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			if _, err := provider.Judge(context.Background(), JudgeRequest{Statement: "x"}); err == nil {
				t.Fatal("Expected error, got nil")
			}
		})
	}
}

func TestOpenAIProvider_Judge_NonJSONAnswer(t *testing.T) {
	provider := newOpenAITestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{{
				Message: openai.ChatCompletionMessage{Role: "assistant", Content: "I think so."},
			}},
		})
	})

	_, err := provider.Judge(context.Background(), JudgeRequest{Statement: "x"})
	if err == nil {
		t.Fatal("Expected malformed judgement error")
	}
}

func TestOpenAIProvider_Judge_ContextDeadline(t *testing.T) {
	provider := newOpenAITestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(500 * time.Millisecond):
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := provider.Judge(ctx, JudgeRequest{Statement: "x"}); err == nil {
		t.Fatal("Expected timeout error, got nil")
	}
}

func TestOpenAIProvider_IsAvailable(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	provider := newOpenAITestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if healthy.Load() && r.URL.Path == "/models" {
			_, _ = w.Write([]byte(`{"data": [{"id": "gpt-4o-mini"}]}`))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	})

	if !provider.IsAvailable(context.Background()) {
		t.Error("Expected available to be true")
	}

	healthy.Store(false)
	if provider.IsAvailable(context.Background()) {
		t.Error("Expected available to be false on error")
	}
}

func TestNewOpenAIProvider_RequiresKey(t *testing.T) {
	if _, err := NewOpenAIProvider(Config{}); err == nil {
		t.Error("Expected error without API key")
	}
}
