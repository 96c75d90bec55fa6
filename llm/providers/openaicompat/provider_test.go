package openaicompat

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shalynjjj/prompt2CAD/internal/ctxkeys"
	"github.com/shalynjjj/prompt2CAD/llm"
	"github.com/shalynjjj/prompt2CAD/llm/retry"
)

const completionBody = `{
	"id":"resp-1","model":"gpt-4o","created":1700000000,
	"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"Hello!"}}],
	"usage":{"prompt_tokens":5,"completion_tokens":2,"total_tokens":7}
}`

func newTestProvider(t *testing.T, url string, policy *retry.RetryPolicy) *Provider {
	t.Helper()
	return New(Config{
		ProviderName: "test",
		APIKey:       "test-key",
		BaseURL:      url,
		DefaultModel: "gpt-4o",
		Retry:        policy,
	}, zap.NewNop())
}

func userMessage(text string) []llm.Message {
	return []llm.Message{{Role: llm.RoleUser, Content: text}}
}

func TestNew_Defaults(t *testing.T) {
	p := New(Config{ProviderName: "test"}, nil)
	assert.Equal(t, "/v1/chat/completions", p.Cfg.EndpointPath)
	assert.Equal(t, "/v1/models", p.Cfg.ModelsEndpoint)
	assert.Equal(t, "test", p.Name())
	assert.Equal(t, 60*time.Second, p.Client.Timeout)
	assert.NotNil(t, p.Logger)

	p = New(Config{ProviderName: "x", Timeout: 5 * time.Second, EndpointPath: "/api/chat"}, zap.NewNop())
	assert.Equal(t, 5*time.Second, p.Client.Timeout)
	assert.Equal(t, "/api/chat", p.Cfg.EndpointPath)
}

func TestProvider_Completion_Success(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		data, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(data, &captured))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, completionBody)
	}))
	t.Cleanup(server.Close)

	p := newTestProvider(t, server.URL, nil)
	resp, err := p.Completion(context.Background(), &llm.ChatRequest{
		Messages:    userMessage("Hi"),
		Temperature: 0.1,
		MaxTokens:   1500,
	})
	require.NoError(t, err)
	assert.Equal(t, "resp-1", resp.ID)
	assert.Equal(t, "test", resp.Provider)
	require.Len(t, resp.Choices, 1)
	assert.Equal(t, "Hello!", resp.Choices[0].Message.Content)
	assert.Equal(t, 7, resp.Usage.TotalTokens)
	assert.False(t, resp.CreatedAt.IsZero())

	assert.Equal(t, "gpt-4o", captured["model"])
	assert.EqualValues(t, 1500, captured["max_tokens"])
	assert.NotContains(t, captured, "tool_choice")
}

func TestProvider_Completion_ToolsAndModelOverride(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(data, &captured))
		fmt.Fprint(w, `{"id":"r","model":"gpt-4o-mini","choices":[{"index":0,"finish_reason":"tool_calls",
			"message":{"role":"assistant","content":null,"tool_calls":[{"id":"c1","type":"function",
			"function":{"name":"extract","arguments":"{\"width\":1}"}}]}}]}`)
	}))
	t.Cleanup(server.Close)

	p := newTestProvider(t, server.URL, nil)
	ctx := ctxkeys.WithLLMModel(context.Background(), "gpt-4o-mini")
	resp, err := p.Completion(ctx, &llm.ChatRequest{
		Messages:   userMessage("measure"),
		Tools:      []llm.ToolSchema{{Name: "extract", Parameters: json.RawMessage(`{"type":"object"}`)}},
		ToolChoice: "extract",
	})
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o-mini", captured["model"])
	assert.Equal(t, map[string]any{"type": "function", "function": map[string]any{"name": "extract"}}, captured["tool_choice"])

	tc, ok := llm.FindToolCall(resp, "extract")
	require.True(t, ok)
	assert.JSONEq(t, `{"width":1}`, string(tc.Arguments))
}

func TestProvider_Completion_HTTPError(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		body       string
		wantCode   llm.ErrorCode
	}{
		{"401 unauthorized", http.StatusUnauthorized, `{"error":{"message":"invalid key","type":"auth"}}`, llm.ErrUnauthorized},
		{"429 rate limited", http.StatusTooManyRequests, `{"error":{"message":"slow down"}}`, llm.ErrRateLimited},
		{"500 server error", http.StatusInternalServerError, `{"error":{"message":"oops"}}`, llm.ErrUpstreamError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
				fmt.Fprint(w, tt.body)
			}))
			t.Cleanup(server.Close)

			_, err := newTestProvider(t, server.URL, nil).Completion(context.Background(), &llm.ChatRequest{
				Messages: userMessage("Hi"),
			})
			var llmErr *llm.Error
			require.ErrorAs(t, err, &llmErr)
			assert.Equal(t, tt.wantCode, llmErr.Code)
			assert.Equal(t, tt.statusCode, llmErr.HTTPStatus)
		})
	}
}

func TestProvider_Completion_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprint(w, `{"error":{"message":"busy"}}`)
			return
		}
		fmt.Fprint(w, completionBody)
	}))
	t.Cleanup(server.Close)

	p := newTestProvider(t, server.URL, &retry.RetryPolicy{
		MaxRetries:   3,
		InitialDelay: time.Millisecond,
		MaxDelay:     2 * time.Millisecond,
	})
	resp, err := p.Completion(context.Background(), &llm.ChatRequest{Messages: userMessage("Hi")})
	require.NoError(t, err)
	assert.Equal(t, "resp-1", resp.ID)
	assert.EqualValues(t, 3, calls.Load())
}

func TestProvider_Completion_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"message":"bad"}}`)
	}))
	t.Cleanup(server.Close)

	p := newTestProvider(t, server.URL, &retry.RetryPolicy{MaxRetries: 3, InitialDelay: time.Millisecond})
	_, err := p.Completion(context.Background(), &llm.ChatRequest{Messages: userMessage("Hi")})
	require.Error(t, err)
	assert.EqualValues(t, 1, calls.Load())
}

func TestProvider_Completion_InvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "not json")
	}))
	t.Cleanup(server.Close)

	_, err := newTestProvider(t, server.URL, nil).Completion(context.Background(), &llm.ChatRequest{
		Messages: userMessage("Hi"),
	})
	var llmErr *llm.Error
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, llm.ErrUpstreamError, llmErr.Code)
}

func TestProvider_Completion_EmptyRequest(t *testing.T) {
	p := newTestProvider(t, "http://127.0.0.1:1", nil)
	_, err := p.Completion(context.Background(), &llm.ChatRequest{})
	var llmErr *llm.Error
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, llm.ErrInvalidRequest, llmErr.Code)
}

func TestProvider_Completion_RequestTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(server.Close)

	_, err := newTestProvider(t, server.URL, nil).Completion(context.Background(), &llm.ChatRequest{
		Messages: userMessage("Hi"),
		Timeout:  20 * time.Millisecond,
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestProvider_HealthCheck(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/models", r.URL.Path)
		fmt.Fprint(w, `{"object":"list","data":[]}`)
	}))
	t.Cleanup(healthy.Close)

	status, err := newTestProvider(t, healthy.URL, nil).HealthCheck(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Healthy)

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(broken.Close)

	status, err = newTestProvider(t, broken.URL, nil).HealthCheck(context.Background())
	require.Error(t, err)
	assert.False(t, status.Healthy)
}
