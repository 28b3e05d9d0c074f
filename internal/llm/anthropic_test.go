package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hazyhaar/proofmine/internal/config"
)

func newTestProvider(t *testing.T, h http.HandlerFunc) *AnthropicProvider {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	p := NewAnthropicProvider("sk-test")
	p.baseURL = srv.URL
	return p
}

func TestAnthropicComplete(t *testing.T) {
	var got anthropicRequest
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "sk-test", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"model": "claude-3-5-sonnet-20241022",
			"content": [{"type":"text","text":"{\"is_valid\":"},{"type":"text","text":"true}"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 12, "output_tokens": 7}
		}`))
	})

	resp, err := p.Complete(context.Background(), Request{
		Messages:  []Message{{Role: "system", Content: "be strict"}, {Role: "user", Content: "judge this"}},
		MaxTokens: 500,
	})
	require.NoError(t, err)

	assert.Equal(t, `{"is_valid":true}`, resp.Content)
	assert.Equal(t, "claude-3-5-sonnet-20241022", resp.Model)
	assert.Equal(t, 12, resp.TokensIn)
	assert.Equal(t, 7, resp.TokensOut)
	assert.Equal(t, "end_turn", resp.FinishReason)

	assert.Equal(t, "be strict", got.System)
	assert.Equal(t, 500, got.MaxTokens)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
}

func TestAnthropicComplete_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"rate limited", http.StatusTooManyRequests, `{}`, ErrRateLimited},
		{"empty content", http.StatusOK, `{"model":"m","content":[]}`, ErrEmptyContent},
		{"server error", http.StatusInternalServerError, `overloaded`, nil},
		{"unauthorized", http.StatusUnauthorized, `{"error":"invalid x-api-key"}`, nil},
		{"bad json", http.StatusOK, `not json`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := p.Complete(context.Background(), Request{Messages: []Message{{Role: "user", Content: "x"}}})
			require.Error(t, err)

			var pe *ProviderError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, "anthropic", pe.Provider)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestNewFromConfig(t *testing.T) {
	_, err := NewFromConfig(config.JudgeConfig{Model: "claude-3-5-sonnet-20241022"})
	assert.ErrorIs(t, err, ErrNoAPIKey)

	p, err := NewFromConfig(config.JudgeConfig{APIKey: "k", Model: "claude-custom", BaseURL: "http://localhost:1"})
	require.NoError(t, err)
	assert.Equal(t, "anthropic", p.Name())
	assert.Equal(t, "claude-custom", p.Models()[0])
}
