package providers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreerrors "github.com/adalundhe/architect/core/errors"
)

func jsonServer(t *testing.T, status int, headers map[string]string, body string, seen *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if seen != nil {
			raw, _ := io.ReadAll(r.Body)
			m := map[string]any{}
			_ = json.Unmarshal(raw, &m)
			m["_path"] = r.URL.Path
			*seen = m
		}
		for k, v := range headers {
			w.Header().Set(k, v)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

const chatCompletionBody = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1700000000,
  "model": "llama-3.3-70b-versatile",
  "choices": [{
    "index": 0,
    "finish_reason": "stop",
    "message": {"role": "assistant", "content": "Here:\n` + "```python\\nimport streamlit as st\\n```" + `"}
  }],
  "usage": {"prompt_tokens": 12, "completion_tokens": 30, "total_tokens": 42}
}`

func TestGroqProvider_Complete(t *testing.T) {
	var seen map[string]any
	srv := jsonServer(t, http.StatusOK, nil, chatCompletionBody, &seen)

	p, err := NewGroqProvider(Config{APIKey: "gsk-test", BaseURL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, "groq", p.Name())
	assert.Equal(t, "llama-3.3-70b-versatile", p.Model())

	resp, err := p.Complete(context.Background(), &CompletionRequest{
		System:      "be a developer",
		User:        "build a calculator",
		MaxTokens:   7000,
		Temperature: Float(0.1),
	})
	require.NoError(t, err)

	assert.Contains(t, resp.Text, "import streamlit as st")
	assert.Equal(t, StopReasonEndTurn, resp.StopReason)
	assert.Equal(t, Usage{InputTokens: 12, OutputTokens: 30, TotalTokens: 42}, resp.Usage)

	assert.Equal(t, "/chat/completions", seen["_path"])
	assert.Equal(t, "llama-3.3-70b-versatile", seen["model"])
	assert.EqualValues(t, 7000, seen["max_tokens"])
	assert.InDelta(t, 0.1, seen["temperature"], 1e-9)
	msgs, ok := seen["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Equal(t, "user", msgs[1].(map[string]any)["role"])
}

func TestGroqProvider_ClassifiesErrors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		headers    map[string]string
		body       string
		tier       coreerrors.ErrorTier
		retryAfter time.Duration
	}{
		{
			name:   "unauthorized",
			status: http.StatusUnauthorized,
			body:   `{"error":{"message":"Invalid API Key","type":"invalid_request_error","code":"invalid_api_key"}}`,
			tier:   coreerrors.TierPermanent,
		},
		{
			name:       "rate limited",
			status:     http.StatusTooManyRequests,
			headers:    map[string]string{"Retry-After": "2"},
			body:       `{"error":{"message":"Rate limit reached","type":"tokens","code":"rate_limit_exceeded"}}`,
			tier:       coreerrors.TierExternalRateLimit,
			retryAfter: 2 * time.Second,
		},
		{
			name:   "quota",
			status: http.StatusTooManyRequests,
			body:   `{"error":{"message":"You exceeded your current quota","type":"insufficient_quota","code":"insufficient_quota"}}`,
			tier:   coreerrors.TierPermanent,
		},
		{
			name:   "request timeout",
			status: http.StatusRequestTimeout,
			body:   `{"error":{"message":"request timed out","type":"timeout","code":""}}`,
			tier:   coreerrors.TierTransient,
		},
		{
			name:   "conflict",
			status: http.StatusConflict,
			body:   `{"error":{"message":"conflict","type":"invalid_request_error","code":""}}`,
			tier:   coreerrors.TierPermanent,
		},
		{
			name:   "unavailable",
			status: http.StatusServiceUnavailable,
			body:   `{"error":{"message":"over capacity","type":"server_error","code":""}}`,
			tier:   coreerrors.TierExternalDegrading,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := jsonServer(t, tt.status, tt.headers, tt.body, nil)
			p, err := NewGroqProvider(Config{APIKey: "gsk-test", BaseURL: srv.URL})
			require.NoError(t, err)

			_, err = p.Complete(context.Background(), &CompletionRequest{System: "s", User: "u"})
			require.Error(t, err)

			var te *coreerrors.TieredError
			require.True(t, errors.As(err, &te), "error %v is not tiered", err)
			assert.Equal(t, tt.tier, te.Tier)
			assert.Equal(t, tt.status, te.StatusCode)
			assert.Equal(t, "groq", te.Provider)
			assert.Equal(t, tt.retryAfter, te.RetryAfter)
		})
	}
}

func TestOpenAIProvider_Complete(t *testing.T) {
	body := `{
	  "id": "resp_1",
	  "object": "response",
	  "created_at": 1700000000,
	  "model": "gpt-4.1",
	  "status": "completed",
	  "output": [{
	    "type": "message",
	    "id": "msg_1",
	    "status": "completed",
	    "role": "assistant",
	    "content": [{"type": "output_text", "text": "done", "annotations": []}]
	  }],
	  "usage": {"input_tokens": 5, "output_tokens": 1, "total_tokens": 6,
	    "input_tokens_details": {"cached_tokens": 0}, "output_tokens_details": {"reasoning_tokens": 0}}
	}`
	var seen map[string]any
	srv := jsonServer(t, http.StatusOK, nil, body, &seen)

	p, err := NewOpenAIProvider(Config{APIKey: "sk-test", BaseURL: srv.URL})
	require.NoError(t, err)

	resp, err := p.Complete(context.Background(), &CompletionRequest{System: "sys", User: "usr"})
	require.NoError(t, err)

	assert.Equal(t, "done", resp.Text)
	assert.Equal(t, 6, resp.Usage.TotalTokens)
	assert.Equal(t, "/responses", seen["_path"])
	assert.Equal(t, "sys", seen["instructions"])
	assert.Equal(t, "usr", seen["input"])
}

func TestAnthropicProvider_Complete(t *testing.T) {
	body := `{
	  "id": "msg_1",
	  "type": "message",
	  "role": "assistant",
	  "model": "claude-sonnet-4-5-20250929",
	  "content": [{"type": "text", "text": "hello"}],
	  "stop_reason": "max_tokens",
	  "usage": {"input_tokens": 3, "output_tokens": 4}
	}`
	var seen map[string]any
	srv := jsonServer(t, http.StatusOK, nil, body, &seen)

	p, err := NewAnthropicProvider(Config{APIKey: "sk-ant-test", BaseURL: srv.URL})
	require.NoError(t, err)

	resp, err := p.Complete(context.Background(), &CompletionRequest{System: "sys", User: "usr", MaxTokens: 100})
	require.NoError(t, err)

	assert.Equal(t, "hello", resp.Text)
	assert.Equal(t, StopReasonMaxTokens, resp.StopReason)
	assert.Equal(t, 7, resp.Usage.TotalTokens)
	assert.Equal(t, "/v1/messages", seen["_path"])
	assert.EqualValues(t, 100, seen["max_tokens"])
}

func TestAnthropicProvider_Overloaded(t *testing.T) {
	srv := jsonServer(t, 529, nil, `{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`, nil)
	p, err := NewAnthropicProvider(Config{APIKey: "sk-ant-test", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = p.Complete(context.Background(), &CompletionRequest{System: "s", User: "u"})
	assert.Equal(t, coreerrors.TierExternalDegrading, coreerrors.GetTier(err))
}

func TestGoogleProvider_Complete(t *testing.T) {
	body := `{
	  "candidates": [{
	    "content": {"role": "model", "parts": [{"text": "gemini says hi"}]},
	    "finishReason": "STOP"
	  }],
	  "usageMetadata": {"promptTokenCount": 2, "candidatesTokenCount": 3, "totalTokenCount": 5},
	  "modelVersion": "gemini-2.5-pro"
	}`
	srv := jsonServer(t, http.StatusOK, nil, body, nil)

	p, err := NewGoogleProvider(context.Background(), Config{APIKey: "g-test", BaseURL: srv.URL})
	require.NoError(t, err)

	resp, err := p.Complete(context.Background(), &CompletionRequest{System: "s", User: "u", Temperature: Float(0.3)})
	require.NoError(t, err)
	assert.Equal(t, "gemini says hi", resp.Text)
	assert.Equal(t, 5, resp.Usage.TotalTokens)
	assert.Equal(t, "gemini-2.5-pro", resp.Model)
}

func TestGoogleProvider_Forbidden(t *testing.T) {
	srv := jsonServer(t, http.StatusForbidden, nil, `{"error":{"code":403,"message":"denied","status":"PERMISSION_DENIED"}}`, nil)
	p, err := NewGoogleProvider(context.Background(), Config{APIKey: "g-test", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = p.Complete(context.Background(), &CompletionRequest{System: "s", User: "u"})
	require.Error(t, err)
	assert.Equal(t, coreerrors.TierPermanent, coreerrors.GetTier(err))
}

func TestNew_SelectsProvider(t *testing.T) {
	for _, pt := range ProviderTypes() {
		c, err := New(context.Background(), Config{Type: pt, APIKey: "k"})
		require.NoError(t, err, pt)
		assert.Equal(t, string(pt), c.Name())
		assert.Equal(t, DefaultModel(pt), c.Model())
	}

	_, err := New(context.Background(), Config{Type: "bard", APIKey: "k"})
	assert.Error(t, err)

	_, err = New(context.Background(), Config{Type: ProviderTypeGroq})
	assert.Error(t, err, "missing key must fail validation")
}

func TestParseProviderType(t *testing.T) {
	pt, err := ParseProviderType("")
	require.NoError(t, err)
	assert.Equal(t, ProviderTypeGroq, pt)

	pt, err = ParseProviderType("anthropic")
	require.NoError(t, err)
	assert.Equal(t, ProviderTypeAnthropic, pt)

	_, err = ParseProviderType("bard")
	assert.Error(t, err)
}

func TestCredentialResolver(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.yaml")
	env := map[string]string{"GROQ_API_KEY": "from-env"}
	r := &CredentialResolver{Path: path, Getenv: func(k string) string { return env[k] }}

	key, err := r.ResolveAPIKey(ProviderTypeGroq)
	require.NoError(t, err)
	assert.Equal(t, "from-env", key)

	_, err = r.ResolveAPIKey(ProviderTypeAnthropic)
	require.Error(t, err)
	assert.Equal(t, coreerrors.TierUserFixable, coreerrors.GetTier(err))

	require.NoError(t, r.SaveAPIKey(ProviderTypeAnthropic, "from-file"))
	require.NoError(t, r.SaveAPIKey(ProviderTypeGoogle, "g"))

	key, err = r.ResolveAPIKey(ProviderTypeAnthropic)
	require.NoError(t, err)
	assert.Equal(t, "from-file", key)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	assert.Equal(t, "GOOGLE_API_KEY", EnvKeyName(ProviderTypeGoogle))
}

func TestCredentialResolver_SourceAndRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.yaml")
	env := map[string]string{"OPENAI_API_KEY": "sk-env"}
	r := &CredentialResolver{Path: path, Getenv: func(k string) string { return env[k] }}
	require.NoError(t, r.SaveAPIKey(ProviderTypeGroq, "gsk-file"))

	src, err := r.Source(ProviderTypeOpenAI)
	require.NoError(t, err)
	assert.Equal(t, SourceEnv, src)
	src, err = r.Source(ProviderTypeGroq)
	require.NoError(t, err)
	assert.Equal(t, SourceFile, src)
	src, err = r.Source(ProviderTypeGoogle)
	require.NoError(t, err)
	assert.Equal(t, SourceNone, src)

	removed, err := r.RemoveAPIKey(ProviderTypeGroq)
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = r.RemoveAPIKey(ProviderTypeGroq)
	require.NoError(t, err)
	assert.False(t, removed)
	_, err = r.ResolveAPIKey(ProviderTypeGroq)
	assert.ErrorIs(t, err, coreerrors.ErrMissingAPIKey)
}
