package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chatReply = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1700000000,
  "model": "test-model",
  "choices": [{"index": 0, "message": {"role": "assistant", "content": "  every Tuesday  "}, "finish_reason": "stop"}],
  "usage": {"prompt_tokens": 10, "completion_tokens": 2, "total_tokens": 12}
}`

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func newChatServer(t *testing.T, status int, body string, calls *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req chatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		if assert.Len(t, req.Messages, 2) {
			assert.Equal(t, "system", req.Messages[0].Role)
			assert.Equal(t, "user", req.Messages[1].Role)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
}

func TestNewRequiresAPIKey(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
	_, err = NewOfficial(Config{APIKey: "  "})
	require.Error(t, err)
}

func TestNewDefaults(t *testing.T) {
	c, err := New(Config{APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, defaultModel, c.Model())
	assert.Equal(t, 800, c.maxTokens)
	assert.Equal(t, 60*time.Second, c.timeout)

	o, err := NewOfficial(Config{APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, defaultOfficialModel, o.Model())
}

func TestCompleteRejectsEmptyPrompts(t *testing.T) {
	c, err := New(Config{APIKey: "k"})
	require.NoError(t, err)
	_, err = c.Complete(context.Background(), "", "user")
	require.Error(t, err)
}

func TestClientComplete(t *testing.T) {
	var calls int32
	srv := newChatServer(t, http.StatusOK, chatReply, &calls)
	defer srv.Close()

	c, err := New(Config{APIKey: "sk-test", BaseURL: srv.URL + "/v1", Model: "test-model"})
	require.NoError(t, err)

	out, err := c.Complete(context.Background(), "system", "user")
	require.NoError(t, err)
	assert.Equal(t, "every Tuesday", out)
}

func TestOfficialClientComplete(t *testing.T) {
	var calls int32
	srv := newChatServer(t, http.StatusOK, chatReply, &calls)
	defer srv.Close()

	c, err := NewOfficial(Config{APIKey: "sk-test", BaseURL: srv.URL + "/v1/", Model: "test-model"})
	require.NoError(t, err)

	out, err := c.Complete(context.Background(), "system", "user")
	require.NoError(t, err)
	assert.Equal(t, "every Tuesday", out)
}

func TestClientsSurfaceAuthFailureWithoutRetry(t *testing.T) {
	body := `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error","code":"invalid_api_key"}}`

	var calls int32
	srv := newChatServer(t, http.StatusUnauthorized, body, &calls)
	defer srv.Close()

	c, err := New(Config{APIKey: "sk-test", BaseURL: srv.URL + "/v1", Model: "test-model"})
	require.NoError(t, err)
	_, err = c.Complete(context.Background(), "system", "user")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	o, err := NewOfficial(Config{APIKey: "sk-test", BaseURL: srv.URL + "/v1/", Model: "test-model"})
	require.NoError(t, err)
	_, err = o.Complete(context.Background(), "system", "user")
	require.Error(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestClientEmptyChoices(t *testing.T) {
	var calls int32
	srv := newChatServer(t, http.StatusOK, `{"id":"x","object":"chat.completion","created":1,"model":"test-model","choices":[]}`, &calls)
	defer srv.Close()

	c, err := New(Config{APIKey: "sk-test", BaseURL: srv.URL + "/v1", Model: "test-model"})
	require.NoError(t, err)
	_, err = c.Complete(context.Background(), "system", "user")
	require.EqualError(t, err, "llm: empty response")
}
