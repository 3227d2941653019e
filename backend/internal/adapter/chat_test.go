package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "cogbot/backend/pkg/errors"
)

func completionHandler(t *testing.T, content string, calls *atomic.Int32, failFirst int, failStatus int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		if int(n) <= failFirst {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(failStatus)
			_, _ = w.Write([]byte(`{"error":{"message":"upstream trouble","type":"server_error"}}`))
			return
		}

		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama-3.1-70b-instruct", req["model"])
		assert.EqualValues(t, 400, req["max_tokens"])

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":     "cmpl-1",
			"object": "chat.completion",
			"model":  req["model"],
			"choices": []map[string]interface{}{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]string{"role": "assistant", "content": content},
			}},
		})
	}
}

func newTestAdapter(url string) *ChatAdapter {
	a := NewChatAdapter(url, "test-key", 5*time.Second)
	a.backoff = time.Millisecond
	return a
}

var testMessages = []Message{
	{Role: "system", Content: "Be brief."},
	{Role: "user", Content: "Hello?"},
}

func TestChatAdapter_Complete(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(completionHandler(t, "Hi there.", &calls, 0, 0))
	defer srv.Close()

	out, err := newTestAdapter(srv.URL).Complete(context.Background(), "llama-3.1-70b-instruct", 400, testMessages)
	require.NoError(t, err)
	assert.Equal(t, "Hi there.", out)
	assert.EqualValues(t, 1, calls.Load())
}

func TestChatAdapter_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(completionHandler(t, "Recovered.", &calls, 2, http.StatusBadGateway))
	defer srv.Close()

	out, err := newTestAdapter(srv.URL).Complete(context.Background(), "llama-3.1-70b-instruct", 400, testMessages)
	require.NoError(t, err)
	assert.Equal(t, "Recovered.", out)
	assert.EqualValues(t, 3, calls.Load())
}

func TestChatAdapter_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(completionHandler(t, "", &calls, 10, http.StatusBadRequest))
	defer srv.Close()

	_, err := newTestAdapter(srv.URL).Complete(context.Background(), "llama-3.1-70b-instruct", 400, testMessages)
	require.Error(t, err)
	assert.EqualValues(t, 1, calls.Load())

	var chatErr *apperrors.ErrChatCompletionFailed
	require.True(t, errors.As(err, &chatErr))
	assert.False(t, chatErr.Retryable)
	assert.Equal(t, 1, chatErr.Attempts)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeChat))
}

func TestChatAdapter_GivesUpAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(completionHandler(t, "", &calls, 10, http.StatusServiceUnavailable))
	defer srv.Close()

	_, err := newTestAdapter(srv.URL).Complete(context.Background(), "llama-3.1-70b-instruct", 400, testMessages)
	require.Error(t, err)
	assert.EqualValues(t, maxAttempts, calls.Load())
	assert.True(t, apperrors.IsRetryable(err))
}

func TestChatAdapter_EmptyResponse(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(completionHandler(t, "   ", &calls, 0, 0))
	defer srv.Close()

	_, err := newTestAdapter(srv.URL).Complete(context.Background(), "llama-3.1-70b-instruct", 400, testMessages)
	assert.ErrorIs(t, err, apperrors.ErrChatNoResponse)
}

func TestChatAdapter_NotConfigured(t *testing.T) {
	a := NewChatAdapter("http://127.0.0.1:0", "", time.Second)
	assert.False(t, a.Configured())

	_, err := a.Complete(context.Background(), "m", 1, testMessages)
	assert.ErrorIs(t, err, apperrors.ErrChatNotConfigured)
}
