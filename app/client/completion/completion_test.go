package completion

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"multichat/app/config"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJLLM(url string) *JLLMClient {
	return NewJLLMClient(config.Completion{
		BaseURL: url,
		Token:   "secret",
		Timeout: 5 * time.Second,
	})
}

func isPermanent(err error) bool {
	var permanent *backoff.PermanentError
	return errors.As(err, &permanent)
}

func fastRetry(inner Client, attempts int) *Retrying {
	return NewRetrying(inner, RetryOptions{
		Provider:    "test",
		MaxAttempts: attempts,
		Base:        time.Millisecond,
		Cap:         4 * time.Millisecond,
	})
}

func TestJLLMClientJSONResponse(t *testing.T) {
	var got map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("Authorization"))

		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)

		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"  YES  "}}]}`))
	}))
	defer server.Close()

	text, err := newTestJLLM(server.URL).Complete(context.Background(), User("hi"), Params{Temperature: 0, MaxTokens: 10})
	require.NoError(t, err)

	assert.Equal(t, "YES", text)
	assert.Equal(t, false, got["stream"])
	assert.Equal(t, float64(0), got["temperature"])
	assert.Equal(t, float64(10), got["max_tokens"])
	assert.NotContains(t, got, "top_p")
}

func TestJLLMClientSSEResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n" +
			"data: not json\n" +
			"data: {\"choices\":[{\"delta\":{\"content\":\"lo\"}}]}\n" +
			"data: [DONE]\n"))
	}))
	defer server.Close()

	text, err := newTestJLLM(server.URL).Complete(context.Background(), User("hi"), Params{})
	require.NoError(t, err)
	assert.Equal(t, "Hello", text)
}

func TestJLLMClientEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"text":"nothing"}`))
	}))
	defer server.Close()

	_, err := newTestJLLM(server.URL).Complete(context.Background(), User("hi"), Params{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmptyResponse)
	assert.True(t, isPermanent(err))
}

func TestRetryingRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer server.Close()

	text, err := fastRetry(newTestJLLM(server.URL), 3).Complete(context.Background(), User("hi"), Params{})
	require.NoError(t, err)

	assert.Equal(t, "ok", text)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRetryingGivesUpAfterBudget(t *testing.T) {
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := fastRetry(newTestJLLM(server.URL), 3).Complete(context.Background(), User("hi"), Params{})
	require.Error(t, err)

	var attemptsErr *AttemptsError
	require.True(t, errors.As(err, &attemptsErr))
	assert.Equal(t, 3, attemptsErr.Attempts)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRetryingDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	_, err := fastRetry(newTestJLLM(server.URL), 3).Complete(context.Background(), User("hi"), Params{})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestRetryingStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	inner := ClientFunc(func(ctx context.Context, _ []Message, _ Params) (string, error) {
		return "", errors.New("transient")
	})

	_, err := fastRetry(inner, 3).Complete(ctx, User("hi"), Params{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCombineSSE(t *testing.T) {
	assert.Equal(t, "", CombineSSE("data: [DONE]"))
	assert.Equal(t, "ab", CombineSSE("event: x\r\ndata: {\"choices\":[{\"delta\":{\"content\":\"a\"}}]}\r\ndata: {\"choices\":[{\"delta\":{\"content\":\"b\"}}]}"))
}

func TestChatMessageType(t *testing.T) {
	assert.Equal(t, "system", string(chatMessageType(RoleSystem)))
	assert.Equal(t, "ai", string(chatMessageType(RoleAssistant)))
	assert.Equal(t, "human", string(chatMessageType(RoleUser)))
}

func TestNewProviderUnknown(t *testing.T) {
	_, err := newProvider(config.Completion{Provider: "nope"})
	assert.Error(t, err)
}
