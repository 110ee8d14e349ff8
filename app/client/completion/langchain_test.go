package completion

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLangchain(t *testing.T, fake *fakeOpenAI) *LangchainClient {
	t.Helper()

	client, err := NewLangchainClient(fake.completionConfig())
	require.NoError(t, err)

	return client
}

func TestLangchainClientTrimsContent(t *testing.T) {
	fake := newFakeOpenAI(t, http.StatusOK, chatCompletionBody)

	text, err := newTestLangchain(t, fake).Complete(context.Background(), WithSystem("be brief", "weather?"), Params{Temperature: 0.5, MaxTokens: 20})
	require.NoError(t, err)
	assert.Equal(t, "Sunny, probably!", text)

	req := fake.request(t)
	assert.Equal(t, "test-model", req["model"])

	messages, ok := req["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])
	assert.Equal(t, "user", messages[1].(map[string]any)["role"])
}

func TestLangchainClientNoChoices(t *testing.T) {
	fake := newFakeOpenAI(t, http.StatusOK, noChoicesBody)

	_, err := newTestLangchain(t, fake).Complete(context.Background(), User("hi"), Params{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmptyResponse)
	assert.True(t, isPermanent(err))

	_, err = fastRetry(newTestLangchain(t, fake), 3).Complete(context.Background(), User("hi"), Params{})
	assert.ErrorIs(t, err, ErrEmptyResponse)
	assert.Equal(t, int32(2), fake.calls.Load())
}

func TestLangchainClientUnauthorizedIsPermanent(t *testing.T) {
	fake := newFakeOpenAI(t, http.StatusUnauthorized, badKeyBody)

	_, err := newTestLangchain(t, fake).Complete(context.Background(), User("hi"), Params{})
	require.Error(t, err)
	assert.True(t, isPermanent(err))
	assert.Contains(t, err.Error(), "Incorrect API key provided")

	_, err = fastRetry(newTestLangchain(t, fake), 3).Complete(context.Background(), User("hi"), Params{})
	require.Error(t, err)

	var attemptsErr *AttemptsError
	require.True(t, errors.As(err, &attemptsErr))
	assert.Equal(t, 1, attemptsErr.Attempts)
	assert.Equal(t, int32(2), fake.calls.Load())
}

func TestLangchainClientRetriesOverload(t *testing.T) {
	fake := newFakeOpenAI(t, http.StatusServiceUnavailable, overloadBody)

	_, err := fastRetry(newTestLangchain(t, fake), 2).Complete(context.Background(), User("hi"), Params{})
	require.Error(t, err)
	assert.Equal(t, int32(2), fake.calls.Load())
}
