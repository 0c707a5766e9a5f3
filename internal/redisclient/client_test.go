package redisclient

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *Client) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := NewClient(mr.Addr(), "", 0, time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return mr, client
}

func TestAppendAndLoadHistory(t *testing.T) {
	mr, client := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, client.AppendHistory(ctx, "ctx-1",
		testMessage{Role: "user", Content: "is item 123 available?"},
		testMessage{Role: "assistant", Content: "yes, 40 units in Berlin"},
	))

	var history []testMessage
	require.NoError(t, client.LoadHistory(ctx, "ctx-1", &history))
	assert.Equal(t, []testMessage{
		{Role: "user", Content: "is item 123 available?"},
		{Role: "assistant", Content: "yes, 40 units in Berlin"},
	}, history)

	assert.Greater(t, mr.TTL(historyKey("ctx-1")), time.Duration(0))
}

func TestAppendHistoryTrimsToLimit(t *testing.T) {
	_, client := setupTestRedis(t)
	client.historyLimit = 2
	ctx := context.Background()

	for _, content := range []string{"one", "two", "three"} {
		require.NoError(t, client.AppendHistory(ctx, "ctx-2", testMessage{Role: "user", Content: content}))
	}

	var history []testMessage
	require.NoError(t, client.LoadHistory(ctx, "ctx-2", &history))
	require.Len(t, history, 2)
	assert.Equal(t, "two", history[0].Content)
	assert.Equal(t, "three", history[1].Content)
}

func TestLoadHistoryOfUnknownSession(t *testing.T) {
	_, client := setupTestRedis(t)

	var history []testMessage
	require.NoError(t, client.LoadHistory(context.Background(), "missing", &history))
	assert.Empty(t, history)
}

func TestIdempotentResultRoundTrip(t *testing.T) {
	_, client := setupTestRedis(t)
	ctx := context.Background()

	var out map[string]any
	found, err := client.GetIdempotentResult(ctx, "key-1", &out)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, client.SetIdempotentResult(ctx, "key-1", map[string]any{"success": true}, time.Minute))

	found, err = client.GetIdempotentResult(ctx, "key-1", &out)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, true, out["success"])
}

func TestAcquireLockIsExclusive(t *testing.T) {
	_, client := setupTestRedis(t)
	ctx := context.Background()

	ok, err := client.AcquireLock(ctx, "reservation:key-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = client.AcquireLock(ctx, "reservation:key-1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, client.ReleaseLock(ctx, "reservation:key-1"))
	ok, err = client.AcquireLock(ctx, "reservation:key-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}
