package optimization

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lastmile/internal/types"
)

func newTestQueue(t *testing.T) (*Queue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewQueue(client, "optimize:jobs"), mr
}

func TestQueueRoundTrip(t *testing.T) {
	q, _ := newTestQueue(t)
	jobID := types.NewID()

	require.NoError(t, q.Enqueue(context.Background(), jobID))

	got, ok, err := q.Dequeue(context.Background(), time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, jobID, got)
}

func TestQueueFIFOAcrossDeliveries(t *testing.T) {
	q, _ := newTestQueue(t)
	first, second := types.NewID(), types.NewID()
	require.NoError(t, q.Enqueue(context.Background(), first))
	require.NoError(t, q.Enqueue(context.Background(), second))

	got1, ok, err := q.Dequeue(context.Background(), time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	got2, ok, err := q.Dequeue(context.Background(), time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, first, got1)
	assert.Equal(t, second, got2)
}

func TestQueueEmptyReportsNotOK(t *testing.T) {
	q, _ := newTestQueue(t)
	_, ok, err := q.Dequeue(context.Background(), 50*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestQueueDropsMalformedMessages(t *testing.T) {
	q, mr := newTestQueue(t)
	_, err := mr.Lpush("optimize:jobs", "not json")
	require.NoError(t, err)

	_, ok, err := q.Dequeue(context.Background(), time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	// The malformed entry is gone; the queue is drained.
	_, ok, err = q.Dequeue(context.Background(), 50*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok)
}
