package optimization

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lastmile/internal/types"
)

type fakeDequeuer struct {
	mu  sync.Mutex
	ids []types.ID
}

func (f *fakeDequeuer) Dequeue(ctx context.Context, timeout time.Duration) (types.ID, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.ids) == 0 {
		select {
		case <-ctx.Done():
			return "", false, ctx.Err()
		case <-time.After(5 * time.Millisecond):
			return "", false, nil
		}
	}
	id := f.ids[0]
	f.ids = f.ids[1:]
	return id, true, nil
}

func TestWorkerPoolDrainsQueueAndStopsOnCancel(t *testing.T) {
	job := enqueuedJob()
	store := newFakeJobStore(job)
	solver := &fakeSolver{sol: solutionWithRoutes()}
	processor := NewProcessor(store, solver, &fakeMaterializer{}, discardLogger())

	queue := &fakeDequeuer{ids: []types.ID{job.ID}}
	pool := NewWorkerPool(queue, processor, 2, 10*time.Millisecond, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- pool.Run(ctx) }()

	require.Eventually(t, func() bool {
		return store.jobStatus(job.ID) == JobCompleted
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("worker pool did not stop after cancel")
	}
}
