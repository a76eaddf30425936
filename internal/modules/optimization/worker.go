// README: Worker pool draining the optimization queue.
package optimization

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"lastmile/internal/types"
)

// Dequeuer is the consuming side of the queue. *Queue satisfies it.
type Dequeuer interface {
	Dequeue(ctx context.Context, timeout time.Duration) (types.ID, bool, error)
}

type WorkerPool struct {
	queue       Dequeuer
	processor   *Processor
	count       int
	pollTimeout time.Duration
	log         *slog.Logger
}

func NewWorkerPool(queue Dequeuer, processor *Processor, count int, pollTimeout time.Duration, log *slog.Logger) *WorkerPool {
	if count < 1 {
		count = 1
	}
	return &WorkerPool{
		queue:       queue,
		processor:   processor,
		count:       count,
		pollTimeout: pollTimeout,
		log:         log,
	}
}

// Run blocks until ctx is cancelled. Workers poll independently; a
// processing error is logged and the delivery is not retried here, the
// job record carries the failure.
func (w *WorkerPool) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < w.count; i++ {
		worker := i
		g.Go(func() error {
			return w.loop(ctx, worker)
		})
	}
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (w *WorkerPool) loop(ctx context.Context, worker int) error {
	w.log.Info("worker started", "worker", worker)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		jobID, ok, err := w.queue.Dequeue(ctx, w.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.log.Error("queue poll failed", "worker", worker, "error", err)
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}
		if !ok {
			continue
		}

		if err := w.processor.Process(ctx, jobID); err != nil {
			w.log.Error("processing delivery failed", "worker", worker, "jobId", jobID, "error", err)
		}
	}
}
