// README: Small retry policy with explicit attempts and backoff schedule.
package retry

import (
	"context"
	"time"
)

// Policy retries a call a fixed number of times, sleeping between
// attempts according to the backoff schedule. The last schedule entry
// repeats when attempts exceed the schedule length.
type Policy struct {
	Attempts int
	Backoff  []time.Duration
}

// DefaultPolicy matches the solver call contract: three attempts with
// increasing backoff.
func DefaultPolicy() Policy {
	return Policy{
		Attempts: 3,
		Backoff:  []time.Duration{time.Second, 2 * time.Second, 4 * time.Second},
	}
}

// Do runs fn until it succeeds or attempts are exhausted, returning the
// last error. The sleep between attempts is context-aware.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		if err := sleep(ctx, p.delay(i)); err != nil {
			return lastErr
		}
	}
	return lastErr
}

func (p Policy) delay(attempt int) time.Duration {
	if len(p.Backoff) == 0 {
		return 0
	}
	if attempt >= len(p.Backoff) {
		attempt = len(p.Backoff) - 1
	}
	return p.Backoff[attempt]
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
