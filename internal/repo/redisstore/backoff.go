package redisstore

import (
	"context"
	"math"
	"math/rand"
	"time"
)

const (
	conflictBaseDelay = 5 * time.Millisecond
	conflictMaxDelay  = 100 * time.Millisecond
)

// conflictBackoff spaces out WATCH retries after a conflicting write.
// attempt=0 => 5ms, attempt=1 => 10ms, attempt=2 => 20ms, capped at 100ms, plus up to 5ms jitter.
func conflictBackoff(attempt int) time.Duration {
	delay := time.Duration(float64(conflictBaseDelay) * math.Pow(2, float64(attempt)))

	if delay > conflictMaxDelay {
		delay = conflictMaxDelay
	}

	return delay + time.Duration(rand.Int63n(int64(conflictBaseDelay)))
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
