// Package retry wraps storage operations with bounded exponential backoff.
// Client errors in the 4xx range (except throttling) are permanent and are
// returned immediately; everything else is retried up to the attempt budget.
package retry

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/ganot/coursetrace/internal/storage"
)

// Policy defines retry behavior for a single storage operation.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// BaseDelay is the delay before the first retry; each retry doubles it.
	BaseDelay time.Duration

	// Jitter is a random factor (0-1) applied to each delay.
	Jitter float64
}

// Default returns the standard policy: 3 attempts, 1 second base delay,
// 10% jitter.
func Default() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		Jitter:      0.1,
	}
}

// Do runs op, retrying transient failures with exponential backoff plus
// jitter. It returns the last error once the attempt budget is exhausted,
// or immediately for permanent failures and context cancellation.
func (p Policy) Do(ctx context.Context, op func(context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, p.delay(attempt)); err != nil {
				return err
			}
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if !storage.IsRetryable(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

// delay returns BaseDelay * 2^(attempt-1) with jitter applied.
func (p Policy) delay(attempt int) time.Duration {
	d := time.Duration(float64(p.BaseDelay) * math.Pow(2, float64(attempt-1)))
	if p.Jitter > 0 {
		factor := 1 - p.Jitter + 2*p.Jitter*rand.Float64()
		d = time.Duration(float64(d) * factor)
	}
	return d
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
