package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ganot/coursetrace/internal/retry"
	"github.com/ganot/coursetrace/internal/storage"
)

func fastPolicy(attempts int) retry.Policy {
	return retry.Policy{MaxAttempts: attempts, BaseDelay: time.Millisecond}
}

func TestDo_SucceedsFirstTry(t *testing.T) {
	calls := 0
	err := fastPolicy(3).Do(context.Background(), func(context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, calls)
}

func TestDo_RetriesTransientFailures(t *testing.T) {
	calls := 0
	err := fastPolicy(3).Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return storage.WithStatus(500, errors.New("flaky"))
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
}

func TestDo_ClientErrorsAreNotRetried(t *testing.T) {
	calls := 0
	wantErr := storage.WithStatus(404, storage.ErrNotFound)
	err := fastPolicy(3).Do(context.Background(), func(context.Context) error {
		calls++
		return wantErr
	})
	require.ErrorIs(t, err, storage.ErrNotFound)
	require.Equal(t, 1, calls)
}

func TestDo_ThrottlingIsRetried(t *testing.T) {
	calls := 0
	err := fastPolicy(2).Do(context.Background(), func(context.Context) error {
		calls++
		return storage.WithStatus(429, errors.New("slow down"))
	})
	require.Error(t, err)
	require.Equal(t, 2, calls)
}

func TestDo_ExhaustionReturnsLastError(t *testing.T) {
	calls := 0
	err := fastPolicy(3).Do(context.Background(), func(context.Context) error {
		calls++
		return errors.New("still broken")
	})
	require.EqualError(t, err, "still broken")
	require.Equal(t, 3, calls)
}

func TestDo_ContextCancellationStopsRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	policy := retry.Policy{MaxAttempts: 5, BaseDelay: time.Minute}

	err := policy.Do(ctx, func(context.Context) error {
		calls++
		cancel()
		return errors.New("transient")
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, calls)
}

func TestIsRetryable(t *testing.T) {
	require.False(t, storage.IsRetryable(storage.WithStatus(400, errors.New("bad"))))
	require.False(t, storage.IsRetryable(storage.WithStatus(404, errors.New("missing"))))
	require.True(t, storage.IsRetryable(storage.WithStatus(429, errors.New("throttled"))))
	require.True(t, storage.IsRetryable(storage.WithStatus(500, errors.New("oops"))))
	require.True(t, storage.IsRetryable(errors.New("network down")))
}
