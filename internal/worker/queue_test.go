package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestQueue_RunsTasks(t *testing.T) {
	q := NewQueue(16, 4, nil)
	q.Start(context.Background())

	var ran atomic.Int64
	for i := 0; i < 10; i++ {
		require.True(t, q.Enqueue(func(ctx context.Context) {
			ran.Add(1)
		}))
	}
	q.Close()
	require.Equal(t, int64(10), ran.Load())
}

func TestQueue_DropsWhenFull(t *testing.T) {
	q := NewQueue(1, 1, nil)
	// Not started: nothing consumes, so the second enqueue finds it full.
	require.True(t, q.Enqueue(func(ctx context.Context) {}))
	require.False(t, q.Enqueue(func(ctx context.Context) {}))
}

func TestQueue_DrainsOnClose(t *testing.T) {
	q := NewQueue(16, 1, nil)

	var ran atomic.Int64
	block := make(chan struct{})
	require.True(t, q.Enqueue(func(ctx context.Context) {
		<-block
		ran.Add(1)
	}))
	for i := 0; i < 5; i++ {
		require.True(t, q.Enqueue(func(ctx context.Context) {
			ran.Add(1)
		}))
	}

	q.Start(context.Background())
	close(block)
	q.Close()
	require.Equal(t, int64(6), ran.Load())
}

func TestQueue_SurvivesPanic(t *testing.T) {
	q := NewQueue(4, 1, nil)
	q.Start(context.Background())

	var wg sync.WaitGroup
	wg.Add(1)
	require.True(t, q.Enqueue(func(ctx context.Context) {
		defer wg.Done()
		panic("boom")
	}))
	wg.Wait()

	var ran atomic.Bool
	require.True(t, q.Enqueue(func(ctx context.Context) {
		ran.Store(true)
	}))
	q.Close()
	require.True(t, ran.Load())
}

func TestQueue_EnqueueAfterClose(t *testing.T) {
	q := NewQueue(4, 1, nil)
	q.Start(context.Background())
	q.Close()

	require.False(t, q.Enqueue(func(ctx context.Context) {
		t.Error("task ran after close")
	}))
}

func TestQueue_CloseIdempotent(t *testing.T) {
	q := NewQueue(4, 1, nil)
	q.Start(context.Background())
	q.Close()
	q.Close()
}
