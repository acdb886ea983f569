// Package worker runs fire-and-forget tasks on a bounded queue with a
// fixed pool, so ingestion-triggered work is observable and drains
// deterministically at shutdown.
package worker

import (
	"context"
	"log/slog"
	"sync"
)

// Task is one unit of background work.
type Task func(ctx context.Context)

// Queue is a bounded task queue. Enqueue never blocks; when the queue is
// full the task is dropped with a warning, on the grounds that derivation
// work is re-triggered by the next ingested event.
type Queue struct {
	tasks  chan Task
	logger *slog.Logger

	startOnce sync.Once
	closeOnce sync.Once
	wg        sync.WaitGroup
	workers   int
}

// NewQueue creates a queue with the given buffer size and worker count.
func NewQueue(size, workers int, logger *slog.Logger) *Queue {
	if size < 1 {
		size = 1
	}
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		tasks:   make(chan Task, size),
		logger:  logger,
		workers: workers,
	}
}

// Start launches the worker pool. ctx cancellation is passed through to
// running tasks; queued tasks still drain on Close.
func (q *Queue) Start(ctx context.Context) {
	q.startOnce.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go q.run(ctx)
		}
	})
}

func (q *Queue) run(ctx context.Context) {
	defer q.wg.Done()
	for task := range q.tasks {
		q.exec(ctx, task)
	}
}

func (q *Queue) exec(ctx context.Context, task Task) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("background task panic", "panic", r)
		}
	}()
	task(ctx)
}

// Enqueue submits a task. Returns false when the queue is full or closed.
func (q *Queue) Enqueue(task Task) (ok bool) {
	defer func() {
		// Enqueue after Close loses the race to the channel close.
		if recover() != nil {
			q.logger.Warn("task enqueued after shutdown, dropped")
			ok = false
		}
	}()
	select {
	case q.tasks <- task:
		return true
	default:
		q.logger.Warn("background queue full, task dropped")
		return false
	}
}

// Close stops accepting tasks and blocks until in-flight and queued work
// finishes.
func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		close(q.tasks)
	})
	q.wg.Wait()
}
