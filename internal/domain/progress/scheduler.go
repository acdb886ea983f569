package progress

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ganot/coursetrace/internal/domain/statement"
	"github.com/ganot/coursetrace/internal/worker"
)

// CourseResolver maps a statement's object identifier to the (course, root
// activity) pair progress is tracked under. The production deployment backs
// this with the course catalog; the default approximates the root by
// prefix.
type CourseResolver func(objectID string) (courseID, rootActivityID string)

// RootActivityResolver treats the root activity identifier as the course
// identifier. For URL-shaped identifiers the root is scheme, authority and
// first path segment; for URN-shaped identifiers everything before the
// first slash.
func RootActivityResolver(objectID string) (string, string) {
	rest := objectID
	prefix := ""
	if i := strings.Index(objectID, "://"); i >= 0 {
		after := objectID[i+3:]
		slash := strings.Index(after, "/")
		if slash < 0 {
			return objectID, objectID
		}
		// Keep the first path segment with the authority.
		prefix = objectID[:i+3+slash+1]
		rest = after[slash+1:]
	}
	root := prefix + rest
	if j := strings.Index(rest, "/"); j >= 0 {
		root = prefix + rest[:j]
	}
	return root, root
}

// Scheduler hands re-derivation triggers from ingestion to the background
// queue, applying the minimum-interval throttle. Completion-classified
// triggers always bypass the throttle. It implements
// statement.ProgressScheduler.
type Scheduler struct {
	engine  *Engine
	queue   *worker.Queue
	resolve CourseResolver
}

// NewScheduler creates a scheduler. resolver may be nil, selecting
// RootActivityResolver.
func NewScheduler(engine *Engine, queue *worker.Queue, resolver CourseResolver) *Scheduler {
	if resolver == nil {
		resolver = RootActivityResolver
	}
	return &Scheduler{engine: engine, queue: queue, resolve: resolver}
}

// ScheduleDerive enqueues a derivation run for the actor and course the
// statement touched. Failures are isolated: they are logged by the task and
// never reach the ingestion caller.
func (s *Scheduler) ScheduleDerive(actor statement.Actor, activityID, registration string, completion bool) {
	courseID, rootActivity := s.resolve(activityID)

	if !completion {
		key := actor.CanonicalID() + "|" + courseID + "|" + registration
		if !s.engine.throttle.allow(key, time.Now(), s.engine.opts.MinDeriveInterval) {
			return
		}
	}

	s.queue.Enqueue(func(ctx context.Context) {
		if _, err := s.engine.Sync(ctx, actor, courseID, rootActivity, registration); err != nil {
			if errors.Is(err, ErrNoData) {
				return
			}
			s.engine.logger.Error("progress derivation failed",
				"actor", actor.CanonicalID(), "course", courseID, "error", err)
		}
	})
}
