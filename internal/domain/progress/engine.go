package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/ganot/coursetrace/internal/domain/statement"
	"github.com/ganot/coursetrace/internal/domain/verbs"
	"github.com/ganot/coursetrace/internal/keys"
	"github.com/ganot/coursetrace/internal/retry"
	"github.com/ganot/coursetrace/internal/storage"
)

// ErrNoData indicates no statements matched the course activity. Callers
// must not overwrite existing progress with zeros on this result.
var ErrNoData = errors.New("no statement data for course")

// StatementSource provides the actor's statement stream.
type StatementSource interface {
	QueryByActor(ctx context.Context, actor statement.Actor, q statement.Query) (statement.Page, error)
}

// Options tune the derivation algorithm.
type Options struct {
	// MaxStatements caps how many statements one derivation run fetches.
	MaxStatements int
	// IdleGapCeiling is the largest inter-statement gap still counted as
	// active time.
	IdleGapCeiling time.Duration
	// ExpectedStatementsPerCourse drives the percent-complete heuristic.
	// An acknowledged approximation: there is no per-course calibration.
	ExpectedStatementsPerCourse int
	// MinDeriveInterval gates re-derivation per (actor, course,
	// registration). Completion-classified triggers bypass it.
	MinDeriveInterval time.Duration
}

// DefaultOptions returns the standard derivation tuning.
func DefaultOptions() Options {
	return Options{
		MaxStatements:               5000,
		IdleGapCeiling:              300 * time.Second,
		ExpectedStatementsPerCourse: 80,
		MinDeriveInterval:           60 * time.Second,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxStatements <= 0 {
		o.MaxStatements = d.MaxStatements
	}
	if o.IdleGapCeiling <= 0 {
		o.IdleGapCeiling = d.IdleGapCeiling
	}
	if o.ExpectedStatementsPerCourse <= 0 {
		o.ExpectedStatementsPerCourse = d.ExpectedStatementsPerCourse
	}
	if o.MinDeriveInterval <= 0 {
		o.MinDeriveInterval = d.MinDeriveInterval
	}
	return o
}

// Engine replays statement streams into progress records.
type Engine struct {
	table      storage.Table
	statements StatementSource
	verbs      *verbs.Registry
	opts       Options
	retry      retry.Policy
	logger     *slog.Logger
	throttle   *throttle
}

// NewEngine creates a derivation engine.
func NewEngine(table storage.Table, source StatementSource, registry *verbs.Registry, opts Options, policy retry.Policy, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		table:      table,
		statements: source,
		verbs:      registry,
		opts:       opts.withDefaults(),
		retry:      policy,
		logger:     logger,
		throttle:   newThrottle(),
	}
}

// fetchPageSize is the per-page fetch size for derivation runs.
const fetchPageSize = 500

// Sync replays the actor's statements for one course and upserts the
// derived progress record. Returns ErrNoData when nothing matched.
// Deriving twice from the same statement snapshot yields the same record,
// so concurrent triggers for one actor/course are safe.
func (e *Engine) Sync(ctx context.Context, actor statement.Actor, courseID, activityID, registration string) (*Progress, error) {
	matched, err := e.fetch(ctx, actor, activityID)
	if err != nil {
		return nil, err
	}
	if len(matched) == 0 {
		return nil, ErrNoData
	}

	derived := e.replay(matched)
	derived.Registration = registration
	return e.upsert(ctx, actor, courseID, derived)
}

// fetch loads up to MaxStatements of the actor's history and keeps those
// under the course's root activity (equal, or prefix + "/").
func (e *Engine) fetch(ctx context.Context, actor statement.Actor, activityID string) ([]statement.Statement, error) {
	var matched []statement.Statement
	fetched := 0
	cursor := ""

	for fetched < e.opts.MaxStatements {
		limit := fetchPageSize
		if rem := e.opts.MaxStatements - fetched; rem < limit {
			limit = rem
		}
		page, err := e.statements.QueryByActor(ctx, actor, statement.Query{
			Limit:  limit,
			Cursor: cursor,
		})
		if err != nil {
			return nil, fmt.Errorf("fetching statements: %w", err)
		}

		fetched += len(page.Statements)
		for _, stmt := range page.Statements {
			if stmt.MatchesActivity(activityID) {
				matched = append(matched, stmt)
			}
		}

		if page.NextCursor == "" || len(page.Statements) == 0 {
			break
		}
		cursor = page.NextCursor
	}
	return matched, nil
}

// derivation is the pure result of replaying one statement snapshot.
type derivation struct {
	Completion            CompletionStatus
	Score                 *float64
	Success               *bool
	PercentComplete       int
	TimeSpentSeconds      int64
	StartedAt             time.Time
	CompletedAt           *time.Time
	LastActivityAt        time.Time
	CompletionStatementID string
	CompletionVerb        string
	Registration          string
}

// replay computes derived facts from a non-empty statement snapshot.
func (e *Engine) replay(matched []statement.Statement) derivation {
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Timestamp.Before(matched[j].Timestamp)
	})

	d := derivation{
		Completion:     CompletionInProgress,
		StartedAt:      matched[0].Timestamp,
		LastActivityAt: matched[len(matched)-1].Timestamp,
	}

	// Earliest start-classified statement seeds StartedAt; the earliest
	// statement overall is the fallback.
	for _, stmt := range matched {
		if e.verbs.Classify(stmt.Verb.ID).IsStart() {
			d.StartedAt = stmt.Timestamp
			break
		}
	}

	// The most recent completion-classified statement wins.
	for i := len(matched) - 1; i >= 0; i-- {
		stmt := matched[i]
		c := e.verbs.Classify(stmt.Verb.ID)
		if !c.IsCompletion() {
			continue
		}

		d.CompletionStatementID = stmt.ID
		d.CompletionVerb = stmt.Verb.ID
		completedAt := stmt.Timestamp
		d.CompletedAt = &completedAt

		switch c.Action {
		case verbs.ActionMarkPassed:
			d.Completion = CompletionPassed
		case verbs.ActionMarkFailed:
			d.Completion = CompletionFailed
			failed := false
			d.Success = &failed
		default:
			d.Completion = CompletionCompleted
		}

		d.Score = extractScore(stmt.Result)
		break
	}

	d.TimeSpentSeconds = e.activeTime(matched)
	d.PercentComplete = e.percentComplete(len(matched), d.Completion)
	return d
}

// activeTime sums consecutive timestamp gaps strictly greater than zero and
// no larger than the idle ceiling. Gaps beyond the ceiling are idle or
// disconnected time and contribute nothing. A single statement counts as
// one second so "touched but not measurable" stays distinguishable from
// "untouched".
func (e *Engine) activeTime(sorted []statement.Statement) int64 {
	if len(sorted) == 1 {
		return 1
	}
	var total time.Duration
	for i := 0; i+1 < len(sorted); i++ {
		gap := sorted[i+1].Timestamp.Sub(sorted[i].Timestamp)
		if gap > 0 && gap <= e.opts.IdleGapCeiling {
			total += gap
		}
	}
	return int64(total / time.Second)
}

// percentComplete is 100 on an explicit completion, otherwise a statement-
// volume heuristic capped at 95 so volume alone never reads as done.
func (e *Engine) percentComplete(matchedCount int, completion CompletionStatus) int {
	if completion == CompletionCompleted || completion == CompletionPassed {
		return 100
	}
	pct := int(math.Round(float64(matchedCount) / float64(e.opts.ExpectedStatementsPerCourse) * 100))
	if pct > 95 {
		pct = 95
	}
	return pct
}

// extractScore normalizes a result score to 0-100: scaled takes precedence,
// then raw/max when max is positive, then raw as-is.
func extractScore(res *statement.Result) *float64 {
	if res == nil || res.Score == nil {
		return nil
	}
	score := res.Score
	if score.Scaled != nil {
		v := math.Round(*score.Scaled * 100)
		return &v
	}
	if score.Raw != nil {
		if score.Max != nil && *score.Max > 0 {
			v := math.Round(*score.Raw / *score.Max * 100)
			return &v
		}
		v := *score.Raw
		return &v
	}
	return nil
}

// upsert merges the derivation into the stored progress record. Attempts
// and EnrolledAt never regress, and a terminal completion never falls back
// to an in-progress one.
func (e *Engine) upsert(ctx context.Context, actor statement.Actor, courseID string, d derivation) (*Progress, error) {
	current, err := e.load(ctx, actor, courseID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}
	if current == nil {
		current = &Progress{
			ActorID:  actor.CanonicalID(),
			CourseID: courseID,
		}
	}

	out := *current
	out.Enrollment = InProgress
	if d.Registration != "" {
		out.Registration = d.Registration
	}

	if out.Completion == "" || !out.completed() || d.Completion != CompletionInProgress {
		out.Completion = d.Completion
		out.Score = d.Score
		out.Success = d.Success
		out.CompletionStatementID = d.CompletionStatementID
		out.CompletionVerb = d.CompletionVerb
		out.CompletedAt = d.CompletedAt
	}

	out.PercentComplete = d.PercentComplete
	if out.completed() && out.PercentComplete < current.PercentComplete {
		out.PercentComplete = current.PercentComplete
	}
	out.TimeSpentSeconds = d.TimeSpentSeconds

	started := d.StartedAt
	if out.StartedAt == nil || started.Before(*out.StartedAt) {
		out.StartedAt = &started
	}
	if out.EnrolledAt == nil {
		out.EnrolledAt = &started
	}
	last := d.LastActivityAt
	if out.LastAccessedAt == nil || last.After(*out.LastAccessedAt) {
		out.LastAccessedAt = &last
	}

	if err := e.save(ctx, actor, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RecordLaunch registers an explicit course launch: the only operation that
// increments Attempts. Passive syncs never do.
func (e *Engine) RecordLaunch(ctx context.Context, actor statement.Actor, courseID, registration string) (*Progress, error) {
	current, err := e.load(ctx, actor, courseID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}
	if current == nil {
		current = &Progress{
			ActorID:    actor.CanonicalID(),
			CourseID:   courseID,
			Enrollment: NotEnrolled,
			Completion: CompletionNotStarted,
		}
	}

	now := time.Now().UTC()
	current.Attempts++
	if current.Enrollment == "" || current.Enrollment == NotEnrolled {
		current.Enrollment = Enrolled
	}
	if current.EnrolledAt == nil {
		current.EnrolledAt = &now
	}
	if current.Completion == "" {
		current.Completion = CompletionNotStarted
	}
	current.LastAccessedAt = &now
	current.Registration = registration

	if err := e.save(ctx, actor, current); err != nil {
		return nil, err
	}
	return current, nil
}

// GetProgress returns every derived progress record for an actor.
func (e *Engine) GetProgress(ctx context.Context, actor statement.Actor) ([]Progress, error) {
	partition := keys.ForProgress(actor)
	var out []Progress
	token := ""
	for {
		var page storage.Page
		err := e.retry.Do(ctx, func(ctx context.Context) error {
			var qerr error
			page, qerr = e.table.Query(ctx, partition, storage.Query{StartToken: token})
			return qerr
		})
		if err != nil {
			return nil, fmt.Errorf("loading progress records: %w", err)
		}
		for _, item := range page.Items {
			var p Progress
			if err := json.Unmarshal(item.Document, &p); err != nil {
				e.logger.Warn("skipping undecodable progress record", "sort_key", item.SortKey, "error", err)
				continue
			}
			out = append(out, p)
		}
		if page.NextToken == "" {
			return out, nil
		}
		token = page.NextToken
	}
}

func (e *Engine) load(ctx context.Context, actor statement.Actor, courseID string) (*Progress, error) {
	var item storage.Item
	err := e.retry.Do(ctx, func(ctx context.Context) error {
		var gerr error
		item, gerr = e.table.Get(ctx, keys.ForProgress(actor), keys.Sanitize(courseID))
		return gerr
	})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("loading progress: %w", err)
	}

	var p Progress
	if err := json.Unmarshal(item.Document, &p); err != nil {
		return nil, fmt.Errorf("decoding progress: %w", err)
	}
	return &p, nil
}

func (e *Engine) save(ctx context.Context, actor statement.Actor, p *Progress) error {
	doc, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encoding progress: %w", err)
	}
	item := storage.Item{
		PartitionKey: keys.ForProgress(actor),
		SortKey:      keys.Sanitize(p.CourseID),
		Attributes: map[string]string{
			"actor_id":  p.ActorID,
			"course_id": p.CourseID,
		},
		Document: doc,
	}
	err = e.retry.Do(ctx, func(ctx context.Context) error {
		return e.table.Put(ctx, item)
	})
	if err != nil {
		return fmt.Errorf("saving progress: %w", err)
	}
	return nil
}
