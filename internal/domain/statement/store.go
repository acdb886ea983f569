package statement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ganot/coursetrace/internal/domain/verbs"
	"github.com/ganot/coursetrace/internal/filter"
	"github.com/ganot/coursetrace/internal/keys"
	"github.com/ganot/coursetrace/internal/retry"
	"github.com/ganot/coursetrace/internal/storage"
)

// ProgressScheduler receives re-derivation triggers from ingestion. The
// trigger must not block the append path; implementations hand the work to
// a background queue.
type ProgressScheduler interface {
	ScheduleDerive(actor Actor, activityID, registration string, completion bool)
}

// Query filters a by-actor statement query. All filters are optional;
// Cursor resumes a previous page and is only valid with unchanged filters.
type Query struct {
	ActivityID   string
	VerbID       string
	Registration string
	Limit        int
	Offset       int
	Cursor       string
}

// Page is one page of statements. NextCursor is empty once the query is
// exhausted.
type Page struct {
	Statements []Statement
	NextCursor string
}

// Store appends and queries statements against the storage collaborator.
type Store struct {
	table     storage.Table
	verbs     *verbs.Registry
	scheduler ProgressScheduler
	retry     retry.Policy
	logger    *slog.Logger
}

const (
	defaultPageLimit = 100
	// maxIDScanItems bounds the linear scan GetByID degrades to.
	maxIDScanItems = 5000
)

// NewStore creates a statement store. scheduler may be nil when ingestion
// should not trigger derivation (admin tooling, tests).
func NewStore(table storage.Table, registry *verbs.Registry, scheduler ProgressScheduler, policy retry.Policy, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		table:     table,
		verbs:     registry,
		scheduler: scheduler,
		retry:     policy,
		logger:    logger,
	}
}

// Append stores one statement, assigning an identifier and timestamps when
// absent, and returns the identifier. Appending the same identifier twice
// overwrites rather than duplicates. Classified completion/progress events
// schedule a progress re-derivation without blocking the caller.
func (s *Store) Append(ctx context.Context, stmt Statement) (string, error) {
	if stmt.Verb.ID == "" {
		return "", storage.WithStatus(400, ErrMissingVerb)
	}
	if stmt.Object.ID == "" {
		return "", storage.WithStatus(400, ErrMissingObject)
	}

	if stmt.ID == "" {
		stmt.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if stmt.Timestamp.IsZero() {
		stmt.Timestamp = now
	}
	if stmt.Stored.IsZero() {
		stmt.Stored = now
	}

	doc, err := json.Marshal(stmt)
	if err != nil {
		return "", fmt.Errorf("encoding statement: %w", err)
	}

	partition := keys.ForStatements(stmt.Actor)[0]
	item := storage.Item{
		PartitionKey: partition,
		SortKey:      trailingSegment(stmt.ID),
		Attributes: map[string]string{
			"statement_id": stmt.ID,
			"actor_id":     stmt.Actor.CanonicalID(),
			"verb_id":      stmt.Verb.ID,
			"activity_id":  stmt.Object.ID,
			"registration": stmt.Registration(),
		},
		Document: doc,
	}

	err = s.retry.Do(ctx, func(ctx context.Context) error {
		return s.table.Put(ctx, item)
	})
	if err != nil {
		return "", fmt.Errorf("storing statement: %w", err)
	}

	c := s.verbs.Classify(stmt.Verb.ID)
	s.verbs.TrackUsage(stmt.Verb.ID)
	if s.scheduler != nil && (c.Category == verbs.CategoryCompletion || c.Category == verbs.CategoryProgress) {
		s.scheduler.ScheduleDerive(stmt.Actor, stmt.Object.ID, stmt.Registration(), c.IsCompletion())
	}

	return stmt.ID, nil
}

// QueryByActor scans every candidate partition key for the actor in order,
// applying the filters, and returns up to Limit statements plus an opaque
// cursor when more remain. A failing candidate partition degrades to
// partial results as long as at least one partition was scannable.
func (s *Store) QueryByActor(ctx context.Context, actor Actor, q Query) (Page, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultPageLimit
	}

	pred, err := filter.Build([]filter.Condition{
		{Field: "activity_id", Op: filter.OpEqual, Value: q.ActivityID},
		{Field: "verb_id", Op: filter.OpEqual, Value: q.VerbID},
		{Field: "registration", Op: filter.OpEqual, Value: q.Registration},
	}, filter.And)
	if err != nil {
		return Page{}, storage.WithStatus(400, err)
	}

	candidates := keys.ForStatements(actor)
	start := cursor{}
	if q.Cursor != "" {
		start, err = decodeCursor(q.Cursor)
		if err != nil {
			return Page{}, err
		}
		if start.Source >= len(candidates) {
			return Page{}, storage.WithStatus(400, storage.ErrBadToken)
		}
	}

	var page Page
	// The cursor already points past the offset applied on the first page;
	// re-applying it on resumed pages would drop rows.
	skip := 0
	if q.Cursor == "" {
		skip = q.Offset
	}
	scanned := 0
	var lastErr error

	for src := start.Source; src < len(candidates); src++ {
		token := ""
		if src == start.Source {
			token = start.Token
		}

		for {
			need := skip + (limit - len(page.Statements))
			var tp storage.Page
			err := s.retry.Do(ctx, func(ctx context.Context) error {
				var qerr error
				tp, qerr = s.table.Query(ctx, candidates[src], storage.Query{
					Filter:     pred,
					Limit:      need,
					StartToken: token,
				})
				return qerr
			})
			if err != nil {
				// A dead candidate partition degrades to partial results.
				s.logger.Warn("statement partition scan failed",
					"partition", candidates[src], "error", err)
				lastErr = err
				break
			}
			scanned++

			for _, item := range tp.Items {
				if skip > 0 {
					skip--
					continue
				}
				var stmt Statement
				if err := json.Unmarshal(item.Document, &stmt); err != nil {
					s.logger.Warn("skipping undecodable statement", "sort_key", item.SortKey, "error", err)
					continue
				}
				page.Statements = append(page.Statements, stmt)
			}

			if len(page.Statements) >= limit {
				switch {
				case tp.NextToken != "":
					page.NextCursor = encodeCursor(cursor{Source: src, Token: tp.NextToken})
				case src+1 < len(candidates):
					page.NextCursor = encodeCursor(cursor{Source: src + 1})
				}
				return page, nil
			}

			if tp.NextToken == "" {
				break
			}
			token = tp.NextToken
		}
	}

	if scanned == 0 && lastErr != nil {
		return Page{}, fmt.Errorf("querying statements: %w", lastErr)
	}
	return page, nil
}

// GetByID looks a statement up by identifier. Statements are spread across
// many partitions, so this degrades to a bounded linear scan filtered on
// the identifier's trailing segment.
func (s *Store) GetByID(ctx context.Context, id string) (*Statement, error) {
	pred, err := filter.Build([]filter.Condition{
		{Field: "sort_key", Op: filter.OpEqual, Value: trailingSegment(id)},
	}, filter.And)
	if err != nil {
		return nil, storage.WithStatus(400, err)
	}

	token := ""
	examined := 0
	for examined < maxIDScanItems {
		var tp storage.Page
		err := s.retry.Do(ctx, func(ctx context.Context) error {
			var serr error
			tp, serr = s.table.Scan(ctx, storage.Query{
				Filter:     pred,
				Limit:      defaultPageLimit,
				StartToken: token,
			})
			return serr
		})
		if err != nil {
			return nil, fmt.Errorf("scanning for statement: %w", err)
		}

		for _, item := range tp.Items {
			examined++
			var stmt Statement
			if err := json.Unmarshal(item.Document, &stmt); err != nil {
				continue
			}
			if stmt.ID == id {
				return &stmt, nil
			}
		}
		if tp.NextToken == "" {
			break
		}
		token = tp.NextToken
	}
	return nil, ErrNotFound
}

// QueryByActivityPrefix scans all statements whose object identifier equals
// activityID or starts with activityID + "/". Administrative use only: the
// scan touches every partition.
func (s *Store) QueryByActivityPrefix(ctx context.Context, activityID string, limit int, registration string) ([]Statement, error) {
	if limit <= 0 {
		limit = defaultPageLimit
	}

	pred, err := filter.Build([]filter.Condition{
		{Field: "registration", Op: filter.OpEqual, Value: registration},
	}, filter.And)
	if err != nil {
		return nil, storage.WithStatus(400, err)
	}

	var out []Statement
	token := ""
	for {
		var tp storage.Page
		err := s.retry.Do(ctx, func(ctx context.Context) error {
			var serr error
			tp, serr = s.table.Scan(ctx, storage.Query{
				Filter:     pred,
				Limit:      defaultPageLimit,
				StartToken: token,
			})
			return serr
		})
		if err != nil {
			return nil, fmt.Errorf("scanning statements: %w", err)
		}

		for _, item := range tp.Items {
			var stmt Statement
			if err := json.Unmarshal(item.Document, &stmt); err != nil {
				continue
			}
			if !stmt.MatchesActivity(activityID) {
				continue
			}
			out = append(out, stmt)
			if len(out) >= limit {
				return out, nil
			}
		}
		if tp.NextToken == "" {
			return out, nil
		}
		token = tp.NextToken
	}
}

// trailingSegment returns the part of the identifier after the last '-',
// used as the sort key.
func trailingSegment(id string) string {
	if i := strings.LastIndex(id, "-"); i >= 0 && i+1 < len(id) {
		return id[i+1:]
	}
	return id
}

// IsNotFound reports whether err means "statement absent".
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, storage.ErrNotFound)
}
