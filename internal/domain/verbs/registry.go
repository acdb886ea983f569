package verbs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/ganot/coursetrace/internal/retry"
	"github.com/ganot/coursetrace/internal/storage"
)

// customPartition is the table partition holding operator-added entries.
const customPartition = "verb#custom"

// ErrEmptyVerbID is returned for administrative calls with no identifier.
var ErrEmptyVerbID = errors.New("verb identifier must not be empty")

// Registry owns the verb-classification tables: an immutable built-in map
// fixed at construction and a mutable custom map persisted to the store.
// A custom entry always shadows a built-in with the same identifier.
type Registry struct {
	table  storage.Table
	retry  retry.Policy
	logger *slog.Logger

	builtin map[string]Entry

	mu     sync.RWMutex
	custom map[string]Entry

	usage *usageCache
}

// NewRegistry creates a registry with the built-in verb table. Call
// LoadCustom once at process start to populate persisted custom entries.
func NewRegistry(table storage.Table, cacheCap int, policy retry.Policy, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		table:   table,
		retry:   policy,
		logger:  logger,
		builtin: builtinTable(),
		custom:  make(map[string]Entry),
		usage:   newUsageCache(cacheCap),
	}
}

// LoadCustom reloads the custom table from the store, replacing the
// in-memory copy.
func (r *Registry) LoadCustom(ctx context.Context) error {
	loaded := make(map[string]Entry)
	token := ""
	for {
		var page storage.Page
		err := r.retry.Do(ctx, func(ctx context.Context) error {
			var qerr error
			page, qerr = r.table.Query(ctx, customPartition, storage.Query{StartToken: token})
			return qerr
		})
		if err != nil {
			return fmt.Errorf("loading custom verbs: %w", err)
		}
		for _, item := range page.Items {
			var entry Entry
			if err := json.Unmarshal(item.Document, &entry); err != nil {
				r.logger.Warn("skipping undecodable custom verb", "sort_key", item.SortKey, "error", err)
				continue
			}
			loaded[entry.ID] = entry
		}
		if page.NextToken == "" {
			break
		}
		token = page.NextToken
	}

	r.mu.Lock()
	r.custom = loaded
	r.mu.Unlock()
	return nil
}

// Classify maps a verb identifier to its classification: custom table
// first, then built-ins, then keyword heuristics, else unknown.
func (r *Registry) Classify(verbID string) Classification {
	r.mu.RLock()
	entry, custom := r.custom[verbID]
	r.mu.RUnlock()
	if custom {
		return classificationFrom(verbID, entry, true)
	}

	if entry, ok := r.builtin[verbID]; ok {
		return classificationFrom(verbID, entry, false)
	}

	if c, ok := heuristic(verbID); ok {
		return c
	}

	return Classification{
		Verb:      verbID,
		Category:  CategoryUnknown,
		Action:    ActionTrackVerb,
		IsUnknown: true,
	}
}

// Add persists a custom entry and makes it visible immediately.
func (r *Registry) Add(ctx context.Context, entry Entry) error {
	return r.putCustom(ctx, entry)
}

// Update replaces a custom entry. Same write path as Add; the distinction
// only matters to administrative callers.
func (r *Registry) Update(ctx context.Context, entry Entry) error {
	return r.putCustom(ctx, entry)
}

func (r *Registry) putCustom(ctx context.Context, entry Entry) error {
	if entry.ID == "" {
		return storage.WithStatus(400, ErrEmptyVerbID)
	}
	if entry.Category == "" {
		entry.Category = CategoryUnknown
	}
	if entry.Action == "" {
		entry.Action = ActionTrackVerb
	}

	doc, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encoding verb entry: %w", err)
	}
	item := storage.Item{
		PartitionKey: customPartition,
		SortKey:      entry.ID,
		Attributes:   map[string]string{"category": string(entry.Category), "action": entry.Action},
		Document:     doc,
	}
	err = r.retry.Do(ctx, func(ctx context.Context) error {
		return r.table.Put(ctx, item)
	})
	if err != nil {
		return fmt.Errorf("persisting verb entry: %w", err)
	}

	r.mu.Lock()
	r.custom[entry.ID] = entry
	r.mu.Unlock()
	return nil
}

// Remove deletes a custom entry. Removing an absent entry is not an error;
// a shadowed built-in becomes visible again.
func (r *Registry) Remove(ctx context.Context, verbID string) error {
	if verbID == "" {
		return storage.WithStatus(400, ErrEmptyVerbID)
	}
	err := r.retry.Do(ctx, func(ctx context.Context) error {
		return r.table.Delete(ctx, customPartition, verbID)
	})
	if err != nil {
		return fmt.Errorf("deleting verb entry: %w", err)
	}

	r.mu.Lock()
	delete(r.custom, verbID)
	r.mu.Unlock()
	return nil
}

// Entries returns the merged view of built-in and custom entries, custom
// shadowing built-in.
func (r *Registry) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	merged := make(map[string]Entry, len(r.builtin)+len(r.custom))
	for id, e := range r.builtin {
		merged[id] = e
	}
	for id, e := range r.custom {
		merged[id] = e
	}

	out := make([]Entry, 0, len(merged))
	for _, e := range merged {
		out = append(out, e)
	}
	return out
}

// TrackUsage records one observed use of a verb in the bounded statistics
// cache.
func (r *Registry) TrackUsage(verbID string) {
	r.usage.track(verbID)
}

// UsageSnapshot returns verb usage counts ordered by count descending.
func (r *Registry) UsageSnapshot() []Usage {
	return r.usage.snapshot()
}

func classificationFrom(verbID string, e Entry, custom bool) Classification {
	return Classification{
		Verb:        verbID,
		Category:    e.Category,
		Action:      e.Action,
		Description: e.Description,
		IsCustom:    custom,
	}
}

// heuristic applies ordered keyword matches against the lowercased
// identifier for verbs absent from both tables.
func heuristic(verbID string) (Classification, bool) {
	id := strings.ToLower(verbID)
	switch {
	case strings.Contains(id, "complet"):
		return Classification{Verb: verbID, Category: CategoryCompletion, Action: ActionMarkCompleted}, true
	case strings.Contains(id, "pass"):
		return Classification{Verb: verbID, Category: CategoryCompletion, Action: ActionMarkPassed}, true
	case strings.Contains(id, "fail"):
		return Classification{Verb: verbID, Category: CategoryCompletion, Action: ActionMarkFailed}, true
	case strings.Contains(id, "init"), strings.Contains(id, "launch"), strings.Contains(id, "start"):
		return Classification{Verb: verbID, Category: CategoryProgress, Action: ActionMarkStarted}, true
	case strings.Contains(id, "download"):
		return Classification{Verb: verbID, Category: CategoryInteraction, Action: ActionTrackDownload}, true
	}
	return Classification{}, false
}
