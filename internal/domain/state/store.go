// Package state stores small opaque per-(activity, actor) payloads that let
// a learner resume a course where they left off.
package state

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ganot/coursetrace/internal/domain/statement"
	"github.com/ganot/coursetrace/internal/keys"
	"github.com/ganot/coursetrace/internal/retry"
	"github.com/ganot/coursetrace/internal/storage"
)

// ErrNotFound indicates no state record exists for the lookup. It is the
// expected steady state on a first launch, not a failure.
var ErrNotFound = errors.New("state not found")

// reservedNames are the state names with dual durable/session records.
// Registration identifiers are regenerated on every launch, so a strictly
// registration-scoped lookup would never find state saved in a prior
// session; the durable record is what makes cross-session resume work.
var reservedNames = map[string]bool{
	"resume":   true,
	"bookmark": true,
}

// Store reads and writes resumable state records.
type Store struct {
	table  storage.Table
	retry  retry.Policy
	logger *slog.Logger
}

// NewStore creates a state store.
func NewStore(table storage.Table, policy retry.Policy, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{table: table, retry: policy, logger: logger}
}

// Save writes a state payload, replacing any previous record wholesale. For
// reserved names the durable (no-registration) record is always written
// first; a session-qualified record is written additionally when a
// registration is supplied. The payload is opaque: never parsed, re-encoded
// or validated.
func (s *Store) Save(ctx context.Context, activityID string, actor statement.Actor, name string, payload []byte, registration string) error {
	if name == "" {
		return storage.WithStatus(400, errors.New("state name must not be empty"))
	}
	partition := keys.ForState(activityID, actor)

	if reservedNames[name] {
		if err := s.put(ctx, partition, activityID, actor, name, "", payload); err != nil {
			return err
		}
		if registration != "" {
			return s.put(ctx, partition, activityID, actor, name, registration, payload)
		}
		return nil
	}

	return s.put(ctx, partition, activityID, actor, name, registration, payload)
}

// Get retrieves a state payload. For reserved names the durable record is
// attempted first; the session-qualified record only if the durable one is
// absent and a registration was supplied.
func (s *Store) Get(ctx context.Context, activityID string, actor statement.Actor, name, registration string) ([]byte, error) {
	partition := keys.ForState(activityID, actor)

	if reservedNames[name] {
		payload, err := s.get(ctx, partition, name, "")
		if err == nil {
			return payload, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		if registration == "" {
			return nil, ErrNotFound
		}
		return s.get(ctx, partition, name, registration)
	}

	return s.get(ctx, partition, name, registration)
}

// Delete removes the exact qualified record. Deleting a missing record is
// not an error.
func (s *Store) Delete(ctx context.Context, activityID string, actor statement.Actor, name, registration string) error {
	partition := keys.ForState(activityID, actor)
	err := s.retry.Do(ctx, func(ctx context.Context) error {
		return s.table.Delete(ctx, partition, sortKey(name, registration))
	})
	if err != nil {
		return fmt.Errorf("deleting state: %w", err)
	}
	return nil
}

func (s *Store) put(ctx context.Context, partition, activityID string, actor statement.Actor, name, registration string, payload []byte) error {
	item := storage.Item{
		PartitionKey: partition,
		SortKey:      sortKey(name, registration),
		Attributes: map[string]string{
			"activity_id":  activityID,
			"actor_id":     actor.CanonicalID(),
			"state_name":   name,
			"registration": registration,
		},
		Document: payload,
	}
	err := s.retry.Do(ctx, func(ctx context.Context) error {
		return s.table.Put(ctx, item)
	})
	if err != nil {
		return fmt.Errorf("saving state %q: %w", name, err)
	}
	return nil
}

func (s *Store) get(ctx context.Context, partition, name, registration string) ([]byte, error) {
	var item storage.Item
	err := s.retry.Do(ctx, func(ctx context.Context) error {
		var gerr error
		item, gerr = s.table.Get(ctx, partition, sortKey(name, registration))
		return gerr
	})
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading state %q: %w", name, err)
	}
	return item.Document, nil
}

// sortKey qualifies a state name with an optional registration.
func sortKey(name, registration string) string {
	if registration == "" {
		return name
	}
	return name + "#" + registration
}
