package verbs_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ganot/coursetrace/internal/domain/verbs"
	"github.com/ganot/coursetrace/internal/retry"
	"github.com/ganot/coursetrace/internal/storage"
	"github.com/ganot/coursetrace/internal/storage/mocks"
	sqlitetable "github.com/ganot/coursetrace/internal/storage/sqlite"
)

const adl = "http://adlnet.gov/expapi/verbs/"

func newTestTable(t *testing.T) *sqlitetable.Table {
	t.Helper()
	table, err := sqlitetable.Open(":memory:")
	require.NoError(t, err)
	require.NoError(t, table.Migrate())
	t.Cleanup(func() { table.Close() })
	return table
}

func TestClassify_Builtin(t *testing.T) {
	r := verbs.NewRegistry(newTestTable(t), 0, retry.Policy{MaxAttempts: 1}, nil)

	c := r.Classify(adl + "completed")
	require.Equal(t, verbs.CategoryCompletion, c.Category)
	require.Equal(t, verbs.ActionMarkCompleted, c.Action)
	require.False(t, c.IsUnknown)
	require.True(t, c.IsCompletion())
	require.False(t, c.IsStart())

	c = r.Classify(adl + "initialized")
	require.Equal(t, verbs.CategoryProgress, c.Category)
	require.True(t, c.IsStart())
}

func TestClassify_Heuristics(t *testing.T) {
	r := verbs.NewRegistry(newTestTable(t), 0, retry.Policy{MaxAttempts: 1}, nil)

	cases := []struct {
		verb     string
		category verbs.Category
		action   string
	}{
		{"https://example.com/verbs/CompletedQuiz", verbs.CategoryCompletion, verbs.ActionMarkCompleted},
		{"https://example.com/verbs/passed-final", verbs.CategoryCompletion, verbs.ActionMarkPassed},
		{"https://example.com/verbs/failed-final", verbs.CategoryCompletion, verbs.ActionMarkFailed},
		{"https://example.com/verbs/module-started", verbs.CategoryProgress, verbs.ActionMarkStarted},
		{"https://example.com/verbs/initialize", verbs.CategoryProgress, verbs.ActionMarkStarted},
		{"https://example.com/verbs/downloaded-cert", verbs.CategoryInteraction, verbs.ActionTrackDownload},
	}
	for _, tc := range cases {
		c := r.Classify(tc.verb)
		require.Equal(t, tc.category, c.Category, tc.verb)
		require.Equal(t, tc.action, c.Action, tc.verb)
		require.False(t, c.IsUnknown, tc.verb)
	}
}

func TestClassify_Unknown(t *testing.T) {
	r := verbs.NewRegistry(newTestTable(t), 0, retry.Policy{MaxAttempts: 1}, nil)

	c := r.Classify("https://example.com/verbs/pondered")
	require.True(t, c.IsUnknown)
	require.Equal(t, verbs.CategoryUnknown, c.Category)
	require.Equal(t, verbs.ActionTrackVerb, c.Action)
}

func TestCustomEntryShadowsBuiltin(t *testing.T) {
	ctx := context.Background()
	r := verbs.NewRegistry(newTestTable(t), 0, retry.Policy{MaxAttempts: 1}, nil)

	err := r.Add(ctx, verbs.Entry{
		ID:       adl + "experienced",
		Category: verbs.CategoryCompletion,
		Action:   verbs.ActionMarkCompleted,
	})
	require.NoError(t, err)

	c := r.Classify(adl + "experienced")
	require.True(t, c.IsCustom)
	require.Equal(t, verbs.CategoryCompletion, c.Category)

	require.NoError(t, r.Remove(ctx, adl+"experienced"))
	c = r.Classify(adl + "experienced")
	require.False(t, c.IsCustom)
	require.Equal(t, verbs.CategoryProgress, c.Category)
}

func TestCustomEntriesSurviveReload(t *testing.T) {
	ctx := context.Background()
	table := newTestTable(t)

	first := verbs.NewRegistry(table, 0, retry.Policy{MaxAttempts: 1}, nil)
	require.NoError(t, first.Add(ctx, verbs.Entry{
		ID:       "https://example.com/verbs/certified",
		Category: verbs.CategoryCompletion,
		Action:   verbs.ActionMarkPassed,
	}))

	// A fresh registry over the same table simulates a process restart.
	second := verbs.NewRegistry(table, 0, retry.Policy{MaxAttempts: 1}, nil)
	require.True(t, second.Classify("https://example.com/verbs/certified").IsUnknown)

	require.NoError(t, second.LoadCustom(ctx))
	c := second.Classify("https://example.com/verbs/certified")
	require.False(t, c.IsUnknown)
	require.Equal(t, verbs.ActionMarkPassed, c.Action)
}

func TestAdd_EmptyID(t *testing.T) {
	r := verbs.NewRegistry(newTestTable(t), 0, retry.Policy{MaxAttempts: 1}, nil)
	require.ErrorIs(t, r.Add(context.Background(), verbs.Entry{}), verbs.ErrEmptyVerbID)
}

func TestRemove_AbsentIsNotAnError(t *testing.T) {
	r := verbs.NewRegistry(newTestTable(t), 0, retry.Policy{MaxAttempts: 1}, nil)
	require.NoError(t, r.Remove(context.Background(), "https://example.com/verbs/never-added"))
}

func TestAdd_RetriesTransientStorageErrors(t *testing.T) {
	table := &mocks.Table{}
	table.On("Put", mock.Anything, mock.Anything).
		Return(storage.WithStatus(500, errors.New("table unavailable"))).Once()
	table.On("Put", mock.Anything, mock.Anything).Return(nil)

	r := verbs.NewRegistry(table, 0, retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond}, nil)
	err := r.Add(context.Background(), verbs.Entry{
		ID:       "https://example.com/verbs/certified",
		Category: verbs.CategoryCompletion,
		Action:   verbs.ActionMarkPassed,
	})
	require.NoError(t, err)
	table.AssertNumberOfCalls(t, "Put", 2)
}

func TestRemove_DoesNotRetryPermanentErrors(t *testing.T) {
	table := &mocks.Table{}
	table.On("Delete", mock.Anything, mock.Anything, mock.Anything).
		Return(storage.WithStatus(403, errors.New("forbidden")))

	r := verbs.NewRegistry(table, 0, retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond}, nil)
	err := r.Remove(context.Background(), "https://example.com/verbs/certified")
	require.Error(t, err)
	table.AssertNumberOfCalls(t, "Delete", 1)
}

func TestUsageTracking(t *testing.T) {
	r := verbs.NewRegistry(newTestTable(t), 0, retry.Policy{MaxAttempts: 1}, nil)

	r.TrackUsage("v1")
	r.TrackUsage("v1")
	r.TrackUsage("v2")

	snap := r.UsageSnapshot()
	require.Len(t, snap, 2)
	require.Equal(t, "v1", snap[0].Verb)
	require.Equal(t, int64(2), snap[0].Count)
}

func TestUsageEviction(t *testing.T) {
	r := verbs.NewRegistry(newTestTable(t), 10, retry.Policy{MaxAttempts: 1}, nil)

	for i := 0; i < 11; i++ {
		r.TrackUsage(string(rune('a' + i)))
	}

	// Crossing the cap evicts the least-recently-used 10%.
	snap := r.UsageSnapshot()
	require.Len(t, snap, 10)
	for _, u := range snap {
		require.NotEqual(t, "a", u.Verb)
	}
}
