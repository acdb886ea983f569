package keys_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ganot/coursetrace/internal/domain/statement"
	"github.com/ganot/coursetrace/internal/keys"
)

func TestForStatements_MailboxActor(t *testing.T) {
	actor := statement.Actor{Mbox: "mailto:Learner@Example.com"}

	set := keys.ForStatements(actor)
	require.Len(t, set, 2)
	require.Equal(t, "learner@example.com", set[0])
	require.Equal(t, "learner", set[1])
}

func TestForStatements_AccountActor(t *testing.T) {
	actor := statement.Actor{Account: &statement.Account{
		HomePage: "https://lms.example",
		Name:     "u123",
	}}

	set := keys.ForStatements(actor)
	// No mailbox means no legacy key; the account key has its slashes
	// stripped.
	require.Len(t, set, 1)
	require.NotContains(t, set[0], "/")
	require.Contains(t, set[0], "u123")
}

func TestForStatements_UnresolvableActor(t *testing.T) {
	set := keys.ForStatements(statement.Actor{Name: "anonymous"})
	require.Equal(t, keys.CandidateSet{keys.Unknown}, set)
}

func TestForStatements_Deduplicates(t *testing.T) {
	// A mailbox without a domain yields identical current and legacy keys.
	set := keys.ForStatements(statement.Actor{Mbox: "learner"})
	require.Len(t, set, 1)
}

func TestSanitize(t *testing.T) {
	require.Equal(t, "ab", keys.Sanitize("a\\/#?b"))
	require.Equal(t, "ab", keys.Sanitize("a\x00\x1fb"))

	long := strings.Repeat("x", 80)
	require.Len(t, keys.Sanitize(long), 50)
}

func TestForState_JoinerNotInParts(t *testing.T) {
	actor := statement.Actor{Mbox: "mailto:a#b@x.com"}
	key := keys.ForState("urn:course:1#frag", actor)

	// Exactly one '#', the joiner, survives sanitization.
	require.Equal(t, 1, strings.Count(key, "#"))
	require.LessOrEqual(t, len(key), 50)
}

func TestForState_UnknownFallback(t *testing.T) {
	key := keys.ForState("", statement.Actor{})
	require.Equal(t, "unknown#unknown", key)
}

func TestForProgress(t *testing.T) {
	actor := statement.Actor{Mbox: "mailto:a@x.com"}
	require.Equal(t, "progress#a@x.com", keys.ForProgress(actor))
	require.Equal(t, "progress#unknown", keys.ForProgress(statement.Actor{}))
}
