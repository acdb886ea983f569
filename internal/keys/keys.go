// Package keys derives partition keys from actor identities and activity
// identifiers. All functions are pure; an unresolvable actor degrades to the
// "unknown" placeholder instead of failing the write.
package keys

import (
	"strings"
	"unicode"
)

// Unknown is the placeholder partition key fragment for actors that carry
// no resolvable identifier.
const Unknown = "unknown"

// maxKeyLen bounds every derived key fragment.
const maxKeyLen = 50

// partLen bounds each half of a composite state key so the joined key stays
// under maxKeyLen.
const partLen = 24

// ActorIdentity is the minimal view of an actor the deriver needs.
// CanonicalID returns the full normalized identifier (lowercased mailbox, or
// homepage|account), empty when unresolvable. MboxLocalPart returns the part
// of the mailbox before '@', empty when the actor has no mailbox.
type ActorIdentity interface {
	CanonicalID() string
	MboxLocalPart() string
}

// CandidateSet is the ordered, deduplicated list of partition keys a query
// must consult for one actor. The current-scheme key always comes first;
// the legacy key, when distinct, follows.
type CandidateSet []string

// ForStatements returns every candidate statement partition key for an
// actor. Statements written before the key-scheme migration live under a
// key derived from the mailbox local-part only, so queries must consult
// both.
func ForStatements(a ActorIdentity) CandidateSet {
	current := Sanitize(a.CanonicalID())
	if current == "" {
		current = Unknown
	}
	set := CandidateSet{current}
	if legacy := LegacyForStatements(a); legacy != current {
		set = append(set, legacy)
	}
	return set
}

// LegacyForStatements returns the pre-migration statement partition key,
// derived from the mailbox local-part alone.
func LegacyForStatements(a ActorIdentity) string {
	local := Sanitize(a.MboxLocalPart())
	if local == "" {
		return Unknown
	}
	return local
}

// ForState returns the partition key for resumable state records of one
// (activity, actor) pair. Sanitize strips '#', so the joiner cannot occur
// in either part.
func ForState(activityID string, a ActorIdentity) string {
	activity := truncate(Sanitize(activityID), partLen)
	if activity == "" {
		activity = Unknown
	}
	local := truncate(Sanitize(a.MboxLocalPart()), partLen)
	if local == "" {
		local = truncate(Sanitize(a.CanonicalID()), partLen)
	}
	if local == "" {
		local = Unknown
	}
	return activity + "#" + local
}

// ForProgress returns the partition key holding all derived progress
// records for an actor.
func ForProgress(a ActorIdentity) string {
	id := truncate(Sanitize(a.CanonicalID()), maxKeyLen-len("progress#"))
	if id == "" {
		id = Unknown
	}
	return "progress#" + id
}

// Sanitize strips the characters the store disallows in keys (backslash,
// slash, hash, question mark and control characters) and truncates the
// result to 50 runes.
func Sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '\\', '/', '#', '?':
			continue
		}
		if unicode.IsControl(r) {
			continue
		}
		b.WriteRune(r)
	}
	return truncate(b.String(), maxKeyLen)
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
