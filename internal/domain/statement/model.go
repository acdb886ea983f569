// Package statement defines the activity statement model and the statement
// store: an append-only event log partitioned by actor.
package statement

import (
	"strings"
	"time"
)

// Statement is one immutable "actor performed verb on object" event. Once
// stored its identifier never changes and its payload is the source of
// truth.
type Statement struct {
	ID        string    `json:"id,omitempty"`
	Actor     Actor     `json:"actor"`
	Verb      Verb      `json:"verb"`
	Object    Object    `json:"object"`
	Result    *Result   `json:"result,omitempty"`
	Context   *Context  `json:"context,omitempty"`
	Timestamp time.Time `json:"timestamp,omitempty"`
	Stored    time.Time `json:"stored,omitempty"`
}

// Actor identifies the learner. At least one of Mbox or Account must be
// resolvable; otherwise key derivation degrades to the unknown placeholder.
type Actor struct {
	Name    string   `json:"name,omitempty"`
	Mbox    string   `json:"mbox,omitempty"`
	Account *Account `json:"account,omitempty"`
}

// Account is a homepage/name identifier pair.
type Account struct {
	HomePage string `json:"homePage"`
	Name     string `json:"name"`
}

// CanonicalID returns the full normalized actor identifier: the lowercased
// mailbox without its mailto: prefix, or homepage|account. Empty when the
// actor carries no resolvable identifier.
func (a Actor) CanonicalID() string {
	if mbox := a.normalizedMbox(); mbox != "" {
		return mbox
	}
	if a.Account != nil && a.Account.Name != "" {
		return a.Account.HomePage + "|" + a.Account.Name
	}
	return ""
}

// MboxLocalPart returns the mailbox local-part (before '@'), or empty when
// the actor has no mailbox.
func (a Actor) MboxLocalPart() string {
	mbox := a.normalizedMbox()
	if mbox == "" {
		return ""
	}
	if at := strings.Index(mbox, "@"); at >= 0 {
		return mbox[:at]
	}
	return mbox
}

func (a Actor) normalizedMbox() string {
	mbox := strings.TrimSpace(a.Mbox)
	mbox = strings.TrimPrefix(mbox, "mailto:")
	return strings.ToLower(mbox)
}

// Verb is the URI-shaped action identifier with optional display names.
type Verb struct {
	ID      string            `json:"id"`
	Display map[string]string `json:"display,omitempty"`
}

// Object is the activity the statement is about. The ID may carry a
// sub-path suffix distinguishing a sub-activity of a course.
type Object struct {
	ID         string `json:"id"`
	ObjectType string `json:"objectType,omitempty"`
}

// Result holds the optional outcome of a statement.
type Result struct {
	Success    *bool  `json:"success,omitempty"`
	Completion *bool  `json:"completion,omitempty"`
	Score      *Score `json:"score,omitempty"`
	Response   string `json:"response,omitempty"`
}

// Score carries the numeric outcome. Scaled is in [-1, 1].
type Score struct {
	Scaled *float64 `json:"scaled,omitempty"`
	Raw    *float64 `json:"raw,omitempty"`
	Min    *float64 `json:"min,omitempty"`
	Max    *float64 `json:"max,omitempty"`
}

// Context scopes a statement to a launch session.
type Context struct {
	Registration string            `json:"registration,omitempty"`
	Extensions   map[string]string `json:"extensions,omitempty"`
}

// Registration returns the context registration, or empty.
func (s *Statement) Registration() string {
	if s.Context == nil {
		return ""
	}
	return s.Context.Registration
}

// MatchesActivity reports whether the statement's object is the activity
// itself or one of its sub-activities (activity + "/" + suffix).
func (s *Statement) MatchesActivity(activityID string) bool {
	return s.Object.ID == activityID || strings.HasPrefix(s.Object.ID, activityID+"/")
}
