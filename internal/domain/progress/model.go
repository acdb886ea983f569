// Package progress derives per-(actor, course) completion, score, active
// time and percent-complete by replaying the actor's statement stream.
package progress

import "time"

// EnrollmentStatus tracks whether the actor has touched the course.
type EnrollmentStatus string

const (
	NotEnrolled EnrollmentStatus = "not_enrolled"
	Enrolled    EnrollmentStatus = "enrolled"
	InProgress  EnrollmentStatus = "in_progress"
)

// CompletionStatus is the derived completion state of the course.
type CompletionStatus string

const (
	CompletionNotStarted CompletionStatus = "not_started"
	CompletionInProgress CompletionStatus = "in_progress"
	CompletionCompleted  CompletionStatus = "completed"
	CompletionPassed     CompletionStatus = "passed"
	CompletionFailed     CompletionStatus = "failed"
)

// Progress is the derived, cached summary for one (actor, course) pair. It
// is re-derived wholesale from the statement snapshot; no field depends on
// derivation order.
type Progress struct {
	ActorID          string           `json:"actor_id"`
	CourseID         string           `json:"course_id"`
	Enrollment       EnrollmentStatus `json:"enrollment_status"`
	Completion       CompletionStatus `json:"completion_status"`
	Score            *float64         `json:"score,omitempty"`
	PercentComplete  int              `json:"percent_complete"`
	TimeSpentSeconds int64            `json:"time_spent_seconds"`
	Attempts         int              `json:"attempts"`
	Success          *bool            `json:"success,omitempty"`
	Registration     string           `json:"registration,omitempty"`

	CompletionStatementID string `json:"completion_statement_id,omitempty"`
	CompletionVerb        string `json:"completion_verb,omitempty"`

	EnrolledAt     *time.Time `json:"enrolled_at,omitempty"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	LastAccessedAt *time.Time `json:"last_accessed_at,omitempty"`
}

// completed reports whether the completion status is terminal.
func (p *Progress) completed() bool {
	switch p.Completion {
	case CompletionCompleted, CompletionPassed, CompletionFailed:
		return true
	}
	return false
}
