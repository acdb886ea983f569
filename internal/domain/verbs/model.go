// Package verbs classifies verb identifiers into the semantic categories
// and actions that drive progress derivation.
package verbs

// Category is the semantic class of a verb.
type Category string

const (
	CategoryCompletion  Category = "completion"
	CategoryProgress    Category = "progress"
	CategoryInteraction Category = "interaction"
	CategoryUnknown     Category = "unknown"
)

// Actions a classification can carry.
const (
	ActionMarkCompleted    = "mark_completed"
	ActionMarkPassed       = "mark_passed"
	ActionMarkFailed       = "mark_failed"
	ActionMarkStarted      = "mark_started"
	ActionTrackProgress    = "track_progress"
	ActionTrackInteraction = "track_interaction"
	ActionTrackDownload    = "track_download"
	ActionTrackVerb        = "track_verb"
)

// Entry is a verb-table row: one verb identifier mapped to its category,
// action and human description.
type Entry struct {
	ID          string   `json:"id"`
	Category    Category `json:"category"`
	Action      string   `json:"action"`
	Description string   `json:"description,omitempty"`
}

// Classification is the result of classifying a verb identifier. IsUnknown
// is set when neither table matched and no heuristic applied.
type Classification struct {
	Verb        string
	Category    Category
	Action      string
	Description string
	IsUnknown   bool
	IsCustom    bool
}

// IsCompletion reports whether the verb marks a completion outcome
// (completed, passed or failed). Derived from the category, never from a
// separate verb list.
func (c Classification) IsCompletion() bool {
	return c.Category == CategoryCompletion
}

// IsStart reports whether the verb marks the start of an attempt.
func (c Classification) IsStart() bool {
	return c.Action == ActionMarkStarted
}
