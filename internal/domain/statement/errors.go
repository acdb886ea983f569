package statement

import "errors"

var (
	// ErrNotFound indicates the statement doesn't exist.
	ErrNotFound = errors.New("statement not found")
	// ErrMissingVerb indicates a statement without a verb identifier.
	ErrMissingVerb = errors.New("statement verb identifier is required")
	// ErrMissingObject indicates a statement without an object identifier.
	ErrMissingObject = errors.New("statement object identifier is required")
)
