package driven

import "errors"

// Provider error classes. Adapters wrap the underlying error with one of these
// so the application layer can match with errors.Is.
var (
	// ErrTransient marks timeouts, 5xx responses and rate limiting. Worth retrying.
	ErrTransient = errors.New("transient provider error")

	// ErrPermanent marks deleted, renamed or unsearchable entities (404, 410, 422).
	ErrPermanent = errors.New("permanent provider error")
)
