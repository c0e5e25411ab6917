package matches

import "errors"

// Sentinel kinds for match errors.
var (
	ErrNotFound          = errors.New("match not found")
	ErrPlayerNotFound    = errors.New("player not found")
	ErrForeignPlayer     = errors.New("player belongs to another group")
	ErrInvalidTransition = errors.New("match status change not allowed")
	// ErrEvaluationInit means the match was completed but its evaluation
	// round could not be opened; EnsureEvaluation retries it.
	ErrEvaluationInit = errors.New("evaluation initialization failed")
)
