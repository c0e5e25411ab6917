package evaluation

import "errors"

// Sentinel kinds for evaluation errors.
var (
	ErrNotFound = errors.New("evaluation not found")
	// ErrAlreadySubmitted covers both a finished assignment and an evaluator
	// who was never assigned: either way there is nothing left to submit.
	ErrAlreadySubmitted  = errors.New("no pending evaluations for this evaluator")
	ErrInvalidSubmission = errors.New("invalid evaluation submission")
	ErrEvaluationExpired = errors.New("evaluation period has expired")
	ErrMatchNotCompleted = errors.New("match is not completed")

	ErrAlreadyRecalculated     = errors.New("ratings already applied")
	ErrThresholdNotReached     = errors.New("participation threshold not reached")
	ErrRecalculationInProgress = errors.New("recalculation in progress")
)

// internal markers that abort an update func without writing
var (
	errAlreadyApplied = errors.New("player already updated for match")
	errNoop           = errors.New("nothing to change")
)
