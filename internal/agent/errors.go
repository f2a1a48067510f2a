package agent

import "errors"

var (
	// ErrMissingInput aborts a run when a tool's required input is absent.
	ErrMissingInput       = errors.New("required input missing")
	ErrNotAwaitingReview  = errors.New("plan is not awaiting review")
	ErrPlanNotFound       = errors.New("plan not found")
	ErrUnresolvedTools    = errors.New("plan references unknown tools")
	ErrInvalidRollback    = errors.New("no rollback point for step")
	ErrNotRolledBack      = errors.New("plan is not rolled back")
	ErrReviewerNotAllowed = errors.New("user may not review plans")
)
