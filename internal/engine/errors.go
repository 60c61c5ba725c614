package engine

import "errors"

// Rejections are local to the offending request: the table state is never
// partially applied and other players' committed state is never rolled back.
var (
	// ErrIllegalAction covers wrong actor, illegal action type for the
	// current context, amounts outside legal bounds, and stale round tags.
	ErrIllegalAction = errors.New("illegal action")

	// ErrInsufficientChips is internal: a call or raise intent above the
	// remaining stack is coerced to all-in rather than rejected.
	ErrInsufficientChips = errors.New("insufficient chips")

	// ErrCapacityExceeded rejects a join when no seat is available.
	ErrCapacityExceeded = errors.New("table is full")

	ErrTableNotFound  = errors.New("table not found")
	ErrTableExists    = errors.New("table already exists")
	ErrPlayerNotFound = errors.New("player not found")
	ErrNoActiveHand   = errors.New("no hand in progress")
)
