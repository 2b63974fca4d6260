package engine

import (
	"errors"
	"fmt"

	"alcyxob/workout-session/internal/domain"
)

// --- Error Definitions ---
// Every engine error wraps one of these; match with errors.Is.
var (
	ErrInvalidTransition = errors.New("invalid transition")    // action not allowed in the current phase
	ErrInvalidTarget     = errors.New("invalid target")        // entry or set does not exist or cannot be entered
	ErrSetAlreadyActive  = errors.New("another set is active") // a different set is already running
	ErrRecordImmutable   = errors.New("record is immutable")   // completed or skipped sets cannot be edited
	ErrSnapshotCorrupt   = errors.New("snapshot is corrupt")   // snapshot failed shape validation; start fresh
	ErrInvalidValue      = errors.New("invalid value")         // negative weight, reps, rest or extension
	ErrInvalidPlan       = errors.New("invalid workout plan")
)

// ActionError is returned by every rejected action. State is unchanged when
// an ActionError is returned.
type ActionError struct {
	Action ActionType
	Phase  domain.Phase
	Err    error
	Detail string
}

func (e *ActionError) Error() string {
	msg := fmt.Sprintf("%s in phase %s: %v", e.Action, e.Phase, e.Err)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *ActionError) Unwrap() error { return e.Err }

// corruptf builds a snapshot validation error.
func corruptf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrSnapshotCorrupt, fmt.Sprintf(format, args...))
}
