package app

import (
	"errors"
	"fmt"

	"ippt_reminder_bot/internal/domain/window"
)

// Error kinds returned to callers. Handlers map these to user-facing
// replies; batch operations record them per target instead of aborting.
var (
	ErrNotAuthorized = errors.New("performing user is not authorized as an admin")
	ErrNotVerified   = errors.New("telegram account is not linked to a personnel record")
	ErrInvalidDate   = errors.New("invalid date")
	ErrOutOfWindow   = errors.New("date falls outside the compliance window")
	ErrOutOfCycle    = errors.New("date falls outside the target cycle")
)

// OutOfWindowError rejects a self-service write whose date is not inside
// the current window, surfacing the valid range to the caller.
type OutOfWindowError struct {
	Window window.Window
}

func (e *OutOfWindowError) Error() string {
	return fmt.Sprintf("date falls outside the compliance window %s → %s",
		e.Window.Start.Format("2006-01-02"), e.Window.End.Format("2006-01-02"))
}

func (e *OutOfWindowError) Unwrap() error { return ErrOutOfWindow }

// OutOfCycleError rejects an admin override whose date is not inside the
// target cycle.
type OutOfCycleError struct {
	Cycle window.Cycle
}

func (e *OutOfCycleError) Error() string {
	return fmt.Sprintf("date falls outside cycle %d (%s → %s)",
		e.Cycle.Year(), e.Cycle.Start.Format("2006-01-02"), e.Cycle.EndExclusive.Format("2006-01-02"))
}

func (e *OutOfCycleError) Unwrap() error { return ErrOutOfCycle }
