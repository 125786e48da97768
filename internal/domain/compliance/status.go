package compliance

import (
	"time"

	"ippt_reminder_bot/internal/domain/window"
)

// Status classifies one (person, cycle year) pair on a given day.
type Status string

const (
	StatusNotOpenYet       Status = "NOT_OPEN_YET"
	StatusPending          Status = "PENDING"
	StatusCompletedOnTime  Status = "COMPLETED_ON_TIME"
	StatusCompletedOverdue Status = "COMPLETED_OVERDUE"
	StatusDeferred         Status = "DEFERRED"
	StatusExpired          Status = "EXPIRED"
)

// Evaluation is the derived state for one cycle. It is never persisted;
// every consumer derives it from the same stored records via Evaluate.
type Evaluation struct {
	Status      Status
	Cycle       window.Cycle
	Window      window.Window
	CompletedOn time.Time // zero when no completion record exists
	OverdueDays int       // > 0 only for StatusCompletedOverdue
	Deferred    bool      // an approved deferment is on file for the cycle
}

// Completed reports whether a completion record exists for the cycle.
func (e Evaluation) Completed() bool {
	return e.Status == StatusCompletedOnTime || e.Status == StatusCompletedOverdue
}

// RemindersSuppressed reports whether the reminder sweep must skip this
// cycle: completed, deferred, or outside the window.
func (e Evaluation) RemindersSuppressed(today time.Time) bool {
	return e.Completed() || e.Deferred || !e.Window.Contains(today)
}

// Evaluate derives the status of cycleYear for a person with the given
// anchor. comp and def are the stored records for that cycle year, nil when
// absent. A completion record always decides the reported outcome; a
// deferment on file additionally suppresses reminders, and is the status
// itself only while no completion exists.
func Evaluate(a window.Anchor, cycleYear int, today time.Time, comp *CompletionRecord, def *DefermentRecord, windowDays int) Evaluation {
	cycle := window.CycleForYear(a, cycleYear)
	w := cycle.Window(windowDays)

	eval := Evaluation{
		Cycle:    cycle,
		Window:   w,
		Deferred: def != nil,
	}

	if comp != nil {
		eval.CompletedOn = comp.CompletedOn
		if comp.CompletedOn.After(w.End) {
			eval.Status = StatusCompletedOverdue
			eval.OverdueDays = window.DaysBetween(w.End, comp.CompletedOn)
		} else {
			eval.Status = StatusCompletedOnTime
		}
		return eval
	}

	if def != nil {
		eval.Status = StatusDeferred
		return eval
	}

	switch {
	case today.Before(w.Start):
		eval.Status = StatusNotOpenYet
	case !today.After(w.End):
		eval.Status = StatusPending
	default:
		eval.Status = StatusExpired
	}
	return eval
}
