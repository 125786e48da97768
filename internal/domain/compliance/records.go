// Package compliance holds the per-cycle records and the status derivation
// for a person's recurring IPPT obligation.
package compliance

import "time"

// RecordedVia distinguishes self-reported completions from admin overrides.
type RecordedVia string

const (
	RecordedViaSelf  RecordedVia = "SELF"
	RecordedViaAdmin RecordedVia = "ADMIN"
)

// CompletionRecord marks the obligation done for one cycle. At most one
// record exists per (person, cycle year); CompletedOn must lie inside the
// cycle, enforced at write time.
type CompletionRecord struct {
	PersonID    string
	CycleYear   int
	CompletedOn time.Time
	RecordedVia RecordedVia
	CreatedAt   time.Time
}

// DefermentStatus is the approval state of a deferment. Deferments are
// admin-granted, so the only status in use is approved.
type DefermentStatus string

const DefermentApproved DefermentStatus = "APPROVED"

// DefermentRecord is an admin-approved exception for one cycle's window.
// It suppresses reminders and delinquency until the window closes; the
// daily sweep deletes it once the window end has passed, so the next cycle
// starts clean.
type DefermentRecord struct {
	PersonID  string
	CycleYear int
	Reason    string
	Status    DefermentStatus
	DecidedBy int64
	CreatedAt time.Time
}

// ReminderCursor remembers the last reminder date per (person, cycle year)
// so a grid slot never fires twice. It is updated only after a successful
// send.
type ReminderCursor struct {
	PersonID       string
	CycleYear      int
	LastRemindedOn time.Time
}
