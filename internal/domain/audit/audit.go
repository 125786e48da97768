// Package audit defines the append-only trail written by every admin
// mutation. Entries are never updated or deleted.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Actions recorded by the override and roster services.
const (
	ActionOverrideComplete   = "OVERRIDE_COMPLETE"
	ActionOverrideUncomplete = "OVERRIDE_UNCOMPLETE"
	ActionSetDeferment       = "SET_DEFERMENT"
	ActionClearDeferment     = "CLEAR_DEFERMENT"
	ActionAddPersonnel       = "ADD_PERSONNEL"
	ActionUpdateBirthday     = "UPDATE_BIRTHDAY"
	ActionRemovePersonnel    = "REMOVE_PERSONNEL"
	ActionUnlinkUser         = "UNLINK_USER"
	ActionImportRoster       = "IMPORT_ROSTER"
)

// Entry is one audit record.
type Entry struct {
	ID      uuid.UUID
	At      time.Time
	Actor   int64 // Telegram ID of the admin performing the mutation
	Action  string
	Target  string // personnel ID, or a summary for bulk actions
	Payload string // human-readable detail (dates, years, reasons)
}

// NewEntry stamps a fresh entry with an ID and timestamp.
func NewEntry(actor int64, action, target, payload string) Entry {
	return Entry{
		ID:      uuid.New(),
		At:      time.Now().UTC(),
		Actor:   actor,
		Action:  action,
		Target:  target,
		Payload: payload,
	}
}

// Sink receives entries. Append must not mutate or reorder prior entries.
type Sink interface {
	Append(ctx context.Context, e Entry) error
}
