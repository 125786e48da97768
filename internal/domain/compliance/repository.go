package compliance

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors shared by every store implementation.
var (
	ErrCompletionNotFound = errors.New("completion record not found")
	ErrDefermentNotFound  = errors.New("deferment record not found")
)

// CompletionRepository persists CompletionRecords keyed by (person, cycle
// year). Upsert replaces any existing record for the key, so after any
// sequence of writes exactly one record remains with the last writer's
// content.
type CompletionRepository interface {
	Get(ctx context.Context, personID string, cycleYear int) (*CompletionRecord, error)
	Upsert(ctx context.Context, rec *CompletionRecord) error
	Delete(ctx context.Context, personID string, cycleYear int) error
}

// DefermentRepository persists DefermentRecords keyed by (person, cycle
// year), same contract as CompletionRepository.
type DefermentRepository interface {
	Get(ctx context.Context, personID string, cycleYear int) (*DefermentRecord, error)
	Upsert(ctx context.Context, rec *DefermentRecord) error
	Delete(ctx context.Context, personID string, cycleYear int) error
}

// ReminderCursorRepository tracks the last reminded date per (person, cycle
// year). Get returns ok=false when no cursor has been written yet.
type ReminderCursorRepository interface {
	Get(ctx context.Context, personID string, cycleYear int) (lastRemindedOn time.Time, ok bool, err error)
	Set(ctx context.Context, personID string, cycleYear int, remindedOn time.Time) error
}
