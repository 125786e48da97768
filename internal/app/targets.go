package app

import (
	"context"
	"strconv"

	"ippt_reminder_bot/internal/domain/person"
)

// TargetOutcome is the per-target result of a batch admin operation. Batch
// calls process every target independently; one unresolvable token never
// aborts the others.
type TargetOutcome struct {
	Target   string
	PersonID string // resolved personnel ID, empty when resolution failed
	Err      error  // nil on success
}

// OK reports whether the target was processed successfully.
func (o TargetOutcome) OK() bool { return o.Err == nil }

// resolveTarget maps an admin-supplied token to a person. Numeric tokens
// are treated as Telegram IDs, anything else as a personnel ID, so both can
// be mixed in one command.
func resolveTarget(ctx context.Context, persons person.Repository, token string) (*person.Person, error) {
	if telegramID, err := strconv.ParseInt(token, 10, 64); err == nil {
		return persons.GetByTelegramID(ctx, telegramID)
	}
	return persons.GetByID(ctx, token)
}
