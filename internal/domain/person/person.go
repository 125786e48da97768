// Package person models the personnel roster. A person exists, accrues
// compliance history and appears in reports before (or without) ever being
// linked to a Telegram identity: records are keyed by personnel ID, and the
// Telegram ID is only a notification link.
package person

import (
	"database/sql"
	"time"

	"ippt_reminder_bot/internal/domain/window"
)

// Person is one roster entry.
type Person struct {
	ID         string // personnel ID, the primary key for all records
	Birthday   time.Time
	Group      sql.NullString // optional group tag from the roster
	TelegramID sql.NullInt64  // at most one linked notification identity
	VerifiedAt sql.NullTime
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Anchor returns the recurring date this person's cycles are computed from.
func (p *Person) Anchor() window.Anchor {
	return window.AnchorOf(p.Birthday)
}

// Linked reports whether the person can receive notifications.
func (p *Person) Linked() bool {
	return p.TelegramID.Valid
}
