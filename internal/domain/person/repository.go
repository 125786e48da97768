package person

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound      = errors.New("person not found")
	ErrAlreadyExists = errors.New("person with this personnel ID already exists")
)

// Repository defines the operations for persisting and retrieving Person
// entities.
type Repository interface {
	Create(ctx context.Context, p *Person) error
	GetByID(ctx context.Context, id string) (*Person, error)
	GetByTelegramID(ctx context.Context, telegramID int64) (*Person, error)

	// Upsert inserts or updates a roster entry (birthday and, when
	// non-empty, group). Returns true when a new row was created.
	Upsert(ctx context.Context, id string, birthday time.Time, group string) (created bool, err error)

	// UpdateBirthday corrects the anchor date of an existing person.
	UpdateBirthday(ctx context.Context, id string, birthday time.Time) error

	// Link attaches a Telegram identity to a person, detaching it from any
	// person it was previously linked to.
	Link(ctx context.Context, id string, telegramID int64, verifiedAt time.Time) error

	// Unlink removes the person's Telegram identity, keeping all history.
	Unlink(ctx context.Context, id string) error

	// Remove deletes the person together with their completion, deferment
	// and reminder-cursor records.
	Remove(ctx context.Context, id string) error

	ListAll(ctx context.Context) ([]*Person, error)
}
