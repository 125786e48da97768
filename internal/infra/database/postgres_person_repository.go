package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"ippt_reminder_bot/internal/domain/person"
)

type PostgresPersonRepository struct {
	db *sql.DB
}

func NewPostgresPersonRepository(db *sql.DB) *PostgresPersonRepository {
	return &PostgresPersonRepository{db: db}
}

const personColumns = `personnel_id, birthday, group_name, telegram_id, verified_at, created_at, updated_at`

func scanPerson(row interface{ Scan(...any) error }) (*person.Person, error) {
	p := &person.Person{}
	err := row.Scan(&p.ID, &p.Birthday, &p.Group, &p.TelegramID, &p.VerifiedAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *PostgresPersonRepository) Create(ctx context.Context, p *person.Person) error {
	query := `INSERT INTO personnel (personnel_id, birthday, group_name)
               VALUES ($1, $2, $3)
               RETURNING created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query, p.ID, p.Birthday, p.Group).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "personnel_pkey") {
			return person.ErrAlreadyExists
		}
		return fmt.Errorf("error creating person: %w", err)
	}
	return nil
}

func (r *PostgresPersonRepository) GetByID(ctx context.Context, id string) (*person.Person, error) {
	query := `SELECT ` + personColumns + ` FROM personnel WHERE personnel_id = $1`
	p, err := scanPerson(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, person.ErrNotFound
		}
		return nil, fmt.Errorf("error getting person by ID: %w", err)
	}
	return p, nil
}

func (r *PostgresPersonRepository) GetByTelegramID(ctx context.Context, telegramID int64) (*person.Person, error) {
	query := `SELECT ` + personColumns + ` FROM personnel WHERE telegram_id = $1`
	p, err := scanPerson(r.db.QueryRowContext(ctx, query, telegramID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, person.ErrNotFound
		}
		return nil, fmt.Errorf("error getting person by Telegram ID: %w", err)
	}
	return p, nil
}

func (r *PostgresPersonRepository) Upsert(ctx context.Context, id string, birthday time.Time, group string) (bool, error) {
	// Group only overwrites when the import supplies a non-empty value.
	query := `INSERT INTO personnel (personnel_id, birthday, group_name)
               VALUES ($1, $2, NULLIF($3, ''))
               ON CONFLICT (personnel_id) DO UPDATE SET
                 birthday = EXCLUDED.birthday,
                 group_name = COALESCE(NULLIF($3, ''), personnel.group_name),
                 updated_at = NOW()
               RETURNING (xmax = 0) AS inserted`
	var created bool
	if err := r.db.QueryRowContext(ctx, query, id, birthday, group).Scan(&created); err != nil {
		return false, fmt.Errorf("error upserting person: %w", err)
	}
	return created, nil
}

func (r *PostgresPersonRepository) UpdateBirthday(ctx context.Context, id string, birthday time.Time) error {
	query := `UPDATE personnel SET birthday = $1, updated_at = NOW() WHERE personnel_id = $2`
	res, err := r.db.ExecContext(ctx, query, birthday, id)
	if err != nil {
		return fmt.Errorf("error updating birthday: %w", err)
	}
	return requireRow(res, person.ErrNotFound)
}

func (r *PostgresPersonRepository) Link(ctx context.Context, id string, telegramID int64, verifiedAt time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting link transaction: %w", err)
	}
	defer tx.Rollback()

	// A Telegram identity links to at most one person; detach first so
	// re-verification moves the identity instead of failing the unique index.
	if _, err := tx.ExecContext(ctx,
		`UPDATE personnel SET telegram_id = NULL, verified_at = NULL, updated_at = NOW() WHERE telegram_id = $1 AND personnel_id <> $2`,
		telegramID, id); err != nil {
		return fmt.Errorf("error detaching telegram identity: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE personnel SET telegram_id = $1, verified_at = $2, updated_at = NOW() WHERE personnel_id = $3`,
		telegramID, verifiedAt, id)
	if err != nil {
		return fmt.Errorf("error linking telegram identity: %w", err)
	}
	if err := requireRow(res, person.ErrNotFound); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *PostgresPersonRepository) Unlink(ctx context.Context, id string) error {
	query := `UPDATE personnel SET telegram_id = NULL, verified_at = NULL, updated_at = NOW()
               WHERE personnel_id = $1 AND telegram_id IS NOT NULL`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("error unlinking person: %w", err)
	}
	return requireRow(res, person.ErrNotFound)
}

func (r *PostgresPersonRepository) Remove(ctx context.Context, id string) error {
	// Completion, deferment and cursor rows go with the person via ON DELETE CASCADE.
	res, err := r.db.ExecContext(ctx, `DELETE FROM personnel WHERE personnel_id = $1`, id)
	if err != nil {
		return fmt.Errorf("error removing person: %w", err)
	}
	return requireRow(res, person.ErrNotFound)
}

func (r *PostgresPersonRepository) ListAll(ctx context.Context) ([]*person.Person, error) {
	query := `SELECT ` + personColumns + ` FROM personnel ORDER BY personnel_id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error listing persons: %w", err)
	}
	defer rows.Close()

	persons := make([]*person.Person, 0)
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning person: %w", err)
		}
		persons = append(persons, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating persons: %w", err)
	}
	return persons, nil
}

func requireRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
