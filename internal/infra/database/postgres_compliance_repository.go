package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"ippt_reminder_bot/internal/domain/compliance"
)

// PostgresCompletionRepository persists CompletionRecords.
type PostgresCompletionRepository struct {
	db *sql.DB
}

func NewPostgresCompletionRepository(db *sql.DB) *PostgresCompletionRepository {
	return &PostgresCompletionRepository{db: db}
}

func (r *PostgresCompletionRepository) Get(ctx context.Context, personID string, cycleYear int) (*compliance.CompletionRecord, error) {
	query := `SELECT person_id, cycle_year, completed_on, recorded_via, created_at
               FROM completions WHERE person_id = $1 AND cycle_year = $2`
	rec := &compliance.CompletionRecord{}
	err := r.db.QueryRowContext(ctx, query, personID, cycleYear).
		Scan(&rec.PersonID, &rec.CycleYear, &rec.CompletedOn, &rec.RecordedVia, &rec.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, compliance.ErrCompletionNotFound
		}
		return nil, fmt.Errorf("error getting completion record: %w", err)
	}
	rec.CompletedOn = rec.CompletedOn.UTC()
	return rec, nil
}

// Upsert replaces any prior record for the (person, cycle_year) key with a
// delete-then-insert inside one transaction, so the last writer wins
// outright instead of merging.
func (r *PostgresCompletionRepository) Upsert(ctx context.Context, rec *compliance.CompletionRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting completion upsert: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM completions WHERE person_id = $1 AND cycle_year = $2`,
		rec.PersonID, rec.CycleYear); err != nil {
		return fmt.Errorf("error clearing prior completion record: %w", err)
	}
	err = tx.QueryRowContext(ctx,
		`INSERT INTO completions (person_id, cycle_year, completed_on, recorded_via)
          VALUES ($1, $2, $3, $4)
          RETURNING created_at`,
		rec.PersonID, rec.CycleYear, rec.CompletedOn, rec.RecordedVia).Scan(&rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("error inserting completion record: %w", err)
	}
	return tx.Commit()
}

func (r *PostgresCompletionRepository) Delete(ctx context.Context, personID string, cycleYear int) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM completions WHERE person_id = $1 AND cycle_year = $2`, personID, cycleYear)
	if err != nil {
		return fmt.Errorf("error deleting completion record: %w", err)
	}
	return requireRow(res, compliance.ErrCompletionNotFound)
}

// PostgresDefermentRepository persists DefermentRecords.
type PostgresDefermentRepository struct {
	db *sql.DB
}

func NewPostgresDefermentRepository(db *sql.DB) *PostgresDefermentRepository {
	return &PostgresDefermentRepository{db: db}
}

func (r *PostgresDefermentRepository) Get(ctx context.Context, personID string, cycleYear int) (*compliance.DefermentRecord, error) {
	query := `SELECT person_id, cycle_year, reason, status, decided_by, created_at
               FROM deferments WHERE person_id = $1 AND cycle_year = $2`
	rec := &compliance.DefermentRecord{}
	err := r.db.QueryRowContext(ctx, query, personID, cycleYear).
		Scan(&rec.PersonID, &rec.CycleYear, &rec.Reason, &rec.Status, &rec.DecidedBy, &rec.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, compliance.ErrDefermentNotFound
		}
		return nil, fmt.Errorf("error getting deferment record: %w", err)
	}
	return rec, nil
}

func (r *PostgresDefermentRepository) Upsert(ctx context.Context, rec *compliance.DefermentRecord) error {
	query := `INSERT INTO deferments (person_id, cycle_year, reason, status, decided_by)
               VALUES ($1, $2, $3, $4, $5)
               ON CONFLICT (person_id, cycle_year) DO UPDATE SET
                 reason = EXCLUDED.reason,
                 status = EXCLUDED.status,
                 decided_by = EXCLUDED.decided_by,
                 created_at = NOW()
               RETURNING created_at`
	err := r.db.QueryRowContext(ctx, query, rec.PersonID, rec.CycleYear, rec.Reason, rec.Status, rec.DecidedBy).
		Scan(&rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("error upserting deferment record: %w", err)
	}
	return nil
}

func (r *PostgresDefermentRepository) Delete(ctx context.Context, personID string, cycleYear int) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM deferments WHERE person_id = $1 AND cycle_year = $2`, personID, cycleYear)
	if err != nil {
		return fmt.Errorf("error deleting deferment record: %w", err)
	}
	return requireRow(res, compliance.ErrDefermentNotFound)
}

// PostgresReminderCursorRepository persists the last reminded date per
// (person, cycle_year).
type PostgresReminderCursorRepository struct {
	db *sql.DB
}

func NewPostgresReminderCursorRepository(db *sql.DB) *PostgresReminderCursorRepository {
	return &PostgresReminderCursorRepository{db: db}
}

func (r *PostgresReminderCursorRepository) Get(ctx context.Context, personID string, cycleYear int) (time.Time, bool, error) {
	var lastRemindedOn time.Time
	err := r.db.QueryRowContext(ctx,
		`SELECT last_reminded_on FROM reminder_cursors WHERE person_id = $1 AND cycle_year = $2`,
		personID, cycleYear).Scan(&lastRemindedOn)
	if err != nil {
		if err == sql.ErrNoRows {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("error getting reminder cursor: %w", err)
	}
	return lastRemindedOn.UTC(), true, nil
}

func (r *PostgresReminderCursorRepository) Set(ctx context.Context, personID string, cycleYear int, remindedOn time.Time) error {
	query := `INSERT INTO reminder_cursors (person_id, cycle_year, last_reminded_on)
               VALUES ($1, $2, $3)
               ON CONFLICT (person_id, cycle_year) DO UPDATE SET last_reminded_on = EXCLUDED.last_reminded_on`
	if _, err := r.db.ExecContext(ctx, query, personID, cycleYear, remindedOn); err != nil {
		return fmt.Errorf("error setting reminder cursor: %w", err)
	}
	return nil
}
