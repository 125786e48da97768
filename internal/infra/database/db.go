package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
)

const (
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 25
	defaultConnMaxLifetime = 5 * time.Minute
	defaultConnMaxIdleTime = 1 * time.Minute
)

// NewPostgresConnection creates and returns a new PostgreSQL database
// connection, pinging it to verify connectivity.
func NewPostgresConnection(dataSourceName string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(defaultMaxOpenConns)
	db.SetMaxIdleConns(defaultMaxIdleConns)
	db.SetConnMaxLifetime(defaultConnMaxLifetime)
	db.SetConnMaxIdleTime(defaultConnMaxIdleTime)

	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// EnsureSchema creates the tables the bot needs if they do not exist yet.
// The uniqueness constraints on (person_id, cycle_year) are what make admin
// overrides idempotent under concurrent calls.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS personnel (
			personnel_id TEXT PRIMARY KEY,
			birthday     DATE NOT NULL,
			group_name   TEXT,
			telegram_id  BIGINT UNIQUE,
			verified_at  TIMESTAMPTZ,
			created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS completions (
			person_id    TEXT NOT NULL REFERENCES personnel(personnel_id) ON DELETE CASCADE,
			cycle_year   INTEGER NOT NULL,
			completed_on DATE NOT NULL,
			recorded_via TEXT NOT NULL,
			created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (person_id, cycle_year)
		)`,
		`CREATE TABLE IF NOT EXISTS deferments (
			person_id  TEXT NOT NULL REFERENCES personnel(personnel_id) ON DELETE CASCADE,
			cycle_year INTEGER NOT NULL,
			reason     TEXT NOT NULL DEFAULT '',
			status     TEXT NOT NULL,
			decided_by BIGINT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (person_id, cycle_year)
		)`,
		`CREATE TABLE IF NOT EXISTS reminder_cursors (
			person_id        TEXT NOT NULL REFERENCES personnel(personnel_id) ON DELETE CASCADE,
			cycle_year       INTEGER NOT NULL,
			last_reminded_on DATE NOT NULL,
			UNIQUE (person_id, cycle_year)
		)`,
		`CREATE TABLE IF NOT EXISTS audit_log (
			id      UUID PRIMARY KEY,
			at      TIMESTAMPTZ NOT NULL,
			actor   BIGINT NOT NULL,
			action  TEXT NOT NULL,
			target  TEXT NOT NULL,
			payload TEXT NOT NULL DEFAULT ''
		)`,
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}
	return nil
}
