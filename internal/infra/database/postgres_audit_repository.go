package database

import (
	"context"
	"database/sql"
	"fmt"

	"ippt_reminder_bot/internal/domain/audit"
)

// PostgresAuditSink appends audit entries. The table has no update or
// delete path anywhere in the codebase.
type PostgresAuditSink struct {
	db *sql.DB
}

func NewPostgresAuditSink(db *sql.DB) *PostgresAuditSink {
	return &PostgresAuditSink{db: db}
}

func (s *PostgresAuditSink) Append(ctx context.Context, e audit.Entry) error {
	query := `INSERT INTO audit_log (id, at, actor, action, target, payload)
               VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := s.db.ExecContext(ctx, query, e.ID, e.At, e.Actor, e.Action, e.Target, e.Payload); err != nil {
		return fmt.Errorf("error appending audit entry: %w", err)
	}
	return nil
}
