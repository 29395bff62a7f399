// Package sqlstore persists audit events in the same SQL database as the
// punishment records so the trail survives restarts.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	audit "warden/pkg/platform/audit"
	txcontext "warden/pkg/platform/tx"
)

var schema = []string{`
CREATE TABLE IF NOT EXISTS warden_audit_events (
	id              TEXT PRIMARY KEY,
	category        TEXT NOT NULL,
	occurred_at     BIGINT NOT NULL,
	action          TEXT NOT NULL,
	subject         TEXT NOT NULL,
	resource_id     TEXT NOT NULL DEFAULT '',
	punishment_type TEXT NOT NULL DEFAULT '',
	reason          TEXT NOT NULL DEFAULT '',
	actor_id        TEXT NOT NULL DEFAULT '',
	request_id      TEXT NOT NULL DEFAULT '',
	subject_ip_hash TEXT NOT NULL DEFAULT '',
	expires_at      BIGINT
)`,
	`CREATE INDEX IF NOT EXISTS warden_audit_events_subject_idx
	ON warden_audit_events (subject, occurred_at)`,
	`CREATE INDEX IF NOT EXISTS warden_audit_events_occurred_idx
	ON warden_audit_events (occurred_at)`,
}

const eventColumns = `category, occurred_at, action, subject, resource_id, punishment_type,
	reason, actor_id, request_id, subject_ip_hash, expires_at`

// Store implements audit.Store on database/sql. Queries use ? placeholders
// and are passed through rebind before execution.
type Store struct {
	db     *sql.DB
	rebind func(string) string
}

// New returns a store on db. rebind adapts placeholders to the driver; nil
// keeps them as written.
func New(db *sql.DB, rebind func(string) string) *Store {
	if rebind == nil {
		rebind = func(q string) string { return q }
	}
	return &Store{db: db, rebind: rebind}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// EnsureSchema creates the audit table and its indexes if missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply audit schema: %w", err)
		}
	}
	return nil
}

// Append inserts event. When ctx carries a transaction the insert joins it.
// An unset category is derived from the action.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	category := event.Category
	if category == "" {
		category = audit.AuditEvent(event.Action).Category()
	}
	var expires any
	if event.ExpiresAt != nil {
		expires = event.ExpiresAt.UnixMilli()
	}

	_, err := s.execer(ctx).ExecContext(ctx, s.rebind(`
		INSERT INTO warden_audit_events (id, `+eventColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`),
		uuid.NewString(),
		string(category),
		event.Timestamp.UnixMilli(),
		event.Action,
		event.Subject,
		event.ResourceID,
		event.Type,
		event.Reason,
		event.ActorID,
		event.RequestID,
		event.SubjectIPHash,
		expires,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// ListBySubject returns the events for subject, oldest first.
func (s *Store) ListBySubject(ctx context.Context, subject string) ([]audit.Event, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT `+eventColumns+`
		FROM warden_audit_events
		WHERE subject = ?
		ORDER BY occurred_at ASC
	`), subject)
	if err != nil {
		return nil, fmt.Errorf("query audit events by subject: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// ListRecent returns up to limit events, newest first. A non-positive limit
// returns everything.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]audit.Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM warden_audit_events
		ORDER BY occurred_at DESC`
	var args []any
	if limit > 0 {
		query += `
		LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query recent audit events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]audit.Event, error) {
	var events []audit.Event
	for rows.Next() {
		var (
			event    audit.Event
			category string
			occurred int64
			expires  sql.NullInt64
		)
		if err := rows.Scan(
			&category,
			&occurred,
			&event.Action,
			&event.Subject,
			&event.ResourceID,
			&event.Type,
			&event.Reason,
			&event.ActorID,
			&event.RequestID,
			&event.SubjectIPHash,
			&expires,
		); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		event.Category = audit.EventCategory(category)
		event.Timestamp = time.UnixMilli(occurred).UTC()
		if expires.Valid {
			t := time.UnixMilli(expires.Int64).UTC()
			event.ExpiresAt = &t
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
