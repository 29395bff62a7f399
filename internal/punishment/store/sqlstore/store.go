// Package sqlstore persists punishments in SQLite or PostgreSQL through
// database/sql. The store is pure I/O; expiry and notification belong to the
// engine.
package sqlstore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"warden/internal/punishment/models"
	"warden/pkg/platform/sentinel"
	"warden/pkg/platform/tx"
	"warden/pkg/requestcontext"
)

//go:embed schema/*.sql
var schemaFS embed.FS

const recordColumns = `internal_id, uuid, ip, ip_hash, type, reason, actor, start_time, end_time, active, silent`

const historyColumns = `id, internal_id, uuid, ip, ip_hash, type, reason, actor, start_time, end_time, action, action_time`

type Store struct {
	db      *sql.DB
	dialect Dialect
}

func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

// EnsureSchema applies the embedded schema files in name order. Every
// statement is idempotent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	entries, err := fs.ReadDir(schemaFS, "schema")
	if err != nil {
		return fmt.Errorf("read schema dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		content, err := fs.ReadFile(schemaFS, "schema/"+name)
		if err != nil {
			return fmt.Errorf("read schema %s: %w", name, err)
		}
		for _, stmt := range splitStatements(string(content)) {
			if _, err := s.db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("apply schema %s: %w", name, err)
			}
		}
	}
	return nil
}

// AddPunishment inserts rec and its create history entry. When ctx carries a
// transaction both writes join it.
func (s *Store) AddPunishment(ctx context.Context, rec models.Record) error {
	return tx.Run(ctx, s.db, func(ctx context.Context, sqlTx *sql.Tx) error {
		_, err := sqlTx.ExecContext(ctx, s.dialect.rebind(`
			INSERT INTO warden_punishments (`+recordColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`),
			rec.InternalID,
			rec.UUID.String(),
			nullString(rec.IP),
			nullString(rec.IPHash),
			string(rec.Type),
			rec.Reason,
			rec.Actor,
			rec.StartTime.UnixMilli(),
			nullMillis(rec.EndTime),
			rec.Active,
			rec.Silent,
		)
		if err != nil {
			if s.dialect.isConflict(err) {
				return fmt.Errorf("insert punishment %s: %w", rec.InternalID, errors.Join(sentinel.ErrConflict, err))
			}
			return fmt.Errorf("insert punishment: %w", err)
		}

		entry := models.NewHistory(rec, models.ActionCreate, rec.Actor, rec.Reason, requestcontext.Now(ctx))
		return s.insertHistory(ctx, sqlTx, entry)
	})
}

// Deactivate clears the active flag and appends a history entry in one
// transaction. An unknown id commits nothing, and an expiry that loses the
// race to another writer skips its history entry.
func (s *Store) Deactivate(ctx context.Context, internalID, actor, reason string, action models.Action) error {
	return tx.Run(ctx, s.db, func(ctx context.Context, sqlTx *sql.Tx) error {
		// The update runs first so the write lock is taken before the read.
		query := `UPDATE warden_punishments SET active = ? WHERE internal_id = ?`
		args := []any{false, internalID}
		if action == models.ActionExpire {
			query += ` AND active = ?`
			args = append(args, true)
		}
		res, err := sqlTx.ExecContext(ctx, s.dialect.rebind(query), args...)
		if err != nil {
			return fmt.Errorf("deactivate punishment: %w", err)
		}
		changed, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("deactivate punishment: %w", err)
		}
		if changed == 0 {
			return nil
		}

		rec, err := scanRecord(sqlTx.QueryRowContext(ctx, s.dialect.rebind(`
			SELECT `+recordColumns+`
			FROM warden_punishments
			WHERE internal_id = ?
		`), internalID))
		if err != nil {
			return fmt.Errorf("load punishment for deactivate: %w", err)
		}

		entry := models.NewHistory(*rec, action, actor, reason, requestcontext.Now(ctx))
		return s.insertHistory(ctx, sqlTx, entry)
	})
}

func (s *Store) FindActiveByUUID(ctx context.Context, id uuid.UUID) ([]models.Record, error) {
	return s.findActive(ctx, "uuid", id.String())
}

func (s *Store) FindActiveByIP(ctx context.Context, ip string) ([]models.Record, error) {
	if ip == "" {
		return nil, nil
	}
	return s.findActive(ctx, "ip", ip)
}

func (s *Store) FindActiveByIPHash(ctx context.Context, hash string) ([]models.Record, error) {
	if hash == "" {
		return nil, nil
	}
	return s.findActive(ctx, "ip_hash", hash)
}

func (s *Store) FindByInternalID(ctx context.Context, internalID string) (*models.Record, error) {
	rec, err := scanRecord(s.db.QueryRowContext(ctx, s.dialect.rebind(`
		SELECT `+recordColumns+`
		FROM warden_punishments
		WHERE internal_id = ?
	`), internalID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find punishment by internal id: %w", err)
	}
	return rec, nil
}

// FindByInternalIDs loads every known record among ids. Unknown ids are
// skipped.
func (s *Store) FindByInternalIDs(ctx context.Context, ids []string) ([]models.Record, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	filter, args := s.dialect.inList("internal_id", ids)
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(`
		SELECT `+recordColumns+`
		FROM warden_punishments
		WHERE `+filter+`
		ORDER BY start_time
	`), args...)
	if err != nil {
		return nil, fmt.Errorf("find punishments by internal ids: %w", err)
	}
	defer rows.Close()
	return collectRecords(rows)
}

func (s *Store) FindHistory(ctx context.Context, id uuid.UUID) ([]models.HistoryRecord, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(`
		SELECT `+historyColumns+`
		FROM warden_punishment_history
		WHERE uuid = ?
		ORDER BY action_time DESC, seq DESC
	`), id.String())
	if err != nil {
		return nil, fmt.Errorf("find history: %w", err)
	}
	defer rows.Close()

	var out []models.HistoryRecord
	for rows.Next() {
		entry, err := scanHistory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		out = append(out, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return out, nil
}

func (s *Store) CountActiveWarns(ctx context.Context, id uuid.UUID) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, s.dialect.rebind(`
		SELECT COUNT(*) FROM warden_punishments
		WHERE uuid = ? AND type = ? AND active = ?
	`), id.String(), string(models.TypeWarn), true).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count active warns: %w", err)
	}
	return n, nil
}

func (s *Store) findActive(ctx context.Context, column, value string) ([]models.Record, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(`
		SELECT `+recordColumns+`
		FROM warden_punishments
		WHERE `+column+` = ? AND active = ?
		ORDER BY start_time
	`), value, true)
	if err != nil {
		return nil, fmt.Errorf("find active by %s: %w", column, err)
	}
	defer rows.Close()
	return collectRecords(rows)
}

func (s *Store) insertHistory(ctx context.Context, tx *sql.Tx, h models.HistoryRecord) error {
	_, err := tx.ExecContext(ctx, s.dialect.rebind(`
		INSERT INTO warden_punishment_history (`+historyColumns+`, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?,
			(SELECT COALESCE(MAX(seq), 0) + 1 FROM warden_punishment_history WHERE uuid = ?))
	`),
		h.ID,
		h.InternalID,
		h.UUID.String(),
		nullString(h.IP),
		nullString(h.IPHash),
		string(h.Type),
		h.Reason,
		h.Actor,
		h.StartTime.UnixMilli(),
		nullMillis(h.EndTime),
		string(h.Action),
		h.ActionTime.UnixMilli(),
		h.UUID.String(),
	)
	if err != nil {
		return fmt.Errorf("insert history: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.Record, error) {
	var (
		rec      models.Record
		rawUUID  string
		ip, hash sql.NullString
		typ      string
		startMs  int64
		endMs    sql.NullInt64
	)
	if err := row.Scan(&rec.InternalID, &rawUUID, &ip, &hash, &typ, &rec.Reason, &rec.Actor, &startMs, &endMs, &rec.Active, &rec.Silent); err != nil {
		return nil, err
	}
	id, err := uuid.Parse(rawUUID)
	if err != nil {
		return nil, fmt.Errorf("punishment %s uuid %q: %w", rec.InternalID, rawUUID, sentinel.ErrInvalidState)
	}
	rec.UUID = id
	rec.IP = ip.String
	rec.IPHash = hash.String
	rec.Type = models.Type(typ)
	rec.StartTime = fromMillis(startMs)
	rec.EndTime = fromNullMillis(endMs)
	return &rec, nil
}

func scanHistory(row rowScanner) (*models.HistoryRecord, error) {
	var (
		h        models.HistoryRecord
		rawUUID  string
		ip, hash sql.NullString
		typ      string
		action   string
		startMs  int64
		endMs    sql.NullInt64
		actionMs int64
	)
	if err := row.Scan(&h.ID, &h.InternalID, &rawUUID, &ip, &hash, &typ, &h.Reason, &h.Actor, &startMs, &endMs, &action, &actionMs); err != nil {
		return nil, err
	}
	id, err := uuid.Parse(rawUUID)
	if err != nil {
		return nil, fmt.Errorf("history %s uuid %q: %w", h.ID, rawUUID, sentinel.ErrInvalidState)
	}
	h.UUID = id
	h.IP = ip.String
	h.IPHash = hash.String
	h.Type = models.Type(typ)
	h.Action = models.Action(action)
	h.StartTime = fromMillis(startMs)
	h.EndTime = fromNullMillis(endMs)
	h.ActionTime = fromMillis(actionMs)
	return &h, nil
}

func collectRecords(rows *sql.Rows) ([]models.Record, error) {
	var out []models.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan punishment: %w", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate punishments: %w", err)
	}
	return out, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func fromNullMillis(ms sql.NullInt64) *time.Time {
	if !ms.Valid {
		return nil
	}
	t := fromMillis(ms.Int64)
	return &t
}

// splitStatements breaks a schema file on semicolons, dropping comment-only
// fragments.
func splitStatements(content string) []string {
	var out []string
	for _, part := range strings.Split(content, ";") {
		var lines []string
		for _, line := range strings.Split(part, "\n") {
			if strings.HasPrefix(strings.TrimSpace(line), "--") {
				continue
			}
			lines = append(lines, line)
		}
		stmt := strings.TrimSpace(strings.Join(lines, "\n"))
		if stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}
