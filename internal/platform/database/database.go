// Package database opens the SQL handles used by the punishment store.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// OpenSQLite opens a WAL-mode SQLite database at path. Use ":memory:" for an
// ephemeral database; it is pinned to one connection so every query sees the
// same data.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	var dsn string
	if path == ":memory:" {
		dsn = ":memory:?" + sqlitePragmas(false)
	} else {
		dsn = filepath.Clean(path) + "?" + sqlitePragmas(true)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	return db, nil
}

// sqlitePragmas renders connection pragmas in the form modernc.org/sqlite
// applies to every new connection. WAL is skipped for in-memory databases.
func sqlitePragmas(wal bool) string {
	pragmas := []string{"busy_timeout(5000)", "foreign_keys(ON)"}
	if wal {
		pragmas = append([]string{"journal_mode(WAL)", "synchronous(NORMAL)"}, pragmas...)
	}
	return "_pragma=" + strings.Join(pragmas, "&_pragma=")
}

// OpenPostgres opens a pooled PostgreSQL handle through the pgx driver.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres db: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres db: %w", err)
	}
	return db, nil
}
