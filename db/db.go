// Package db mirrors presence transitions into Postgres so viewer sessions
// survive restarts and can be analyzed offline. The in-memory tracker is the
// source of truth; everything here is an append-only reflection of it.
package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx postgres driver registered as 'pgx'
)

// Connect opens a Postgres connection for the given DSN.
func Connect(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("empty dsn")
	}
	return sql.Open("pgx", dsn)
}

// Migrate applies idempotent schema changes for all required tables and
// indices. The versioned migrations in db/migrations/ are the canonical
// history; this embedded set exists so a fresh binary can bootstrap without
// the migration files on disk.
func Migrate(ctx context.Context, db *sql.DB) error { return migratePostgres(ctx, db) }

func migratePostgres(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS presence_events (
			id BIGSERIAL PRIMARY KEY,
			channel TEXT NOT NULL,
			username TEXT NOT NULL,
			action TEXT NOT NULL,
			method TEXT,
			joined_at TIMESTAMPTZ,
			left_at TIMESTAMPTZ,
			duration_seconds DOUBLE PRECISION,
			created_at TIMESTAMPTZ DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS viewer_sessions (
			id BIGSERIAL PRIMARY KEY,
			channel TEXT NOT NULL,
			username TEXT NOT NULL,
			joined_at TIMESTAMPTZ NOT NULL,
			left_at TIMESTAMPTZ,
			duration_seconds DOUBLE PRECISION,
			method TEXT,
			created_at TIMESTAMPTZ DEFAULT NOW(),
			UNIQUE (channel, username, joined_at)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_presence_events_channel_created ON presence_events(channel, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_presence_events_username ON presence_events(username)`,
		`CREATE INDEX IF NOT EXISTS idx_viewer_sessions_channel_joined ON viewer_sessions(channel, joined_at)`,
	}
	for i, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("postgres migrate step %d failed: %w", i, err)
		}
	}
	return nil
}
