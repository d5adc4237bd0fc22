package db

import (
	"database/sql"
	"fmt"
)

// migrations is an ordered list of SQL migration statements.
// Each entry is applied once in order. New migrations are appended at the end.
var migrations = []string{
	// Migration 0: user memory document, one row per user.
	`CREATE TABLE IF NOT EXISTS user_memory (
		user_id      TEXT PRIMARY KEY,
		facts        TEXT NOT NULL DEFAULT '[]',
		preferences  TEXT NOT NULL DEFAULT '{}',
		last_updated DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS personas (
		id             TEXT PRIMARY KEY,
		user_id        TEXT NOT NULL,
		name           TEXT NOT NULL,
		description    TEXT NOT NULL DEFAULT '',
		prompt         TEXT NOT NULL,
		tone           TEXT NOT NULL DEFAULT '',
		creativity     TEXT NOT NULL DEFAULT '',
		formality      TEXT NOT NULL DEFAULT '',
		speaking_style TEXT NOT NULL DEFAULT '',
		created_at     DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at     DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS sessions (
		id            TEXT PRIMARY KEY,
		user_id       TEXT NOT NULL,
		persona_id    TEXT NOT NULL,
		title         TEXT NOT NULL,
		created_at    DATETIME DEFAULT CURRENT_TIMESTAMP,
		last_modified DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS messages (
		id           TEXT PRIMARY KEY,
		session_id   TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		seq          INTEGER NOT NULL,
		role         TEXT NOT NULL,
		content      TEXT NOT NULL DEFAULT '',
		state        TEXT NOT NULL,
		error_detail TEXT NOT NULL DEFAULT '',
		created_at   DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS scheduler_state (
		user_id      TEXT PRIMARY KEY,
		enabled      INTEGER NOT NULL DEFAULT 0,
		frequency    TEXT NOT NULL,
		quiet_start  TEXT NOT NULL,
		quiet_end    TEXT NOT NULL,
		last_sent_at DATETIME,
		total_sent   INTEGER NOT NULL DEFAULT 0
	)`,

	`CREATE INDEX IF NOT EXISTS idx_personas_user        ON personas(user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_user_modified ON sessions(user_id, last_modified DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_session_seq ON messages(session_id, seq)`,
}

// applyMigrations runs any migrations that have not yet been applied. Each
// migration and its version record commit together.
func applyMigrations(conn *sql.DB) error {
	if _, err := conn.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	applied := map[int]bool{}
	rows, err := conn.Query(`SELECT version FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("read schema_migrations: %w", err)
	}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return fmt.Errorf("read schema_migrations: %w", err)
		}
		applied[v] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("read schema_migrations: %w", err)
	}

	for i, stmt := range migrations {
		if applied[i] {
			continue
		}
		if err := applyOne(conn, i, stmt); err != nil {
			return err
		}
	}
	return nil
}

func applyOne(conn *sql.DB, version int, stmt string) error {
	tx, err := conn.Begin()
	if err != nil {
		return fmt.Errorf("migration %d: begin: %w", version, err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(stmt); err != nil {
		return fmt.Errorf("apply migration %d: %w", version, err)
	}
	if _, err := tx.Exec(`INSERT INTO schema_migrations (version) VALUES (?)`, version); err != nil {
		return fmt.Errorf("record migration %d: %w", version, err)
	}
	return tx.Commit()
}
