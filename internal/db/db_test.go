package db

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	database, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

func TestOpen_CreatesDatabase(t *testing.T) {
	database := openTestDB(t)
	if err := database.Ping(); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestOpen_CreatesParentDirs(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "subdir", "nested", "test.db")
	database, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer database.Close()
}

func TestOpen_TablesExist(t *testing.T) {
	database := openTestDB(t)

	tables := []string{"user_memory", "personas", "sessions", "messages", "scheduler_state", "schema_migrations"}
	for _, table := range tables {
		var count int
		err := database.Conn().QueryRow(
			`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, table,
		).Scan(&count)
		if err != nil {
			t.Fatalf("query table %q: %v", table, err)
		}
		if count != 1 {
			t.Errorf("table %q not found", table)
		}
	}
}

func TestOpen_MigrationsRecorded(t *testing.T) {
	database := openTestDB(t)

	var count int
	err := database.Conn().QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&count)
	if err != nil {
		t.Fatalf("query migrations: %v", err)
	}
	if count != len(migrations) {
		t.Errorf("expected %d migrations recorded, got %d", len(migrations), count)
	}
}

func TestOpen_Idempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	db1, err := Open(dbPath)
	if err != nil {
		t.Fatalf("first Open: %v", err)
	}
	if _, err := db1.Conn().Exec(`INSERT INTO user_memory (user_id) VALUES ('u1')`); err != nil {
		t.Fatalf("insert: %v", err)
	}
	db1.Close()

	db2, err := Open(dbPath)
	if err != nil {
		t.Fatalf("second Open: %v", err)
	}
	defer db2.Close()

	var count int
	db2.Conn().QueryRow(`SELECT COUNT(*) FROM user_memory`).Scan(&count)
	if count != 1 {
		t.Errorf("expected row to survive re-open, got %d rows", count)
	}
}

func TestOpen_MessagesCascadeWithSession(t *testing.T) {
	database := openTestDB(t)
	conn := database.Conn()

	if _, err := conn.Exec(`INSERT INTO sessions (id, user_id, persona_id, title) VALUES ('s1', 'u', 'corporate', 'New Chat')`); err != nil {
		t.Fatalf("insert session: %v", err)
	}
	if _, err := conn.Exec(`INSERT INTO messages (id, session_id, seq, role, state) VALUES ('m1', 's1', 0, 'user', 'complete')`); err != nil {
		t.Fatalf("insert message: %v", err)
	}
	if _, err := conn.Exec(`DELETE FROM sessions WHERE id = 's1'`); err != nil {
		t.Fatalf("delete session: %v", err)
	}

	var count int
	conn.QueryRow(`SELECT COUNT(*) FROM messages`).Scan(&count)
	if count != 0 {
		t.Errorf("expected messages to cascade, %d remain", count)
	}
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	database := openTestDB(t)
	boom := errors.New("boom")

	err := database.WithTx(context.Background(), func(tx *sql.Tx) error {
		if _, err := tx.Exec(`INSERT INTO user_memory (user_id) VALUES ('u1')`); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	var count int
	database.Conn().QueryRow(`SELECT COUNT(*) FROM user_memory`).Scan(&count)
	if count != 0 {
		t.Errorf("expected rollback, got %d rows", count)
	}
}

func TestWithTx_Commits(t *testing.T) {
	database := openTestDB(t)

	err := database.WithTx(context.Background(), func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO user_memory (user_id) VALUES ('u1')`)
		return err
	})
	if err != nil {
		t.Fatalf("WithTx: %v", err)
	}

	var count int
	database.Conn().QueryRow(`SELECT COUNT(*) FROM user_memory`).Scan(&count)
	if count != 1 {
		t.Errorf("expected 1 row, got %d", count)
	}
}
