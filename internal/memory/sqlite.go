package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/personachat/personachat/internal/db"
)

// SQLiteBackend keeps memory documents in the user_memory table.
type SQLiteBackend struct {
	db *db.DB
}

// NewSQLiteBackend creates a backend over an open database.
func NewSQLiteBackend(database *db.DB) *SQLiteBackend {
	return &SQLiteBackend{db: database}
}

func (b *SQLiteBackend) Load(ctx context.Context, userID string) (Document, error) {
	var (
		doc                  Document
		factsJSON, prefsJSON string
		updated              string
	)
	err := b.db.Conn().QueryRowContext(ctx,
		`SELECT facts, preferences, last_updated FROM user_memory WHERE user_id = ?`, userID,
	).Scan(&factsJSON, &prefsJSON, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, nil
	}
	if err != nil {
		return doc, fmt.Errorf("select user_memory: %w", err)
	}
	if err := json.Unmarshal([]byte(factsJSON), &doc.Facts); err != nil {
		return doc, fmt.Errorf("decode facts: %w", err)
	}
	if err := json.Unmarshal([]byte(prefsJSON), &doc.PersonalityPreferences); err != nil {
		return doc, fmt.Errorf("decode preferences: %w", err)
	}
	doc.LastUpdated = parseTime(updated)
	return doc, nil
}

func (b *SQLiteBackend) Save(ctx context.Context, userID string, doc Document) error {
	if doc.Facts == nil {
		doc.Facts = []string{}
	}
	if doc.PersonalityPreferences == nil {
		doc.PersonalityPreferences = map[string]string{}
	}
	factsJSON, err := json.Marshal(doc.Facts)
	if err != nil {
		return err
	}
	prefsJSON, err := json.Marshal(doc.PersonalityPreferences)
	if err != nil {
		return err
	}
	_, err = b.db.Conn().ExecContext(ctx, `
		INSERT INTO user_memory (user_id, facts, preferences, last_updated)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
		    facts        = excluded.facts,
		    preferences  = excluded.preferences,
		    last_updated = excluded.last_updated`,
		userID, string(factsJSON), string(prefsJSON), doc.LastUpdated.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upsert user_memory: %w", err)
	}
	return nil
}

func (b *SQLiteBackend) Delete(ctx context.Context, userID string) error {
	_, err := b.db.Conn().ExecContext(ctx, `DELETE FROM user_memory WHERE user_id = ?`, userID)
	return err
}

func parseTime(s string) time.Time {
	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
