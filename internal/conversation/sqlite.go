package conversation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/personachat/personachat/internal/adapter"
	"github.com/personachat/personachat/internal/db"
)

// Repository persists sessions and their messages.
type Repository interface {
	Save(ctx context.Context, s *Session) error
	Get(ctx context.Context, userID, id string) (*Session, error)
	// List returns sessions without messages, most recently modified first.
	List(ctx context.Context, userID string) ([]Session, error)
	Delete(ctx context.Context, userID, id string) error
	RetirePersona(ctx context.Context, userID, personaID, fallbackID string) (int64, error)
	CountByPersona(ctx context.Context, userID string) (map[string]int, error)
}

// timeLayout has a fixed-width fraction so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// SQLiteRepository stores sessions in the sessions and messages tables.
type SQLiteRepository struct {
	db *db.DB
}

func NewSQLiteRepository(database *db.DB) *SQLiteRepository {
	return &SQLiteRepository{db: database}
}

// Save writes the session row and replaces its message list.
func (r *SQLiteRepository) Save(ctx context.Context, s *Session) error {
	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO sessions (id, user_id, persona_id, title, created_at, last_modified)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
			    persona_id    = excluded.persona_id,
			    title         = excluded.title,
			    last_modified = excluded.last_modified`,
			s.ID, s.UserID, s.PersonaID, s.Title, formatTime(s.CreatedAt), formatTime(s.LastModified),
		); err != nil {
			return fmt.Errorf("upsert session: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE session_id = ?`, s.ID); err != nil {
			return fmt.Errorf("clear messages: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO messages (id, session_id, seq, role, content, state, error_detail, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare insert message: %w", err)
		}
		defer stmt.Close()

		for i, m := range s.Messages {
			if _, err := stmt.ExecContext(ctx, m.ID, s.ID, i, string(m.Role), m.Content,
				string(m.State), m.ErrorDetail, formatTime(m.CreatedAt)); err != nil {
				return fmt.Errorf("insert message %s: %w", m.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("conversation: save: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, userID, id string) (*Session, error) {
	row := r.db.Conn().QueryRowContext(ctx, `
		SELECT id, user_id, persona_id, title, created_at, last_modified
		FROM sessions WHERE user_id = ? AND id = ?`, userID, id)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("conversation: get session: %w", err)
	}

	rows, err := r.db.Conn().QueryContext(ctx, `
		SELECT id, role, content, state, error_detail, created_at
		FROM messages WHERE session_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("conversation: get messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var m Message
		var role, state, createdAt string
		if err := rows.Scan(&m.ID, &role, &m.Content, &state, &m.ErrorDetail, &createdAt); err != nil {
			return nil, fmt.Errorf("conversation: scan message: %w", err)
		}
		m.Role = adapter.Role(role)
		m.State = State(state)
		m.CreatedAt = parseTime(createdAt)
		s.Messages = append(s.Messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SQLiteRepository) List(ctx context.Context, userID string) ([]Session, error) {
	rows, err := r.db.Conn().QueryContext(ctx, `
		SELECT id, user_id, persona_id, title, created_at, last_modified
		FROM sessions WHERE user_id = ?
		ORDER BY last_modified DESC, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("conversation: list sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("conversation: scan session: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) Delete(ctx context.Context, userID, id string) error {
	res, err := r.db.Conn().ExecContext(ctx, `DELETE FROM sessions WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return fmt.Errorf("conversation: delete session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// RetirePersona moves every session using personaID to fallbackID.
func (r *SQLiteRepository) RetirePersona(ctx context.Context, userID, personaID, fallbackID string) (int64, error) {
	res, err := r.db.Conn().ExecContext(ctx,
		`UPDATE sessions SET persona_id = ? WHERE user_id = ? AND persona_id = ?`,
		fallbackID, userID, personaID)
	if err != nil {
		return 0, fmt.Errorf("conversation: retire persona: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (r *SQLiteRepository) CountByPersona(ctx context.Context, userID string) (map[string]int, error) {
	rows, err := r.db.Conn().QueryContext(ctx,
		`SELECT persona_id, COUNT(*) FROM sessions WHERE user_id = ? GROUP BY persona_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("conversation: count sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := map[string]int{}
	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		counts[id] = n
	}
	return counts, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(sc scanner) (Session, error) {
	var s Session
	var createdAt, modified string
	if err := sc.Scan(&s.ID, &s.UserID, &s.PersonaID, &s.Title, &createdAt, &modified); err != nil {
		return s, err
	}
	s.CreatedAt = parseTime(createdAt)
	s.LastModified = parseTime(modified)
	return s, nil
}
