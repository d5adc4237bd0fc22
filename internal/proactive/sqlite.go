package proactive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/personachat/personachat/internal/db"
)

// SQLiteStore keeps scheduler state in the scheduler_state table.
type SQLiteStore struct {
	db *db.DB
}

func NewSQLiteStore(database *db.DB) *SQLiteStore {
	return &SQLiteStore{db: database}
}

func (s *SQLiteStore) Load(ctx context.Context, userID string) (State, bool, error) {
	var st State
	var enabled int
	var freq string
	var lastSent sql.NullString
	err := s.db.Conn().QueryRowContext(ctx, `
		SELECT enabled, frequency, quiet_start, quiet_end, last_sent_at, total_sent
		FROM scheduler_state WHERE user_id = ?`, userID,
	).Scan(&enabled, &freq, &st.QuietHours.Start, &st.QuietHours.End, &lastSent, &st.TotalSent)
	if errors.Is(err, sql.ErrNoRows) {
		return State{}, false, nil
	}
	if err != nil {
		return State{}, false, fmt.Errorf("load scheduler state: %w", err)
	}

	st.Enabled = enabled != 0
	st.Frequency = Frequency(freq)
	if lastSent.Valid && lastSent.String != "" {
		t, err := time.Parse(time.RFC3339Nano, lastSent.String)
		if err != nil {
			return State{}, false, fmt.Errorf("parse last_sent_at %q: %w", lastSent.String, err)
		}
		st.LastSentAt = t
	}
	return st, true, nil
}

func (s *SQLiteStore) Save(ctx context.Context, userID string, st State) error {
	var lastSent any
	if !st.LastSentAt.IsZero() {
		lastSent = st.LastSentAt.UTC().Format(time.RFC3339Nano)
	}
	enabled := 0
	if st.Enabled {
		enabled = 1
	}
	_, err := s.db.Conn().ExecContext(ctx, `
		INSERT INTO scheduler_state (user_id, enabled, frequency, quiet_start, quiet_end, last_sent_at, total_sent)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
		    enabled      = excluded.enabled,
		    frequency    = excluded.frequency,
		    quiet_start  = excluded.quiet_start,
		    quiet_end    = excluded.quiet_end,
		    last_sent_at = excluded.last_sent_at,
		    total_sent   = excluded.total_sent`,
		userID, enabled, string(st.Frequency), st.QuietHours.Start, st.QuietHours.End, lastSent, st.TotalSent,
	)
	if err != nil {
		return fmt.Errorf("save scheduler state: %w", err)
	}
	return nil
}

// MemStore is an in-process Store.
type MemStore struct {
	mu     sync.Mutex
	states map[string]State
}

func NewMemStore() *MemStore {
	return &MemStore{states: map[string]State{}}
}

func (m *MemStore) Load(_ context.Context, userID string) (State, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[userID]
	return st, ok, nil
}

func (m *MemStore) Save(_ context.Context, userID string, st State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[userID] = st
	return nil
}
