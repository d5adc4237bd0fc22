package persona

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/personachat/personachat/internal/db"
)

// SQLiteRepository stores custom personas in the personas table.
type SQLiteRepository struct {
	db *db.DB
}

func NewSQLiteRepository(database *db.DB) *SQLiteRepository {
	return &SQLiteRepository{db: database}
}

const personaColumns = `id, name, description, prompt, tone, creativity, formality, speaking_style, created_at, updated_at`

func (r *SQLiteRepository) List(ctx context.Context, userID string) ([]Persona, error) {
	rows, err := r.db.Conn().QueryContext(ctx,
		`SELECT `+personaColumns+` FROM personas WHERE user_id = ? ORDER BY name`, userID)
	if err != nil {
		return nil, fmt.Errorf("list personas: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Persona
	for rows.Next() {
		p, err := scanPersona(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) Get(ctx context.Context, userID, id string) (Persona, error) {
	row := r.db.Conn().QueryRowContext(ctx,
		`SELECT `+personaColumns+` FROM personas WHERE user_id = ? AND id = ?`, userID, id)
	p, err := scanPersona(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Persona{}, ErrNotFound
	}
	return p, err
}

func (r *SQLiteRepository) Save(ctx context.Context, userID string, p Persona) error {
	_, err := r.db.Conn().ExecContext(ctx, `
		INSERT INTO personas (id, user_id, name, description, prompt, tone, creativity, formality, speaking_style, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
		    name           = excluded.name,
		    description    = excluded.description,
		    prompt         = excluded.prompt,
		    tone           = excluded.tone,
		    creativity     = excluded.creativity,
		    formality      = excluded.formality,
		    speaking_style = excluded.speaking_style,
		    updated_at     = excluded.updated_at`,
		p.ID, userID, p.Name, p.Description, p.Prompt,
		string(p.Tone), string(p.Creativity), string(p.Formality), string(p.SpeakingStyle),
		p.CreatedAt.UTC().Format(time.RFC3339Nano), p.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save persona: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, userID, id string) error {
	res, err := r.db.Conn().ExecContext(ctx, `DELETE FROM personas WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return fmt.Errorf("delete persona: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPersona(s scanner) (Persona, error) {
	var p Persona
	var tone, creativity, formality, style, createdAt, updatedAt string
	if err := s.Scan(&p.ID, &p.Name, &p.Description, &p.Prompt, &tone, &creativity, &formality, &style, &createdAt, &updatedAt); err != nil {
		return p, err
	}
	p.Kind = KindCustom
	p.Tone = Tone(tone)
	p.Creativity = Creativity(creativity)
	p.Formality = Formality(formality)
	p.SpeakingStyle = SpeakingStyle(style)
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return p, nil
}

func parseTime(s string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
