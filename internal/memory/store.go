package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/personachat/personachat/internal/logger"
)

// DefaultMaxFacts is the per-user cap; adding beyond it evicts the oldest.
const DefaultMaxFacts = 20

var (
	ErrIndexOutOfRange = errors.New("memory: fact index out of range")
	ErrEmptyFact       = errors.New("memory: fact text is empty")
	ErrDuplicate       = errors.New("memory: an equal fact already exists")
)

// Backend persists one Document per user. Load returns an empty document,
// not an error, for users with nothing stored.
type Backend interface {
	Load(ctx context.Context, userID string) (Document, error)
	Save(ctx context.Context, userID string, doc Document) error
	Delete(ctx context.Context, userID string) error
}

// Store holds each user's ordered fact list.
type Store struct {
	mu       sync.Mutex
	backend  Backend
	maxFacts int
	now      func() time.Time
	log      *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithMaxFacts overrides DefaultMaxFacts.
func WithMaxFacts(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxFacts = n
		}
	}
}

// WithClock sets the time source used for last_updated stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.log = logger.OrNop(l) }
}

// NewStore creates a Store over the given backend.
func NewStore(backend Backend, opts ...Option) *Store {
	s := &Store{
		backend:  backend,
		maxFacts: DefaultMaxFacts,
		now:      time.Now,
		log:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MaxFacts returns the configured cap.
func (s *Store) MaxFacts() int { return s.maxFacts }

// Facts returns the user's facts, oldest first.
func (s *Store) Facts(ctx context.Context, userID string) ([]Fact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.backend.Load(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("memory: load: %w", err)
	}
	return doc.FactList(), nil
}

// Document returns the user's raw persisted document.
func (s *Store) Document(ctx context.Context, userID string) (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.backend.Load(ctx, userID)
	if err != nil {
		return Document{}, fmt.Errorf("memory: load: %w", err)
	}
	if doc.Facts == nil {
		doc.Facts = []string{}
	}
	if doc.PersonalityPreferences == nil {
		doc.PersonalityPreferences = map[string]string{}
	}
	return doc, nil
}

// Add inserts fact unless an equal one (case-insensitive text) exists, then
// enforces the cap. It reports whether the fact was stored.
func (s *Store) Add(ctx context.Context, userID string, fact Fact) (bool, error) {
	n, err := s.AddAll(ctx, userID, []Fact{fact})
	return n > 0, err
}

// AddAll inserts each fact in order with the same rules as Add and saves
// once. It returns how many were stored.
func (s *Store) AddAll(ctx context.Context, userID string, facts []Fact) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.backend.Load(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("memory: load: %w", err)
	}
	current := doc.FactList()

	added := 0
	for _, f := range facts {
		f.Text = stripPrefix(f.Text, f.Category)
		if f.Text == "" {
			continue
		}
		if !ValidCategory(f.Category) {
			f.Category = CategoryExplicit
		}
		if indexOf(current, f.Text) >= 0 {
			continue
		}
		current = append(current, f)
		added++
	}
	if added == 0 {
		return 0, nil
	}

	if over := len(current) - s.maxFacts; over > 0 {
		s.log.Debug("evicting oldest facts", "user", userID, "count", over)
		current = current[over:]
	}
	if err := s.save(ctx, userID, doc, current); err != nil {
		return 0, err
	}
	return added, nil
}

// Remove deletes the fact at index.
func (s *Store) Remove(ctx context.Context, userID string, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.backend.Load(ctx, userID)
	if err != nil {
		return fmt.Errorf("memory: load: %w", err)
	}
	current := doc.FactList()
	if index < 0 || index >= len(current) {
		return ErrIndexOutOfRange
	}
	current = append(current[:index], current[index+1:]...)
	return s.save(ctx, userID, doc, current)
}

// Update replaces the text of the fact at index, keeping its category.
func (s *Store) Update(ctx context.Context, userID string, index int, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyFact
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.backend.Load(ctx, userID)
	if err != nil {
		return fmt.Errorf("memory: load: %w", err)
	}
	current := doc.FactList()
	if index < 0 || index >= len(current) {
		return ErrIndexOutOfRange
	}
	if i := indexOf(current, text); i >= 0 && i != index {
		return ErrDuplicate
	}
	current[index].Text = stripPrefix(text, current[index].Category)
	return s.save(ctx, userID, doc, current)
}

// Clear removes every fact and preference for the user.
func (s *Store) Clear(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.backend.Delete(ctx, userID); err != nil {
		return fmt.Errorf("memory: clear: %w", err)
	}
	return nil
}

// SetPreferences merges prefs into the user's personality preferences. An
// empty value removes the key.
func (s *Store) SetPreferences(ctx context.Context, userID string, prefs map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.backend.Load(ctx, userID)
	if err != nil {
		return fmt.Errorf("memory: load: %w", err)
	}
	if doc.PersonalityPreferences == nil {
		doc.PersonalityPreferences = map[string]string{}
	}
	for k, v := range prefs {
		if v == "" {
			delete(doc.PersonalityPreferences, k)
			continue
		}
		doc.PersonalityPreferences[k] = v
	}
	return s.save(ctx, userID, doc, doc.FactList())
}

// Context returns the formatted memory block for the user.
func (s *Store) Context(ctx context.Context, userID string) (string, error) {
	facts, err := s.Facts(ctx, userID)
	if err != nil {
		return "", err
	}
	return FormatContext(facts), nil
}

// Learn extracts facts from text and stores them. It is meant for the chat
// path: failures are logged and swallowed.
func (s *Store) Learn(ctx context.Context, userID, text string) int {
	candidates := Extract(text)
	if len(candidates) == 0 {
		return 0
	}
	n, err := s.AddAll(ctx, userID, candidates)
	if err != nil {
		s.log.Warn("memory extraction failed", "user", userID, "error", err)
		return 0
	}
	if n > 0 {
		s.log.Debug("learned facts", "user", userID, "count", n)
	}
	return n
}

func (s *Store) save(ctx context.Context, userID string, doc Document, facts []Fact) error {
	doc.SetFacts(facts)
	doc.LastUpdated = s.now().UTC()
	if err := s.backend.Save(ctx, userID, doc); err != nil {
		return fmt.Errorf("memory: save: %w", err)
	}
	return nil
}

func indexOf(facts []Fact, text string) int {
	for i, f := range facts {
		if strings.EqualFold(f.Text, text) {
			return i
		}
	}
	return -1
}
