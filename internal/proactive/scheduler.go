// Package proactive decides when to send unsolicited persona messages and
// emits them to sinks such as the conversation manager and notifications.
package proactive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/personachat/personachat/internal/logger"
)

// State is the persisted scheduler record for one user. TotalSent only
// grows and LastSentAt only moves forward.
type State struct {
	Enabled    bool       `json:"enabled"`
	Frequency  Frequency  `json:"frequency"`
	QuietHours QuietHours `json:"quiet_hours"`
	LastSentAt time.Time  `json:"last_sent_at,omitempty"`
	TotalSent  int        `json:"total_sent"`
}

// Settings is a partial update to State. Nil fields are left alone.
type Settings struct {
	Enabled    *bool
	Frequency  *Frequency
	QuietStart *string
	QuietEnd   *string
}

// Event is one proactive message.
type Event struct {
	PersonaID string
	Text      string
	At        time.Time
}

// Sink receives fired events.
type Sink interface {
	Deliver(ctx context.Context, ev Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, ev Event) error

func (f SinkFunc) Deliver(ctx context.Context, ev Event) error { return f(ctx, ev) }

// Store persists State per user. Load reports false when nothing is stored.
type Store interface {
	Load(ctx context.Context, userID string) (State, bool, error)
	Save(ctx context.Context, userID string, st State) error
}

// Scheduler evaluates the schedule on each tick. It makes no network
// calls itself.
type Scheduler struct {
	store    Store
	userID   string
	defaults State
	persona  func(ctx context.Context) string
	sinks    []Sink
	now      func() time.Time
	log      *slog.Logger

	mu  sync.Mutex
	rnd *rand.Rand
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithPersona sets how the persona for scheduled messages is chosen.
// The default is the corporate persona.
func WithPersona(fn func(ctx context.Context) string) Option {
	return func(s *Scheduler) { s.persona = fn }
}

// WithSink adds a receiver for fired events. Sinks run in the order added.
func WithSink(sink Sink) Option {
	return func(s *Scheduler) { s.sinks = append(s.sinks, sink) }
}

func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithRand fixes the template picker's randomness.
func WithRand(r *rand.Rand) Option {
	return func(s *Scheduler) { s.rnd = r }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.log = logger.OrNop(l) }
}

// NewScheduler creates a scheduler for userID. defaults is the state used
// until something has been saved.
func NewScheduler(store Store, userID string, defaults State, opts ...Option) *Scheduler {
	s := &Scheduler{
		store:    store,
		userID:   userID,
		defaults: defaults,
		persona:  func(context.Context) string { return "corporate" },
		now:      time.Now,
		log:      logger.Nop(),
		rnd:      rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current state.
func (s *Scheduler) State(ctx context.Context) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

func (s *Scheduler) load(ctx context.Context) (State, error) {
	st, ok, err := s.store.Load(ctx, s.userID)
	if err != nil {
		return State{}, fmt.Errorf("proactive: load state: %w", err)
	}
	if !ok {
		return s.defaults, nil
	}
	return st, nil
}

// ShouldFire reports whether a message is due at now.
func ShouldFire(st State, now time.Time) bool {
	if !st.Enabled || st.QuietHours.Contains(now) {
		return false
	}
	if st.LastSentAt.IsZero() {
		return true
	}
	interval, ok := st.Frequency.Interval()
	if !ok {
		return false
	}
	return now.Sub(st.LastSentAt) >= interval
}

// InQuietHours reports whether now is inside the configured quiet window.
func (s *Scheduler) InQuietHours(ctx context.Context, now time.Time) (bool, error) {
	st, err := s.State(ctx)
	if err != nil {
		return false, err
	}
	return st.QuietHours.Contains(now), nil
}

// Tick evaluates the schedule at now and fires when a message is due.
// Evaluation and the state update happen under one lock.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) (bool, error) {
	s.mu.Lock()
	st, err := s.load(ctx)
	if err != nil {
		s.mu.Unlock()
		return false, err
	}
	if !ShouldFire(st, now) {
		s.mu.Unlock()
		return false, nil
	}
	ev, err := s.record(ctx, st, s.persona(ctx), "", now)
	s.mu.Unlock()
	if err != nil {
		return false, err
	}

	s.emit(ctx, ev)
	return true, nil
}

// Fire sends a message from personaID now, regardless of schedule. An
// empty text picks a template for the persona.
func (s *Scheduler) Fire(ctx context.Context, personaID, text string) (Event, error) {
	if personaID == "" {
		personaID = s.persona(ctx)
	}
	now := s.now()

	s.mu.Lock()
	st, err := s.load(ctx)
	var ev Event
	if err == nil {
		ev, err = s.record(ctx, st, personaID, text, now)
	}
	s.mu.Unlock()
	if err != nil {
		return Event{}, err
	}

	s.emit(ctx, ev)
	return ev, nil
}

// record updates the counters and persists them. s.mu must be held.
func (s *Scheduler) record(ctx context.Context, st State, personaID, text string, now time.Time) (Event, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		text = pick(personaID, s.rnd)
	}
	if now.After(st.LastSentAt) {
		st.LastSentAt = now
	}
	st.TotalSent++
	if err := s.store.Save(ctx, s.userID, st); err != nil {
		return Event{}, fmt.Errorf("proactive: save state: %w", err)
	}
	s.log.Info("proactive message fired", "persona", personaID, "total_sent", st.TotalSent)
	return Event{PersonaID: personaID, Text: text, At: now}, nil
}

func (s *Scheduler) emit(ctx context.Context, ev Event) {
	for _, sink := range s.sinks {
		if err := sink.Deliver(ctx, ev); err != nil {
			s.log.Warn("proactive sink failed", "persona", ev.PersonaID, "error", err)
		}
	}
}

// UpdateSettings merges set into the state. Time strings are stored as
// given; a malformed window simply never counts as quiet.
func (s *Scheduler) UpdateSettings(ctx context.Context, set Settings) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.load(ctx)
	if err != nil {
		return State{}, err
	}
	if set.Enabled != nil {
		st.Enabled = *set.Enabled
	}
	if set.Frequency != nil {
		st.Frequency = *set.Frequency
	}
	if set.QuietStart != nil {
		st.QuietHours.Start = *set.QuietStart
	}
	if set.QuietEnd != nil {
		st.QuietHours.End = *set.QuietEnd
	}
	if err := s.store.Save(ctx, s.userID, st); err != nil {
		return State{}, fmt.Errorf("proactive: save state: %w", err)
	}
	return st, nil
}

// Run ticks every interval until ctx is cancelled. Tick errors are logged
// and the loop keeps going.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return errors.New("proactive: interval must be positive")
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.log.Debug("proactive scheduler started", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.Tick(ctx, s.now()); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				s.log.Warn("proactive tick failed", "error", err)
			}
		}
	}
}
