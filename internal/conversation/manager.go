package conversation

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/personachat/personachat/internal/adapter"
	"github.com/personachat/personachat/internal/completion"
	"github.com/personachat/personachat/internal/logger"
	"github.com/personachat/personachat/internal/memory"
)

// Personas composes system prompts for persona ids.
type Personas interface {
	ComposePrompt(ctx context.Context, id string, facts []memory.Fact) string
	DefaultID() string
}

// Memory supplies remembered facts and learns new ones from user text.
type Memory interface {
	Facts(ctx context.Context, userID string) ([]memory.Fact, error)
	Learn(ctx context.Context, userID, text string) int
}

// Completer streams one assistant reply.
type Completer interface {
	Stream(ctx context.Context, req completion.Request, onChunk func(text string)) (completion.Result, error)
}

// Manager runs the conversation flow for one user. It serialises all
// mutations of a session and allows one generation per session at a time.
type Manager struct {
	repo     Repository
	personas Personas
	memory   Memory
	client   Completer
	userID   string
	learn    bool
	now      func() time.Time
	log      *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	cancels  map[string]context.CancelFunc
}

// Option configures a Manager.
type Option func(*Manager)

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.log = logger.OrNop(l) }
}

// WithAutoExtract controls whether user messages feed memory extraction.
// It is on by default.
func WithAutoExtract(on bool) Option {
	return func(m *Manager) { m.learn = on }
}

// NewManager wires a Manager. mem may be nil, which disables memory.
func NewManager(repo Repository, personas Personas, mem Memory, client Completer, userID string, opts ...Option) *Manager {
	m := &Manager{
		repo:     repo,
		personas: personas,
		memory:   mem,
		client:   client,
		userID:   userID,
		learn:    true,
		now:      time.Now,
		log:      logger.Nop(),
		sessions: map[string]*Session{},
		cancels:  map[string]context.CancelFunc{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func newMessageID(now time.Time) string {
	return ulid.MustNew(ulid.Timestamp(now), rand.Reader).String()
}

// Create starts an empty session under personaID, or the default persona
// when personaID is empty.
func (m *Manager) Create(ctx context.Context, personaID string) (Session, error) {
	if personaID == "" {
		personaID = m.personas.DefaultID()
	}
	now := m.now()
	s := &Session{
		ID:           uuid.NewString(),
		UserID:       m.userID,
		PersonaID:    personaID,
		Title:        DefaultTitle,
		CreatedAt:    now,
		LastModified: now,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.repo.Save(ctx, s); err != nil {
		return Session{}, err
	}
	m.sessions[s.ID] = s
	m.log.Debug("session created", "session", s.ID, "persona", personaID)
	return s.clone(), nil
}

// Get returns a snapshot of the session.
func (m *Manager) Get(ctx context.Context, id string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.load(ctx, id)
	if err != nil {
		return Session{}, err
	}
	return s.clone(), nil
}

// List returns the user's sessions, most recently modified first. Listed
// sessions carry no messages.
func (m *Manager) List(ctx context.Context) ([]Session, error) {
	return m.repo.List(ctx, m.userID)
}

// CountByPersona returns how many sessions use each persona id.
func (m *Manager) CountByPersona(ctx context.Context) (map[string]int, error) {
	return m.repo.CountByPersona(ctx, m.userID)
}

// load returns the cached session or reads it from the repository.
// m.mu must be held.
func (m *Manager) load(ctx context.Context, id string) (*Session, error) {
	if s, ok := m.sessions[id]; ok {
		return s, nil
	}
	s, err := m.repo.Get(ctx, m.userID, id)
	if err != nil {
		return nil, err
	}
	m.sessions[id] = s
	return s, nil
}

// mutate applies fn to the session under the lock and persists the result.
// A failed save reloads the session from the repository on next use.
func (m *Manager) mutate(ctx context.Context, id string, fn func(s *Session) error) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.load(ctx, id)
	if err != nil {
		return Session{}, err
	}
	if err := fn(s); err != nil {
		return Session{}, err
	}
	if err := m.repo.Save(ctx, s); err != nil {
		delete(m.sessions, id)
		return Session{}, err
	}
	return s.clone(), nil
}

// AppendUserMessage adds a complete user message. The first message of a
// session sets its title. Memory extraction runs on the text; its failures
// never block the message.
func (m *Manager) AppendUserMessage(ctx context.Context, sessionID, text string) (Message, error) {
	var msg Message
	_, err := m.mutate(ctx, sessionID, func(s *Session) error {
		now := m.now()
		var err error
		msg, err = s.appendUser(newMessageID(now), text, now)
		return err
	})
	if err != nil {
		return Message{}, err
	}

	if m.learn && m.memory != nil {
		if n := m.memory.Learn(ctx, m.userID, msg.Content); n > 0 {
			m.log.Debug("learned facts from message", "session", sessionID, "count", n)
		}
	}
	return msg, nil
}

// BeginAssistantResponse appends a pending assistant message and returns
// its id.
func (m *Manager) BeginAssistantResponse(ctx context.Context, sessionID string) (string, error) {
	var msg Message
	_, err := m.mutate(ctx, sessionID, func(s *Session) error {
		now := m.now()
		var err error
		msg, err = s.beginAssistant(newMessageID(now), now)
		return err
	})
	return msg.ID, err
}

// ApplyChunk appends streamed text to an in-flight message. Chunks are
// held in memory and written out by Finalize.
func (m *Manager) ApplyChunk(ctx context.Context, sessionID, messageID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.load(ctx, sessionID)
	if err != nil {
		return err
	}
	return s.applyChunk(messageID, text, m.now())
}

// Finalize moves an in-flight message to its terminal state. An error
// outcome replaces the content with detail behind ErrorMarker.
func (m *Manager) Finalize(ctx context.Context, sessionID, messageID string, outcome Outcome, detail string) (Message, error) {
	var msg Message
	_, err := m.mutate(ctx, sessionID, func(s *Session) error {
		var err error
		msg, err = s.finalize(messageID, outcome, detail, m.now())
		return err
	})
	return msg, err
}

// Send appends text as a user message and generates the reply. onChunk,
// if set, sees each piece of streamed text.
func (m *Manager) Send(ctx context.Context, sessionID, text string, onChunk func(string)) (Message, error) {
	if _, err := m.AppendUserMessage(ctx, sessionID, text); err != nil {
		return Message{}, err
	}
	return m.Generate(ctx, sessionID, onChunk)
}

// RegenerateFrom truncates the session at anchor and generates a new reply
// against what remains. anchor is AnchorLast or a message id.
func (m *Manager) RegenerateFrom(ctx context.Context, sessionID, anchor string, onChunk func(string)) (Message, error) {
	_, err := m.mutate(ctx, sessionID, func(s *Session) error {
		return s.truncate(anchor, m.now())
	})
	if err != nil {
		return Message{}, err
	}
	return m.Generate(ctx, sessionID, onChunk)
}

// Generate streams an assistant reply to the current session history.
// Provider failures end up in the returned message with StateError; the
// error return is reserved for session and storage failures. Stop or
// cancelling ctx ends the reply as StateAborted with its partial content.
func (m *Manager) Generate(ctx context.Context, sessionID string, onChunk func(string)) (Message, error) {
	messageID, err := m.BeginAssistantResponse(ctx, sessionID)
	if err != nil {
		return Message{}, err
	}

	req, err := m.request(ctx, sessionID, messageID)
	if err != nil {
		return m.fail(sessionID, messageID, err)
	}

	genCtx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	m.cancels[sessionID] = cancel
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		delete(m.cancels, sessionID)
		m.mu.Unlock()
		cancel()
	}()

	res, err := m.client.Stream(genCtx, req, func(text string) {
		if err := m.ApplyChunk(ctx, sessionID, messageID, text); err != nil {
			m.log.Warn("dropping chunk", "session", sessionID, "message", messageID, "error", err)
			return
		}
		if onChunk != nil {
			onChunk(text)
		}
	})

	// Finalize must persist even when the caller's ctx is what stopped us.
	fctx := context.WithoutCancel(ctx)
	switch {
	case err != nil:
		return m.Finalize(fctx, sessionID, messageID, StateError, userMessage(err))
	case res.Outcome == completion.OutcomeAborted:
		m.log.Info("generation stopped", "session", sessionID, "message", messageID)
		return m.Finalize(fctx, sessionID, messageID, StateAborted, "")
	default:
		m.log.Debug("generation complete", "session", sessionID, "model", res.Model, "attempts", res.Attempts)
		return m.Finalize(fctx, sessionID, messageID, StateComplete, "")
	}
}

func (m *Manager) fail(sessionID, messageID string, cause error) (Message, error) {
	msg, err := m.Finalize(context.Background(), sessionID, messageID, StateError, userMessage(cause))
	if err != nil {
		return Message{}, errors.Join(cause, err)
	}
	return msg, nil
}

// request builds the completion request for the in-flight message.
func (m *Manager) request(ctx context.Context, sessionID, messageID string) (completion.Request, error) {
	m.mu.Lock()
	s, err := m.load(ctx, sessionID)
	if err != nil {
		m.mu.Unlock()
		return completion.Request{}, err
	}
	personaID := s.PersonaID
	history := make([]completion.Turn, 0, len(s.Messages))
	for _, msg := range s.Messages {
		if msg.ID == messageID {
			break
		}
		history = append(history, completion.Turn{
			Role:      msg.Role,
			Content:   msg.Content,
			Transient: msg.State.InFlight() || msg.State == StateError || msg.Content == "",
		})
	}
	m.mu.Unlock()

	var facts []memory.Fact
	if m.memory != nil {
		facts, err = m.memory.Facts(ctx, m.userID)
		if err != nil {
			m.log.Warn("loading memory failed, continuing without it", "error", err)
			facts = nil
		}
	}

	return completion.Request{
		SystemPrompt: m.personas.ComposePrompt(ctx, personaID, facts),
		History:      history,
	}, nil
}

func userMessage(err error) string {
	var ae *adapter.Error
	if errors.As(err, &ae) {
		return ae.UserMessage()
	}
	return err.Error()
}

// Stop cancels the generation running in sessionID. It reports whether
// there was one.
func (m *Manager) Stop(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	cancel, ok := m.cancels[sessionID]
	if ok {
		cancel()
	}
	return ok
}

// Rename sets the session title.
func (m *Manager) Rename(ctx context.Context, sessionID, title string) (Session, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return Session{}, fmt.Errorf("conversation: title is empty")
	}
	return m.mutate(ctx, sessionID, func(s *Session) error {
		s.Title = title
		s.LastModified = m.now()
		return nil
	})
}

// Delete stops any generation in the session and removes it.
func (m *Manager) Delete(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cancel, ok := m.cancels[sessionID]; ok {
		cancel()
	}
	if err := m.repo.Delete(ctx, m.userID, sessionID); err != nil {
		return err
	}
	delete(m.sessions, sessionID)
	return nil
}

// DeliverProactive records an unsolicited assistant message from
// personaID. It goes into the most recent session with that persona, or a
// new one when there is none or that session is mid-generation.
func (m *Manager) DeliverProactive(ctx context.Context, personaID, text string) (Session, Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Session{}, Message{}, ErrEmptyMessage
	}

	target, err := m.proactiveTarget(ctx, personaID)
	if err != nil {
		return Session{}, Message{}, err
	}
	if target == "" {
		s, err := m.Create(ctx, personaID)
		if err != nil {
			return Session{}, Message{}, err
		}
		target = s.ID
	}

	var msg Message
	s, err := m.mutate(ctx, target, func(s *Session) error {
		now := m.now()
		var err error
		msg, err = s.appendAssistant(newMessageID(now), text, now)
		return err
	})
	if err != nil {
		return Session{}, Message{}, err
	}
	m.log.Info("proactive message delivered", "session", s.ID, "persona", personaID)
	return s, msg, nil
}

func (m *Manager) proactiveTarget(ctx context.Context, personaID string) (string, error) {
	sessions, err := m.repo.List(ctx, m.userID)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range sessions {
		if s.PersonaID != personaID {
			continue
		}
		if _, busy := m.cancels[s.ID]; busy {
			return "", nil
		}
		if cached, ok := m.sessions[s.ID]; ok && cached.inFlight() >= 0 {
			return "", nil
		}
		return s.ID, nil
	}
	return "", nil
}

// RetirePersona moves sessions using a deleted persona to fallbackID. It
// matches persona.DeleteHook.
func (m *Manager) RetirePersona(ctx context.Context, deletedID, fallbackID string) error {
	n, err := m.repo.RetirePersona(ctx, m.userID, deletedID, fallbackID)
	if err != nil {
		return err
	}

	m.mu.Lock()
	for _, s := range m.sessions {
		if s.PersonaID == deletedID {
			s.PersonaID = fallbackID
		}
	}
	m.mu.Unlock()

	if n > 0 {
		m.log.Info("sessions moved to fallback persona", "persona", deletedID, "fallback", fallbackID, "count", n)
	}
	return nil
}
