// Package conversation owns chat sessions: the ordered message log, title
// derivation, the assistant-message state machine and regeneration.
package conversation

import (
	"errors"
	"strings"
	"time"

	"github.com/personachat/personachat/internal/adapter"
)

var (
	ErrSessionNotFound     = errors.New("conversation: session not found")
	ErrMessageNotFound     = errors.New("conversation: message not found")
	ErrGenerationInFlight  = errors.New("conversation: a reply is already being generated")
	ErrNothingToRegenerate = errors.New("conversation: nothing to regenerate")
	ErrEmptyMessage        = errors.New("conversation: message is empty")
	ErrInvalidTransition   = errors.New("conversation: invalid message state transition")
)

// DefaultTitle is the title of a session with no messages yet.
const DefaultTitle = "New Chat"

// ErrorMarker prefixes the content of a message that ended in error.
const ErrorMarker = "⚠️ "

// AnchorLast regenerates the trailing assistant message.
const AnchorLast = "last"

const titleWords = 5

// State is the generation state of a message.
type State string

const (
	StatePending   State = "pending"
	StateStreaming State = "streaming"
	StateComplete  State = "complete"
	StateAborted   State = "aborted"
	StateError     State = "error"
)

// InFlight reports whether a message in state s is still being generated.
func (s State) InFlight() bool {
	return s == StatePending || s == StateStreaming
}

// Outcome is the terminal state passed to Finalize.
type Outcome = State

type Message struct {
	ID          string       `json:"id"`
	Role        adapter.Role `json:"role"`
	Content     string       `json:"content"`
	State       State        `json:"state"`
	ErrorDetail string       `json:"error_detail,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}

// Session is one conversation thread bound to a persona.
type Session struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	PersonaID    string    `json:"persona_id"`
	Title        string    `json:"title"`
	Messages     []Message `json:"messages"`
	CreatedAt    time.Time `json:"created_at"`
	LastModified time.Time `json:"last_modified"`
}

// DeriveTitle returns the first five words of text, with "..." appended
// when there were more.
func DeriveTitle(text string) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return DefaultTitle
	}
	if len(words) <= titleWords {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:titleWords], " ") + "..."
}

// clone returns a deep copy safe to hand to callers.
func (s *Session) clone() Session {
	c := *s
	c.Messages = append([]Message(nil), s.Messages...)
	return c
}

func (s *Session) indexOf(id string) int {
	for i := range s.Messages {
		if s.Messages[i].ID == id {
			return i
		}
	}
	return -1
}

// inFlight returns the index of the message being generated, or -1.
func (s *Session) inFlight() int {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].State.InFlight() {
			return i
		}
	}
	return -1
}

func (s *Session) appendUser(id, text string, now time.Time) (Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Message{}, ErrEmptyMessage
	}
	if s.inFlight() >= 0 {
		return Message{}, ErrGenerationInFlight
	}
	if len(s.Messages) == 0 {
		s.Title = DeriveTitle(text)
	}
	m := Message{ID: id, Role: adapter.RoleUser, Content: text, State: StateComplete, CreatedAt: now}
	s.Messages = append(s.Messages, m)
	s.LastModified = now
	return m, nil
}

func (s *Session) beginAssistant(id string, now time.Time) (Message, error) {
	if s.inFlight() >= 0 {
		return Message{}, ErrGenerationInFlight
	}
	m := Message{ID: id, Role: adapter.RoleAssistant, State: StatePending, CreatedAt: now}
	s.Messages = append(s.Messages, m)
	s.LastModified = now
	return m, nil
}

// appendAssistant adds a finished assistant message, as used for
// proactive delivery.
func (s *Session) appendAssistant(id, text string, now time.Time) (Message, error) {
	if s.inFlight() >= 0 {
		return Message{}, ErrGenerationInFlight
	}
	m := Message{ID: id, Role: adapter.RoleAssistant, Content: text, State: StateComplete, CreatedAt: now}
	s.Messages = append(s.Messages, m)
	s.LastModified = now
	return m, nil
}

func (s *Session) applyChunk(id, text string, now time.Time) error {
	i := s.indexOf(id)
	if i < 0 {
		return ErrMessageNotFound
	}
	m := &s.Messages[i]
	if !m.State.InFlight() {
		return ErrInvalidTransition
	}
	m.Content += text
	m.State = StateStreaming
	s.LastModified = now
	return nil
}

func (s *Session) finalize(id string, outcome Outcome, detail string, now time.Time) (Message, error) {
	i := s.indexOf(id)
	if i < 0 {
		return Message{}, ErrMessageNotFound
	}
	m := &s.Messages[i]
	if !m.State.InFlight() {
		return Message{}, ErrInvalidTransition
	}

	switch outcome {
	case StateComplete, StateAborted:
	case StateError:
		if detail == "" {
			detail = "Something went wrong. Please try again."
		}
		m.Content = ErrorMarker + detail
		m.ErrorDetail = detail
	default:
		return Message{}, ErrInvalidTransition
	}
	m.State = outcome
	s.LastModified = now
	return *m, nil
}

// truncate removes the messages a regeneration replaces. AnchorLast drops
// only a trailing assistant message; a message id drops that message and
// everything after it. What remains must end with a user message.
func (s *Session) truncate(anchor string, now time.Time) error {
	if s.inFlight() >= 0 {
		return ErrGenerationInFlight
	}
	if len(s.Messages) < 2 {
		return ErrNothingToRegenerate
	}

	cut := len(s.Messages)
	if anchor == AnchorLast || anchor == "" {
		if s.Messages[cut-1].Role == adapter.RoleAssistant {
			cut--
		}
	} else {
		cut = s.indexOf(anchor)
		if cut < 0 {
			return ErrMessageNotFound
		}
	}

	if cut == 0 || s.Messages[cut-1].Role != adapter.RoleUser {
		return ErrNothingToRegenerate
	}
	s.Messages = s.Messages[:cut:cut]
	s.LastModified = now
	return nil
}
