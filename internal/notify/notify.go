// Package notify delivers proactive messages to the user outside a chat.
package notify

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/personachat/personachat/internal/proactive"
)

// Tag identifies proactive notifications so a receiver can replace an
// older one instead of stacking them.
const Tag = "personachat-proactive"

type Notification struct {
	Title              string    `json:"title"`
	Body               string    `json:"body"`
	Tag                string    `json:"tag"`
	RequireInteraction bool      `json:"requireInteraction"`
	At                 time.Time `json:"at"`
}

// Dispatcher shows a notification.
type Dispatcher interface {
	Dispatch(ctx context.Context, n Notification) error
}

// DefaultTitle names the sender of a proactive message.
func DefaultTitle(personaID string) string {
	switch personaID {
	case "sam":
		return "SAM"
	case "corporate":
		return "Assistant"
	default:
		return personaID
	}
}

// FromEvent builds the notification for a proactive event.
func FromEvent(ev proactive.Event, title string) Notification {
	return Notification{
		Title:              title,
		Body:               ev.Text,
		Tag:                Tag,
		RequireInteraction: true,
		At:                 ev.At,
	}
}

// Sink forwards proactive events to d. titles maps a persona id to the
// notification title; nil uses DefaultTitle.
func Sink(d Dispatcher, titles func(personaID string) string) proactive.Sink {
	if titles == nil {
		titles = DefaultTitle
	}
	return proactive.SinkFunc(func(ctx context.Context, ev proactive.Event) error {
		return d.Dispatch(ctx, FromEvent(ev, titles(ev.PersonaID)))
	})
}

// Terminal writes notifications as a line of text, ringing the bell for
// ones that need interaction.
type Terminal struct {
	mu   sync.Mutex
	w    io.Writer
	bell bool
}

func NewTerminal(w io.Writer, bell bool) *Terminal {
	return &Terminal{w: w, bell: bell}
}

func (t *Terminal) Dispatch(_ context.Context, n Notification) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	prefix := ""
	if t.bell && n.RequireInteraction {
		prefix = "\a"
	}
	if _, err := fmt.Fprintf(t.w, "%s[%s] %s: %s\n", prefix, n.At.Format("15:04"), n.Title, n.Body); err != nil {
		return fmt.Errorf("notify: write: %w", err)
	}
	return nil
}

// Inbox keeps undismissed notifications. A new notification replaces any
// held one with the same tag.
type Inbox struct {
	mu    sync.Mutex
	items []Notification
}

func NewInbox() *Inbox { return &Inbox{} }

func (b *Inbox) Dispatch(_ context.Context, n Notification) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n.Tag != "" {
		for i := range b.items {
			if b.items[i].Tag == n.Tag {
				b.items = append(b.items[:i], b.items[i+1:]...)
				break
			}
		}
	}
	b.items = append(b.items, n)
	return nil
}

// Pending returns the held notifications, oldest first.
func (b *Inbox) Pending() []Notification {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Notification(nil), b.items...)
}

// Dismiss drops every held notification with tag.
func (b *Inbox) Dismiss(tag string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	kept := b.items[:0]
	for _, n := range b.items {
		if n.Tag != tag {
			kept = append(kept, n)
		}
	}
	b.items = kept
}

// Fanout dispatches to every dispatcher and returns the first error.
type Fanout []Dispatcher

func (f Fanout) Dispatch(ctx context.Context, n Notification) error {
	var first error
	for _, d := range f {
		if err := d.Dispatch(ctx, n); err != nil && first == nil {
			first = err
		}
	}
	return first
}
