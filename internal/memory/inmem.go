package memory

import (
	"context"
	"maps"
	"sync"
)

// MemBackend is a process-local Backend, used by tests and by callers that
// do not want persistence.
type MemBackend struct {
	mu   sync.Mutex
	docs map[string]Document
}

func NewMemBackend() *MemBackend {
	return &MemBackend{docs: map[string]Document{}}
}

func (b *MemBackend) Load(_ context.Context, userID string) (Document, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return cloneDoc(b.docs[userID]), nil
}

func (b *MemBackend) Save(_ context.Context, userID string, doc Document) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.docs[userID] = cloneDoc(doc)
	return nil
}

func (b *MemBackend) Delete(_ context.Context, userID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.docs, userID)
	return nil
}

func cloneDoc(d Document) Document {
	out := Document{LastUpdated: d.LastUpdated}
	if d.Facts != nil {
		out.Facts = append([]string(nil), d.Facts...)
	}
	if d.PersonalityPreferences != nil {
		out.PersonalityPreferences = maps.Clone(d.PersonalityPreferences)
	}
	return out
}
