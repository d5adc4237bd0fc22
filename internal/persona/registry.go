package persona

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/personachat/personachat/internal/logger"
	"github.com/personachat/personachat/internal/memory"
)

// Repository persists custom personas for one user.
type Repository interface {
	List(ctx context.Context, userID string) ([]Persona, error)
	Get(ctx context.Context, userID, id string) (Persona, error)
	Save(ctx context.Context, userID string, p Persona) error
	Delete(ctx context.Context, userID, id string) error
}

// DeleteHook runs after a persona is deleted, with the id that sessions
// should move to.
type DeleteHook func(ctx context.Context, deletedID, fallbackID string) error

// Registry resolves persona ids across built-ins, persona definition files
// and the user's stored custom personas.
type Registry struct {
	repo      Repository
	userID    string
	defaultID string
	now       func() time.Time
	log       *slog.Logger

	mu       sync.RWMutex
	files    map[string]Persona
	onDelete []DeleteHook
}

// Option configures a Registry.
type Option func(*Registry)

// WithDefault sets the persona used when an id does not resolve. It must
// name a built-in persona.
func WithDefault(id string) Option {
	return func(r *Registry) {
		if _, ok := builtin(id); ok {
			r.defaultID = id
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) { r.log = logger.OrNop(l) }
}

func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// NewRegistry creates a registry for userID. repo may be nil, in which case
// only built-in and file personas exist.
func NewRegistry(repo Repository, userID string, opts ...Option) *Registry {
	r := &Registry{
		repo:      repo,
		userID:    userID,
		defaultID: DefaultID,
		now:       time.Now,
		log:       logger.Nop(),
		files:     map[string]Persona{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// DefaultID returns the fallback persona id.
func (r *Registry) DefaultID() string { return r.defaultID }

// OnDelete registers a hook run after every successful Delete.
func (r *Registry) OnDelete(h DeleteHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onDelete = append(r.onDelete, h)
}

// Lookup finds a persona by id without falling back.
func (r *Registry) Lookup(ctx context.Context, id string) (Persona, bool) {
	if p, ok := builtin(id); ok {
		return p, true
	}
	r.mu.RLock()
	p, ok := r.files[id]
	r.mu.RUnlock()
	if ok {
		return p, true
	}
	if r.repo == nil {
		return Persona{}, false
	}
	p, err := r.repo.Get(ctx, r.userID, id)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			r.log.Warn("persona lookup failed", "id", id, "error", err)
		}
		return Persona{}, false
	}
	return p, true
}

// Resolve returns the persona for id, or the default persona when id is
// unknown. It never fails.
func (r *Registry) Resolve(ctx context.Context, id string) Persona {
	if p, ok := r.Lookup(ctx, id); ok {
		return p
	}
	if id != "" {
		r.log.Debug("persona not found, using default", "id", id, "default", r.defaultID)
	}
	p, _ := builtin(r.defaultID)
	return p
}

// List returns built-ins first, then file and stored personas by name.
func (r *Registry) List(ctx context.Context) ([]Persona, error) {
	out := Builtins()

	var custom []Persona
	r.mu.RLock()
	for _, p := range r.files {
		custom = append(custom, p)
	}
	r.mu.RUnlock()

	if r.repo != nil {
		stored, err := r.repo.List(ctx, r.userID)
		if err != nil {
			return nil, fmt.Errorf("persona: list: %w", err)
		}
		custom = append(custom, stored...)
	}
	sort.SliceStable(custom, func(i, j int) bool { return custom[i].Name < custom[j].Name })
	return append(out, custom...), nil
}

// Create stores a new custom persona built from def.
func (r *Registry) Create(ctx context.Context, def Definition) (Persona, error) {
	if err := def.Validate(); err != nil {
		return Persona{}, err
	}
	if r.repo == nil {
		return Persona{}, fmt.Errorf("persona: create: no repository configured")
	}
	p := def.build("custom_"+uuid.NewString(), r.now().UTC())
	if err := r.repo.Save(ctx, r.userID, p); err != nil {
		return Persona{}, fmt.Errorf("persona: create: %w", err)
	}
	r.log.Info("persona created", "id", p.ID, "name", p.Name)
	return p, nil
}

// Edit replaces a stored persona's definition and bumps UpdatedAt.
func (r *Registry) Edit(ctx context.Context, id string, def Definition) (Persona, error) {
	if _, ok := builtin(id); ok {
		return Persona{}, ErrBuiltin
	}
	if err := def.Validate(); err != nil {
		return Persona{}, err
	}
	if r.repo == nil {
		return Persona{}, ErrNotFound
	}
	existing, err := r.repo.Get(ctx, r.userID, id)
	if err != nil {
		return Persona{}, err
	}
	p := def.build(id, r.now().UTC())
	p.CreatedAt = existing.CreatedAt
	if err := r.repo.Save(ctx, r.userID, p); err != nil {
		return Persona{}, fmt.Errorf("persona: edit: %w", err)
	}
	return p, nil
}

// Delete removes a stored persona and runs the delete hooks so sessions
// using it can move to the default persona.
func (r *Registry) Delete(ctx context.Context, id string) error {
	if _, ok := builtin(id); ok {
		return ErrBuiltin
	}
	r.mu.RLock()
	_, isFile := r.files[id]
	r.mu.RUnlock()
	if isFile {
		return fmt.Errorf("persona: %s is defined by a file; remove the file instead", id)
	}
	if r.repo == nil {
		return ErrNotFound
	}
	if err := r.repo.Delete(ctx, r.userID, id); err != nil {
		return err
	}

	r.mu.RLock()
	hooks := append([]DeleteHook(nil), r.onDelete...)
	r.mu.RUnlock()
	for _, h := range hooks {
		if err := h(ctx, id, r.defaultID); err != nil {
			return fmt.Errorf("persona: delete hook: %w", err)
		}
	}
	r.log.Info("persona deleted", "id", id)
	return nil
}

// SetFilePersonas replaces the set of personas loaded from definition files.
func (r *Registry) SetFilePersonas(ps map[string]Persona) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.files = ps
}

// ComposePrompt resolves id and appends the memory block for facts.
func (r *Registry) ComposePrompt(ctx context.Context, id string, facts []memory.Fact) string {
	return ComposePrompt(r.Resolve(ctx, id), facts)
}
