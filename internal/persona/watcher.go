package persona

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/personachat/personachat/internal/logger"
)

// Watcher keeps a Registry's file personas in sync with a directory.
type Watcher struct {
	dir      string
	registry *Registry
	debounce time.Duration
	log      *slog.Logger

	// reloaded is signalled after each reload; used by tests.
	reloaded chan struct{}
}

// NewWatcher creates a watcher over dir feeding registry.
func NewWatcher(dir string, registry *Registry, debounce time.Duration, log *slog.Logger) *Watcher {
	if debounce <= 0 {
		debounce = 250 * time.Millisecond
	}
	return &Watcher{
		dir:      dir,
		registry: registry,
		debounce: debounce,
		log:      logger.OrNop(log),
		reloaded: make(chan struct{}, 1),
	}
}

// Reload loads the directory once and installs the result.
func (w *Watcher) Reload() error {
	ps, err := LoadDir(w.dir)
	w.registry.SetFilePersonas(ps)
	if err != nil {
		w.log.Warn("some persona files failed to load", "dir", w.dir, "error", err)
	} else {
		w.log.Debug("persona files loaded", "dir", w.dir, "count", len(ps))
	}
	select {
	case w.reloaded <- struct{}{}:
	default:
	}
	return err
}

// Run loads the directory and then reloads it whenever a definition file
// changes, until ctx is cancelled. Changes are debounced so an editor's
// save sequence causes a single reload.
func (w *Watcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("persona: create dir: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("persona: create watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("persona: watch %s: %w", w.dir, err)
	}

	_ = w.Reload()

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !isDefinitionFile(filepath.Base(event.Name)) {
				continue
			}
			if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write) {
				continue
			}
			timer.Reset(w.debounce)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("persona watch error", "error", err)

		case <-timer.C:
			_ = w.Reload()
		}
	}
}
