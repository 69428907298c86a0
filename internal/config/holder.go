package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/Iron-Ham/haunt/internal/errors"
	"github.com/Iron-Ham/haunt/internal/logging"
	"github.com/fsnotify/fsnotify"
)

// ReloadDebounce collapses bursts of file events into one reload.
const ReloadDebounce = 500 * time.Millisecond

// PatchListener receives the runtime settings that changed in a reload.
type PatchListener func(RuntimePatch)

// Holder keeps the current configuration and reloads it when the file
// changes. A reload that fails validation keeps the old configuration.
type Holder struct {
	mu      sync.RWMutex
	current *Config
	path    string
	logger  *logging.Logger

	listenersMu sync.RWMutex
	listeners   []PatchListener

	watcher  *fsnotify.Watcher
	debounce time.Duration
	wg       sync.WaitGroup
}

// NewHolder creates a Holder for the file at path, starting from initial.
func NewHolder(initial *Config, path string, logger *logging.Logger) *Holder {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Holder{
		current:  initial,
		path:     path,
		logger:   logger.WithComponent("config"),
		debounce: ReloadDebounce,
	}
}

// Get returns the current configuration.
func (h *Holder) Get() *Config {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// Path returns the watched file.
func (h *Holder) Path() string {
	return h.path
}

// OnPatch registers a listener for runtime changes.
func (h *Holder) OnPatch(fn PatchListener) {
	h.listenersMu.Lock()
	defer h.listenersMu.Unlock()
	h.listeners = append(h.listeners, fn)
}

// Reload reads the file, validates it and swaps it in. Listeners are called
// only when a runtime field changed.
func (h *Holder) Reload(_ context.Context) error {
	next, err := LoadFile(h.path)
	if err != nil {
		h.logger.Error("config reload failed", "path", h.path, "error", err)
		return errors.NewConfigError(h.path, err)
	}

	h.mu.Lock()
	old := h.current
	h.current = next
	h.mu.Unlock()

	patch := Diff(old.Runtime(), next.Runtime())
	if patch.Empty() {
		h.logger.Debug("config reloaded without runtime changes", "path", h.path)
		return nil
	}

	h.logger.Info("config reloaded", "path", h.path, "fields", patch.Fields())
	h.notify(patch)
	return nil
}

func (h *Holder) notify(p RuntimePatch) {
	h.listenersMu.RLock()
	defer h.listenersMu.RUnlock()
	for _, fn := range h.listeners {
		fn(p)
	}
}

// Watch reloads on file changes until ctx is done. The parent directory is
// watched so that editors which replace the file are still seen. An empty
// path disables watching.
func (h *Holder) Watch(ctx context.Context) error {
	if h.path == "" {
		h.logger.Info("config watcher disabled")
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(h.path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch config dir: %w", err)
	}
	h.watcher = watcher

	h.logger.Info("watching config file", "path", h.path)
	defer func() {
		_ = watcher.Close()
		h.wg.Wait()
	}()
	return h.loop(ctx)
}

func (h *Holder) loop(ctx context.Context) error {
	var (
		timer   *time.Timer
		timerMu sync.Mutex
	)
	stopTimer := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil && timer.Stop() {
			h.wg.Done()
		}
	}
	defer stopTimer()

	target := filepath.Clean(h.path)
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("config watcher stopped")
			return nil

		case ev, ok := <-h.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			h.logger.Debug("config file changed", "op", ev.Op.String())

			stopTimer()
			timerMu.Lock()
			h.wg.Add(1)
			timer = time.AfterFunc(h.debounce, func() {
				defer h.wg.Done()
				_ = h.Reload(ctx)
			})
			timerMu.Unlock()

		case err, ok := <-h.watcher.Errors:
			if !ok {
				return nil
			}
			h.logger.Error("config watcher error", "error", err)
		}
	}
}
