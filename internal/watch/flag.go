// Package watch reports system audio activity from a flag file. Whatever
// plays audio on the desktop (a player hook, a PulseAudio script) creates
// the file while sound is playing and removes it afterwards.
package watch

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Iron-Ham/haunt/internal/logging"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce collapses bursts of create/remove events. Players often
// toggle the flag several times while switching tracks.
const DefaultDebounce = 150 * time.Millisecond

// FlagWatcher implements the engine's AudioMonitor over a flag file.
type FlagWatcher struct {
	watcher  *fsnotify.Watcher
	path     string
	debounce time.Duration
	logger   *logging.Logger

	playing atomic.Bool

	mu        sync.RWMutex
	onStarted func()
	onStopped func()

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewFlagWatcher watches path. The parent directory is created if missing
// so that the flag can appear later.
func NewFlagWatcher(path string, logger *logging.Logger) (*FlagWatcher, error) {
	if logger == nil {
		logger = logging.NopLogger()
	}
	path = filepath.Clean(path)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create flag directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watch flag directory: %w", err)
	}

	return &FlagWatcher{
		watcher:  watcher,
		path:     path,
		debounce: DefaultDebounce,
		logger:   logger.WithComponent("audio-flag"),
		stopCh:   make(chan struct{}),
	}, nil
}

// OnStarted sets the callback for audio starting.
func (w *FlagWatcher) OnStarted(fn func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onStarted = fn
}

// OnStopped sets the callback for audio stopping.
func (w *FlagWatcher) OnStopped(fn func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onStopped = fn
}

// Playing reports whether the flag file currently exists.
func (w *FlagWatcher) Playing() bool {
	return w.playing.Load()
}

// Start records the initial state and begins watching. A flag that already
// exists is reported through OnStarted.
func (w *FlagWatcher) Start() {
	w.sync()
	w.wg.Add(1)
	go w.loop()
}

// Stop ends watching and waits for the loop to exit. It is safe to call
// more than once.
func (w *FlagWatcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		_ = w.watcher.Close()
	})
	w.wg.Wait()
}

func (w *FlagWatcher) loop() {
	defer w.wg.Done()

	debounceTimer := time.NewTimer(0)
	<-debounceTimer.C
	defer debounceTimer.Stop()

	for {
		select {
		case <-w.stopCh:
			return

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			debounceTimer.Reset(w.debounce)

		case <-debounceTimer.C:
			w.sync()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("flag watcher error", "error", err)
		}
	}
}

// sync compares the file with the last known state and fires a callback
// on change.
func (w *FlagWatcher) sync() {
	_, err := os.Stat(w.path)
	now := err == nil
	if w.playing.Swap(now) == now {
		return
	}

	w.mu.RLock()
	started, stopped := w.onStarted, w.onStopped
	w.mu.RUnlock()

	if now {
		w.logger.Debug("system audio started", "path", w.path)
		if started != nil {
			started()
		}
		return
	}
	w.logger.Debug("system audio stopped", "path", w.path)
	if stopped != nil {
		stopped()
	}
}
