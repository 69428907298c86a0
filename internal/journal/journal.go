// Package journal records lifecycle transitions and mood samples in a
// local SQLite database so that `haunt stats` can summarize past runs.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Iron-Ham/haunt/internal/event"
	"github.com/Iron-Ham/haunt/internal/logging"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// queueSize bounds events waiting to be written. The bus handler never
// blocks the engine; overflow is dropped and logged.
const queueSize = 256

const schema = `
CREATE TABLE IF NOT EXISTS transitions (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id    TEXT NOT NULL,
	at        INTEGER NOT NULL,
	from_state TEXT NOT NULL,
	to_state  TEXT NOT NULL,
	mode      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_transitions_at ON transitions(at);

CREATE TABLE IF NOT EXISTS mood_samples (
	id     INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	at     INTEGER NOT NULL,
	value  REAL NOT NULL,
	label  TEXT NOT NULL,
	cause  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_mood_samples_at ON mood_samples(at);
`

// Journal is a SQLite-backed event recorder.
type Journal struct {
	db     *sql.DB
	path   string
	runID  string
	logger *logging.Logger

	queue chan event.Event
	wg    sync.WaitGroup

	mu     sync.Mutex
	bus    *event.Bus
	subs   []string
	closed bool
}

// Open opens or creates the database at path.
func Open(path, runID string, logger *logging.Logger) (*Journal, error) {
	if logger == nil {
		logger = logging.NopLogger()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	// SQLite works best with a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	j := &Journal{
		db:     db,
		path:   path,
		runID:  runID,
		logger: logger.WithComponent("journal"),
		queue:  make(chan event.Event, queueSize),
	}
	if err := j.initPragmas(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize pragmas: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate journal: %w", err)
	}

	j.wg.Add(1)
	go j.writeLoop()
	return j, nil
}

func (j *Journal) initPragmas() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := j.db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %s: %w", pragma, err)
		}
	}
	return nil
}

// Attach subscribes to lifecycle and mood events on bus.
func (j *Journal) Attach(bus *event.Bus) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.bus = bus
	j.subs = append(j.subs,
		bus.Subscribe(event.TypeLifecycleChanged, j.enqueue),
		bus.Subscribe(event.TypeMoodChanged, j.enqueue),
	)
}

func (j *Journal) enqueue(e event.Event) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return
	}
	select {
	case j.queue <- e:
	default:
		j.logger.Warn("journal queue full, event dropped", "event", e.EventType())
	}
}

func (j *Journal) writeLoop() {
	defer j.wg.Done()
	for e := range j.queue {
		if err := j.Record(context.Background(), e); err != nil {
			j.logger.Warn("failed to journal event", "event", e.EventType(), "error", err)
		}
	}
}

// Record writes one event. Events other than lifecycle and mood changes
// are ignored.
func (j *Journal) Record(ctx context.Context, e event.Event) error {
	at := e.Timestamp().UnixMilli()
	switch ev := e.(type) {
	case event.LifecycleChangedEvent:
		_, err := j.db.ExecContext(ctx,
			`INSERT INTO transitions (run_id, at, from_state, to_state, mode) VALUES (?, ?, ?, ?, ?)`,
			j.runID, at, ev.From.String(), ev.To.String(), ev.Mode.String())
		return err
	case event.MoodChangedEvent:
		_, err := j.db.ExecContext(ctx,
			`INSERT INTO mood_samples (run_id, at, value, label, cause) VALUES (?, ?, ?, ?, ?)`,
			j.runID, at, ev.Value, ev.Label, ev.Cause)
		return err
	}
	return nil
}

// Flush waits until queued events are written or ctx is done.
func (j *Journal) Flush(ctx context.Context) error {
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for len(j.queue) > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// Path returns the database file location.
func (j *Journal) Path() string { return j.path }

// Close unsubscribes, drains the queue and closes the database.
func (j *Journal) Close() error {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return nil
	}
	j.closed = true
	if j.bus != nil {
		for _, id := range j.subs {
			j.bus.Unsubscribe(id)
		}
	}
	close(j.queue)
	j.mu.Unlock()

	j.wg.Wait()
	return j.db.Close()
}
