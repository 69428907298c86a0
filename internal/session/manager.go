// Package session issues versioned handles to long-running asynchronous tasks
// so that results from superseded or cancelled work can be discarded.
//
// Each task kind has its own id sequence and at most one current session.
// A task carries its session id from start to finish; the orchestrator asks
// the Manager whether that id is still current at the single point where the
// result would produce a side effect.
package session

import (
	"sync"
	"time"
)

// Kind identifies a family of asynchronous tasks.
type Kind int

const (
	// VisionComment is an AI commentary request about the screen.
	VisionComment Kind = iota
	// ScriptedEntrance is a trajectory playback used to summon the companion.
	ScriptedEntrance
)

// String returns the upper-case name of the kind.
func (k Kind) String() string {
	switch k {
	case VisionComment:
		return "VISION_COMMENT"
	case ScriptedEntrance:
		return "SCRIPTED_ENTRANCE"
	default:
		return "UNKNOWN"
	}
}

// ID is a per-kind, strictly increasing session identifier. Zero is never issued.
type ID uint64

// Session describes the current session of a kind.
type Session struct {
	ID        ID
	Kind      Kind
	Started   time.Time
	Cancelled bool
}

// Manager tracks the current session of each kind. It is safe for
// concurrent use so that task runners can poll IsCurrent to abandon work
// early; the authoritative check happens in the orchestrator.
type Manager struct {
	mu     sync.Mutex
	now    func() time.Time
	last   map[Kind]ID
	active map[Kind]*Session
}

// NewManager creates an empty Manager.
func NewManager() *Manager {
	return &Manager{
		now:    time.Now,
		last:   make(map[Kind]ID),
		active: make(map[Kind]*Session),
	}
}

// Begin allocates the next id for kind. Any previous session of the kind is
// cancelled and can no longer be current.
func (m *Manager) Begin(kind Kind) ID {
	m.mu.Lock()
	defer m.mu.Unlock()

	if prev := m.active[kind]; prev != nil {
		prev.Cancelled = true
	}

	m.last[kind]++
	id := m.last[kind]
	m.active[kind] = &Session{ID: id, Kind: kind, Started: m.now()}
	return id
}

// IsCurrent reports whether id is the live session of kind.
func (m *Manager) IsCurrent(kind Kind, id ID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentLocked(kind, id)
}

func (m *Manager) currentLocked(kind Kind, id ID) bool {
	s := m.active[kind]
	return s != nil && s.ID == id && !s.Cancelled
}

// Complete claims the result of session id. It returns true exactly once for
// a current session; afterwards the kind has no current session.
func (m *Manager) Complete(kind Kind, id ID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.currentLocked(kind, id) {
		return false
	}
	delete(m.active, kind)
	return true
}

// Cancel marks the current session of kind cancelled without allocating a
// new one. It reports whether there was a live session to cancel.
func (m *Manager) Cancel(kind Kind) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.active[kind]
	if s == nil || s.Cancelled {
		return false
	}
	s.Cancelled = true
	return true
}

// CancelAll cancels every live session. Used at shutdown.
func (m *Manager) CancelAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.active {
		s.Cancelled = true
	}
}

// Active returns a copy of the live session of kind.
func (m *Manager) Active(kind Kind) (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.active[kind]
	if s == nil || s.Cancelled {
		return Session{}, false
	}
	return *s, true
}
