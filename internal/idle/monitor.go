// Package idle watches user-input idle time and reports the two edges the
// orchestrator cares about: the user going idle past a threshold, and the
// user coming back after that.
package idle

import (
	"context"
	"sync"
	"time"

	"github.com/Iron-Ham/haunt/internal/logging"
)

// State is the monitor's internal phase.
type State int

const (
	// Standby waits for idle time to approach the threshold.
	Standby State = iota
	// PreIdle means idle time passed PreIdleRatio of the threshold.
	PreIdle
	// IdleTriggered means IdleConfirmed was emitted and the monitor waits
	// for activity.
	IdleTriggered
	// Active means the user came back; the monitor waits for ResetToStandby.
	Active
)

// String returns the upper-case name of the state.
func (s State) String() string {
	switch s {
	case Standby:
		return "STANDBY"
	case PreIdle:
		return "PRE_IDLE"
	case IdleTriggered:
		return "IDLE_TRIGGERED"
	case Active:
		return "ACTIVE"
	default:
		return "UNKNOWN"
	}
}

const (
	// PollInterval is how often the source is sampled.
	PollInterval = 100 * time.Millisecond
	// DefaultThreshold is the idle time that confirms idleness.
	DefaultThreshold = 180 * time.Second
	// PreIdleRatio is the fraction of the threshold that enters PreIdle.
	PreIdleRatio = 0.8
	// ActiveReset is the idle time below which the user counts as back.
	ActiveReset = time.Second
)

// Source reports how long the user has been idle.
type Source interface {
	IdleTime(ctx context.Context) (time.Duration, error)
}

// Handlers receive the monitor's edges. Any may be nil.
type Handlers struct {
	IdleConfirmed func(idle time.Duration)
	UserActive    func()
	// MarkReached fires once when idle time first reaches the mark set
	// with SetMark. MarkCleared fires when the user comes back after it.
	MarkReached func(idle time.Duration)
	MarkCleared func()
}

// Monitor polls a Source and drives the idle state machine. ResetToStandby,
// SetThreshold and SetMark may be called from any goroutine.
type Monitor struct {
	source   Source
	handlers Handlers
	logger   *logging.Logger
	interval time.Duration

	mu        sync.Mutex
	state     State
	threshold time.Duration
	lastIdle  time.Duration
	mark      time.Duration
	marked    bool
}

// NewMonitor creates a Monitor with the given threshold.
func NewMonitor(source Source, threshold time.Duration, handlers Handlers, logger *logging.Logger) *Monitor {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Monitor{
		source:    source,
		handlers:  handlers,
		logger:    logger.WithComponent("idle"),
		interval:  PollInterval,
		threshold: max(threshold, time.Millisecond),
	}
}

// Run polls until ctx is cancelled. Source errors are logged and the poll
// continues.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	var lastErr string
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			d, err := m.source.IdleTime(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				if err.Error() != lastErr {
					m.logger.Warn("idle source failed", "error", err.Error())
					lastErr = err.Error()
				}
				continue
			}
			lastErr = ""
			m.Step(d)
		}
	}
}

// Step feeds one idle reading through the state machine and fires any
// resulting edge. Handlers are called without the monitor lock held.
func (m *Monitor) Step(idle time.Duration) {
	m.mu.Lock()
	m.lastIdle = idle
	prev := m.state
	var fireIdle, fireActive bool

	switch m.state {
	case Standby:
		if idle >= m.threshold {
			m.state = IdleTriggered
			fireIdle = true
		} else if idle >= m.preIdleLocked() {
			m.state = PreIdle
		}
	case PreIdle:
		if idle >= m.threshold {
			m.state = IdleTriggered
			fireIdle = true
		} else if idle < ActiveReset {
			m.state = Standby
		}
	case IdleTriggered:
		if idle < ActiveReset {
			m.state = Active
			fireActive = true
		}
	case Active:
		// Left by ResetToStandby.
	}

	var fireMark, fireUnmark bool
	switch {
	case !m.marked && m.mark > 0 && idle >= m.mark:
		m.marked = true
		fireMark = true
	case m.marked && idle < ActiveReset:
		m.marked = false
		fireUnmark = true
	}
	next := m.state
	m.mu.Unlock()

	if prev != next {
		m.logger.Debug("idle state changed", "from", prev.String(), "to", next.String(), "idle", idle.String())
	}
	if fireIdle && m.handlers.IdleConfirmed != nil {
		m.handlers.IdleConfirmed(idle)
	}
	if fireActive && m.handlers.UserActive != nil {
		m.handlers.UserActive()
	}
	if fireMark && m.handlers.MarkReached != nil {
		m.handlers.MarkReached(idle)
	}
	if fireUnmark && m.handlers.MarkCleared != nil {
		m.handlers.MarkCleared()
	}
}

func (m *Monitor) preIdleLocked() time.Duration {
	return time.Duration(float64(m.threshold) * PreIdleRatio)
}

// ResetToStandby returns the monitor to Standby.
func (m *Monitor) ResetToStandby() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = Standby
}

// SetThreshold changes the idle threshold.
func (m *Monitor) SetThreshold(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.threshold = max(d, time.Millisecond)
}

// SetMark sets the idle time that fires MarkReached. Zero turns the mark
// off; a mark already reached still clears when the user returns.
func (m *Monitor) SetMark(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mark = max(d, 0)
}

// Threshold returns the current idle threshold.
func (m *Monitor) Threshold() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.threshold
}

// State returns the current state.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// LastIdle returns the most recent idle reading.
func (m *Monitor) LastIdle() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastIdle
}
