package lifecycle

import (
	"github.com/Iron-Ham/haunt/internal/errors"
	"github.com/Iron-Ham/haunt/internal/logging"
)

// Hook is invoked on exit from or entry into a state.
type Hook func(from, to State)

// Callbacks holds notification functions for the machine's owner.
type Callbacks struct {
	// OnChanged is called after the entry hook of a successful transition.
	OnChanged func(from, to State)

	// OnRejected is called when a transition is refused, either because the
	// edge is not in the adjacency table or because a hook tried to
	// transition re-entrantly.
	OnRejected func(from, to State, err error)
}

// Machine is the lifecycle state machine. It starts in Hidden.
type Machine struct {
	state     State
	enter     map[State][]Hook
	exit      map[State][]Hook
	callbacks Callbacks
	logger    *logging.Logger

	transitioning bool
}

// Option configures a Machine.
type Option func(*Machine)

// WithLogger sets the logger used for rejected transitions.
func WithLogger(l *logging.Logger) Option {
	return func(m *Machine) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithCallbacks sets the change and rejection notifications.
func WithCallbacks(cb Callbacks) Option {
	return func(m *Machine) {
		m.callbacks = cb
	}
}

// NewMachine creates a Machine in the Hidden state.
func NewMachine(opts ...Option) *Machine {
	m := &Machine{
		state:  Hidden,
		enter:  make(map[State][]Hook),
		exit:   make(map[State][]Hook),
		logger: logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the current state.
func (m *Machine) State() State {
	return m.state
}

// CanTransition reports whether target is reachable from the current state.
func (m *Machine) CanTransition(target State) bool {
	return CanTransition(m.state, target)
}

// OnEnter registers a hook run after the machine moves into s.
func (m *Machine) OnEnter(s State, h Hook) {
	m.enter[s] = append(m.enter[s], h)
}

// OnExit registers a hook run before the machine leaves s.
func (m *Machine) OnExit(s State, h Hook) {
	m.exit[s] = append(m.exit[s], h)
}

// TransitionTo moves the machine to target.
//
// A request for the current state returns true without running hooks. A
// target outside the allowed-successor set returns false and leaves the
// state untouched. A call made from inside a hook returns false.
func (m *Machine) TransitionTo(target State) bool {
	from := m.state

	if m.transitioning {
		m.reject(from, target, errors.Wrap(errors.NewTransitionError(from.String(), target.String()), "re-entrant transition"))
		return false
	}

	if target == from {
		return true
	}

	if !CanTransition(from, target) {
		m.reject(from, target, errors.NewTransitionError(from.String(), target.String()))
		return false
	}

	m.transitioning = true
	for _, h := range m.exit[from] {
		h(from, target)
	}
	m.state = target
	for _, h := range m.enter[target] {
		h(from, target)
	}
	m.transitioning = false

	if m.callbacks.OnChanged != nil {
		m.callbacks.OnChanged(from, target)
	}
	return true
}

func (m *Machine) reject(from, to State, err error) {
	m.logger.Warn("lifecycle transition rejected",
		"from", from.String(),
		"to", to.String(),
		"error", err.Error(),
	)
	if m.callbacks.OnRejected != nil {
		m.callbacks.OnRejected(from, to, err)
	}
}
