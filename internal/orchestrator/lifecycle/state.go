// Package lifecycle provides the visibility state machine of the companion.
//
// The machine has four states and a static adjacency table. All side effects
// of a transition live in the exit and entry hooks registered by the owner;
// the machine itself performs no I/O.
//
// Key concepts:
//   - State: HIDDEN, PEEKING, ENGAGED, FLEEING
//   - Allowed: the successor set of each state
//   - Machine.TransitionTo: validated transition with exit/enter hooks
//   - Hooks: func(from, to State) registered per state
//
// A Machine is owned by a single goroutine (the orchestrator's event loop)
// and is not safe for concurrent use.
package lifecycle

import (
	"slices"
	"strings"

	"github.com/Iron-Ham/haunt/internal/errors"
)

// State represents the coarse visibility phase of the companion.
type State int

const (
	// Hidden means nothing is shown.
	Hidden State = iota
	// Peeking means the companion is partially visible at a screen edge.
	Peeking
	// Engaged means the companion is fully visible and owns the surface.
	Engaged
	// Fleeing means the exit animation is playing.
	Fleeing
)

// String returns the canonical upper-case name of the state.
func (s State) String() string {
	switch s {
	case Hidden:
		return "HIDDEN"
	case Peeking:
		return "PEEKING"
	case Engaged:
		return "ENGAGED"
	case Fleeing:
		return "FLEEING"
	default:
		return "UNKNOWN"
	}
}

// Visible reports whether the companion occupies the presentation surface.
func (s State) Visible() bool {
	return s == Peeking || s == Engaged
}

// ParseState converts a state name (case-insensitive) to a State.
func ParseState(name string) (State, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "HIDDEN":
		return Hidden, nil
	case "PEEKING":
		return Peeking, nil
	case "ENGAGED":
		return Engaged, nil
	case "FLEEING":
		return Fleeing, nil
	}
	return Hidden, errors.Wrapf(errors.ErrUnknownState, "parse %q", name)
}

// States lists every state in declaration order.
func States() []State {
	return []State{Hidden, Peeking, Engaged, Fleeing}
}

// successors is the static adjacency table.
var successors = map[State][]State{
	Hidden:  {Peeking, Engaged},
	Peeking: {Engaged, Fleeing, Hidden},
	Engaged: {Fleeing, Hidden},
	Fleeing: {Hidden},
}

// Allowed returns a copy of the allowed-successor set of from.
func Allowed(from State) []State {
	return slices.Clone(successors[from])
}

// CanTransition reports whether from -> to is an edge of the adjacency table.
func CanTransition(from, to State) bool {
	return slices.Contains(successors[from], to)
}
