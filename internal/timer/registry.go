// Package timer provides named, re-armable countdown timers whose fires are
// delivered as values to a sink instead of running orchestration logic on
// the timer goroutine.
//
// Every Arm call is stamped with a registry-wide generation. The owner
// claims a fire with Claim, which only accepts the generation that is still
// armed under that name; fires from disarmed or re-armed schedules that were
// already in flight are rejected there.
package timer

import (
	"sort"
	"time"

	"github.com/Iron-Ham/haunt/internal/errors"
)

// Stopper cancels a scheduled callback.
type Stopper interface {
	Stop() bool
}

// Clock abstracts time so tests can drive timers deterministically.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Stopper
}

// RealClock is a Clock backed by package time.
type RealClock struct{}

// Now returns time.Now().
func (RealClock) Now() time.Time { return time.Now() }

// AfterFunc wraps time.AfterFunc.
func (RealClock) AfterFunc(d time.Duration, f func()) Stopper {
	return time.AfterFunc(d, f)
}

// Fired is delivered to the sink when a timer elapses.
type Fired struct {
	Name       string
	Generation uint64
}

type entry struct {
	generation uint64
	duration   time.Duration
	armedAt    time.Time
	stopper    Stopper
}

// Registry holds the armed timers. It is owned by a single goroutine; only
// the sink is called from timer goroutines.
type Registry struct {
	clock   Clock
	sink    func(Fired)
	entries map[string]*entry
	gen     uint64
}

// New creates a Registry. A nil clock or sink is an initialization failure.
func New(clock Clock, sink func(Fired)) (*Registry, error) {
	if clock == nil {
		return nil, errors.NewInitError("timer registry", errors.Wrap(errors.ErrTimerInit, "nil clock"))
	}
	if sink == nil {
		return nil, errors.NewInitError("timer registry", errors.Wrap(errors.ErrTimerInit, "nil sink"))
	}
	return &Registry{
		clock:   clock,
		sink:    sink,
		entries: make(map[string]*entry),
	}, nil
}

// Arm schedules one fire of name after d, replacing any existing schedule.
// The countdown always restarts from this call.
func (r *Registry) Arm(name string, d time.Duration) {
	r.Disarm(name)

	r.gen++
	fired := Fired{Name: name, Generation: r.gen}
	r.entries[name] = &entry{
		generation: r.gen,
		duration:   d,
		armedAt:    r.clock.Now(),
		stopper:    r.clock.AfterFunc(d, func() { r.sink(fired) }),
	}
}

// Disarm cancels name. It is a no-op when name is not armed.
func (r *Registry) Disarm(name string) {
	e, ok := r.entries[name]
	if !ok {
		return
	}
	e.stopper.Stop()
	delete(r.entries, name)
}

// Claim accepts f if it belongs to the schedule currently armed under its
// name, and marks the name disarmed. Stale fires return false.
func (r *Registry) Claim(f Fired) bool {
	e, ok := r.entries[f.Name]
	if !ok || e.generation != f.Generation {
		return false
	}
	delete(r.entries, f.Name)
	return true
}

// Armed reports whether name has a pending schedule.
func (r *Registry) Armed(name string) bool {
	_, ok := r.entries[name]
	return ok
}

// Remaining returns the time left on name, or false if it is not armed.
func (r *Registry) Remaining(name string) (time.Duration, bool) {
	e, ok := r.entries[name]
	if !ok {
		return 0, false
	}
	left := e.duration - r.clock.Now().Sub(e.armedAt)
	if left < 0 {
		left = 0
	}
	return left, true
}

// Names returns the armed timer names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DisarmAll cancels every timer. Used at shutdown.
func (r *Registry) DisarmAll() {
	for name := range r.entries {
		r.Disarm(name)
	}
}
