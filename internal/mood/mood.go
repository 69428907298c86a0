// Package mood tracks the companion's mood, a value in [0, 1] nudged by how
// the user treats it and drifting back to calm over time.
package mood

import "sync"

const (
	// Default is the starting and resting mood.
	Default = 0.5

	dismissedDelta  = -0.05
	interactedDelta = 0.1
	engagedDelta    = 0.15
	decayStep       = 0.02
)

// Mood is safe for concurrent use.
type Mood struct {
	mu    sync.Mutex
	value float64
}

// New returns a Mood at v clamped to [0, 1].
func New(v float64) *Mood {
	return &Mood{value: clamp(v)}
}

// Value returns the current mood.
func (m *Mood) Value() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.value
}

// Label returns a word for the current mood.
func (m *Mood) Label() string {
	return Label(m.Value())
}

// Dismissed records the user sending the companion away.
func (m *Mood) Dismissed() float64 { return m.add(dismissedDelta) }

// Interacted records the companion getting to speak.
func (m *Mood) Interacted() float64 { return m.add(interactedDelta) }

// Engaged records a real exchange with the user.
func (m *Mood) Engaged() float64 { return m.add(engagedDelta) }

// Decay moves the mood one step toward Default without overshooting.
func (m *Mood) Decay() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case m.value > Default:
		m.value = max(Default, m.value-decayStep)
	case m.value < Default:
		m.value = min(Default, m.value+decayStep)
	}
	return m.value
}

// Set replaces the mood value.
func (m *Mood) Set(v float64) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.value = clamp(v)
	return m.value
}

func (m *Mood) add(delta float64) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.value = clamp(m.value + delta)
	return m.value
}

// Label maps a mood value to a word.
func Label(v float64) string {
	switch {
	case v < 0.2:
		return "grumpy"
	case v < 0.4:
		return "annoyed"
	case v < 0.6:
		return "calm"
	case v < 0.8:
		return "happy"
	default:
		return "excited"
	}
}

func clamp(v float64) float64 {
	return min(max(v, 0), 1)
}
