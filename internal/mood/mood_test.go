package mood

import (
	"math"
	"testing"
)

func near(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestMood_Deltas(t *testing.T) {
	m := New(Default)

	if got := m.Interacted(); !near(got, 0.6) {
		t.Errorf("Expected 0.6 after Interacted, got %v", got)
	}
	if got := m.Engaged(); !near(got, 0.75) {
		t.Errorf("Expected 0.75 after Engaged, got %v", got)
	}
	if got := m.Dismissed(); !near(got, 0.7) {
		t.Errorf("Expected 0.7 after Dismissed, got %v", got)
	}
}

func TestMood_Clamps(t *testing.T) {
	m := New(2)
	if m.Value() != 1 {
		t.Errorf("Expected clamp to 1, got %v", m.Value())
	}
	m.Engaged()
	if m.Value() != 1 {
		t.Errorf("Expected to stay at 1, got %v", m.Value())
	}

	m.Set(0.01)
	m.Dismissed()
	if m.Value() != 0 {
		t.Errorf("Expected clamp to 0, got %v", m.Value())
	}
}

func TestMood_DecayDoesNotOvershoot(t *testing.T) {
	m := New(0.51)
	if got := m.Decay(); got != Default {
		t.Errorf("Expected %v, got %v", Default, got)
	}
	if got := m.Decay(); got != Default {
		t.Errorf("decay at rest should be a no-op, got %v", got)
	}

	m.Set(0.3)
	if got := m.Decay(); !near(got, 0.32) {
		t.Errorf("Expected 0.32, got %v", got)
	}
}

func TestLabel(t *testing.T) {
	tests := []struct {
		v    float64
		want string
	}{
		{0, "grumpy"},
		{0.19, "grumpy"},
		{0.2, "annoyed"},
		{0.5, "calm"},
		{0.6, "happy"},
		{0.8, "excited"},
		{1, "excited"},
	}
	for _, tt := range tests {
		if got := Label(tt.v); got != tt.want {
			t.Errorf("Label(%v) = %q, want %q", tt.v, got, tt.want)
		}
	}
}
