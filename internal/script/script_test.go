package script

import (
	"errors"
	"math/rand/v2"
	"path/filepath"
	"testing"
	"time"

	herrors "github.com/Iron-Ham/haunt/internal/errors"
	"github.com/Iron-Ham/haunt/internal/testutil"
)

func at(hh, mm int) time.Time {
	return time.Date(2026, 5, 4, hh, mm, 0, 0, time.Local)
}

func TestTimeRange_Contains(t *testing.T) {
	tests := []struct {
		rng  string
		now  time.Time
		want bool
	}{
		{"12:00-13:00", at(12, 0), true},
		{"12:00-13:00", at(12, 59), true},
		{"12:00-13:00", at(13, 0), false},
		{"22:00-06:00", at(23, 30), true},
		{"22:00-06:00", at(5, 59), true},
		{"22:00-06:00", at(6, 0), false},
		{"22:00-06:00", at(12, 0), false},
		{"default", at(3, 0), true},
		{"", at(3, 0), true},
	}
	for _, tt := range tests {
		r, err := ParseTimeRange(tt.rng)
		if err != nil {
			t.Fatalf("ParseTimeRange(%q) failed: %v", tt.rng, err)
		}
		if got := r.Contains(tt.now); got != tt.want {
			t.Errorf("%q.Contains(%s) = %v, want %v", tt.rng, tt.now.Format("15:04"), got, tt.want)
		}
	}
}

func TestParseTimeRange_Invalid(t *testing.T) {
	for _, s := range []string{"noon", "25:00-26:00", "12:00", "12:60-13:00", "ab:cd-12:00"} {
		if _, err := ParseTimeRange(s); err == nil {
			t.Errorf("ParseTimeRange(%q) should fail", s)
		}
	}
	r, _ := ParseTimeRange("07:05-09:30")
	if r.String() != "07:05-09:30" {
		t.Errorf("Expected round trip, got %q", r.String())
	}
}

func TestLoad(t *testing.T) {
	dir := testutil.WriteFiles(t, map[string]string{
		"dialogue.yaml": `
idle:
  - id: lunch
    text: Lunch time?
    time_range: "12:00-13:00"
    weight: 2
    cooldown: 15m
  - id: hello
    text: Hello there.
`,
	})

	c, err := Load(filepath.Join(dir, "dialogue.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(c.Idle) != 2 {
		t.Fatalf("Expected 2 idle lines, got %d", len(c.Idle))
	}
	if c.Idle[0].Cooldown != 15*time.Minute {
		t.Errorf("Expected 15m cooldown, got %v", c.Idle[0].Cooldown)
	}
	if c.Idle[0].TimeRange.String() != "12:00-13:00" {
		t.Errorf("Expected parsed time range, got %q", c.Idle[0].TimeRange)
	}
	if len(c.Panic) == 0 {
		t.Error("Expected built-in panic lines when the file has none")
	}
}

func TestLoad_Invalid(t *testing.T) {
	dir := testutil.WriteFiles(t, map[string]string{
		"dup.yaml":   "idle:\n  - {id: a, text: x}\n  - {id: a, text: y}\n",
		"empty.yaml": "idle:\n  - {id: a}\n",
		"range.yaml": "idle:\n  - {id: a, text: x, time_range: soon}\n",
	})

	for _, name := range []string{"dup.yaml", "empty.yaml"} {
		_, err := Load(filepath.Join(dir, name))
		if !errors.Is(err, herrors.ErrInvalidScript) {
			t.Errorf("%s: Expected ErrInvalidScript, got %v", name, err)
		}
	}
	if _, err := Load(filepath.Join(dir, "range.yaml")); err == nil {
		t.Error("Expected error for invalid time range")
	}
	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestSelector_PrefersExactTimeRange(t *testing.T) {
	c := &Catalog{Idle: []Script{
		{ID: "lunch", Text: "lunch", TimeRange: mustRange("12:00-13:00")},
		{ID: "any", Text: "any"},
	}}
	s := NewSelector(c, rand.New(rand.NewPCG(1, 1)))

	got, ok := s.PickIdle(at(12, 30))
	if !ok || got.ID != "lunch" {
		t.Errorf("Expected lunch at noon, got %q (ok=%v)", got.ID, ok)
	}
	got, ok = s.PickIdle(at(15, 0))
	if !ok || got.ID != "any" {
		t.Errorf("Expected default line in the afternoon, got %q (ok=%v)", got.ID, ok)
	}
}

func TestSelector_AvoidsRepeatAndHonorsCooldown(t *testing.T) {
	c := &Catalog{Idle: []Script{
		{ID: "a", Text: "a", Cooldown: time.Hour},
		{ID: "b", Text: "b", Cooldown: time.Hour},
	}}
	s := NewSelector(c, rand.New(rand.NewPCG(7, 7)))
	now := at(10, 0)

	first, _ := s.PickIdle(now)
	second, ok := s.PickIdle(now.Add(time.Minute))
	if !ok || second.ID == first.ID {
		t.Fatalf("Expected a different line, got %q then %q", first.ID, second.ID)
	}
	if _, ok := s.PickIdle(now.Add(2 * time.Minute)); ok {
		t.Error("Expected nothing while both lines cool down")
	}
	if _, ok := s.PickIdle(now.Add(2 * time.Hour)); !ok {
		t.Error("Expected a line after cooldown expired")
	}
}

func TestSelector_SingleLineMayRepeat(t *testing.T) {
	s := NewSelector(&Catalog{Idle: []Script{{ID: "only", Text: "only"}}}, nil)
	for i := 0; i < 3; i++ {
		if got, ok := s.PickIdle(at(9, i)); !ok || got.ID != "only" {
			t.Fatalf("pick %d: Expected only, got %q (ok=%v)", i, got.ID, ok)
		}
	}
}

func TestSelector_WeightedPick(t *testing.T) {
	c := &Catalog{Idle: []Script{
		{ID: "heavy", Text: "h", Weight: 100},
		{ID: "light", Text: "l", Weight: 0},
	}}
	rnd := rand.New(rand.NewPCG(3, 4))
	counts := map[string]int{}
	for i := 0; i < 500; i++ {
		s := NewSelector(c, rnd)
		got, _ := s.PickIdle(at(10, 0))
		counts[got.ID]++
	}
	if counts["heavy"] < 450 {
		t.Errorf("Expected heavy to dominate, got %v", counts)
	}
}

func TestSelector_PanicFallsBackToIdle(t *testing.T) {
	s := NewSelector(&Catalog{Idle: []Script{{ID: "i", Text: "i"}}}, nil)
	got, ok := s.PickPanic(at(10, 0))
	if !ok || got.ID != "i" {
		t.Errorf("Expected idle fallback, got %q (ok=%v)", got.ID, ok)
	}

	s.Refresh(Builtin())
	if _, ok := s.Lookup("panic_caught"); !ok {
		t.Error("Expected Lookup to find built-in panic line after Refresh")
	}
}
