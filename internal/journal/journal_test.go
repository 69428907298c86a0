package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/Iron-Ham/haunt/internal/behavior"
	"github.com/Iron-Ham/haunt/internal/event"
	"github.com/Iron-Ham/haunt/internal/logging"
	"github.com/Iron-Ham/haunt/internal/orchestrator/lifecycle"
	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"
)

func openTest(t *testing.T, runID string) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"), runID, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return j
}

func TestRecordAndStats(t *testing.T) {
	j := openTest(t, "run-1")
	defer func() { _ = j.Close() }()
	ctx := context.Background()
	base := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

	events := []event.Event{
		event.NewLifecycleChangedEvent(base, lifecycle.Hidden, lifecycle.Engaged, behavior.Idle),
		event.NewMoodChangedEvent(base.Add(time.Second), 0.6, "happy", "interacted"),
		event.NewLifecycleChangedEvent(base.Add(time.Minute), lifecycle.Engaged, lifecycle.Fleeing, behavior.Busy),
		event.NewLifecycleChangedEvent(base.Add(time.Minute+time.Second), lifecycle.Fleeing, lifecycle.Hidden, behavior.Busy),
		event.NewMoodChangedEvent(base.Add(time.Minute), 0.55, "calm", "dismissed"),
		event.NewGuardRejectedEvent(base, "idle_confirmed", "not_hidden"),
	}
	for _, e := range events {
		if err := j.Record(ctx, e); err != nil {
			t.Fatalf("Record(%s) failed: %v", e.EventType(), err)
		}
	}

	s, err := j.Stats(ctx, base.Add(-time.Hour))
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if s.Transitions != 3 {
		t.Errorf("Expected 3 transitions, got %d", s.Transitions)
	}
	if diff := cmp.Diff(map[string]int{"ENGAGED": 1, "FLEEING": 1, "HIDDEN": 1}, s.Entered); diff != "" {
		t.Errorf("entered mismatch (-want +got):\n%s", diff)
	}
	if s.Runs != 1 {
		t.Errorf("Expected 1 run, got %d", s.Runs)
	}
	if s.MoodSamples != 2 {
		t.Errorf("Expected 2 mood samples, got %d", s.MoodSamples)
	}
	if s.LatestMood != 0.55 || s.LatestMoodLabel != "calm" {
		t.Errorf("Expected latest mood 0.55 calm, got %.2f %s", s.LatestMood, s.LatestMoodLabel)
	}

	later, err := j.Stats(ctx, base.Add(30*time.Second))
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if later.Transitions != 2 {
		t.Errorf("Expected 2 transitions after the cutoff, got %d", later.Transitions)
	}
}

func TestStats_Empty(t *testing.T) {
	j := openTest(t, "run-1")
	defer func() { _ = j.Close() }()

	s, err := j.Stats(context.Background(), time.Time{})
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if s.Transitions != 0 || s.MoodSamples != 0 || s.LatestMoodLabel != "" {
		t.Errorf("Expected empty stats, got %+v", s)
	}
}

func TestAttach(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	j := openTest(t, "run-2")
	bus := event.NewBus(logging.NopLogger())
	j.Attach(bus)

	now := time.Now()
	bus.Publish(event.NewLifecycleChangedEvent(now, lifecycle.Hidden, lifecycle.Engaged, behavior.Idle))
	bus.Publish(event.NewMoodChangedEvent(now, 0.6, "happy", "interacted"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := j.Flush(ctx); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if bus.SubscriptionCount() != 0 {
		t.Errorf("Expected Close to unsubscribe, got %d subscriptions", bus.SubscriptionCount())
	}

	// Reopen to confirm the writes landed
	j2, err := Open(j.Path(), "run-3", nil)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer func() { _ = j2.Close() }()
	s, err := j2.Stats(context.Background(), now.Add(-time.Minute))
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if s.Transitions != 1 || s.MoodSamples != 1 {
		t.Errorf("Expected 1 transition and 1 mood sample, got %+v", s)
	}

	// Publishing after Close is ignored
	bus.Publish(event.NewLifecycleChangedEvent(now, lifecycle.Engaged, lifecycle.Hidden, behavior.Busy))
}
