package orchestrator

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/Iron-Ham/haunt/internal/config"
	"github.com/Iron-Ham/haunt/internal/event"
)

func (h *harness) invasionChanges() []string {
	var out []string
	for _, e := range h.events.ofType(event.TypeInvasionChanged) {
		c := e.(event.InvasionChangedEvent)
		out = append(out, c.From.String()+"->"+c.To.String())
	}
	return out
}

func TestInvasion_SpawnsAndRetreats(t *testing.T) {
	h := newHarness(t)

	h.send(IdleMarkReached{Idle: 3 * time.Minute})
	if diff := cmp.Diff([]string{"presentation.invader.spawn:1"}, h.log.with("presentation.invader")); diff != "" {
		t.Fatalf("calls mismatch (-want +got):\n%s", diff)
	}
	if snap := h.engine.Snapshot(); snap.Invasion != "SPAWNING" || snap.Invaders != 1 {
		t.Errorf("Expected SPAWNING with 1 invader, got %s with %d", snap.Invasion, snap.Invaders)
	}
	if !h.engine.timers.Armed(timerInvasionSpawn) {
		t.Fatal("Expected the spawn timer armed")
	}

	h.advance(12 * time.Second)
	if got := len(h.log.with("presentation.invader.spawn")); got != 2 {
		t.Fatalf("Expected a second invader within 12s, got %d spawns", got)
	}

	h.log.reset()
	h.send(UserActive{})
	want := []string{"presentation.invader.retreat:1", "presentation.invader.retreat:2"}
	if diff := cmp.Diff(want, h.log.with("presentation.invader")); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
	if h.engine.timers.Armed(timerInvasionSpawn) || !h.engine.timers.Armed(timerInvasionEnd) {
		t.Errorf("Expected only the retreat deadline armed, got %v", h.engine.timers.Names())
	}

	h.send(InvaderGone{ID: 1})
	h.send(InvaderGone{ID: 2})
	if snap := h.engine.Snapshot(); snap.Invasion != "INACTIVE" || snap.Invaders != 0 {
		t.Errorf("Expected INACTIVE with no invaders, got %s with %d", snap.Invasion, snap.Invaders)
	}
	if h.engine.timers.Armed(timerInvasionEnd) {
		t.Error("Expected the retreat deadline disarmed")
	}

	wantChanges := []string{"INACTIVE->SPAWNING", "SPAWNING->RETREATING", "RETREATING->INACTIVE"}
	if diff := cmp.Diff(wantChanges, h.invasionChanges()); diff != "" {
		t.Errorf("invasion events mismatch (-want +got):\n%s", diff)
	}
}

func TestInvasion_RetreatDeadlineClears(t *testing.T) {
	h := newHarness(t)
	h.send(IdleMarkReached{Idle: 3 * time.Minute})
	h.send(IdleMarkCleared{})
	h.log.reset()

	h.advance(5 * time.Second)
	if diff := cmp.Diff([]string{"presentation.invader.clear"}, h.log.with("presentation.invader")); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
	if got := h.engine.Snapshot().Invasion; got != "INACTIVE" {
		t.Errorf("Expected INACTIVE, got %s", got)
	}

	// A late departure report changes nothing.
	h.send(InvaderGone{ID: 1})
	if got := len(h.invasionChanges()); got != 3 {
		t.Errorf("Expected 3 invasion events, got %d", got)
	}
}

func TestInvasion_Guards(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		h := newHarness(t, harnessConfig{settings: func(s *Settings) { s.Invasion.Enabled = false }})
		h.send(IdleMarkReached{Idle: 3 * time.Minute})
		expectRejected(t, h, "idle_mark_reached", "invasion_disabled")
	})

	t.Run("fullscreen", func(t *testing.T) {
		h := newHarness(t)
		h.switches.set(false, true)
		h.send(IdleMarkReached{Idle: 3 * time.Minute})
		expectRejected(t, h, "idle_mark_reached", "fullscreen")
	})
}

func expectRejected(t *testing.T, h *harness, signal, reason string) {
	t.Helper()
	if got := h.log.with("presentation.invader"); len(got) != 0 {
		t.Errorf("Expected no invaders, got %v", got)
	}
	rejected := h.events.ofType(event.TypeGuardRejected)
	if len(rejected) != 1 {
		t.Fatalf("Expected one guard rejection, got %d", len(rejected))
	}
	r := rejected[0].(event.GuardRejectedEvent)
	if r.Signal != signal || r.Reason != reason {
		t.Errorf("Expected %s/%s, got %s/%s", signal, reason, r.Signal, r.Reason)
	}
}

func TestInvasion_RuntimeDisable(t *testing.T) {
	h := newHarness(t)
	h.send(IdleMarkReached{Idle: 3 * time.Minute})
	h.log.reset()

	off := false
	h.send(ApplyRuntimeConfig{Patch: config.RuntimePatch{InvasionEnabled: &off}})
	if got := h.engine.Snapshot().Invasion; got != "RETREATING" {
		t.Errorf("Expected RETREATING, got %s", got)
	}
	if got := h.log.with("idle.mark"); len(got) != 1 || got[0] != "idle.mark:0s" {
		t.Errorf("Expected the idle mark turned off, got %v", got)
	}
	applied := h.events.ofType(event.TypeConfigApplied)
	if len(applied) != 1 {
		t.Fatalf("Expected one config.applied event, got %d", len(applied))
	}
	if diff := cmp.Diff([]string{"invasion.enabled"}, applied[0].(event.ConfigAppliedEvent).Fields); diff != "" {
		t.Errorf("fields mismatch (-want +got):\n%s", diff)
	}

	on := true
	h.send(ApplyRuntimeConfig{Patch: config.RuntimePatch{InvasionEnabled: &on}})
	if got := h.log.with("idle.mark"); len(got) != 2 || got[1] != "idle.mark:3m0s" {
		t.Errorf("Expected the idle mark restored, got %v", got)
	}
}

func TestInvasion_ShutdownClears(t *testing.T) {
	h := newHarness(t)
	h.send(IdleMarkReached{Idle: 3 * time.Minute})
	h.log.reset()

	h.engine.stop()
	if diff := cmp.Diff([]string{"presentation.invader.clear"}, h.log.with("presentation.invader")); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
	if got := h.engine.Snapshot().Invasion; got != "INACTIVE" {
		t.Errorf("Expected INACTIVE after shutdown, got %s", got)
	}
}

func TestInvasion_IndependentOfCompanion(t *testing.T) {
	h := newHarness(t)
	h.engage()

	h.send(IdleMarkReached{Idle: 3 * time.Minute})
	h.expectState("ENGAGED")
	if got := h.engine.Snapshot().Invasion; got != "SPAWNING" {
		t.Errorf("Expected SPAWNING alongside an engaged companion, got %s", got)
	}
}

func TestRelay_InvasionSignals(t *testing.T) {
	h := newHarness(t)
	relay := NewRelay(nil)
	relay.Bind(h.engine)

	relay.IdleHandlers().MarkReached(3 * time.Minute)
	h.drain()
	if got := h.engine.Snapshot().Invasion; got != "SPAWNING" {
		t.Fatalf("Expected SPAWNING, got %s", got)
	}

	relay.IdleHandlers().MarkCleared()
	relay.InvaderGone(1)
	h.drain()
	if got := h.engine.Snapshot().Invasion; got != "INACTIVE" {
		t.Errorf("Expected INACTIVE, got %s", got)
	}
}
