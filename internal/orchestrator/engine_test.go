package orchestrator

import (
	"context"
	"math/rand/v2"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/goleak"

	"github.com/Iron-Ham/haunt/internal/config"
	"github.com/Iron-Ham/haunt/internal/errors"
	"github.com/Iron-Ham/haunt/internal/event"
	"github.com/Iron-Ham/haunt/internal/invasion"
	"github.com/Iron-Ham/haunt/internal/metrics"
	"github.com/Iron-Ham/haunt/internal/orchestrator/lifecycle"
	"github.com/Iron-Ham/haunt/internal/presence"
	"github.com/Iron-Ham/haunt/internal/session"
	"github.com/Iron-Ham/haunt/internal/task"
	"github.com/Iron-Ham/haunt/internal/testutil"
	"github.com/Iron-Ham/haunt/internal/trajectory"
)

func TestNew_MissingCollaborators(t *testing.T) {
	_, err := New(Collaborators{Presentation: fakePresentation{&callLog{}}}, DefaultSettings())
	if !errors.Is(err, errors.ErrMissingCollaborator) {
		t.Fatalf("Expected ErrMissingCollaborator, got %v", err)
	}
	var initErr *errors.InitError
	if !errors.As(err, &initErr) {
		t.Fatalf("Expected *InitError, got %T", err)
	}
	if !errors.IsFatal(err) {
		t.Error("Expected missing collaborator to be fatal")
	}
	for _, name := range []string{"audio", "tasks", "idle"} {
		if !strings.Contains(err.Error(), name) {
			t.Errorf("Expected error to name %q, got %v", name, err)
		}
	}
}

func TestStart_ArmsBackgroundTimers(t *testing.T) {
	h := newHarness(t)

	want := []string{timerMoodDecay, timerProlongedIdle}
	if diff := cmp.Diff(want, h.engine.timers.Names()); diff != "" {
		t.Errorf("armed timers mismatch (-want +got):\n%s", diff)
	}
	if h.engine.threshold != 180*time.Second {
		t.Errorf("Expected 3m threshold, got %v", h.engine.threshold)
	}
}

// Scenario: a passive idle summons the companion and it speaks.
func TestScenario_PassiveIdleEngages(t *testing.T) {
	h := newHarness(t)

	h.send(IdleConfirmed{Idle: 200 * time.Second})

	h.expectState("ENGAGED")
	want := []string{"camera.start", "presentation.summon", "audio.submit:HIGH:hello"}
	if diff := cmp.Diff(want, h.log.actions()); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
	if got := h.engine.overlay.Mode().String(); got != "IDLE" {
		t.Errorf("Expected mode IDLE, got %s", got)
	}
	if !h.engine.timers.Armed(timerAutoDismiss) {
		t.Error("Expected auto_dismiss to be armed")
	}
	if got := h.engine.mood.Value(); got < 0.59 || got > 0.61 {
		t.Errorf("Expected mood 0.6 after interaction, got %v", got)
	}
	judged := h.events.ofType(event.TypePresenceJudged)
	if len(judged) != 1 || judged[0].(event.PresenceJudgedEvent).Judgment != presence.PresentPassive {
		t.Errorf("Expected one PASSIVE judgment, got %v", judged)
	}
}

// Scenario: user input while engaged makes the companion flee, and it is
// hidden once the flee finishes or the fallback timer fires.
func TestScenario_UserActiveFlees(t *testing.T) {
	t.Run("fallback timer", func(t *testing.T) {
		h := newHarness(t)
		h.engage()

		h.send(UserActive{})
		h.expectState("FLEEING")
		want := []string{
			"camera.stop",
			"audio.interrupt",
			"audio.submit:CRITICAL:eek",
			"presentation.flee",
			"idle.reset",
		}
		if diff := cmp.Diff(want, h.log.actions()); diff != "" {
			t.Errorf("calls mismatch (-want +got):\n%s", diff)
		}

		h.advance(2 * time.Second)
		h.expectState("FLEEING")
		h.advance(time.Second)
		h.expectState("HIDDEN")
	})

	t.Run("flee completed", func(t *testing.T) {
		h := newHarness(t)
		h.engage()
		h.send(UserActive{})

		h.send(FleeCompleted{})
		h.expectState("HIDDEN")
		if h.engine.timers.Armed(timerFlee) {
			t.Error("Expected flee timer to be disarmed on exit")
		}

		h.advance(5 * time.Second)
		want := []string{"ENGAGED", "FLEEING", "HIDDEN"}
		if diff := cmp.Diff(want, h.events.transitions()); diff != "" {
			t.Errorf("transitions mismatch (-want +got):\n%s", diff)
		}
		if !h.engine.timers.Armed(timerProlongedIdle) {
			t.Error("Expected prolonged_idle to be armed after hiding")
		}
	})
}

// Scenario: a second audio start while audio is already active is a no-op.
func TestScenario_DuplicateAudioStart(t *testing.T) {
	h := newHarness(t)

	h.send(AudioOutputStarted{})
	h.expectState("ENGAGED")
	if !h.engine.audioActive || !h.engine.audioForcedVisible {
		t.Fatal("Expected audio active and forced visible")
	}
	if got := h.log.with("audio.submit"); len(got) != 0 {
		t.Errorf("Expected no speech while summoning for media, got %v", got)
	}
	if got := h.engine.overlay.Mode().String(); got != "MEDIA_PLAYING" {
		t.Errorf("Expected MEDIA_PLAYING, got %s", got)
	}

	before := promtest.ToFloat64(metrics.GuardRejectionsTotal.WithLabelValues("audio_output_started", "duplicate"))
	h.log.reset()
	h.send(AudioOutputStarted{})

	if got := h.log.actions(); len(got) != 0 {
		t.Errorf("Expected no collaborator calls, got %v", got)
	}
	if got := promtest.ToFloat64(metrics.GuardRejectionsTotal.WithLabelValues("audio_output_started", "duplicate")); got != before+1 {
		t.Errorf("Expected guard rejection count %v, got %v", before+1, got)
	}
	if got := h.events.transitions(); len(got) != 1 {
		t.Errorf("Expected a single transition, got %v", got)
	}
}

// Scenario: a commentary result from a superseded session is dropped.
func TestScenario_StaleCommentDropped(t *testing.T) {
	h := newHarness(t)
	h.engage()

	h.command("comment")
	h.command("look at my screen")
	want := []string{"tasks.start:VISION_COMMENT:1", "tasks.start:VISION_COMMENT:2"}
	if diff := cmp.Diff(want, h.log.with("tasks.")); diff != "" {
		t.Fatalf("task starts mismatch (-want +got):\n%s", diff)
	}

	before := promtest.ToFloat64(metrics.StaleResultsTotal.WithLabelValues("VISION_COMMENT"))
	h.log.reset()
	h.send(TaskResult{Kind: session.VisionComment, Session: 1, Outcome: task.Outcome{Text: "old"}})

	if got := h.log.with("audio."); len(got) != 0 {
		t.Errorf("Expected stale result to produce no audio, got %v", got)
	}
	if got := promtest.ToFloat64(metrics.StaleResultsTotal.WithLabelValues("VISION_COMMENT")); got != before+1 {
		t.Errorf("Expected stale count %v, got %v", before+1, got)
	}
	dropped := h.events.ofType(event.TypeResultDropped)
	if len(dropped) != 1 {
		t.Fatalf("Expected one result.dropped event, got %d", len(dropped))
	}
	if d := dropped[0].(event.ResultDroppedEvent); d.Session != 1 || d.Current != 2 {
		t.Errorf("Expected session 1 dropped in favor of 2, got %d/%d", d.Session, d.Current)
	}

	h.send(TaskResult{Kind: session.VisionComment, Session: 2, Outcome: task.Outcome{Text: "new"}})
	req, ok := h.log.lastRequest()
	if !ok || req.Text != "new" || req.Priority.String() != "HIGH" {
		t.Errorf("Expected HIGH speech of the current result, got %+v", req)
	}
	if h.engine.commentInFlight {
		t.Error("Expected comment to be finished")
	}

	h.log.reset()
	h.send(TaskResult{Kind: session.VisionComment, Session: 2, Outcome: task.Outcome{Text: "again"}})
	if got := h.log.with("audio."); len(got) != 0 {
		t.Errorf("Expected a completed session to be claimed once, got %v", got)
	}
}

// Own speech masks system audio; once it ends, a still-playing system audio
// is picked up as a separate later event.
func TestSelfPlaybackOrdering(t *testing.T) {
	h := newHarness(t)
	h.switches.set(true, false)

	h.engine.handle(SelfPlaybackStarted{})
	h.engine.handle(AudioOutputStarted{})
	if h.engine.audioActive {
		t.Fatal("Expected audio start to be ignored during self playback")
	}

	h.engine.handle(SelfPlaybackFinished{})
	if h.engine.selfPlaybackActive {
		t.Fatal("Expected self playback flag to be cleared")
	}
	if h.engine.audioActive {
		t.Fatal("Expected the re-posted start to wait for the loop")
	}
	if got := h.queued(); got != 1 {
		t.Fatalf("Expected one queued signal, got %d", got)
	}

	h.drain()
	if !h.engine.audioActive {
		t.Error("Expected audio active after the re-posted start")
	}
	if got := h.engine.overlay.Mode().String(); got != "MEDIA_PLAYING" {
		t.Errorf("Expected MEDIA_PLAYING, got %s", got)
	}
}

func TestSelfPlaybackStarted_ClearsMediaMode(t *testing.T) {
	h := newHarness(t)
	h.engage()
	h.send(AudioOutputStarted{})

	h.send(SelfPlaybackStarted{})
	if h.engine.audioActive {
		t.Error("Expected audio flag cleared by self playback")
	}
	if got := h.engine.overlay.Mode().String(); got != "IDLE" {
		t.Errorf("Expected fallback to IDLE while visible, got %s", got)
	}

	h.send(AudioOutputStopped{})
	h.expectState("ENGAGED")
}

func TestAudioStopped_HidesWhenForcedVisible(t *testing.T) {
	h := newHarness(t)
	h.send(AudioOutputStarted{})
	h.expectState("ENGAGED")

	h.send(AudioOutputStopped{})
	h.expectState("HIDDEN")
	if h.engine.audioActive || h.engine.audioForcedVisible {
		t.Error("Expected audio flags cleared")
	}
}

func TestAudioStopped_StaysWhenAlreadyVisible(t *testing.T) {
	h := newHarness(t)
	h.engage()
	h.send(AudioOutputStarted{})
	if h.engine.audioForcedVisible {
		t.Fatal("Expected no forced visibility when already engaged")
	}

	h.send(AudioOutputStopped{})
	h.expectState("ENGAGED")
	if got := h.engine.overlay.Mode().String(); got != "IDLE" {
		t.Errorf("Expected IDLE after media stops, got %s", got)
	}
}

func TestAudioSignals_RejectedWhenNotReactive(t *testing.T) {
	h := newHarness(t, harnessConfig{settings: func(s *Settings) { s.AudioReactive = false }})

	h.send(AudioOutputStarted{})
	h.expectState("HIDDEN")
	rejected := h.events.ofType(event.TypeGuardRejected)
	if len(rejected) != 1 || rejected[0].(event.GuardRejectedEvent).Reason != "reactive_disabled" {
		t.Errorf("Expected reactive_disabled rejection, got %v", rejected)
	}
}

func TestIdleConfirmed_Guards(t *testing.T) {
	t.Run("not hidden", func(t *testing.T) {
		h := newHarness(t)
		h.engage()
		h.send(IdleConfirmed{Idle: 200 * time.Second})
		if got := h.log.actions(); len(got) != 0 {
			t.Errorf("Expected no calls, got %v", got)
		}
	})

	t.Run("fullscreen", func(t *testing.T) {
		h := newHarness(t)
		h.switches.set(false, true)
		h.send(IdleConfirmed{Idle: 200 * time.Second})
		h.expectState("HIDDEN")
		want := []string{"idle.reset", "idle.threshold:3m0s"}
		if diff := cmp.Diff(want, h.log.actions()); diff != "" {
			t.Errorf("calls mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("fullscreen allowed when suppression is off", func(t *testing.T) {
		h := newHarness(t, harnessConfig{settings: func(s *Settings) { s.FullscreenSuppress = false }})
		h.switches.set(false, true)
		h.send(IdleConfirmed{Idle: 200 * time.Second})
		h.expectState("ENGAGED")
		if got := h.log.with("camera."); len(got) != 0 {
			t.Errorf("Expected camera held back while fullscreen, got %v", got)
		}
	})
}

func TestIdleConfirmed_ActiveUserRearms(t *testing.T) {
	h := newHarness(t)
	h.send(UserActive{})
	h.clock.Advance(10 * time.Second)
	h.log.reset()

	h.send(IdleConfirmed{Idle: 200 * time.Second})

	h.expectState("HIDDEN")
	want := []string{"idle.reset", "idle.threshold:3m0s"}
	if diff := cmp.Diff(want, h.log.actions()); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestIdleConfirmed_AbsentUserStaysHidden(t *testing.T) {
	h := newHarness(t)
	h.send(IdleConfirmed{Idle: 400 * time.Second})
	h.expectState("HIDDEN")

	judged := h.events.ofType(event.TypePresenceJudged)
	if len(judged) != 1 || judged[0].(event.PresenceJudgedEvent).Judgment != presence.Absent {
		t.Errorf("Expected ABSENT judgment, got %v", judged)
	}
}

func TestAutoDismiss_RearmRestartsCountdown(t *testing.T) {
	h := newHarness(t)
	h.engage()

	h.advance(20 * time.Second)
	if r := h.command("summon"); !r.OK {
		t.Fatalf("Expected summon to succeed, got %+v", r)
	}
	h.advance(20 * time.Second)
	h.expectState("ENGAGED")

	h.advance(10 * time.Second)
	h.expectState("HIDDEN")
	if got := h.log.with("audio.interrupt"); len(got) != 1 {
		t.Errorf("Expected one interrupt on dismissal, got %v", got)
	}
	if got := h.engine.mood.Value(); got < 0.54 || got > 0.56 {
		t.Errorf("Expected mood 0.55, got %v", got)
	}
}

func TestRejectedTransition_HasNoSideEffects(t *testing.T) {
	h := newHarness(t)
	h.engage()
	before := promtest.ToFloat64(metrics.TransitionsRejectedTotal.WithLabelValues("ENGAGED", "PEEKING"))

	for i := 0; i < 2; i++ {
		if h.engine.machine.TransitionTo(lifecycle.Peeking) {
			t.Fatal("Expected ENGAGED -> PEEKING to be rejected")
		}
	}

	h.expectState("ENGAGED")
	if got := h.log.actions(); len(got) != 0 {
		t.Errorf("Expected no hooks to run, got %v", got)
	}
	if got := promtest.ToFloat64(metrics.TransitionsRejectedTotal.WithLabelValues("ENGAGED", "PEEKING")); got != before+2 {
		t.Errorf("Expected rejection count %v, got %v", before+2, got)
	}
	if got := h.events.ofType(event.TypeLifecycleRejected); len(got) != 2 {
		t.Errorf("Expected 2 rejection events, got %d", len(got))
	}

	h.send(FleeCompleted{})
	h.expectState("ENGAGED")
}

func TestStaleTimerFireIsDropped(t *testing.T) {
	h := newHarness(t)
	h.engage()

	// Queue a fire for a generation that is no longer armed.
	h.engine.enqueue(TimerFired{Name: timerAutoDismiss, Generation: 1})
	h.drain()

	h.expectState("ENGAGED")
	if !h.engine.timers.Armed(timerAutoDismiss) {
		t.Error("Expected the live auto_dismiss arm to survive")
	}
}

func TestScriptedEntrance(t *testing.T) {
	newEntranceHarness := func(t *testing.T) *harness {
		traj := testTrajectory(t)
		return newHarness(t, harnessConfig{opts: []Option{
			WithEntrance(func() (*trajectory.Trajectory, error) { return traj, nil }),
		}})
	}

	t.Run("completes", func(t *testing.T) {
		h := newEntranceHarness(t)

		h.command("summon")
		h.expectState("HIDDEN")
		want := []string{"presentation.hide", "presentation.trajectory:1"}
		if diff := cmp.Diff(want, h.log.actions()); diff != "" {
			t.Errorf("calls mismatch (-want +got):\n%s", diff)
		}
		if snap := h.engine.Snapshot(); !snap.TrajectoryActive || snap.Visual != "summoning" {
			t.Errorf("Expected active trajectory with summoning visual, got %+v", snap)
		}

		h.log.reset()
		h.send(IdleConfirmed{Idle: 200 * time.Second})
		if got := h.log.actions(); len(got) != 0 {
			t.Errorf("Expected idle to be ignored during the entrance, got %v", got)
		}

		h.send(TaskResult{Kind: session.ScriptedEntrance, Session: 1})
		h.expectState("ENGAGED")
		want = []string{"camera.start", "presentation.summon"}
		if diff := cmp.Diff(want, h.log.actions()); diff != "" {
			t.Errorf("calls mismatch (-want +got):\n%s", diff)
		}
		if h.engine.timers.Armed(timerEntrance) {
			t.Error("Expected entrance_timeout to be disarmed")
		}
		if got := h.engine.overlay.Mode().String(); got != "SUMMONING" {
			t.Errorf("Expected SUMMONING after an entrance, got %s", got)
		}
	})

	t.Run("times out", func(t *testing.T) {
		h := newEntranceHarness(t)
		h.command("summon")

		h.advance(3900 * time.Millisecond)
		h.expectState("HIDDEN")
		h.advance(100 * time.Millisecond)
		h.expectState("ENGAGED")
		if got := h.log.with("presentation.stop_trajectory"); len(got) != 1 {
			t.Errorf("Expected the trajectory to be stopped, got %v", got)
		}

		before := promtest.ToFloat64(metrics.StaleResultsTotal.WithLabelValues("SCRIPTED_ENTRANCE"))
		h.send(TaskResult{Kind: session.ScriptedEntrance, Session: 1})
		if got := promtest.ToFloat64(metrics.StaleResultsTotal.WithLabelValues("SCRIPTED_ENTRANCE")); got != before+1 {
			t.Errorf("Expected the late completion to be stale, got %v", got-before)
		}
	})

	t.Run("fails", func(t *testing.T) {
		h := newEntranceHarness(t)
		h.command("summon")

		h.send(TaskResult{Kind: session.ScriptedEntrance, Session: 1, Outcome: task.Outcome{Err: errors.New("window lost")}})
		h.expectState("ENGAGED")
		if got := h.log.with("presentation.stop_trajectory"); len(got) != 1 {
			t.Errorf("Expected cleanup, got %v", got)
		}
	})

	t.Run("unavailable", func(t *testing.T) {
		h := newHarness(t, harnessConfig{opts: []Option{
			WithEntrance(func() (*trajectory.Trajectory, error) { return nil, errors.New("no file") }),
		}})
		h.command("summon")
		h.expectState("ENGAGED")
		if got := h.log.with("presentation.trajectory"); len(got) != 0 {
			t.Errorf("Expected plain summon, got %v", got)
		}
	})
}

func TestComment_FailureSpeaksFallback(t *testing.T) {
	h := newHarness(t)
	h.engage()

	r := h.command("comment", "what", "is", "this")
	if !r.OK {
		t.Fatalf("Expected comment to start, got %+v", r)
	}
	if snap := h.engine.Snapshot(); snap.Visual != "thinking" || !snap.CommentInFlight {
		t.Errorf("Expected thinking visual while in flight, got %+v", snap)
	}

	h.send(TaskResult{Kind: session.VisionComment, Session: 1, Outcome: task.Outcome{Err: errors.ErrThrottled}})
	req, ok := h.log.lastRequest()
	if !ok || req.Text != task.FallbackPhrase {
		t.Errorf("Expected fallback phrase, got %+v", req)
	}
	if snap := h.engine.Snapshot(); snap.Visual != "idle" {
		t.Errorf("Expected idle visual after the comment, got %s", snap.Visual)
	}
}

func TestComment_SummonsWhenHidden(t *testing.T) {
	h := newHarness(t)

	r := h.command("comment")
	if !r.OK {
		t.Fatalf("Expected comment to start, got %+v", r)
	}
	h.expectState("ENGAGED")
	if got := h.log.with("tasks.start"); len(got) != 1 {
		t.Errorf("Expected one task start, got %v", got)
	}
}

func TestComment_PowerSaving(t *testing.T) {
	h := newHarness(t)
	h.engage()
	h.switches.set(false, true)

	r := h.command("comment")
	if r.OK {
		t.Error("Expected comment to be refused while fullscreen")
	}
	if got := h.log.with("tasks."); len(got) != 0 {
		t.Errorf("Expected no task, got %v", got)
	}
	req, ok := h.log.lastRequest()
	if !ok || req.Text != PowerSavingPhrase {
		t.Errorf("Expected power saving phrase, got %+v", req)
	}
}

func TestCommands(t *testing.T) {
	h := newHarness(t)

	r := h.command("status")
	if r.Status == nil || r.Status.State != "HIDDEN" {
		t.Fatalf("Expected HIDDEN status, got %+v", r)
	}
	if !strings.Contains(r.Message, "state: HIDDEN") {
		t.Errorf("Expected summary line, got %q", r.Message)
	}

	if r := h.command("mood"); r.Message != "calm (0.50)" {
		t.Errorf("Expected calm (0.50), got %q", r.Message)
	}

	r = h.command("dance")
	if !errors.Is(r.Err, errors.ErrUnknownCommand) {
		t.Errorf("Expected ErrUnknownCommand, got %v", r.Err)
	}

	if r := h.command("hide"); r.Message != "not visible" {
		t.Errorf("Expected hide to be a no-op while hidden, got %q", r.Message)
	}
	h.expectState("HIDDEN")

	h.command("toggle")
	h.expectState("ENGAGED")
	h.command("toggle")
	h.expectState("FLEEING")
	if r := h.command("toggle"); r.OK {
		t.Error("Expected toggle to fail while fleeing")
	}
	if r := h.command("summon"); r.OK {
		t.Error("Expected summon to fail while fleeing")
	}

	h.send(FleeCompleted{})
	h.command("come here")
	h.expectState("ENGAGED")
	h.command("go away")
	h.expectState("FLEEING")

	h.send(FleeCompleted{})
	if r := h.command("Sumon!"); r.Action != "summon" || !r.OK {
		t.Errorf("Expected a misspelled summon to resolve, got %+v", r)
	}
	h.expectState("ENGAGED")
}

func TestApplyRuntimeConfig(t *testing.T) {
	h := newHarness(t)
	h.engage()
	h.send(AudioOutputStarted{})
	h.log.reset()

	off := false
	threshold := 5 * time.Minute
	h.send(ApplyRuntimeConfig{Patch: config.RuntimePatch{
		CameraEnabled: &off,
		AudioReactive: &off,
		IdleThreshold: &threshold,
	}})

	want := []string{"camera.stop", "idle.threshold:5m0s"}
	if diff := cmp.Diff(want, h.log.actions()); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
	if h.engine.audioActive {
		t.Error("Expected audio flag cleared when reactivity is disabled")
	}
	if got := h.engine.overlay.Mode().String(); got != "IDLE" {
		t.Errorf("Expected IDLE, got %s", got)
	}
	applied := h.events.ofType(event.TypeConfigApplied)
	if len(applied) != 1 {
		t.Fatalf("Expected one config.applied event, got %d", len(applied))
	}
	wantFields := []string{"trigger.idle_threshold", "audio.reactive", "vision.camera_enabled"}
	if diff := cmp.Diff(wantFields, applied[0].(event.ConfigAppliedEvent).Fields); diff != "" {
		t.Errorf("fields mismatch (-want +got):\n%s", diff)
	}

	h.send(CameraSample{Sample: presence.Sample{FaceDetected: true}})
	if h.engine.lastSample != nil {
		t.Error("Expected samples to be ignored with the camera off")
	}

	on := true
	h.switches.set(true, false)
	h.send(ApplyRuntimeConfig{Patch: config.RuntimePatch{AudioReactive: &on, CameraEnabled: &on}})
	if !h.engine.audioActive {
		t.Error("Expected playing audio to be picked up when reactivity returns")
	}
	if !h.engine.cameraRunning {
		t.Error("Expected camera restarted while visible")
	}
}

func TestCameraSample_UpdatesExpression(t *testing.T) {
	h := newHarness(t)
	h.engage()

	happy := CameraSample{Sample: presence.Sample{FaceDetected: true, Expression: "happy", Score: 1}}
	h.send(happy)
	if got := h.log.with("presentation.expression"); len(got) != 0 {
		t.Fatalf("Expected one sample not to be enough, got %v", got)
	}
	h.send(happy)
	want := []string{"presentation.expression:happy"}
	if diff := cmp.Diff(want, h.log.with("presentation.expression")); diff != "" {
		t.Errorf("expression calls mismatch (-want +got):\n%s", diff)
	}
	if h.engine.lastSample == nil || !h.engine.lastSample.At.Equal(testEpoch) {
		t.Error("Expected the sample to be stamped with the engine clock")
	}
}

func TestCameraFailed_DisablesCamera(t *testing.T) {
	h := newHarness(t)
	h.engage()

	h.send(CameraFailed{Err: errors.New("device busy")})
	if got := h.log.with("camera.stop"); len(got) != 1 {
		t.Errorf("Expected camera stop, got %v", got)
	}
	if snap := h.engine.Snapshot(); snap.CameraEnabled || snap.CameraRunning {
		t.Errorf("Expected camera disabled, got %+v", snap)
	}

	h.send(UserActive{})
	h.send(FleeCompleted{})
	h.send(IdleConfirmed{Idle: 200 * time.Second})
	if got := h.log.with("camera.start"); len(got) != 0 {
		t.Errorf("Expected camera to stay off for the run, got %v", got)
	}
}

func TestProlongedIdleAndMoodDecay(t *testing.T) {
	h := newHarness(t)
	h.engine.mood.Set(0.7)

	h.advance(10 * time.Minute)
	if got := h.events.ofType(event.TypeIdleProlonged); len(got) != 1 {
		t.Fatalf("Expected one idle.prolonged event, got %d", len(got))
	}
	if !h.engine.timers.Armed(timerProlongedIdle) {
		t.Error("Expected prolonged_idle re-armed")
	}

	h.advance(50 * time.Minute)
	if got := h.engine.mood.Value(); got < 0.679 || got > 0.681 {
		t.Errorf("Expected mood decayed to 0.68, got %v", got)
	}
	if !h.engine.timers.Armed(timerMoodDecay) {
		t.Error("Expected mood_decay re-armed")
	}
}

// Random signal sequences must keep the engine consistent, and the
// companion must always be able to get back to HIDDEN.
func TestRandomSequencesStayConsistent(t *testing.T) {
	traj := testTrajectory(t)

	for seed := uint64(1); seed <= 20; seed++ {
		h := newHarness(t, harnessConfig{opts: []Option{
			WithEntrance(func() (*trajectory.Trajectory, error) { return traj, nil }),
		}})
		rnd := rand.New(rand.NewPCG(seed, seed*7))
		visited := map[string]bool{}

		steps := []func(){
			func() { h.send(IdleConfirmed{Idle: time.Duration(60+rnd.IntN(400)) * time.Second}) },
			func() { h.send(UserActive{}) },
			func() { h.send(AudioOutputStarted{}) },
			func() { h.send(AudioOutputStopped{}) },
			func() { h.send(SelfPlaybackStarted{}) },
			func() { h.send(SelfPlaybackFinished{}) },
			func() { h.send(FleeCompleted{}) },
			func() { h.command([]string{"summon", "hide", "toggle", "comment", "status"}[rnd.IntN(5)]) },
			func() {
				h.send(TaskResult{Kind: session.VisionComment, Session: session.ID(rnd.IntN(4)), Outcome: task.Outcome{Text: "hi"}})
			},
			func() {
				h.send(TaskResult{Kind: session.ScriptedEntrance, Session: session.ID(rnd.IntN(4))})
			},
			func() {
				h.send(CameraSample{Sample: presence.Sample{
					FaceDetected: rnd.IntN(2) == 0,
					Expression:   "happy",
					Score:        1,
				}})
			},
			func() { h.switches.set(rnd.IntN(2) == 0, rnd.IntN(4) == 0) },
			func() { h.advance(time.Duration(rnd.IntN(5000)) * time.Millisecond) },
			func() { h.send(IdleMarkReached{Idle: time.Duration(180+rnd.IntN(900)) * time.Second}) },
			func() { h.send(IdleMarkCleared{}) },
			func() { h.send(InvaderGone{ID: uint64(rnd.IntN(8))}) },
		}

		for i := 0; i < 400; i++ {
			steps[rnd.IntN(len(steps))]()
			checkInvariants(t, h, seed, i)
			visited[h.state()] = true
		}

		// Converge: let pending timers run, then dismiss.
		h.switches.set(false, false)
		h.advance(10 * time.Second)
		h.send(UserActive{})
		h.send(FleeCompleted{})
		if got := h.state(); got != "HIDDEN" {
			t.Errorf("seed %d: Expected to converge to HIDDEN, got %s", seed, got)
		}

		for _, s := range []string{"HIDDEN", "ENGAGED", "FLEEING"} {
			if !visited[s] {
				t.Errorf("seed %d: state %s never reached", seed, s)
			}
		}
	}
}

func checkInvariants(t *testing.T, h *harness, seed uint64, step int) {
	t.Helper()
	e := h.engine
	st := e.machine.State()

	if _, err := lifecycle.ParseState(st.String()); err != nil {
		t.Fatalf("seed %d step %d: invalid state %v", seed, step, st)
	}
	switch st {
	case lifecycle.Hidden:
		if e.timers.Armed(timerAutoDismiss) || e.timers.Armed(timerFlee) {
			t.Fatalf("seed %d step %d: HIDDEN with dismissal timers armed: %v", seed, step, e.timers.Names())
		}
	case lifecycle.Engaged:
		if !e.timers.Armed(timerAutoDismiss) {
			t.Fatalf("seed %d step %d: ENGAGED without auto_dismiss", seed, step)
		}
	case lifecycle.Fleeing:
		if !e.timers.Armed(timerFlee) {
			t.Fatalf("seed %d step %d: FLEEING without flee timer", seed, step)
		}
	}
	if e.trajectoryActive && (st != lifecycle.Hidden || !e.timers.Armed(timerEntrance)) {
		t.Fatalf("seed %d step %d: trajectory active in %s, timers %v", seed, step, st, e.timers.Names())
	}
	if e.cameraRunning && !st.Visible() {
		t.Fatalf("seed %d step %d: camera running while %s", seed, step, st)
	}

	inv := e.invasion.State()
	if armed := e.timers.Armed(timerInvasionSpawn); armed != (inv == invasion.Spawning) {
		t.Fatalf("seed %d step %d: invasion %s with spawn timer armed=%v", seed, step, inv, armed)
	}
	if armed := e.timers.Armed(timerInvasionEnd); armed != (inv == invasion.Retreating) {
		t.Fatalf("seed %d step %d: invasion %s with retreat timer armed=%v", seed, step, inv, armed)
	}
	if inv == invasion.Inactive && e.invasion.Count() != 0 {
		t.Fatalf("seed %d step %d: %d invaders while inactive", seed, step, e.invasion.Count())
	}
}

func TestRun_PostAndShutdown(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	log := &callLog{}
	e, err := New(Collaborators{
		Presentation: fakePresentation{log},
		Audio:        fakeAudio{log},
		Tasks:        fakeTasks{log},
		Idle:         fakeIdle{log},
	}, DefaultSettings(), WithClock(testutil.NewFakeClock(testEpoch)), WithRunID("run-1"))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- e.Run(ctx) }()

	r, err := e.Do(ctx, "status")
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if r.Status == nil || r.Status.RunID != "run-1" || r.Status.State != "HIDDEN" {
		t.Errorf("Expected HIDDEN status for run-1, got %+v", r.Status)
	}

	if err := e.Post(ctx, IdleConfirmed{Idle: 200 * time.Second}); err != nil {
		t.Fatalf("Post failed: %v", err)
	}
	testutil.Eventually(t, time.Second, func() bool {
		return e.Snapshot().State == "ENGAGED"
	}, "engine never engaged")

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Expected clean shutdown, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}

	if err := e.Post(context.Background(), UserActive{}); !errors.Is(err, errors.ErrEngineStopped) {
		t.Errorf("Expected ErrEngineStopped, got %v", err)
	}
	if _, err := e.Do(context.Background(), "status"); !errors.Is(err, errors.ErrEngineStopped) {
		t.Errorf("Expected ErrEngineStopped from Do, got %v", err)
	}
	if err := e.Run(context.Background()); err == nil {
		t.Error("Expected a second Run to fail")
	}
	if snap := e.Snapshot(); len(snap.Timers) != 0 {
		t.Errorf("Expected all timers disarmed at shutdown, got %v", snap.Timers)
	}
}

func TestRelay(t *testing.T) {
	h := newHarness(t)
	relay := NewRelay(nil)

	relay.AudioStarted()
	if got := h.queued(); got != 0 {
		t.Fatalf("Expected unbound relay to drop signals, got %d queued", got)
	}

	relay.Bind(h.engine)
	relay.IdleHandlers().IdleConfirmed(200 * time.Second)
	h.drain()
	h.expectState("ENGAGED")

	relay.IdleHandlers().UserActive()
	relay.FleeCompleted()
	h.drain()
	h.expectState("HIDDEN")
}

// A producer blocked on a full queue must not overtake its own earlier
// signals.
func TestRelay_KeepsProducerOrder(t *testing.T) {
	h := newHarness(t, harnessConfig{opts: []Option{WithQueueSize(1)}})
	relay := NewRelay(nil)
	relay.Bind(h.engine)

	const n = 200
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < n; i++ {
			if i%2 == 0 {
				relay.AudioStarted()
			} else {
				relay.AudioStopped()
			}
		}
	}()

	for i := 0; i < n; i++ {
		want := "audio_output_started"
		if i%2 == 1 {
			want = "audio_output_stopped"
		}
		select {
		case sig := <-h.engine.signals:
			if got := sig.signalName(); got != want {
				t.Fatalf("signal %d: Expected %s, got %s", i, want, got)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("Expected %d signals, got %d", n, i)
		}
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("producer never returned")
	}
}

func TestEnqueue_KeepsOrderWhenQueueFull(t *testing.T) {
	h := newHarness(t, harnessConfig{opts: []Option{WithQueueSize(1)}})
	h.engine.signals <- UserActive{}

	names := []string{"first", "second", "third"}
	for i, name := range names {
		h.engine.enqueue(TimerFired{Name: name, Generation: uint64(i + 1)})
	}

	var got []string
	for _, sig := range h.engine.takePending() {
		got = append(got, sig.(TimerFired).Name)
	}
	if diff := cmp.Diff(names, got); diff != "" {
		t.Errorf("pending order mismatch (-want +got):\n%s", diff)
	}
	if got := len(h.engine.signals); got != 1 {
		t.Errorf("Expected the channel to be left alone, got %d queued", got)
	}
}

func TestPost_AfterShutdown(t *testing.T) {
	h := newHarness(t)

	reply := make(chan Reply, 1)
	if err := h.engine.Post(context.Background(), Command{Name: "status", Reply: reply}); err != nil {
		t.Fatalf("Post failed: %v", err)
	}
	h.engine.enqueue(UserActive{})
	h.engine.stop()

	select {
	case r := <-reply:
		if !errors.Is(r.Err, errors.ErrEngineStopped) {
			t.Errorf("Expected ErrEngineStopped for a discarded command, got %v", r.Err)
		}
	default:
		t.Fatal("Expected a discarded command to be answered")
	}

	for i := 0; i < 100; i++ {
		if err := h.engine.Post(context.Background(), UserActive{}); !errors.Is(err, errors.ErrEngineStopped) {
			t.Fatalf("post %d: Expected ErrEngineStopped, got %v", i, err)
		}
	}
	h.engine.enqueue(UserActive{})
	if got := h.queued(); got != 0 {
		t.Errorf("Expected nothing queued after shutdown, got %d", got)
	}
}
