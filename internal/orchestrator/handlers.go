package orchestrator

import (
	"math"
	"time"

	"github.com/Iron-Ham/haunt/internal/behavior"
	"github.com/Iron-Ham/haunt/internal/event"
	"github.com/Iron-Ham/haunt/internal/metrics"
	"github.com/Iron-Ham/haunt/internal/orchestrator/lifecycle"
	"github.com/Iron-Ham/haunt/internal/presence"
	"github.com/Iron-Ham/haunt/internal/session"
)

// reject records a guard rejection. Rejections are expected traffic, not
// errors.
func (e *Engine) reject(signal, reason string) {
	e.logger.Debug("signal rejected", "signal", signal, "reason", reason)
	metrics.IncGuardRejection(signal, reason)
	e.publish(event.NewGuardRejectedEvent(e.clock.Now(), signal, reason))
}

func (e *Engine) fullscreenSuppressed() bool {
	return e.settings.FullscreenSuppress && e.collab.Fullscreen.Fullscreen()
}

func (e *Engine) onIdleConfirmed(s IdleConfirmed) {
	const name = "idle_confirmed"
	if e.trajectoryActive {
		e.reject(name, "trajectory_active")
		return
	}
	if e.machine.State() != lifecycle.Hidden {
		e.reject(name, "not_hidden")
		return
	}
	if e.fullscreenSuppressed() {
		e.reject(name, "fullscreen")
		e.rearmIdle()
		return
	}

	now := e.clock.Now()
	judgment := presence.Classify(e.presenceInput(s.Idle, now))
	e.publish(event.NewPresenceJudgedEvent(now, judgment, s.Idle))
	e.logger.Info("idle confirmed", "idle", s.Idle.String(), "presence", judgment.String())

	if judgment != presence.PresentPassive {
		e.setMode(behavior.Busy)
		e.rearmIdle()
		return
	}
	e.setMode(behavior.Idle)
	e.machine.TransitionTo(lifecycle.Engaged)
}

func (e *Engine) presenceInput(idleFor time.Duration, now time.Time) presence.Input {
	in := presence.Input{
		Idle:         idleFor,
		AbsentFrames: e.smoother.AbsentFrames(),
		SinceInput:   since(now, e.lastInput),
		SinceCommand: since(now, e.lastCommand),
		Now:          now,
		Freshness:    e.settings.SampleFreshness,
	}
	if e.cameraEnabled && e.lastSample != nil {
		sample := *e.lastSample
		in.Sample = &sample
	}
	return in
}

// since treats a zero time as "never".
func since(now, t time.Time) time.Duration {
	if t.IsZero() {
		return math.MaxInt64
	}
	return now.Sub(t)
}

func (e *Engine) onUserActive() {
	e.lastInput = e.clock.Now()
	e.applyInvasion(e.invasion.Retreat())
	if e.machine.State().Visible() {
		e.dismiss()
	} else {
		e.setMode(behavior.Busy)
	}
	e.collab.Idle.ResetToStandby()
}

// dismiss sends a visible companion away.
func (e *Engine) dismiss() {
	e.setMode(behavior.Busy)
	e.adjustMood("dismissed", e.mood.Dismissed)
	e.machine.TransitionTo(lifecycle.Fleeing)
}

func (e *Engine) onAudioStarted() {
	const name = "audio_output_started"
	if !e.settings.AudioReactive {
		e.reject(name, "reactive_disabled")
		return
	}
	if e.selfPlaybackActive {
		e.reject(name, "self_playback")
		return
	}
	if e.audioActive {
		e.reject(name, "duplicate")
		return
	}

	if e.machine.State() == lifecycle.Hidden {
		e.audioForcedVisible = e.summonNow()
	}
	e.audioActive = true
	e.setMode(behavior.MediaPlaying)
	e.applyVisual()
}

func (e *Engine) onAudioStopped() {
	const name = "audio_output_stopped"
	if !e.settings.AudioReactive {
		e.reject(name, "reactive_disabled")
		return
	}
	if e.selfPlaybackActive {
		e.reject(name, "self_playback")
		return
	}
	if !e.audioActive {
		e.reject(name, "not_active")
		return
	}

	e.audioActive = false
	forced := e.audioForcedVisible
	e.audioForcedVisible = false
	if forced && e.machine.State().Visible() {
		e.machine.TransitionTo(lifecycle.Hidden)
		return
	}
	if e.overlay.Mode() != behavior.Summoning {
		e.setMode(behavior.Fallback(e.machine.State().Visible()))
	}
	e.applyVisual()
}

func (e *Engine) onSelfPlaybackStarted() {
	e.selfPlaybackActive = true
	if !e.audioActive {
		return
	}
	e.audioActive = false
	if e.overlay.Mode() == behavior.MediaPlaying {
		e.setMode(behavior.Fallback(e.machine.State().Visible()))
	}
	e.applyVisual()
}

func (e *Engine) onSelfPlaybackFinished() {
	e.selfPlaybackActive = false
	if e.settings.AudioReactive && e.collab.Monitor.Playing() {
		// Handled later as an independent event, after anything already queued.
		e.enqueue(AudioOutputStarted{})
	}
}

func (e *Engine) onCameraSample(s CameraSample) {
	if !e.cameraEnabled {
		e.reject("camera_sample", "camera_disabled")
		return
	}
	sample := s.Sample
	if sample.At.IsZero() {
		sample.At = e.clock.Now()
	}
	e.lastSample = &sample

	label, changed := e.smoother.Observe(sample)
	if !changed {
		return
	}
	e.expression = label
	if e.machine.State().Visible() && e.overlay.Mode() == behavior.Idle {
		e.collab.Presentation.SetExpression(label)
	}
}

func (e *Engine) onCameraFailed(s CameraFailed) {
	msg := "unknown"
	if s.Err != nil {
		msg = s.Err.Error()
	}
	e.logger.Warn("camera failed, disabled for this run", "error", msg)
	e.cameraEnabled = false
	e.cameraRunning = false
	e.collab.Camera.Stop()
	e.smoother.Reset()
	e.lastSample = nil
	e.expression = ""
}

func (e *Engine) startCamera() {
	if !e.cameraEnabled || e.cameraRunning {
		return
	}
	plan := e.resources.Resolve(e.collab.Fullscreen.Fullscreen(), e.clock.Now())
	if !plan.CV {
		e.logger.Debug("camera held back by resource plan")
		return
	}
	e.collab.Camera.Start()
	e.cameraRunning = true
}

func (e *Engine) stopCamera() {
	if !e.cameraRunning {
		return
	}
	e.collab.Camera.Stop()
	e.cameraRunning = false
}

func (e *Engine) onFleeCompleted() {
	if e.machine.State() == lifecycle.Fleeing {
		e.machine.TransitionTo(lifecycle.Hidden)
	}
}

func (e *Engine) onTaskResult(r TaskResult) {
	if !e.sessions.IsCurrent(r.Kind, r.Session) || !e.sessions.Complete(r.Kind, r.Session) {
		e.dropResult(r)
		return
	}
	switch r.Kind {
	case session.VisionComment:
		e.finishComment(r.Outcome)
	case session.ScriptedEntrance:
		e.finishEntrance(r.Outcome)
	}
}

func (e *Engine) dropResult(r TaskResult) {
	var current session.ID
	if s, ok := e.sessions.Active(r.Kind); ok {
		current = s.ID
	}
	e.logger.Trace("stale result dropped",
		"kind", r.Kind.String(),
		"session", uint64(r.Session),
		"current", uint64(current),
	)
	metrics.IncStaleResult(r.Kind.String())
	e.publish(event.NewResultDroppedEvent(e.clock.Now(), r.Kind, r.Session, current))
}
