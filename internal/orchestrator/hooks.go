package orchestrator

import (
	"github.com/Iron-Ham/haunt/internal/audio"
	"github.com/Iron-Ham/haunt/internal/behavior"
	"github.com/Iron-Ham/haunt/internal/event"
	"github.com/Iron-Ham/haunt/internal/metrics"
	"github.com/Iron-Ham/haunt/internal/orchestrator/lifecycle"
	"github.com/Iron-Ham/haunt/internal/script"
)

func (e *Engine) registerHooks() {
	e.machine.OnEnter(lifecycle.Hidden, e.enterHidden)
	e.machine.OnEnter(lifecycle.Peeking, e.enterVisible)
	e.machine.OnEnter(lifecycle.Engaged, e.enterVisible)
	e.machine.OnExit(lifecycle.Peeking, e.exitVisible)
	e.machine.OnExit(lifecycle.Engaged, e.exitVisible)
	e.machine.OnEnter(lifecycle.Fleeing, e.enterFleeing)
	e.machine.OnExit(lifecycle.Fleeing, e.exitFleeing)
}

func (e *Engine) enterHidden(_, _ lifecycle.State) {
	e.timers.Disarm(timerAutoDismiss)
	e.timers.Disarm(timerFlee)
	e.stopCamera()
	e.collab.Presentation.HideImmediately()
	e.rearmIdle()
	e.audioForcedVisible = false
	e.armProlongedIdle()
	e.setMode(behavior.Busy)
}

func (e *Engine) enterVisible(from, _ lifecycle.State) {
	e.startCamera()

	sc, ok := e.nextScript()
	var payload Payload
	if ok {
		payload = Payload{ScriptID: sc.ID, Text: sc.Text, Sprite: sc.Sprite}
	}

	if from == lifecycle.Hidden {
		edge := EdgeLeft
		if e.rnd.IntN(2) == 1 {
			edge = EdgeRight
		}
		y := 0.2 + e.rnd.Float64()*0.6
		e.collab.Presentation.Summon(edge, y, payload)
	} else {
		e.collab.Presentation.Enter(payload)
	}

	if ok && e.overlay.Mode() != behavior.Summoning {
		e.adjustMood("interacted", e.mood.Interacted)
		e.speak(scriptRequest(sc, audio.High))
	}
	if e.overlay.Mode() != behavior.Summoning {
		e.setMode(behavior.Idle)
	}
	e.applyVisual()
	e.armAutoDismiss()
}

func (e *Engine) exitVisible(_, _ lifecycle.State) {
	e.timers.Disarm(timerAutoDismiss)
}

func (e *Engine) enterFleeing(_, _ lifecycle.State) {
	e.timers.Disarm(timerAutoDismiss)
	e.stopCamera()
	e.setMode(behavior.Busy)
	e.collab.Audio.Interrupt()
	if sc, ok := e.scripts.PickPanic(e.clock.Now()); ok {
		e.speak(scriptRequest(sc, audio.Critical))
	}
	e.collab.Presentation.Flee()
	e.timers.Arm(timerFlee, e.settings.FleeTimeout)
}

func (e *Engine) exitFleeing(_, _ lifecycle.State) {
	e.timers.Disarm(timerFlee)
}

// nextScript returns the pending line if one was staged, otherwise an idle
// line for the current time.
func (e *Engine) nextScript() (script.Script, bool) {
	if e.pendingScript != nil {
		sc := *e.pendingScript
		e.pendingScript = nil
		return sc, true
	}
	return e.scripts.PickIdle(e.clock.Now())
}

func scriptRequest(sc script.Script, p audio.Priority) audio.Request {
	return audio.Request{
		ContentRef: sc.Audio,
		Text:       sc.Text,
		Priority:   p,
		ScriptID:   sc.ID,
	}
}

func (e *Engine) speak(req audio.Request) {
	if err := e.collab.Audio.Submit(req); err != nil {
		e.logger.Warn("speech not queued",
			"script_id", req.ScriptID,
			"priority", req.Priority.String(),
			"error", err.Error(),
		)
		return
	}
	e.publish(event.NewSpeechQueuedEvent(e.clock.Now(), req.ScriptID, req.Text, req.Priority.String()))
}

func (e *Engine) setMode(m behavior.Mode) {
	from := e.overlay.Mode()
	if !e.overlay.Set(m) {
		return
	}
	e.logger.Debug("mode changed", "from", from.String(), "to", m.String())
	e.publish(event.NewModeChangedEvent(e.clock.Now(), from, m))
}

func (e *Engine) currentVisual() behavior.Visual {
	if e.commentInFlight && !e.trajectoryActive {
		return behavior.VisualThinking
	}
	return e.overlay.Visual(e.trajectoryActive)
}

func (e *Engine) applyVisual() {
	e.collab.Presentation.SetVisual(e.currentVisual())
}

// adjustMood applies one mood operation and reports the change, if any.
func (e *Engine) adjustMood(cause string, op func() float64) {
	before := e.mood.Value()
	after := op()
	if after == before {
		return
	}
	metrics.SetMood(after)
	e.publish(event.NewMoodChangedEvent(e.clock.Now(), after, e.mood.Label(), cause))
}

func (e *Engine) publish(ev event.Event) {
	e.events.Publish(ev)
}

func (e *Engine) onStateChanged(from, to lifecycle.State) {
	metrics.IncTransition(from.String(), to.String())
	e.logger.Info("lifecycle changed",
		"from", from.String(),
		"to", to.String(),
		"mode", e.overlay.Mode().String(),
	)
	e.publish(event.NewLifecycleChangedEvent(e.clock.Now(), from, to, e.overlay.Mode()))
}

func (e *Engine) onTransitionRejected(from, to lifecycle.State, _ error) {
	metrics.IncTransitionRejected(from.String(), to.String())
	e.publish(event.NewLifecycleRejectedEvent(e.clock.Now(), from, to))
}
