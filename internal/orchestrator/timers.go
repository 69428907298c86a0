package orchestrator

import (
	"github.com/Iron-Ham/haunt/internal/event"
	"github.com/Iron-Ham/haunt/internal/idle"
	"github.com/Iron-Ham/haunt/internal/orchestrator/lifecycle"
	"github.com/Iron-Ham/haunt/internal/timer"
)

// Timer names.
const (
	timerAutoDismiss   = "auto_dismiss"
	timerFlee          = "flee"
	timerEntrance      = "entrance_timeout"
	timerProlongedIdle = "prolonged_idle"
	timerMoodDecay     = "mood_decay"
	timerInvasionSpawn = "invasion_spawn"
	timerInvasionEnd   = "invasion_retreat"
)

func (e *Engine) onTimerFired(t TimerFired) {
	if !e.timers.Claim(timer.Fired{Name: t.Name, Generation: t.Generation}) {
		e.logger.Trace("stale timer fire dropped", "timer", t.Name, "generation", t.Generation)
		return
	}

	switch t.Name {
	case timerAutoDismiss:
		if e.machine.State() != lifecycle.Engaged {
			return
		}
		e.adjustMood("dismissed", e.mood.Dismissed)
		e.collab.Audio.Interrupt()
		e.machine.TransitionTo(lifecycle.Hidden)
	case timerFlee:
		if e.machine.State() == lifecycle.Fleeing {
			e.logger.Debug("flee animation did not report back, hiding")
			e.machine.TransitionTo(lifecycle.Hidden)
		}
	case timerEntrance:
		e.onEntranceTimeout()
	case timerProlongedIdle:
		if e.machine.State() != lifecycle.Hidden {
			return
		}
		e.logger.Info("user idle for a prolonged period")
		e.publish(event.NewIdleProlongedEvent(e.clock.Now()))
		e.armProlongedIdle()
	case timerMoodDecay:
		e.adjustMood("decay", e.mood.Decay)
		e.armMoodDecay()
	case timerInvasionSpawn:
		e.applyInvasion(e.invasion.Tick(e.clock.Now()))
	case timerInvasionEnd:
		e.logger.Debug("invaders did not leave in time, clearing")
		e.applyInvasion(e.invasion.ForceClear())
	default:
		e.logger.Warn("unknown timer fired", "timer", t.Name)
	}
}

func (e *Engine) armAutoDismiss() {
	if e.settings.AutoDismiss <= 0 {
		e.timers.Disarm(timerAutoDismiss)
		return
	}
	e.timers.Arm(timerAutoDismiss, e.settings.AutoDismiss)
}

func (e *Engine) armProlongedIdle() {
	if e.settings.ProlongedIdle > 0 {
		e.timers.Arm(timerProlongedIdle, e.settings.ProlongedIdle)
	}
}

func (e *Engine) armMoodDecay() {
	if e.settings.MoodDecayInterval > 0 {
		e.timers.Arm(timerMoodDecay, e.settings.MoodDecayInterval)
	}
}

// rearmIdle returns the idle monitor to standby and gives it a fresh
// jittered threshold.
func (e *Engine) rearmIdle() {
	e.collab.Idle.ResetToStandby()
	e.jitterThreshold()
}

func (e *Engine) jitterThreshold() {
	d := idle.Jitter(e.settings.IdleThreshold, e.settings.JitterLow, e.settings.JitterHigh, e.rnd)
	e.collab.Idle.SetThreshold(d)
	e.threshold = d
}
