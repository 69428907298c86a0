package orchestrator

import (
	"github.com/Iron-Ham/haunt/internal/behavior"
	"github.com/Iron-Ham/haunt/internal/orchestrator/lifecycle"
	"github.com/Iron-Ham/haunt/internal/session"
	"github.com/Iron-Ham/haunt/internal/task"
)

// summonNow forces the companion onto the screen. It fails only while
// fleeing.
func (e *Engine) summonNow() bool {
	st := e.machine.State()
	if st == lifecycle.Fleeing {
		return false
	}
	e.setMode(behavior.Summoning)

	switch st {
	case lifecycle.Hidden:
		if e.startEntrance() {
			return true
		}
		return e.machine.TransitionTo(lifecycle.Engaged)
	case lifecycle.Peeking:
		return e.machine.TransitionTo(lifecycle.Engaged)
	default:
		e.armAutoDismiss()
		e.applyVisual()
		return true
	}
}

// startEntrance begins a scripted entrance. It returns false when none is
// configured or the trajectory cannot be loaded.
func (e *Engine) startEntrance() bool {
	if e.trajectoryActive {
		return true
	}
	if e.entrance == nil {
		return false
	}
	traj, err := e.entrance()
	if err != nil || traj == nil {
		if err != nil {
			e.logger.Warn("scripted entrance unavailable, using plain summon", "error", err.Error())
		}
		return false
	}

	e.collab.Presentation.HideImmediately()
	e.timers.Disarm(timerAutoDismiss)
	e.setMode(behavior.Summoning)
	id := e.sessions.Begin(session.ScriptedEntrance)
	e.trajectoryActive = true
	e.timers.Arm(timerEntrance, traj.EntranceTimeout())
	e.applyVisual()
	e.collab.Presentation.PlayTrajectory(id, traj)

	e.logger.Info("scripted entrance started",
		"session", uint64(id),
		"duration", traj.Duration().String(),
		"source", traj.Source,
	)
	return true
}

func (e *Engine) endTrajectory() {
	e.trajectoryActive = false
	e.timers.Disarm(timerEntrance)
}

func (e *Engine) finishEntrance(o task.Outcome) {
	e.endTrajectory()
	if o.Failed() {
		e.logger.Warn("scripted entrance failed, using plain summon", "error", o.Err.Error())
		e.collab.Presentation.StopTrajectory()
		if e.machine.State() == lifecycle.Hidden {
			e.machine.TransitionTo(lifecycle.Engaged)
		}
		return
	}
	e.logger.Info("scripted entrance finished")
	e.completeEntrance()
}

func (e *Engine) onEntranceTimeout() {
	if !e.trajectoryActive {
		return
	}
	e.logger.Warn("scripted entrance timed out, forcing entry")
	e.sessions.Cancel(session.ScriptedEntrance)
	e.collab.Presentation.StopTrajectory()
	e.endTrajectory()
	e.completeEntrance()
}

func (e *Engine) completeEntrance() {
	e.setMode(behavior.Summoning)
	switch e.machine.State() {
	case lifecycle.Fleeing:
		return
	case lifecycle.Hidden, lifecycle.Peeking:
		e.machine.TransitionTo(lifecycle.Engaged)
	case lifecycle.Engaged:
		e.applyVisual()
		e.armAutoDismiss()
	}
}
