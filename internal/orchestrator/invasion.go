package orchestrator

import (
	"time"

	"github.com/Iron-Ham/haunt/internal/event"
	"github.com/Iron-Ham/haunt/internal/invasion"
	"github.com/Iron-Ham/haunt/internal/metrics"
)

func (e *Engine) onIdleMarkReached(s IdleMarkReached) {
	const name = "idle_mark_reached"
	if !e.invasion.Config().Enabled {
		e.reject(name, "invasion_disabled")
		return
	}
	if e.fullscreenSuppressed() {
		e.reject(name, "fullscreen")
		return
	}
	e.applyInvasion(e.invasion.Begin(e.clock.Now(), s.Idle))
}

// applyInvasion carries out a controller step: it drives the presentation,
// the two invasion timers, and the outbound notifications.
func (e *Engine) applyInvasion(step invasion.Step) {
	p := e.collab.Presentation
	for _, inv := range step.Spawned {
		p.SpawnInvader(inv)
	}
	for _, d := range step.Depart {
		p.RetreatInvader(d.ID, d.Delay)
	}
	if step.Clear {
		p.ClearInvaders()
	}

	e.setInvasionTimer(timerInvasionSpawn, step.SpawnIn)
	e.setInvasionTimer(timerInvasionEnd, step.RetreatBy)

	metrics.SetInvaders(e.invasion.Count())
	if step.Changed() {
		e.logger.Info("invasion changed",
			"from", step.From.String(),
			"to", step.To.String(),
			"invaders", e.invasion.Count(),
		)
		e.publish(event.NewInvasionChangedEvent(e.clock.Now(), step.From, step.To, e.invasion.Count()))
	}
}

func (e *Engine) setInvasionTimer(name string, d time.Duration) {
	switch {
	case d == invasion.Keep:
	case d > 0:
		e.timers.Arm(name, d)
	default:
		e.timers.Disarm(name)
	}
}

// invasionMark is the idle time the monitor should report for the invasion,
// or zero when it is off.
func (e *Engine) invasionMark() time.Duration {
	cfg := e.invasion.Config()
	if !cfg.Enabled {
		return 0
	}
	return cfg.StartDelay
}

func (e *Engine) setInvasionEnabled(on bool) {
	cfg := e.invasion.Config()
	cfg.Enabled = on
	e.settings.Invasion = cfg
	e.applyInvasion(e.invasion.SetConfig(cfg))
	e.collab.Idle.SetMark(e.invasionMark())
}
