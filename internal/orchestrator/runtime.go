package orchestrator

import (
	"github.com/Iron-Ham/haunt/internal/behavior"
	"github.com/Iron-Ham/haunt/internal/event"
)

func (e *Engine) onApplyRuntimeConfig(s ApplyRuntimeConfig) {
	p := s.Patch

	if p.IdleThreshold != nil {
		e.settings.IdleThreshold = *p.IdleThreshold
	}
	if p.AutoDismiss != nil {
		e.settings.AutoDismiss = *p.AutoDismiss
	}
	if p.FullscreenSuppress != nil {
		e.settings.FullscreenSuppress = *p.FullscreenSuppress
	}

	if p.CameraEnabled != nil {
		e.settings.CameraEnabled = *p.CameraEnabled
		e.cameraEnabled = *p.CameraEnabled
		if !e.cameraEnabled {
			e.stopCamera()
			e.lastSample = nil
			e.smoother.Reset()
			e.expression = ""
		} else if e.machine.State().Visible() {
			e.startCamera()
		}
	}

	if p.AudioReactive != nil {
		e.settings.AudioReactive = *p.AudioReactive
		switch {
		case !e.settings.AudioReactive:
			e.audioActive = false
			e.audioForcedVisible = false
			if e.overlay.Mode() == behavior.MediaPlaying {
				e.setMode(behavior.Fallback(e.machine.State().Visible()))
				e.applyVisual()
			}
		case e.collab.Monitor.Playing() && !e.selfPlaybackActive && !e.audioActive:
			e.enqueue(AudioOutputStarted{})
		}
	}

	if p.InvasionEnabled != nil {
		e.setInvasionEnabled(*p.InvasionEnabled)
	}

	e.jitterThreshold()

	fields := p.Fields()
	e.logger.Info("runtime config applied",
		"fields", fields,
		"idle_threshold", e.threshold.String(),
	)
	e.publish(event.NewConfigAppliedEvent(e.clock.Now(), fields))
}
