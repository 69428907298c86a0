package config

import "time"

// Runtime is the subset of configuration that can change while the daemon
// runs without a restart.
type Runtime struct {
	IdleThreshold      time.Duration
	AutoDismiss        time.Duration
	AudioReactive      bool
	FullscreenSuppress bool
	CameraEnabled      bool
	InvasionEnabled    bool
}

// Runtime extracts the live-reloadable settings from c.
func (c *Config) Runtime() Runtime {
	return Runtime{
		IdleThreshold:      c.Trigger.IdleThreshold,
		AutoDismiss:        c.Trigger.AutoDismiss,
		AudioReactive:      c.Audio.Reactive,
		FullscreenSuppress: c.Trigger.FullscreenSuppress,
		CameraEnabled:      c.Vision.CameraEnabled,
		InvasionEnabled:    c.Invasion.Enabled,
	}
}

// RuntimePatch carries changed runtime settings. Nil fields are left alone.
type RuntimePatch struct {
	IdleThreshold      *time.Duration `json:"idle_threshold,omitempty"`
	AutoDismiss        *time.Duration `json:"auto_dismiss,omitempty"`
	AudioReactive      *bool          `json:"audio_reactive,omitempty"`
	FullscreenSuppress *bool          `json:"fullscreen_suppress,omitempty"`
	CameraEnabled      *bool          `json:"camera_enabled,omitempty"`
	InvasionEnabled    *bool          `json:"invasion_enabled,omitempty"`
}

// Diff returns a patch holding every field that differs between old and next.
func Diff(old, next Runtime) RuntimePatch {
	var p RuntimePatch
	if old.IdleThreshold != next.IdleThreshold {
		p.IdleThreshold = &next.IdleThreshold
	}
	if old.AutoDismiss != next.AutoDismiss {
		p.AutoDismiss = &next.AutoDismiss
	}
	if old.AudioReactive != next.AudioReactive {
		p.AudioReactive = &next.AudioReactive
	}
	if old.FullscreenSuppress != next.FullscreenSuppress {
		p.FullscreenSuppress = &next.FullscreenSuppress
	}
	if old.CameraEnabled != next.CameraEnabled {
		p.CameraEnabled = &next.CameraEnabled
	}
	if old.InvasionEnabled != next.InvasionEnabled {
		p.InvasionEnabled = &next.InvasionEnabled
	}
	return p
}

// Empty reports whether the patch changes nothing.
func (p RuntimePatch) Empty() bool {
	return len(p.Fields()) == 0
}

// Fields lists the configuration keys the patch sets.
func (p RuntimePatch) Fields() []string {
	var fields []string
	if p.IdleThreshold != nil {
		fields = append(fields, "trigger.idle_threshold")
	}
	if p.AutoDismiss != nil {
		fields = append(fields, "trigger.auto_dismiss")
	}
	if p.AudioReactive != nil {
		fields = append(fields, "audio.reactive")
	}
	if p.FullscreenSuppress != nil {
		fields = append(fields, "trigger.fullscreen_suppress")
	}
	if p.CameraEnabled != nil {
		fields = append(fields, "vision.camera_enabled")
	}
	if p.InvasionEnabled != nil {
		fields = append(fields, "invasion.enabled")
	}
	return fields
}
