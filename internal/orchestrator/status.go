package orchestrator

import (
	"fmt"
	"time"
)

// Snapshot is a read-only view of the engine, refreshed after every
// handled signal.
type Snapshot struct {
	RunID              string    `json:"run_id,omitempty"`
	State              string    `json:"state"`
	Visible            bool      `json:"visible"`
	Mode               string    `json:"mode"`
	Visual             string    `json:"visual"`
	Mood               float64   `json:"mood"`
	MoodLabel          string    `json:"mood_label"`
	Expression         string    `json:"expression,omitempty"`
	AudioActive        bool      `json:"audio_active"`
	SelfPlayback       bool      `json:"self_playback"`
	AudioForcedVisible bool      `json:"audio_forced_visible"`
	TrajectoryActive   bool      `json:"trajectory_active"`
	CameraEnabled      bool      `json:"camera_enabled"`
	CameraRunning      bool      `json:"camera_running"`
	CommentInFlight    bool      `json:"comment_in_flight"`
	IdleThreshold      string    `json:"idle_threshold"`
	Invasion           string    `json:"invasion"`
	Invaders           int       `json:"invaders"`
	Timers             []string  `json:"timers,omitempty"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Summary renders the snapshot as one status line.
func (s Snapshot) Summary() string {
	return fmt.Sprintf("state: %s | mode: %s | visible: %s | system audio: %s | mood: %s (%.2f) | camera: %s",
		s.State,
		s.Mode,
		yesNo(s.Visible),
		onOff(s.AudioActive, "playing", "quiet"),
		s.MoodLabel,
		s.Mood,
		onOff(s.CameraEnabled, "on", "off"),
	)
}

func yesNo(b bool) string {
	return onOff(b, "yes", "no")
}

func onOff(b bool, on, off string) string {
	if b {
		return on
	}
	return off
}

// Snapshot returns the latest published view. It is safe to call from any
// goroutine.
func (e *Engine) Snapshot() Snapshot {
	if s := e.snapshot.Load(); s != nil {
		return *s
	}
	return Snapshot{}
}

func (e *Engine) buildSnapshot() Snapshot {
	return Snapshot{
		RunID:              e.runID,
		State:              e.machine.State().String(),
		Visible:            e.machine.State().Visible(),
		Mode:               e.overlay.Mode().String(),
		Visual:             string(e.currentVisual()),
		Mood:               e.mood.Value(),
		MoodLabel:          e.mood.Label(),
		Expression:         e.expression,
		AudioActive:        e.audioActive,
		SelfPlayback:       e.selfPlaybackActive,
		AudioForcedVisible: e.audioForcedVisible,
		TrajectoryActive:   e.trajectoryActive,
		CameraEnabled:      e.cameraEnabled,
		CameraRunning:      e.cameraRunning,
		CommentInFlight:    e.commentInFlight,
		IdleThreshold:      e.threshold.String(),
		Invasion:           e.invasion.State().String(),
		Invaders:           e.invasion.Count(),
		Timers:             e.timers.Names(),
		UpdatedAt:          e.clock.Now(),
	}
}

func (e *Engine) publishSnapshot() {
	s := e.buildSnapshot()
	e.snapshot.Store(&s)
}
