package orchestrator

import (
	"time"

	"github.com/Iron-Ham/haunt/internal/config"
	"github.com/Iron-Ham/haunt/internal/presence"
	"github.com/Iron-Ham/haunt/internal/session"
	"github.com/Iron-Ham/haunt/internal/task"
)

// Signal is an input to the engine. The set is closed: only the types in
// this file implement it.
type Signal interface {
	signalName() string
}

// IdleConfirmed reports that user input has been idle past the threshold.
type IdleConfirmed struct {
	Idle time.Duration
}

// UserActive reports user input after an idle period.
type UserActive struct{}

// IdleMarkReached reports that idle time reached the invasion start delay.
type IdleMarkReached struct {
	Idle time.Duration
}

// IdleMarkCleared reports user input after IdleMarkReached.
type IdleMarkCleared struct{}

// InvaderGone reports that an invader finished leaving the screen.
type InvaderGone struct {
	ID uint64
}

// AudioOutputStarted reports that system audio began playing.
type AudioOutputStarted struct{}

// AudioOutputStopped reports that system audio went quiet.
type AudioOutputStopped struct{}

// SelfPlaybackStarted reports that the companion's own speech began.
type SelfPlaybackStarted struct{}

// SelfPlaybackFinished reports that the companion's own speech ended.
type SelfPlaybackFinished struct{}

// CameraSample carries one presence observation.
type CameraSample struct {
	Sample presence.Sample
}

// CameraFailed reports that the camera producer gave up.
type CameraFailed struct {
	Err error
}

// Command is a user command. Name is free text resolved by the command
// matcher. Reply, when set, should be buffered; the engine never blocks on it.
type Command struct {
	Name  string
	Args  []string
	Reply chan<- Reply
}

// TimerFired is posted by the timer registry.
type TimerFired struct {
	Name       string
	Generation uint64
}

// TaskResult is the outcome of background work started by the engine.
type TaskResult struct {
	Kind    session.Kind
	Session session.ID
	Outcome task.Outcome
}

// FleeCompleted reports that the flee animation finished.
type FleeCompleted struct{}

// ApplyRuntimeConfig applies live configuration changes.
type ApplyRuntimeConfig struct {
	Patch config.RuntimePatch
}

func (IdleConfirmed) signalName() string        { return "idle_confirmed" }
func (UserActive) signalName() string           { return "user_active" }
func (AudioOutputStarted) signalName() string   { return "audio_output_started" }
func (AudioOutputStopped) signalName() string   { return "audio_output_stopped" }
func (SelfPlaybackStarted) signalName() string  { return "self_playback_started" }
func (SelfPlaybackFinished) signalName() string { return "self_playback_finished" }
func (CameraSample) signalName() string         { return "camera_sample" }
func (CameraFailed) signalName() string         { return "camera_failed" }
func (Command) signalName() string              { return "command" }
func (TimerFired) signalName() string           { return "timer_fired" }
func (TaskResult) signalName() string           { return "task_result" }
func (FleeCompleted) signalName() string        { return "flee_completed" }
func (ApplyRuntimeConfig) signalName() string   { return "apply_runtime_config" }
func (IdleMarkReached) signalName() string      { return "idle_mark_reached" }
func (IdleMarkCleared) signalName() string      { return "idle_mark_cleared" }
func (InvaderGone) signalName() string          { return "invader_gone" }

// SignalName returns the metric label used for sig.
func SignalName(sig Signal) string {
	return sig.signalName()
}

// Reply answers a Command.
type Reply struct {
	Action  string    `json:"action,omitempty"`
	OK      bool      `json:"ok"`
	Message string    `json:"message,omitempty"`
	Status  *Snapshot `json:"status,omitempty"`
	Err     error     `json:"-"`
}
