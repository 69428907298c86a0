package orchestrator

import (
	"time"

	"github.com/Iron-Ham/haunt/internal/audio"
	"github.com/Iron-Ham/haunt/internal/behavior"
	"github.com/Iron-Ham/haunt/internal/event"
	"github.com/Iron-Ham/haunt/internal/invasion"
	"github.com/Iron-Ham/haunt/internal/session"
	"github.com/Iron-Ham/haunt/internal/task"
	"github.com/Iron-Ham/haunt/internal/trajectory"
)

// Edge is the screen edge a summon enters from.
type Edge int

const (
	EdgeLeft Edge = iota
	EdgeRight
)

func (e Edge) String() string {
	if e == EdgeRight {
		return "right"
	}
	return "left"
}

// Payload is what the presentation shows on entry.
type Payload struct {
	ScriptID string
	Text     string
	Sprite   string
}

// Presentation renders the companion. Every method must return promptly;
// animations run on the implementation's own goroutines and report back
// through Engine.Post.
type Presentation interface {
	// Summon slides the companion in from edge at the vertical fraction y.
	Summon(edge Edge, y float64, p Payload)
	// Enter shows the payload on an already placed companion.
	Enter(p Payload)
	// Flee starts the exit animation. Completion is reported as FleeCompleted.
	Flee()
	HideImmediately()
	SetVisual(v behavior.Visual)
	SetExpression(label string)
	// PlayTrajectory starts a scripted entrance. Completion is reported as a
	// TaskResult for session.ScriptedEntrance carrying id.
	PlayTrajectory(id session.ID, t *trajectory.Trajectory)
	StopTrajectory()

	// SpawnInvader walks one idle invader onto the screen.
	SpawnInvader(inv invasion.Invader)
	// RetreatInvader sends an invader away after delay. Its departure is
	// reported as InvaderGone.
	RetreatInvader(id uint64, delay time.Duration)
	// ClearInvaders removes every invader without animation.
	ClearInvaders()
}

// Audio is the speech output. *audio.Dispatcher implements it.
type Audio interface {
	Submit(req audio.Request) error
	Interrupt()
}

// Camera controls the presence sampler.
type Camera interface {
	Start()
	Stop()
}

// TaskRunner starts background work whose results come back as TaskResult.
// *task.Runner implements it.
type TaskRunner interface {
	Start(kind session.Kind, id session.ID, p task.Params)
}

// IdleControl adjusts the idle monitor. *idle.Monitor implements it.
type IdleControl interface {
	ResetToStandby()
	SetThreshold(d time.Duration)
	SetMark(d time.Duration)
}

// AudioMonitor reports whether system audio is currently playing.
type AudioMonitor interface {
	Playing() bool
}

// FullscreenProbe reports whether a fullscreen application is in front.
type FullscreenProbe interface {
	Fullscreen() bool
}

// Publisher receives outbound notifications. *event.Bus implements it.
type Publisher interface {
	Publish(e event.Event)
}

// Collaborators groups everything the engine drives. Presentation, Audio,
// Tasks and Idle are required; the rest default to inert implementations.
type Collaborators struct {
	Presentation Presentation
	Audio        Audio
	Camera       Camera
	Tasks        TaskRunner
	Idle         IdleControl
	Monitor      AudioMonitor
	Fullscreen   FullscreenProbe
}

type nopCamera struct{}

func (nopCamera) Start() {}
func (nopCamera) Stop()  {}

type silentMonitor struct{}

func (silentMonitor) Playing() bool { return false }

type windowedProbe struct{}

func (windowedProbe) Fullscreen() bool { return false }

type nopPublisher struct{}

func (nopPublisher) Publish(event.Event) {}
