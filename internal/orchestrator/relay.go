package orchestrator

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/Iron-Ham/haunt/internal/audio"
	"github.com/Iron-Ham/haunt/internal/idle"
	"github.com/Iron-Ham/haunt/internal/logging"
	"github.com/Iron-Ham/haunt/internal/presence"
	"github.com/Iron-Ham/haunt/internal/session"
	"github.com/Iron-Ham/haunt/internal/task"
)

// Relay turns producer callbacks into signals. Producers such as the audio
// dispatcher must exist before the engine that drives them, so they are
// wired to a Relay that is bound to the engine afterwards. Callbacks made
// before Bind are dropped.
type Relay struct {
	engine atomic.Pointer[Engine]
	logger *logging.Logger
}

// NewRelay creates an unbound Relay.
func NewRelay(logger *logging.Logger) *Relay {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Relay{logger: logger}
}

// Bind routes all later callbacks to e.
func (r *Relay) Bind(e *Engine) {
	r.engine.Store(e)
}

// post blocks until the engine accepts sig, so that each producer's
// signals reach the loop in the order they happened. Producers call it from
// their own goroutines, never from the loop.
func (r *Relay) post(sig Signal) {
	e := r.engine.Load()
	if e == nil {
		r.logger.Debug("signal dropped before engine was bound", "signal", sig.signalName())
		return
	}
	if err := e.Post(context.Background(), sig); err != nil {
		r.logger.Debug("signal dropped", "signal", sig.signalName(), "error", err.Error())
	}
}

// PlaybackStarted implements audio.Listener.
func (r *Relay) PlaybackStarted(audio.Request) {
	r.post(SelfPlaybackStarted{})
}

// PlaybackFinished implements audio.Listener.
func (r *Relay) PlaybackFinished(audio.Request, error) {
	r.post(SelfPlaybackFinished{})
}

// IdleHandlers returns idle monitor callbacks.
func (r *Relay) IdleHandlers() idle.Handlers {
	return idle.Handlers{
		IdleConfirmed: func(d time.Duration) { r.post(IdleConfirmed{Idle: d}) },
		UserActive:    func() { r.post(UserActive{}) },
		MarkReached:   func(d time.Duration) { r.post(IdleMarkReached{Idle: d}) },
		MarkCleared:   func() { r.post(IdleMarkCleared{}) },
	}
}

// Report implements task.Reporter.
func (r *Relay) Report(res task.Result) {
	r.post(TaskResult{Kind: res.Kind, Session: res.Session, Outcome: res.Outcome})
}

// AudioStarted reports system audio starting.
func (r *Relay) AudioStarted() {
	r.post(AudioOutputStarted{})
}

// AudioStopped reports system audio stopping.
func (r *Relay) AudioStopped() {
	r.post(AudioOutputStopped{})
}

// FleeCompleted reports the end of the flee animation.
func (r *Relay) FleeCompleted() {
	r.post(FleeCompleted{})
}

// EntranceFinished reports the end of a scripted entrance.
func (r *Relay) EntranceFinished(id session.ID, err error) {
	r.post(TaskResult{Kind: session.ScriptedEntrance, Session: id, Outcome: task.Outcome{Err: err}})
}

// InvaderGone reports that an invader left the screen.
func (r *Relay) InvaderGone(id uint64) {
	r.post(InvaderGone{ID: id})
}

// CameraSample forwards one presence observation.
func (r *Relay) CameraSample(s presence.Sample) {
	r.post(CameraSample{Sample: s})
}

// CameraFailed reports a camera producer failure.
func (r *Relay) CameraFailed(err error) {
	r.post(CameraFailed{Err: err})
}
