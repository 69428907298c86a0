// Package orchestrator arbitrates the companion's behavior. A single loop
// goroutine owns the lifecycle machine, the mode overlay, the guard flags
// and the timers; every producer talks to it by posting Signals.
package orchestrator

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Iron-Ham/haunt/internal/behavior"
	"github.com/Iron-Ham/haunt/internal/command"
	"github.com/Iron-Ham/haunt/internal/errors"
	"github.com/Iron-Ham/haunt/internal/idle"
	"github.com/Iron-Ham/haunt/internal/invasion"
	"github.com/Iron-Ham/haunt/internal/logging"
	"github.com/Iron-Ham/haunt/internal/metrics"
	"github.com/Iron-Ham/haunt/internal/mood"
	"github.com/Iron-Ham/haunt/internal/orchestrator/lifecycle"
	"github.com/Iron-Ham/haunt/internal/presence"
	"github.com/Iron-Ham/haunt/internal/resource"
	"github.com/Iron-Ham/haunt/internal/script"
	"github.com/Iron-Ham/haunt/internal/session"
	"github.com/Iron-Ham/haunt/internal/timer"
	"github.com/Iron-Ham/haunt/internal/trajectory"
)

// DefaultQueueSize is the capacity of the signal channel.
const DefaultQueueSize = 256

// Settings are the engine's tunables. The first five can change at runtime
// through ApplyRuntimeConfig.
type Settings struct {
	IdleThreshold      time.Duration
	AutoDismiss        time.Duration
	AudioReactive      bool
	FullscreenSuppress bool
	CameraEnabled      bool

	FleeTimeout       time.Duration
	ProlongedIdle     time.Duration
	MoodDecayInterval time.Duration
	JitterLow         time.Duration
	JitterHigh        time.Duration
	SampleFreshness   time.Duration
	Invasion          invasion.Config
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		IdleThreshold:      idle.DefaultThreshold,
		AutoDismiss:        30 * time.Second,
		AudioReactive:      true,
		FullscreenSuppress: true,
		CameraEnabled:      true,
		FleeTimeout:        3 * time.Second,
		ProlongedIdle:      10 * time.Minute,
		MoodDecayInterval:  time.Hour,
		JitterLow:          idle.DefaultJitterLow,
		JitterHigh:         idle.DefaultJitterHigh,
		SampleFreshness:    presence.SampleFreshness,
		Invasion:           invasion.DefaultConfig(),
	}
}

// EntranceSource loads the trajectory for a scripted entrance. An error
// makes the summon fall back to a plain entry.
type EntranceSource func() (*trajectory.Trajectory, error)

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *logging.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c timer.Clock) Option {
	return func(e *Engine) {
		if c != nil {
			e.clock = c
		}
	}
}

// WithPublisher sets the outbound event sink.
func WithPublisher(p Publisher) Option {
	return func(e *Engine) {
		if p != nil {
			e.events = p
		}
	}
}

// WithScripts sets the dialogue selector.
func WithScripts(s *script.Selector) Option {
	return func(e *Engine) {
		if s != nil {
			e.scripts = s
		}
	}
}

// WithMood sets the mood tracker, so that mood survives an engine restart.
func WithMood(m *mood.Mood) Option {
	return func(e *Engine) {
		if m != nil {
			e.mood = m
		}
	}
}

// WithMatcher sets the command matcher.
func WithMatcher(m *command.Matcher) Option {
	return func(e *Engine) {
		if m != nil {
			e.matcher = m
		}
	}
}

// WithEntrance enables scripted entrances.
func WithEntrance(src EntranceSource) Option {
	return func(e *Engine) {
		e.entrance = src
	}
}

// WithRand sets the random source used for jitter and summon placement.
func WithRand(r *rand.Rand) Option {
	return func(e *Engine) {
		if r != nil {
			e.rnd = r
		}
	}
}

// WithRunID tags status snapshots with the daemon run id.
func WithRunID(id string) Option {
	return func(e *Engine) {
		e.runID = id
	}
}

// WithQueueSize sets the signal channel capacity.
func WithQueueSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.queueSize = n
		}
	}
}

// Engine is the single-owner arbitration loop.
type Engine struct {
	settings  Settings
	collab    Collaborators
	logger    *logging.Logger
	clock     timer.Clock
	events    Publisher
	rnd       *rand.Rand
	runID     string
	queueSize int

	machine   *lifecycle.Machine
	overlay   behavior.Overlay
	sessions  *session.Manager
	timers    *timer.Registry
	smoother  *presence.Smoother
	mood      *mood.Mood
	scripts   *script.Selector
	resources *resource.Scheduler
	matcher   *command.Matcher
	entrance  EntranceSource
	invasion  *invasion.Controller

	// Owned by the loop goroutine.
	selfPlaybackActive bool
	audioForcedVisible bool
	trajectoryActive   bool
	audioActive        bool
	cameraEnabled      bool
	cameraRunning      bool
	commentInFlight    bool
	lastSample         *presence.Sample
	expression         string
	lastInput          time.Time
	lastCommand        time.Time
	pendingScript      *script.Script
	threshold          time.Duration

	signals chan Signal
	// pending holds signals posted by the loop itself and by timer
	// callbacks, in order. wake tells the loop it is non-empty.
	pendingMu sync.Mutex
	pending   []Signal
	wake      chan struct{}

	done     chan struct{}
	stopOnce sync.Once
	running  atomic.Bool
	snapshot atomic.Pointer[Snapshot]
}

// New builds an Engine. A missing required collaborator or a timer
// registry that cannot be created is returned as an *errors.InitError.
func New(c Collaborators, settings Settings, opts ...Option) (*Engine, error) {
	if err := c.validate(); err != nil {
		return nil, errors.NewInitError("orchestrator", err)
	}

	e := &Engine{
		settings:  settings,
		collab:    c,
		logger:    logging.NopLogger(),
		clock:     timer.RealClock{},
		events:    nopPublisher{},
		queueSize: DefaultQueueSize,
		sessions:  session.NewManager(),
		smoother:  presence.NewSmoother(),
		resources: resource.NewScheduler(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.WithComponent("orchestrator")
	if e.rnd == nil {
		e.rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if e.mood == nil {
		e.mood = mood.New(mood.Default)
	}
	if e.scripts == nil {
		e.scripts = script.NewSelector(script.Builtin(), e.rnd)
	}
	if e.matcher == nil {
		m, err := command.NewMatcher(nil)
		if err != nil {
			return nil, errors.NewInitError("command matcher", err)
		}
		e.matcher = m
	}

	e.invasion = invasion.New(settings.Invasion, e.rnd)

	timers, err := timer.New(e.clock, e.onTimerFire)
	if err != nil {
		return nil, err
	}
	e.timers = timers

	e.machine = lifecycle.NewMachine(
		lifecycle.WithLogger(e.logger),
		lifecycle.WithCallbacks(lifecycle.Callbacks{
			OnChanged:  e.onStateChanged,
			OnRejected: e.onTransitionRejected,
		}),
	)
	e.registerHooks()

	e.cameraEnabled = settings.CameraEnabled
	e.signals = make(chan Signal, e.queueSize)
	e.wake = make(chan struct{}, 1)
	e.done = make(chan struct{})
	e.publishSnapshot()
	return e, nil
}

func (c *Collaborators) validate() error {
	var missing []string
	if c.Presentation == nil {
		missing = append(missing, "presentation")
	}
	if c.Audio == nil {
		missing = append(missing, "audio")
	}
	if c.Tasks == nil {
		missing = append(missing, "tasks")
	}
	if c.Idle == nil {
		missing = append(missing, "idle")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", errors.ErrMissingCollaborator, strings.Join(missing, ", "))
	}
	if c.Camera == nil {
		c.Camera = nopCamera{}
	}
	if c.Monitor == nil {
		c.Monitor = silentMonitor{}
	}
	if c.Fullscreen == nil {
		c.Fullscreen = windowedProbe{}
	}
	return nil
}

// Run handles signals until ctx is cancelled. It may be called once.
func (e *Engine) Run(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return errors.New("engine already running")
	}
	defer e.stop()

	e.start()
	for {
		select {
		case <-ctx.Done():
			return nil
		case sig := <-e.signals:
			e.handle(sig)
		case <-e.wake:
			for _, sig := range e.takePending() {
				if ctx.Err() != nil {
					return nil
				}
				e.handle(sig)
			}
		}
	}
}

// Post queues sig for the loop. It blocks while the queue is full and
// returns ErrEngineStopped once the engine has shut down. Signals from one
// caller are handled in the order they were posted.
func (e *Engine) Post(ctx context.Context, sig Signal) error {
	select {
	case <-e.done:
		return errors.ErrEngineStopped
	default:
	}
	select {
	case e.signals <- sig:
		// The send may have raced shutdown; a stopped loop never reads it.
		select {
		case <-e.done:
			return errors.ErrEngineStopped
		default:
			return nil
		}
	case <-e.done:
		return errors.ErrEngineStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Do sends a command and waits for its reply.
func (e *Engine) Do(ctx context.Context, input string, args ...string) (Reply, error) {
	reply := make(chan Reply, 1)
	if err := e.Post(ctx, Command{Name: input, Args: args, Reply: reply}); err != nil {
		return Reply{}, err
	}
	select {
	case r := <-reply:
		return r, r.Err
	case <-e.done:
		return Reply{}, errors.ErrEngineStopped
	case <-ctx.Done():
		return Reply{}, ctx.Err()
	}
}

// Done is closed when the engine has shut down.
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

// enqueue queues sig without blocking. The loop and timer callbacks use it,
// since a blocking send from the loop onto its own channel could deadlock.
// Enqueued signals are handled in order.
func (e *Engine) enqueue(sig Signal) {
	select {
	case <-e.done:
		return
	default:
	}
	e.pendingMu.Lock()
	e.pending = append(e.pending, sig)
	e.pendingMu.Unlock()

	select {
	case e.wake <- struct{}{}:
	default:
	}
}

func (e *Engine) takePending() []Signal {
	e.pendingMu.Lock()
	defer e.pendingMu.Unlock()
	batch := e.pending
	e.pending = nil
	return batch
}

func (e *Engine) onTimerFire(f timer.Fired) {
	e.enqueue(TimerFired{Name: f.Name, Generation: f.Generation})
}

func (e *Engine) start() {
	e.logger.Info("engine started",
		"state", e.machine.State().String(),
		"idle_threshold", e.settings.IdleThreshold.String(),
		"camera_enabled", e.cameraEnabled,
	)
	metrics.SetMood(e.mood.Value())
	metrics.LifecycleState.WithLabelValues(e.machine.State().String()).Set(1)
	e.rearmIdle()
	e.collab.Idle.SetMark(e.invasionMark())
	e.armProlongedIdle()
	e.armMoodDecay()
	e.publishSnapshot()
}

func (e *Engine) stop() {
	e.stopOnce.Do(func() {
		close(e.done)
		e.timers.DisarmAll()
		e.sessions.CancelAll()
		if e.trajectoryActive {
			e.trajectoryActive = false
			e.collab.Presentation.StopTrajectory()
		}
		e.stopCamera()
		e.collab.Audio.Interrupt()
		e.applyInvasion(e.invasion.Shutdown())
		if n := e.discardQueued(); n > 0 {
			e.logger.Debug("signals discarded at shutdown", "count", n)
		}
		e.publishSnapshot()
		e.logger.Info("engine stopped", "state", e.machine.State().String())
	})
}

// discardQueued empties both queues after shutdown. Commands still waiting
// get an ErrEngineStopped reply.
func (e *Engine) discardQueued() int {
	dropped := e.takePending()
drain:
	for {
		select {
		case sig := <-e.signals:
			dropped = append(dropped, sig)
		default:
			break drain
		}
	}
	for _, sig := range dropped {
		if c, ok := sig.(Command); ok {
			e.reply(c, Reply{Message: "engine stopped", Err: errors.ErrEngineStopped})
		}
	}
	return len(dropped)
}

// handle dispatches one signal. It runs only on the loop goroutine.
func (e *Engine) handle(sig Signal) {
	started := time.Now()

	switch s := sig.(type) {
	case IdleConfirmed:
		e.onIdleConfirmed(s)
	case UserActive:
		e.onUserActive()
	case AudioOutputStarted:
		e.onAudioStarted()
	case AudioOutputStopped:
		e.onAudioStopped()
	case SelfPlaybackStarted:
		e.onSelfPlaybackStarted()
	case SelfPlaybackFinished:
		e.onSelfPlaybackFinished()
	case CameraSample:
		e.onCameraSample(s)
	case CameraFailed:
		e.onCameraFailed(s)
	case Command:
		e.onCommand(s)
	case TimerFired:
		e.onTimerFired(s)
	case TaskResult:
		e.onTaskResult(s)
	case FleeCompleted:
		e.onFleeCompleted()
	case ApplyRuntimeConfig:
		e.onApplyRuntimeConfig(s)
	case IdleMarkReached:
		e.onIdleMarkReached(s)
	case IdleMarkCleared:
		e.applyInvasion(e.invasion.Retreat())
	case InvaderGone:
		e.applyInvasion(e.invasion.Gone(s.ID))
	default:
		e.logger.Warn("unhandled signal", "type", fmt.Sprintf("%T", sig))
		return
	}

	metrics.ObserveSignal(sig.signalName(), time.Since(started))
	e.publishSnapshot()
}
