// Package daemon assembles the engine, its producers and the control API
// into one supervised process.
package daemon

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Iron-Ham/haunt/internal/audio"
	"github.com/Iron-Ham/haunt/internal/command"
	"github.com/Iron-Ham/haunt/internal/config"
	"github.com/Iron-Ham/haunt/internal/control"
	"github.com/Iron-Ham/haunt/internal/event"
	"github.com/Iron-Ham/haunt/internal/idle"
	"github.com/Iron-Ham/haunt/internal/journal"
	"github.com/Iron-Ham/haunt/internal/logging"
	"github.com/Iron-Ham/haunt/internal/orchestrator"
	"github.com/Iron-Ham/haunt/internal/script"
	"github.com/Iron-Ham/haunt/internal/surface"
	"github.com/Iron-Ham/haunt/internal/task"
	"github.com/Iron-Ham/haunt/internal/trajectory"
	"github.com/Iron-Ham/haunt/internal/watch"
)

// patchTimeout bounds how long a config reload waits to reach the engine.
const patchTimeout = 2 * time.Second

// Options configures a Daemon.
type Options struct {
	Config *config.Config
	// ConfigPath is watched for live changes. Empty disables reloading.
	ConfigPath string
	Logger     *logging.Logger
	// Out receives the companion's status lines. Nil uses stdout.
	Out io.Writer
	// IdleSource replaces the configured idle command.
	IdleSource idle.Source
	// StateDir holds the lock file. Empty uses config.ConfigDir().
	StateDir string
	// Listener serves the control API instead of listening on Control.Addr.
	Listener net.Listener
	// Embedded runs without the control API and the instance lock, for
	// an in-process console next to a running daemon.
	Embedded bool
}

// Daemon is a fully wired haunt process.
type Daemon struct {
	runID    string
	opts     Options
	logger   *logging.Logger
	holder   *config.Holder
	bus      *event.Bus
	journal  *journal.Journal
	relay    *orchestrator.Relay
	speech   *audio.Dispatcher
	tasks    *task.Runner
	monitor  *idle.Monitor
	flags    *watch.FlagWatcher
	surface  *surface.Terminal
	engine   *orchestrator.Engine
	server   *control.Server
	stateDir string
}

// Settings maps configuration onto engine settings.
func Settings(cfg *config.Config) orchestrator.Settings {
	s := orchestrator.DefaultSettings()
	s.IdleThreshold = cfg.Trigger.IdleThreshold
	s.AutoDismiss = cfg.Trigger.AutoDismiss
	s.AudioReactive = cfg.Audio.Reactive
	s.FullscreenSuppress = cfg.Trigger.FullscreenSuppress
	s.CameraEnabled = cfg.Vision.CameraEnabled
	s.FleeTimeout = cfg.Trigger.FleeTimeout
	s.ProlongedIdle = cfg.Trigger.ProlongedIdle
	s.MoodDecayInterval = cfg.Behavior.MoodDecayInterval
	s.JitterLow = cfg.Behavior.JitterLow
	s.JitterHigh = cfg.Behavior.JitterHigh
	s.SampleFreshness = cfg.Vision.SampleFreshness
	s.Invasion = cfg.Invasion.Controller()
	return s
}

// TaskConfig maps the commentary section onto runner settings.
func TaskConfig(cfg *config.Config) task.Config {
	return task.Config{
		Interval: cfg.Commentary.Interval,
		Burst:    cfg.Commentary.Burst,
		Timeout:  cfg.Commentary.Timeout,
	}
}

// EntranceSource loads the configured trajectory, or returns nil when
// scripted entrances are disabled.
func EntranceSource(cfg *config.Config) orchestrator.EntranceSource {
	path := cfg.Behavior.TrajectoryPath
	if path == "" {
		return nil
	}
	return func() (*trajectory.Trajectory, error) {
		return trajectory.Load(path)
	}
}

// New builds every component without starting any of them.
func New(opts Options) (*Daemon, error) {
	if opts.Config == nil {
		opts.Config = config.Default()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NopLogger()
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	cfg := opts.Config

	runID := uuid.NewString()
	logger := opts.Logger.WithRun(runID)
	d := &Daemon{
		runID:    runID,
		opts:     opts,
		logger:   logger,
		holder:   config.NewHolder(cfg, opts.ConfigPath, logger),
		bus:      event.NewBus(logger),
		relay:    orchestrator.NewRelay(logger),
		stateDir: opts.StateDir,
	}
	if d.stateDir == "" {
		d.stateDir = config.ConfigDir()
	}

	catalog, err := script.LoadOrBuiltin(cfg.Behavior.ScriptsPath)
	if err != nil {
		return nil, fmt.Errorf("load scripts: %w", err)
	}
	matcher, err := command.NewMatcher(cfg.Commands.Aliases, command.WithMinScore(cfg.Commands.MinScore))
	if err != nil {
		return nil, fmt.Errorf("build command matcher: %w", err)
	}

	source := opts.IdleSource
	if source == nil {
		cs, err := idle.NewCommandSource(cfg.Trigger.IdleCommand)
		if err != nil {
			return nil, fmt.Errorf("idle source: %w", err)
		}
		source = cs
	}

	d.surface = surface.NewTerminal(opts.Out, d.relay)

	player := audio.NewSimulatedPlayer(logger)
	player.Say = d.surface.Say
	d.speech = audio.NewDispatcher(player, audio.WithListener(d.relay), audio.WithLogger(logger))
	d.tasks = task.NewRunner(TaskConfig(cfg), task.CatalogCommentator{Latency: time.Second}, d.relay.Report, logger)
	d.monitor = idle.NewMonitor(source, cfg.Trigger.IdleThreshold, d.relay.IdleHandlers(), logger)

	d.flags, err = watch.NewFlagWatcher(cfg.Audio.FlagFile(), logger)
	if err != nil {
		d.closeProducers()
		return nil, fmt.Errorf("audio flag watcher: %w", err)
	}
	d.flags.OnStarted(d.relay.AudioStarted)
	d.flags.OnStopped(d.relay.AudioStopped)

	if cfg.Journal.Enabled {
		d.journal, err = journal.Open(cfg.Journal.JournalPath(), runID, logger)
		if err != nil {
			d.closeProducers()
			return nil, err
		}
		d.journal.Attach(d.bus)
	}

	engineOpts := []orchestrator.Option{
		orchestrator.WithLogger(logger),
		orchestrator.WithPublisher(d.bus),
		orchestrator.WithScripts(script.NewSelector(catalog, nil)),
		orchestrator.WithMatcher(matcher),
		orchestrator.WithRunID(runID),
	}
	if src := EntranceSource(cfg); src != nil {
		engineOpts = append(engineOpts, orchestrator.WithEntrance(src))
	}
	d.engine, err = orchestrator.New(orchestrator.Collaborators{
		Presentation: d.surface,
		Audio:        d.speech,
		Tasks:        d.tasks,
		Idle:         d.monitor,
		Monitor:      d.flags,
	}, Settings(cfg), engineOpts...)
	if err != nil {
		d.closeProducers()
		return nil, err
	}
	d.relay.Bind(d.engine)

	d.server = control.NewServer(control.Config{
		Addr:      cfg.Control.Addr,
		RateLimit: cfg.Control.RateLimit,
	}, d.engine, logger)

	d.holder.OnPatch(d.applyPatch)
	return d, nil
}

// RunID identifies this process in logs, the journal and status.
func (d *Daemon) RunID() string { return d.runID }

// Engine returns the engine.
func (d *Daemon) Engine() *orchestrator.Engine { return d.engine }

// Bus returns the outbound event bus.
func (d *Daemon) Bus() *event.Bus { return d.bus }

// Relay returns the adapter that feeds producer callbacks to the engine.
func (d *Daemon) Relay() *orchestrator.Relay { return d.relay }

// IdleThreshold is the monitor's current effective threshold.
func (d *Daemon) IdleThreshold() time.Duration { return d.monitor.Threshold() }

func (d *Daemon) applyPatch(p config.RuntimePatch) {
	ctx, cancel := context.WithTimeout(context.Background(), patchTimeout)
	defer cancel()
	if err := d.engine.Post(ctx, orchestrator.ApplyRuntimeConfig{Patch: p}); err != nil {
		d.logger.Warn("config change not applied", "fields", p.Fields(), "error", err)
	}
}

// Run starts everything and blocks until ctx is cancelled or a component
// fails. All components are stopped before it returns.
func (d *Daemon) Run(ctx context.Context) error {
	if !d.opts.Embedded {
		lock, err := AcquireLock(d.stateDir, d.runID, d.opts.Config.Control.Addr, d.logger)
		if err != nil {
			d.closeProducers()
			return err
		}
		defer func() { _ = lock.Release() }()
	}
	defer d.closeProducers()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return d.engine.Run(gctx)
	})
	g.Go(func() error {
		return d.monitor.Run(gctx)
	})
	if !d.opts.Embedded {
		g.Go(func() error {
			if d.opts.Listener != nil {
				return d.server.Serve(gctx, d.opts.Listener)
			}
			return d.server.Run(gctx)
		})
	}
	g.Go(func() error {
		if err := d.holder.Watch(gctx); err != nil {
			// Without reloads the daemon still works on the startup config
			d.logger.Warn("config watcher stopped", "error", err)
		}
		return nil
	})

	d.flags.Start()
	g.Go(func() error {
		<-gctx.Done()
		d.flags.Stop()
		return nil
	})

	d.logger.Info("haunt started",
		"addr", d.opts.Config.Control.Addr,
		"config", d.opts.ConfigPath,
		"idle_threshold", d.opts.Config.Trigger.IdleThreshold.String(),
	)
	err := g.Wait()
	d.logger.Info("haunt stopped", "error", err)
	return err
}

func (d *Daemon) closeProducers() {
	if d.flags != nil {
		d.flags.Stop()
	}
	if d.speech != nil {
		d.speech.Close()
	}
	if d.tasks != nil {
		d.tasks.Close()
	}
	if d.journal != nil {
		if err := d.journal.Close(); err != nil {
			d.logger.Warn("failed to close journal", "error", err)
		}
	}
}
