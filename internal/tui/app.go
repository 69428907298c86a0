package tui

import (
	"context"
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Iron-Ham/haunt/internal/config"
	"github.com/Iron-Ham/haunt/internal/daemon"
	"github.com/Iron-Ham/haunt/internal/idle"
	"github.com/Iron-Ham/haunt/internal/logging"
)

// lineBuffer is how many surface lines may queue before the engine waits.
const lineBuffer = 256

// App wraps the bubbletea program and the in-process companion.
type App struct {
	daemon *daemon.Daemon
	lines  *LineWriter
	source *idle.SimulatedSource
}

// New builds the companion with a simulated idle clock. Nothing runs until
// Run is called.
func New(cfg *config.Config, logger *logging.Logger) (*App, error) {
	lines := NewLineWriter(lineBuffer)
	source := idle.NewSimulatedSource(time.Now)
	d, err := daemon.New(daemon.Options{
		Config:     cfg,
		Logger:     logger,
		Out:        lines,
		IdleSource: source,
		Embedded:   true,
	})
	if err != nil {
		return nil, err
	}
	return &App{daemon: d, lines: lines, source: source}, nil
}

// Run shows the console until the user quits or ctx is cancelled. The
// companion is stopped before it returns.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- a.daemon.Run(ctx) }()

	model := NewModel(Deps{
		Engine:    a.daemon.Engine(),
		Producers: a.daemon.Relay(),
		Idle:      a.source,
		Threshold: a.daemon.IdleThreshold,
		Lines:     a.lines,
	})
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	_, uiErr := program.Run()

	cancel()
	a.lines.Close()
	runErr := <-done

	if uiErr != nil && !errors.Is(uiErr, tea.ErrProgramKilled) {
		return uiErr
	}
	return runErr
}
