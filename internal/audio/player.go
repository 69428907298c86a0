package audio

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/Iron-Ham/haunt/internal/errors"
	"github.com/Iron-Ham/haunt/internal/logging"
)

// SimulatedPlayer stands in for a speech backend. It logs each request and
// holds the line for a duration proportional to its length.
type SimulatedPlayer struct {
	PerRune time.Duration
	Min     time.Duration
	Max     time.Duration
	Logger  *logging.Logger
	// Say, when set, receives every line as it starts.
	Say func(req Request)
}

// NewSimulatedPlayer returns a SimulatedPlayer with speaking-rate defaults.
func NewSimulatedPlayer(logger *logging.Logger) *SimulatedPlayer {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &SimulatedPlayer{
		PerRune: 55 * time.Millisecond,
		Min:     400 * time.Millisecond,
		Max:     8 * time.Second,
		Logger:  logger,
	}
}

// Duration returns how long req would be held.
func (p *SimulatedPlayer) Duration(req Request) time.Duration {
	d := time.Duration(utf8.RuneCountInString(req.Text)) * p.PerRune
	if req.Text == "" && req.ContentRef != "" {
		d = p.Min * 3
	}
	d = max(d, p.Min)
	if p.Max > 0 {
		d = min(d, p.Max)
	}
	return d
}

// Play implements Player.
func (p *SimulatedPlayer) Play(ctx context.Context, req Request) error {
	if req.Empty() {
		return errors.NewCollaboratorError("player", "play", errors.ErrPlaybackFailed)
	}

	p.Logger.Info("speaking",
		"script", req.ScriptID,
		"priority", req.Priority.String(),
		"text", req.Text,
		"ref", req.ContentRef,
	)
	if p.Say != nil {
		p.Say(req)
	}

	t := time.NewTimer(p.Duration(req))
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
