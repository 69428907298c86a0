// Package task runs the orchestrator's long-running asynchronous work off
// the engine loop. Every task carries its session id and reports exactly one
// Result, whether it succeeds, fails, panics or is throttled.
package task

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sourcegraph/conc"
	"golang.org/x/time/rate"

	"github.com/Iron-Ham/haunt/internal/errors"
	"github.com/Iron-Ham/haunt/internal/logging"
	"github.com/Iron-Ham/haunt/internal/metrics"
	"github.com/Iron-Ham/haunt/internal/session"
)

// Params are the inputs of a task.
type Params struct {
	Mood      float64
	MoodLabel string
	// Prompt is free text from the command that requested the task.
	Prompt string
}

// Outcome is a task's result. Err is set on failure.
type Outcome struct {
	Text string
	Err  error
}

// Failed reports whether the outcome carries an error.
func (o Outcome) Failed() bool { return o.Err != nil }

// Result is what a finished task reports.
type Result struct {
	Kind    session.Kind
	Session session.ID
	Outcome Outcome
}

// Reporter receives results. It is called from task goroutines and may block.
type Reporter func(Result)

// Commentator produces a remark about what the user is doing.
type Commentator interface {
	Comment(ctx context.Context, p Params) (string, error)
}

// CommentatorFunc adapts a function to Commentator.
type CommentatorFunc func(ctx context.Context, p Params) (string, error)

// Comment calls f(ctx, p).
func (f CommentatorFunc) Comment(ctx context.Context, p Params) (string, error) { return f(ctx, p) }

// Config tunes a Runner.
type Config struct {
	// Interval is the minimum spacing between commentary calls.
	Interval time.Duration
	// Burst is how many calls may happen back to back.
	Burst int
	// Timeout bounds a single task.
	Timeout time.Duration
}

// DefaultConfig returns the default Runner settings.
func DefaultConfig() Config {
	return Config{
		Interval: 20 * time.Second,
		Burst:    2,
		Timeout:  30 * time.Second,
	}
}

// Runner starts tasks. Start never blocks the caller.
type Runner struct {
	commentator Commentator
	report      Reporter
	logger      *logging.Logger
	timeout     time.Duration

	limiter *rate.Limiter

	ctx    context.Context
	cancel context.CancelFunc
	wg     conc.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewRunner creates a Runner. report must not be nil.
func NewRunner(cfg Config, commentator Commentator, report Reporter, logger *logging.Logger) *Runner {
	if logger == nil {
		logger = logging.NopLogger()
	}
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Burst <= 0 {
		cfg.Burst = def.Burst
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		commentator: commentator,
		report:      report,
		logger:      logger.WithComponent("task"),
		timeout:     cfg.Timeout,
		limiter:     rate.NewLimiter(rate.Every(cfg.Interval), cfg.Burst),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start launches the task for kind under session id. The result is always
// delivered through the Reporter on another goroutine.
func (r *Runner) Start(kind session.Kind, id session.ID, p Params) {
	switch kind {
	case session.VisionComment:
		if !r.limiter.Allow() {
			r.logger.Debug("commentary throttled", "session", uint64(id))
			r.Go(kind, id, func(context.Context) (string, error) {
				return "", errors.ErrThrottled
			})
			return
		}
		r.Go(kind, id, func(ctx context.Context) (string, error) {
			if r.commentator == nil {
				return "", errors.NewCollaboratorError("commentator", "comment", errors.ErrMissingCollaborator)
			}
			return r.commentator.Comment(ctx, p)
		})
	default:
		r.Go(kind, id, func(context.Context) (string, error) {
			return "", fmt.Errorf("no runner for task kind %s", kind)
		})
	}
}

// Go runs fn under the runner's context and reports its outcome. A panic in
// fn is reported as ErrTaskPanicked. After Close, Go does nothing.
func (r *Runner) Go(kind session.Kind, id session.ID, fn func(ctx context.Context) (string, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}

	r.wg.Go(func() {
		ctx, cancel := context.WithTimeout(r.ctx, r.timeout)
		defer cancel()

		start := time.Now()
		text, err := r.run(ctx, fn)
		out := Outcome{Text: text, Err: err}
		metrics.IncTaskOutcome(kind.String(), out.Failed())
		if err != nil {
			r.logger.Warn("task failed",
				"kind", kind.String(),
				"session", uint64(id),
				"error", err.Error(),
				"duration", time.Since(start).String(),
			)
		} else {
			r.logger.Debug("task finished",
				"kind", kind.String(),
				"session", uint64(id),
				"duration", time.Since(start).String(),
			)
		}
		r.report(Result{Kind: kind, Session: id, Outcome: out})
	})
}

func (r *Runner) run(ctx context.Context, fn func(ctx context.Context) (string, error)) (text string, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %v", errors.ErrTaskPanicked, p)
		}
	}()
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return fn(ctx)
}

// Close cancels running tasks and waits for their results to be reported.
func (r *Runner) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.mu.Unlock()

	r.cancel()
	r.wg.Wait()
}
