package audio

import (
	"context"
	"sync"

	"github.com/sourcegraph/conc"

	"github.com/Iron-Ham/haunt/internal/errors"
	"github.com/Iron-Ham/haunt/internal/logging"
	"github.com/Iron-Ham/haunt/internal/metrics"
)

// Player renders a request. Play blocks until playback finishes, fails, or
// ctx is cancelled.
type Player interface {
	Play(ctx context.Context, req Request) error
}

// PlayerFunc adapts a function to the Player interface.
type PlayerFunc func(ctx context.Context, req Request) error

// Play calls f(ctx, req).
func (f PlayerFunc) Play(ctx context.Context, req Request) error { return f(ctx, req) }

// Listener observes the dispatcher's own playback. Notifications arrive in
// order on a dedicated goroutine.
type Listener interface {
	PlaybackStarted(req Request)
	// PlaybackFinished is called once per started request. err is
	// context.Canceled for preempted or interrupted items.
	PlaybackFinished(req Request, err error)
}

type nopListener struct{}

func (nopListener) PlaybackStarted(Request)         {}
func (nopListener) PlaybackFinished(Request, error) {}

type playback struct {
	req    Request
	cancel context.CancelFunc
}

type noticeKind int

const (
	noticeStarted noticeKind = iota
	noticeFinished
)

type notice struct {
	kind noticeKind
	req  Request
	err  error
}

// Dispatcher owns the playback queue. It is safe for concurrent use.
type Dispatcher struct {
	player   Player
	listener Listener
	logger   *logging.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	queue   requestQueue
	seq     uint64
	current *playback
	closed  bool
	notes   []notice

	plays conc.WaitGroup

	wake     chan struct{}
	stop     chan struct{}
	pumpDone chan struct{}
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithListener sets the self-playback listener.
func WithListener(l Listener) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.listener = l
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// NewDispatcher creates a Dispatcher playing through player and starts its
// notification goroutine. Call Close to release it.
func NewDispatcher(player Player, opts ...Option) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		player:   player,
		listener: nopListener{},
		logger:   logging.NopLogger(),
		ctx:      ctx,
		cancel:   cancel,
		wake:     make(chan struct{}, 1),
		stop:     make(chan struct{}),
		pumpDone: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	go d.pump()
	return d
}

// Submit applies the dispatch policy to req. It never blocks on playback.
func (d *Dispatcher) Submit(req Request) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return errors.ErrDispatcherClosed
	}

	switch req.Priority {
	case Critical:
		if n := d.queue.clear(); n > 0 {
			d.logger.Debug("critical request cleared queue", "cleared", n)
		}
		d.stopCurrentLocked()
		d.startLocked(req)

	case Low:
		if d.current != nil || d.queue.Len() > 0 {
			d.logger.Debug("low priority request dropped", "script", req.ScriptID)
			metrics.IncAudioDropped(req.Priority.String())
			return nil
		}
		d.startLocked(req)

	default:
		if d.current == nil && d.queue.Len() == 0 {
			d.startLocked(req)
			return nil
		}
		d.seq++
		d.queue.push(req, d.seq)
	}
	return nil
}

// Interrupt stops the current item and empties the queue.
func (d *Dispatcher) Interrupt() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.queue.clear()
	d.stopCurrentLocked()
}

// Playing reports the current request, if any.
func (d *Dispatcher) Playing() (Request, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.current == nil {
		return Request{}, false
	}
	return d.current.req, true
}

// Queued returns the number of pending requests.
func (d *Dispatcher) Queued() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.queue.Len()
}

// Close interrupts playback, waits for player goroutines to return, and
// flushes pending notifications. Further submits fail with
// ErrDispatcherClosed.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.queue.clear()
	d.stopCurrentLocked()
	d.mu.Unlock()

	d.cancel()
	d.plays.Wait()
	close(d.stop)
	<-d.pumpDone
}

func (d *Dispatcher) startLocked(req Request) {
	ctx, cancel := context.WithCancel(d.ctx)
	p := &playback{req: req, cancel: cancel}
	d.current = p
	d.noteLocked(notice{kind: noticeStarted, req: req})

	d.plays.Go(func() {
		err := d.player.Play(ctx, req)
		d.finish(p, err)
	})
}

// stopCurrentLocked cancels the playing item and reports it finished.
func (d *Dispatcher) stopCurrentLocked() {
	if d.current == nil {
		return
	}
	d.current.cancel()
	d.noteLocked(notice{kind: noticeFinished, req: d.current.req, err: context.Canceled})
	d.current = nil
}

func (d *Dispatcher) finish(p *playback, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	// A preempted item was already reported by stopCurrentLocked.
	if d.current != p {
		return
	}
	p.cancel()
	d.current = nil

	if err != nil && !errors.Is(err, context.Canceled) {
		d.logger.Warn("audio playback failed",
			"script", p.req.ScriptID,
			"priority", p.req.Priority.String(),
			"error", err.Error(),
		)
		metrics.IncAudioFailure()
	}
	d.noteLocked(notice{kind: noticeFinished, req: p.req, err: err})

	if d.closed {
		return
	}
	if next, ok := d.queue.pop(); ok {
		d.startLocked(next)
	}
}

func (d *Dispatcher) noteLocked(n notice) {
	d.notes = append(d.notes, n)
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// pump delivers notifications outside the dispatcher lock so that a listener
// may block (for example on a full engine channel) without stalling Submit.
func (d *Dispatcher) pump() {
	defer close(d.pumpDone)
	for {
		select {
		case <-d.wake:
			d.deliver()
		case <-d.stop:
			d.deliver()
			return
		}
	}
}

func (d *Dispatcher) deliver() {
	for {
		d.mu.Lock()
		batch := d.notes
		d.notes = nil
		d.mu.Unlock()

		if len(batch) == 0 {
			return
		}
		for _, n := range batch {
			switch n.kind {
			case noticeStarted:
				d.listener.PlaybackStarted(n.req)
			case noticeFinished:
				d.listener.PlaybackFinished(n.req, n.err)
			}
		}
	}
}
