package orchestrator

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Iron-Ham/haunt/internal/audio"
	"github.com/Iron-Ham/haunt/internal/behavior"
	"github.com/Iron-Ham/haunt/internal/event"
	"github.com/Iron-Ham/haunt/internal/invasion"
	"github.com/Iron-Ham/haunt/internal/logging"
	"github.com/Iron-Ham/haunt/internal/script"
	"github.com/Iron-Ham/haunt/internal/session"
	"github.com/Iron-Ham/haunt/internal/task"
	"github.com/Iron-Ham/haunt/internal/testutil"
	"github.com/Iron-Ham/haunt/internal/trajectory"
)

// callLog records collaborator calls in order.
type callLog struct {
	mu       sync.Mutex
	calls    []string
	requests []audio.Request
}

func (l *callLog) add(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, fmt.Sprintf(format, args...))
}

func (l *callLog) reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = nil
	l.requests = nil
}

// actions returns the recorded calls without visual updates, which most
// tests do not care about.
func (l *callLog) actions() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []string
	for _, c := range l.calls {
		if !strings.HasPrefix(c, "presentation.visual:") {
			out = append(out, c)
		}
	}
	return out
}

func (l *callLog) with(prefix string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []string
	for _, c := range l.calls {
		if strings.HasPrefix(c, prefix) {
			out = append(out, c)
		}
	}
	return out
}

func (l *callLog) lastRequest() (audio.Request, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.requests) == 0 {
		return audio.Request{}, false
	}
	return l.requests[len(l.requests)-1], true
}

type fakePresentation struct{ log *callLog }

func (p fakePresentation) Summon(Edge, float64, Payload) { p.log.add("presentation.summon") }
func (p fakePresentation) Enter(pl Payload)              { p.log.add("presentation.enter:%s", pl.ScriptID) }
func (p fakePresentation) Flee()                         { p.log.add("presentation.flee") }
func (p fakePresentation) HideImmediately()              { p.log.add("presentation.hide") }
func (p fakePresentation) SetVisual(v behavior.Visual)   { p.log.add("presentation.visual:%s", v) }
func (p fakePresentation) SetExpression(label string)    { p.log.add("presentation.expression:%s", label) }
func (p fakePresentation) StopTrajectory()               { p.log.add("presentation.stop_trajectory") }
func (p fakePresentation) PlayTrajectory(id session.ID, _ *trajectory.Trajectory) {
	p.log.add("presentation.trajectory:%d", id)
}
func (p fakePresentation) SpawnInvader(inv invasion.Invader) {
	p.log.add("presentation.invader.spawn:%d", inv.ID)
}
func (p fakePresentation) RetreatInvader(id uint64, _ time.Duration) {
	p.log.add("presentation.invader.retreat:%d", id)
}
func (p fakePresentation) ClearInvaders() { p.log.add("presentation.invader.clear") }

type fakeAudio struct{ log *callLog }

func (a fakeAudio) Submit(req audio.Request) error {
	a.log.add("audio.submit:%s:%s", req.Priority, req.ScriptID)
	a.log.mu.Lock()
	a.log.requests = append(a.log.requests, req)
	a.log.mu.Unlock()
	return nil
}

func (a fakeAudio) Interrupt() { a.log.add("audio.interrupt") }

type fakeCamera struct{ log *callLog }

func (c fakeCamera) Start() { c.log.add("camera.start") }
func (c fakeCamera) Stop()  { c.log.add("camera.stop") }

type fakeTasks struct{ log *callLog }

func (f fakeTasks) Start(kind session.Kind, id session.ID, _ task.Params) {
	f.log.add("tasks.start:%s:%d", kind, id)
}

type fakeIdle struct{ log *callLog }

func (f fakeIdle) ResetToStandby()              { f.log.add("idle.reset") }
func (f fakeIdle) SetThreshold(d time.Duration) { f.log.add("idle.threshold:%s", d) }
func (f fakeIdle) SetMark(d time.Duration)      { f.log.add("idle.mark:%s", d) }

// switches backs the AudioMonitor and FullscreenProbe fakes.
type switches struct {
	mu         sync.Mutex
	playing    bool
	fullscreen bool
}

func (s *switches) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

func (s *switches) Fullscreen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fullscreen
}

func (s *switches) set(playing, fullscreen bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playing = playing
	s.fullscreen = fullscreen
}

// eventLog collects everything published on the bus.
type eventLog struct {
	mu     sync.Mutex
	events []event.Event
}

func (l *eventLog) handle(e event.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) ofType(eventType string) []event.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []event.Event
	for _, e := range l.events {
		if e.EventType() == eventType {
			out = append(out, e)
		}
	}
	return out
}

// transitions returns the target of every lifecycle change.
func (l *eventLog) transitions() []string {
	var out []string
	for _, e := range l.ofType(event.TypeLifecycleChanged) {
		out = append(out, e.(event.LifecycleChangedEvent).To.String())
	}
	return out
}

var testEpoch = time.Date(2026, 5, 4, 10, 0, 0, 0, time.Local)

func testCatalog() *script.Catalog {
	return &script.Catalog{
		Idle:  []script.Script{{ID: "hello", Text: "hello there"}},
		Panic: []script.Script{{ID: "eek", Text: "eek"}},
	}
}

func testTrajectory(t *testing.T) *trajectory.Trajectory {
	t.Helper()
	tr, err := trajectory.Parse([]byte(`{"total_duration": 2, "points": [{"t": 0, "x": 0, "y": 0}, {"t": 2, "x": 1, "y": 1}]}`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return tr
}

type harness struct {
	t        *testing.T
	engine   *Engine
	log      *callLog
	switches *switches
	clock    *testutil.FakeClock
	events   *eventLog
}

type harnessConfig struct {
	settings func(*Settings)
	opts     []Option
}

func newHarness(t *testing.T, cfgs ...harnessConfig) *harness {
	t.Helper()

	settings := DefaultSettings()
	settings.JitterLow, settings.JitterHigh = 0, 0
	var opts []Option
	for _, c := range cfgs {
		if c.settings != nil {
			c.settings(&settings)
		}
		opts = append(opts, c.opts...)
	}

	log := &callLog{}
	sw := &switches{}
	clock := testutil.NewFakeClock(testEpoch)
	events := &eventLog{}
	bus := event.NewBus(logging.NopLogger())
	bus.SubscribeAll(events.handle)
	rnd := rand.New(rand.NewPCG(1, 2))

	base := []Option{
		WithClock(clock),
		WithPublisher(bus),
		WithRand(rnd),
		WithScripts(script.NewSelector(testCatalog(), rnd)),
		WithQueueSize(1024),
	}
	e, err := New(Collaborators{
		Presentation: fakePresentation{log},
		Audio:        fakeAudio{log},
		Camera:       fakeCamera{log},
		Tasks:        fakeTasks{log},
		Idle:         fakeIdle{log},
		Monitor:      sw,
		Fullscreen:   sw,
	}, settings, append(base, opts...)...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	e.start()
	log.reset()
	return &harness{t: t, engine: e, log: log, switches: sw, clock: clock, events: events}
}

// send handles sig on the test goroutine, then everything it queued.
func (h *harness) send(sig Signal) {
	h.engine.handle(sig)
	h.drain()
}

func (h *harness) drain() {
	for {
		if batch := h.engine.takePending(); len(batch) > 0 {
			for _, sig := range batch {
				h.engine.handle(sig)
			}
			continue
		}
		select {
		case sig := <-h.engine.signals:
			h.engine.handle(sig)
		default:
			return
		}
	}
}

// queued counts signals waiting in either queue.
func (h *harness) queued() int {
	h.engine.pendingMu.Lock()
	defer h.engine.pendingMu.Unlock()
	return len(h.engine.pending) + len(h.engine.signals)
}

func (h *harness) advance(d time.Duration) {
	h.clock.Advance(d)
	h.drain()
}

func (h *harness) command(input string, args ...string) Reply {
	h.t.Helper()
	reply := make(chan Reply, 1)
	h.send(Command{Name: input, Args: args, Reply: reply})
	select {
	case r := <-reply:
		return r
	default:
		h.t.Fatalf("no reply to %q", input)
		return Reply{}
	}
}

func (h *harness) state() string {
	return h.engine.machine.State().String()
}

func (h *harness) expectState(want string) {
	h.t.Helper()
	if got := h.state(); got != want {
		h.t.Fatalf("Expected state %s, got %s", want, got)
	}
}

// engage drives the companion from HIDDEN to ENGAGED through a passive idle.
func (h *harness) engage() {
	h.t.Helper()
	h.send(IdleConfirmed{Idle: 200 * time.Second})
	h.expectState("ENGAGED")
	h.log.reset()
}
