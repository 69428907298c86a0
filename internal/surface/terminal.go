// Package surface renders the companion as status lines on a terminal. It
// stands in for a desktop window: animations are simulated with timers and
// report completion the way a real window would.
package surface

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/Iron-Ham/haunt/internal/audio"
	"github.com/Iron-Ham/haunt/internal/behavior"
	"github.com/Iron-Ham/haunt/internal/invasion"
	"github.com/Iron-Ham/haunt/internal/orchestrator"
	"github.com/Iron-Ham/haunt/internal/session"
	"github.com/Iron-Ham/haunt/internal/timer"
	"github.com/Iron-Ham/haunt/internal/trajectory"
	"github.com/Iron-Ham/haunt/internal/tui/styles"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// DefaultFleeAnimation is how long the simulated flee takes.
const DefaultFleeAnimation = 800 * time.Millisecond

// Notifier receives animation completions. orchestrator.Relay implements it.
type Notifier interface {
	FleeCompleted()
	EntranceFinished(id session.ID, err error)
	InvaderGone(id uint64)
}

// View is what the surface currently shows.
type View struct {
	Visible    bool
	Edge       string
	Y          float64
	Visual     behavior.Visual
	Expression string
	Line       string
	Entrance   session.ID
	Invaders   int
}

// Terminal implements orchestrator.Presentation.
type Terminal struct {
	mu       sync.Mutex
	w        io.Writer
	notifier Notifier
	clock    timer.Clock
	flee     time.Duration
	styled   bool

	view          View
	fleeTimer     timer.Stopper
	entranceTimer timer.Stopper
	// invaders maps each invader on screen to its pending departure, if any.
	invaders map[uint64]timer.Stopper
}

// Option configures a Terminal.
type Option func(*Terminal)

// WithClock replaces the animation clock.
func WithClock(c timer.Clock) Option {
	return func(t *Terminal) { t.clock = c }
}

// WithFleeAnimation sets the simulated flee duration.
func WithFleeAnimation(d time.Duration) Option {
	return func(t *Terminal) { t.flee = d }
}

// WithStyled forces colored output on or off.
func WithStyled(on bool) Option {
	return func(t *Terminal) { t.styled = on }
}

// NewTerminal writes to w. Output is colored only when w is a terminal.
func NewTerminal(w io.Writer, n Notifier, opts ...Option) *Terminal {
	t := &Terminal{
		w:        w,
		notifier: n,
		clock:    timer.RealClock{},
		flee:     DefaultFleeAnimation,
		styled:   isTerminal(w),
		view:     View{Visual: behavior.VisualBusy},
		invaders: make(map[uint64]timer.Stopper),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// View returns a copy of the current view.
func (t *Terminal) View() View {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.view
}

func (t *Terminal) Summon(edge orchestrator.Edge, y float64, p orchestrator.Payload) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopFleeLocked()
	t.view.Visible = true
	t.view.Edge = edge.String()
	t.view.Y = y
	t.printLocked(styles.StateEngaged, "appears", fmt.Sprintf("from the %s edge at %.0f%%", edge, y*100), p)
}

func (t *Terminal) Enter(p orchestrator.Payload) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopFleeLocked()
	t.view.Visible = true
	t.printLocked(styles.StateEngaged, "steps forward", "", p)
}

func (t *Terminal) Flee() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.printLocked(styles.StateFleeing, "flees", "", orchestrator.Payload{})
	t.stopFleeLocked()
	t.fleeTimer = t.clock.AfterFunc(t.flee, t.fleeDone)
}

func (t *Terminal) fleeDone() {
	t.mu.Lock()
	t.fleeTimer = nil
	t.view.Visible = false
	t.mu.Unlock()
	if t.notifier != nil {
		t.notifier.FleeCompleted()
	}
}

func (t *Terminal) HideImmediately() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopFleeLocked()
	if t.view.Visible {
		t.printLocked(styles.StateHidden, "vanishes", "", orchestrator.Payload{})
	}
	t.view.Visible = false
	t.view.Expression = ""
}

func (t *Terminal) SetVisual(v behavior.Visual) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.view.Visual = v
}

func (t *Terminal) SetExpression(label string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if label == t.view.Expression {
		return
	}
	t.view.Expression = label
	t.printLocked(styles.StatePeeking, "looks", label, orchestrator.Payload{})
}

// Say prints a spoken line. It matches audio.SimulatedPlayer.Say.
func (t *Terminal) Say(req audio.Request) {
	t.mu.Lock()
	defer t.mu.Unlock()
	text := req.Text
	if text == "" {
		text = "[" + req.ContentRef + "]"
	}
	t.printLocked(styles.BlueColor, "says", "", orchestrator.Payload{Text: text})
}

func (t *Terminal) PlayTrajectory(id session.ID, traj *trajectory.Trajectory) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopEntranceLocked()
	t.view.Entrance = id
	t.printLocked(styles.ModeSummoning, "drifts in", fmt.Sprintf("%d points over %s", len(traj.Points), traj.Duration()), orchestrator.Payload{})
	t.entranceTimer = t.clock.AfterFunc(traj.Duration(), func() { t.entranceDone(id) })
}

func (t *Terminal) entranceDone(id session.ID) {
	t.mu.Lock()
	if t.view.Entrance != id {
		t.mu.Unlock()
		return
	}
	t.entranceTimer = nil
	t.view.Entrance = 0
	t.mu.Unlock()
	if t.notifier != nil {
		t.notifier.EntranceFinished(id, nil)
	}
}

func (t *Terminal) StopTrajectory() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopEntranceLocked()
	t.view.Entrance = 0
}

func (t *Terminal) SpawnInvader(inv invasion.Invader) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.invaders[inv.ID]; ok {
		return
	}
	t.invaders[inv.ID] = nil
	t.view.Invaders = len(t.invaders)
	t.printLocked(styles.StatePeeking, "sends an invader",
		fmt.Sprintf("in from the %s to cell %d,%d", inv.From, inv.Cell.Col, inv.Cell.Row), orchestrator.Payload{})
}

func (t *Terminal) RetreatInvader(id uint64, delay time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	pending, ok := t.invaders[id]
	if !ok {
		return
	}
	if pending != nil {
		pending.Stop()
	}
	t.invaders[id] = t.clock.AfterFunc(delay, func() { t.invaderGone(id) })
}

func (t *Terminal) invaderGone(id uint64) {
	t.mu.Lock()
	if _, ok := t.invaders[id]; !ok {
		t.mu.Unlock()
		return
	}
	delete(t.invaders, id)
	t.view.Invaders = len(t.invaders)
	if len(t.invaders) == 0 {
		t.printLocked(styles.StateHidden, "calls the invaders back", "", orchestrator.Payload{})
	}
	t.mu.Unlock()
	if t.notifier != nil {
		t.notifier.InvaderGone(id)
	}
}

func (t *Terminal) ClearInvaders() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.invaders) == 0 {
		return
	}
	for id, pending := range t.invaders {
		if pending != nil {
			pending.Stop()
		}
		delete(t.invaders, id)
	}
	t.view.Invaders = 0
	t.printLocked(styles.StateHidden, "clears the invaders", "", orchestrator.Payload{})
}

func (t *Terminal) stopFleeLocked() {
	if t.fleeTimer != nil {
		t.fleeTimer.Stop()
		t.fleeTimer = nil
	}
}

func (t *Terminal) stopEntranceLocked() {
	if t.entranceTimer != nil {
		t.entranceTimer.Stop()
		t.entranceTimer = nil
	}
}

func (t *Terminal) printLocked(color lipgloss.Color, verb, detail string, p orchestrator.Payload) {
	line := "haunt " + verb
	if detail != "" {
		line += " " + detail
	}
	if p.Text != "" {
		line += ": " + p.Text
	}
	t.view.Line = line

	stamp := t.clock.Now().Format("15:04:05")
	if t.styled {
		line = lipgloss.NewStyle().Foreground(color).Render(line)
		stamp = styles.Muted.Render(stamp)
	}
	_, _ = fmt.Fprintf(t.w, "%s %s\n", stamp, line)
}
