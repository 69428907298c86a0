// Package invasion decides when small invaders crowd the screen while the
// user is away. Invaders start to appear after a long idle stretch, arrive
// faster the longer the user stays away, and retreat as soon as the user
// returns.
//
// A Controller holds no timers and starts no goroutines. Each call returns
// a Step that tells the caller what to render and which timers to arm, so
// the orchestrator can run it on its own loop.
package invasion

import (
	"cmp"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
	"time"
)

// State is the controller's phase.
type State int

const (
	Inactive State = iota
	Spawning
	// Saturated means the cap was reached; no more invaders appear.
	Saturated
	Retreating
)

func (s State) String() string {
	switch s {
	case Inactive:
		return "INACTIVE"
	case Spawning:
		return "SPAWNING"
	case Saturated:
		return "SATURATED"
	case Retreating:
		return "RETREATING"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Active reports whether invaders may be on screen.
func (s State) Active() bool {
	return s == Spawning || s == Saturated
}

// RetreatStyle is how invaders leave.
type RetreatStyle string

const (
	// Instant removes every invader at once.
	Instant RetreatStyle = "instant"
	// Scatter sends every invader away after a short random delay.
	Scatter RetreatStyle = "scatter"
	// Ripple sends invaders away from the centre of the screen outwards.
	Ripple RetreatStyle = "ripple"
)

// ParseRetreatStyle matches a style name, ignoring case.
func ParseRetreatStyle(s string) (RetreatStyle, bool) {
	switch RetreatStyle(strings.ToLower(strings.TrimSpace(s))) {
	case Instant:
		return Instant, true
	case Scatter:
		return Scatter, true
	case Ripple:
		return Ripple, true
	}
	return "", false
}

// Floor is the shortest spawn interval allowed.
const Floor = 500 * time.Millisecond

// Config tunes the invasion.
type Config struct {
	Enabled bool
	// StartDelay is the idle time before the first invader appears.
	StartDelay time.Duration
	// InitialInterval is the spawn cadence right after the start; it
	// shortens as idle time grows.
	InitialInterval time.Duration
	// MinInterval is the fastest cadence.
	MinInterval  time.Duration
	MaxInvaders  int
	GridCols     int
	GridRows     int
	RetreatStyle RetreatStyle
	// RetreatTimeout is how long a retreat may take before the remaining
	// invaders are cleared.
	RetreatTimeout time.Duration
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Enabled:         true,
		StartDelay:      3 * time.Minute,
		InitialInterval: 10 * time.Second,
		MinInterval:     2 * time.Second,
		MaxInvaders:     12,
		GridCols:        6,
		GridRows:        4,
		RetreatStyle:    Scatter,
		RetreatTimeout:  5 * time.Second,
	}
}

// Cell is a grid position. Each cell holds at most one invader.
type Cell struct {
	Col int `json:"col"`
	Row int `json:"row"`
}

// Invader is one spawned figure.
type Invader struct {
	ID   uint64
	Cell Cell
	// From is the screen edge the invader walks in from.
	From    string
	Opacity float64
}

// Departure sends one invader away after Delay.
type Departure struct {
	ID    uint64
	Delay time.Duration
}

// Step is what the caller must do after a Controller call.
type Step struct {
	From, To State

	Spawned []Invader
	Depart  []Departure
	// Clear removes every remaining invader without animation.
	Clear bool

	// SpawnIn is the delay until the next Tick. Zero cancels a pending
	// spawn and Keep leaves it running.
	SpawnIn time.Duration
	// RetreatBy is the deadline for ForceClear while retreating. Zero
	// cancels a pending deadline and Keep leaves it running.
	RetreatBy time.Duration
}

// Keep marks a Step timer that must stay as it is.
const Keep time.Duration = -1

// Changed reports whether the step moved the controller to a new state.
func (s Step) Changed() bool {
	return s.From != s.To
}

var edges = []string{"top", "bottom", "left", "right"}

// Controller runs one invasion at a time. It is not safe for concurrent
// use; the orchestrator calls it only from its loop.
type Controller struct {
	cfg Config
	rnd *rand.Rand

	state State
	// startedAt and startIdle date the start of the current invasion so
	// that the cadence can follow total idle time.
	startedAt time.Time
	startIdle time.Duration

	nextID   uint64
	invaders map[uint64]Invader
	occupied map[Cell]bool
}

// New creates an inactive Controller.
func New(cfg Config, rnd *rand.Rand) *Controller {
	if rnd == nil {
		rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Controller{
		cfg:      cfg,
		rnd:      rnd,
		invaders: make(map[uint64]Invader),
		occupied: make(map[Cell]bool),
	}
}

// State returns the current phase.
func (c *Controller) State() State { return c.state }

// Count returns the number of invaders on screen.
func (c *Controller) Count() int { return len(c.invaders) }

// Config returns the current settings.
func (c *Controller) Config() Config { return c.cfg }

// Capacity is the most invaders that can be on screen at once.
func (c *Controller) Capacity() int {
	return min(c.cfg.MaxInvaders, max(c.cfg.GridCols, 1)*max(c.cfg.GridRows, 1))
}

// Begin starts an invasion after idle time of idle was observed at now.
// It does nothing unless the controller is enabled and inactive.
func (c *Controller) Begin(now time.Time, idle time.Duration) Step {
	step := Step{From: c.state}
	if !c.cfg.Enabled || c.state != Inactive {
		step.To = c.state
		return c.keep(step)
	}

	c.state = Spawning
	c.startedAt = now
	c.startIdle = idle
	c.spawn(&step)
	step.To = c.state
	if c.state == Spawning {
		step.SpawnIn = c.interval(now)
	}
	return step
}

// Tick spawns the next invader. Only a spawning controller responds.
func (c *Controller) Tick(now time.Time) Step {
	step := Step{From: c.state}
	if c.state != Spawning {
		step.To = c.state
		return c.keep(step)
	}
	c.spawn(&step)
	step.To = c.state
	if c.state == Spawning {
		step.SpawnIn = c.interval(now)
	}
	return step
}

// Retreat sends every invader away. An inactive or already retreating
// controller is left alone.
func (c *Controller) Retreat() Step {
	step := Step{From: c.state}
	if !c.state.Active() {
		step.To = c.state
		return c.keep(step)
	}

	if c.cfg.RetreatStyle == Instant || len(c.invaders) == 0 {
		step.Clear = len(c.invaders) > 0
		c.reset()
		step.To = c.state
		return step
	}

	c.state = Retreating
	step.To = c.state
	step.Depart = c.departures()
	step.RetreatBy = c.cfg.RetreatTimeout
	return step
}

// Gone records that an invader left the screen. The last one to leave
// during a retreat ends the invasion.
func (c *Controller) Gone(id uint64) Step {
	step := Step{From: c.state}
	if inv, ok := c.invaders[id]; ok {
		delete(c.invaders, id)
		delete(c.occupied, inv.Cell)
	}
	if c.state == Retreating && len(c.invaders) == 0 {
		c.reset()
		step.To = c.state
		return step
	}
	step.To = c.state
	return c.keep(step)
}

// ForceClear ends a retreat that ran past its deadline.
func (c *Controller) ForceClear() Step {
	step := Step{From: c.state}
	if c.state != Retreating {
		step.To = c.state
		return c.keep(step)
	}
	step.Clear = len(c.invaders) > 0
	c.reset()
	step.To = c.state
	return step
}

// Shutdown clears everything immediately, whatever the state.
func (c *Controller) Shutdown() Step {
	step := Step{From: c.state, Clear: len(c.invaders) > 0}
	c.reset()
	step.To = c.state
	return step
}

// SetConfig replaces the settings. Disabling a running invasion makes it
// retreat.
func (c *Controller) SetConfig(cfg Config) Step {
	c.cfg = cfg
	if !cfg.Enabled && c.state.Active() {
		return c.Retreat()
	}
	return c.keep(Step{From: c.state, To: c.state})
}

// keep marks the timers of the current phase as unchanged.
func (c *Controller) keep(step Step) Step {
	switch c.state {
	case Spawning:
		step.SpawnIn = Keep
	case Retreating:
		step.RetreatBy = Keep
	}
	return step
}

func (c *Controller) spawn(step *Step) {
	if len(c.invaders) >= c.Capacity() {
		c.state = Saturated
		return
	}
	cell, ok := c.freeCell()
	if !ok {
		c.state = Saturated
		return
	}

	c.nextID++
	inv := Invader{
		ID:      c.nextID,
		Cell:    cell,
		From:    edges[c.rnd.IntN(len(edges))],
		Opacity: 0.75 + c.rnd.Float64()*0.25,
	}
	c.invaders[inv.ID] = inv
	c.occupied[cell] = true
	step.Spawned = append(step.Spawned, inv)

	if len(c.invaders) >= c.Capacity() {
		c.state = Saturated
	}
}

func (c *Controller) freeCell() (Cell, bool) {
	var free []Cell
	for col := 0; col < max(c.cfg.GridCols, 1); col++ {
		for row := 0; row < max(c.cfg.GridRows, 1); row++ {
			if cell := (Cell{Col: col, Row: row}); !c.occupied[cell] {
				free = append(free, cell)
			}
		}
	}
	if len(free) == 0 {
		return Cell{}, false
	}
	return free[c.rnd.IntN(len(free))], true
}

// interval picks the delay before the next spawn.
func (c *Controller) interval(now time.Time) time.Duration {
	extra := c.startIdle - c.cfg.StartDelay + now.Sub(c.startedAt)
	low, high := Bounds(c.cfg, extra)
	return low + time.Duration(c.rnd.Int64N(int64(high-low)+1))
}

// Bounds returns the spawn interval range once the user has been idle for
// extra beyond the start delay. The range narrows in four bands: under 3m,
// under 5m, under 10m, and beyond.
func Bounds(cfg Config, extra time.Duration) (low, high time.Duration) {
	initial := max(Floor, cfg.InitialInterval)
	minimum := max(Floor, cfg.MinInterval)
	scale := func(f float64) time.Duration {
		return time.Duration(float64(initial) * f)
	}

	switch {
	case extra < 3*time.Minute:
		low, high = scale(0.8), scale(1.2)
	case extra < 5*time.Minute:
		low, high = scale(0.5), scale(0.8)
	case extra < 10*time.Minute:
		low, high = scale(0.3), scale(0.5)
	default:
		low, high = minimum, scale(0.3)
	}
	low = max(minimum, low)
	high = max(low, high)
	return low, high
}

func (c *Controller) departures() []Departure {
	ids := make([]uint64, 0, len(c.invaders))
	for id := range c.invaders {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	out := make([]Departure, 0, len(ids))
	if c.cfg.RetreatStyle == Ripple {
		cx := float64(max(c.cfg.GridCols, 1)-1) / 2
		cy := float64(max(c.cfg.GridRows, 1)-1) / 2
		dist := func(id uint64) float64 {
			cell := c.invaders[id].Cell
			dx, dy := float64(cell.Col)-cx, float64(cell.Row)-cy
			return dx*dx + dy*dy
		}
		slices.SortStableFunc(ids, func(a, b uint64) int {
			return cmp.Compare(dist(a), dist(b))
		})
		for i, id := range ids {
			delay := min(2200*time.Millisecond, time.Duration(i)*60*time.Millisecond+c.jitter(40))
			out = append(out, Departure{ID: id, Delay: delay})
		}
		return out
	}

	for _, id := range ids {
		out = append(out, Departure{ID: id, Delay: 50*time.Millisecond + c.jitter(150)})
	}
	return out
}

// jitter returns a random delay in [0, ms] milliseconds.
func (c *Controller) jitter(ms int) time.Duration {
	return time.Duration(c.rnd.IntN(ms+1)) * time.Millisecond
}

func (c *Controller) reset() {
	c.state = Inactive
	c.startedAt = time.Time{}
	c.startIdle = 0
	clear(c.invaders)
	clear(c.occupied)
}
