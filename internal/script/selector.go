package script

import (
	"math/rand/v2"
	"sync"
	"time"
)

const minWeight = 0.01

// Selector picks lines from a Catalog. Lines whose time range explicitly
// matches the moment are preferred over "default" lines.
type Selector struct {
	mu         sync.Mutex
	catalog    *Catalog
	rnd        *rand.Rand
	lastPlayed map[string]time.Time
	lastID     string
}

// NewSelector creates a Selector over c. A nil rnd uses a randomly seeded source.
func NewSelector(c *Catalog, rnd *rand.Rand) *Selector {
	if c == nil {
		c = Builtin()
	}
	if rnd == nil {
		rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Selector{
		catalog:    c,
		rnd:        rnd,
		lastPlayed: make(map[string]time.Time),
	}
}

// Refresh swaps in a new catalog, keeping cooldown history.
func (s *Selector) Refresh(c *Catalog) {
	if c == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.catalog = c
}

// PickIdle chooses an idle line for now, honoring cooldowns and avoiding an
// immediate repeat. It returns false when nothing is eligible.
func (s *Selector) PickIdle(now time.Time) (Script, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pickLocked(s.catalog.Idle, now, true, true)
}

// PickPanic chooses a flee line. Cooldowns and repeats are ignored. An empty
// panic pool falls back to the idle pool.
func (s *Selector) PickPanic(now time.Time) (Script, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pool := s.catalog.Panic
	if len(pool) == 0 {
		pool = s.catalog.Idle
	}
	return s.pickLocked(pool, now, false, false)
}

// Lookup returns the idle or panic line with id.
func (s *Selector) Lookup(id string) (Script, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, pool := range [][]Script{s.catalog.Idle, s.catalog.Panic} {
		for _, sc := range pool {
			if sc.ID == id {
				return sc, true
			}
		}
	}
	return Script{}, false
}

func (s *Selector) pickLocked(source []Script, now time.Time, avoidRepeat, honorCooldown bool) (Script, bool) {
	if len(source) == 0 {
		return Script{}, false
	}

	var exact, defaults []Script
	for _, sc := range source {
		if sc.TimeRange.IsAny() {
			defaults = append(defaults, sc)
		} else if sc.TimeRange.Contains(now) {
			exact = append(exact, sc)
		}
	}
	primary := exact
	if len(primary) == 0 {
		primary = defaults
	}
	if len(primary) == 0 {
		primary = source
	}

	candidates := s.filterLocked(primary, now, avoidRepeat, honorCooldown, len(source))
	if len(candidates) == 0 && len(exact) > 0 && len(defaults) > 0 {
		primary = defaults
		candidates = s.filterLocked(primary, now, avoidRepeat, honorCooldown, len(source))
	}
	if len(candidates) == 0 {
		candidates = s.filterLocked(primary, now, false, honorCooldown, len(source))
	}
	if len(candidates) == 0 {
		return Script{}, false
	}

	picked := s.weightedLocked(candidates)
	s.lastPlayed[picked.ID] = now
	s.lastID = picked.ID
	return picked, true
}

func (s *Selector) filterLocked(source []Script, now time.Time, avoidRepeat, honorCooldown bool, total int) []Script {
	var out []Script
	for _, sc := range source {
		if !sc.TimeRange.Contains(now) {
			continue
		}
		if honorCooldown && sc.Cooldown > 0 {
			if last, ok := s.lastPlayed[sc.ID]; ok && now.Before(last.Add(sc.Cooldown)) {
				continue
			}
		}
		if avoidRepeat && total > 1 && sc.ID == s.lastID {
			continue
		}
		out = append(out, sc)
	}
	return out
}

func (s *Selector) weightedLocked(candidates []Script) Script {
	total := 0.0
	for _, sc := range candidates {
		total += max(sc.Weight, minWeight)
	}
	r := s.rnd.Float64() * total
	for _, sc := range candidates {
		r -= max(sc.Weight, minWeight)
		if r < 0 {
			return sc
		}
	}
	return candidates[len(candidates)-1]
}
