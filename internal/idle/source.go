package idle

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"
)

// CommandSource runs an external program that prints the idle time in
// milliseconds, such as xprintidle.
type CommandSource struct {
	Name string
	Args []string
}

// NewCommandSource parses a command line like "xprintidle".
func NewCommandSource(command string) (*CommandSource, error) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil, fmt.Errorf("idle command is empty")
	}
	return &CommandSource{Name: fields[0], Args: fields[1:]}, nil
}

// IdleTime implements Source.
func (s *CommandSource) IdleTime(ctx context.Context) (time.Duration, error) {
	cmd := exec.CommandContext(ctx, s.Name, s.Args...)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("failed to run %s: %w", s.Name, err)
	}
	ms, err := strconv.ParseInt(strings.TrimSpace(string(output)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid idle output from %s: %w", s.Name, err)
	}
	return time.Duration(max(ms, 0)) * time.Millisecond, nil
}

// SimulatedSource derives idle time from the last Touch. The console and
// tests use it in place of a desktop idle query.
type SimulatedSource struct {
	now func() time.Time

	mu     sync.Mutex
	last   time.Time
	offset time.Duration
}

// NewSimulatedSource returns a source that starts at zero idle.
func NewSimulatedSource(now func() time.Time) *SimulatedSource {
	if now == nil {
		now = time.Now
	}
	return &SimulatedSource{now: now, last: now()}
}

// Touch records user input.
func (s *SimulatedSource) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = s.now()
	s.offset = 0
}

// Skip adds d to the reported idle time without waiting.
func (s *SimulatedSource) Skip(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offset += d
}

// IdleTime implements Source.
func (s *SimulatedSource) IdleTime(context.Context) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now().Sub(s.last) + s.offset, nil
}

const (
	// DefaultJitterLow and DefaultJitterHigh bound the random threshold offset.
	DefaultJitterLow  = -30 * time.Second
	DefaultJitterHigh = 60 * time.Second
	// MinThreshold is the smallest jittered threshold.
	MinThreshold = 60 * time.Second
)

// Jitter returns base plus a uniform offset in [low, high], never below
// MinThreshold. A nil rnd uses the global source.
func Jitter(base, low, high time.Duration, rnd *rand.Rand) time.Duration {
	if low > high {
		low, high = high, low
	}
	span := int64(high - low)
	var off int64
	if span > 0 {
		if rnd != nil {
			off = rnd.Int64N(span + 1)
		} else {
			off = rand.Int64N(span + 1)
		}
	}
	return max(MinThreshold, base+low+time.Duration(off))
}
