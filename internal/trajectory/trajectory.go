// Package trajectory loads recorded entrance paths used for scripted
// summons.
package trajectory

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/Iron-Ham/haunt/internal/errors"
)

const (
	// MinEntranceTimeout is the shortest entrance watchdog.
	MinEntranceTimeout = 3 * time.Second
	// EntranceGrace is added to the path duration for the watchdog.
	EntranceGrace = 2 * time.Second
)

// Point is one recorded cursor sample. T is seconds since recording start.
type Point struct {
	T     float64 `json:"t"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	State *int    `json:"state,omitempty"`
}

// Trajectory is a recorded path.
type Trajectory struct {
	TotalPoints   int     `json:"total_points,omitempty"`
	TotalDuration float64 `json:"total_duration"`
	Points        []Point `json:"points"`
	// Source is the file the trajectory was loaded from.
	Source string `json:"-"`
}

// Load reads and validates a trajectory file.
func Load(path string) (*Trajectory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading trajectory: %w", err)
	}
	t, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	t.Source = path
	return t, nil
}

// Parse decodes and validates trajectory JSON. A missing total_duration is
// taken from the last point.
func Parse(data []byte) (*Trajectory, error) {
	var t Trajectory
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrInvalidTrajectory, err)
	}
	if len(t.Points) == 0 {
		return nil, fmt.Errorf("%w: no points", errors.ErrInvalidTrajectory)
	}
	for i := 1; i < len(t.Points); i++ {
		if t.Points[i].T < t.Points[i-1].T {
			return nil, fmt.Errorf("%w: point %d goes back in time", errors.ErrInvalidTrajectory, i)
		}
	}
	if t.Points[0].T < 0 {
		return nil, fmt.Errorf("%w: negative timestamp", errors.ErrInvalidTrajectory)
	}
	if t.TotalDuration <= 0 {
		t.TotalDuration = t.Points[len(t.Points)-1].T
	}
	t.TotalPoints = len(t.Points)
	return &t, nil
}

// Duration returns the playback length.
func (t *Trajectory) Duration() time.Duration {
	return time.Duration(t.TotalDuration * float64(time.Second))
}

// EntranceTimeout is the watchdog for playing t: its duration plus
// EntranceGrace, at least MinEntranceTimeout.
func (t *Trajectory) EntranceTimeout() time.Duration {
	return max(MinEntranceTimeout, t.Duration()+EntranceGrace)
}
