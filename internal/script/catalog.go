// Package script holds the companion's dialogue lines and chooses which one
// to play for a given moment.
package script

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/haunt/internal/errors"
)

// Script is one line the companion can say.
type Script struct {
	ID   string `yaml:"id"`
	Text string `yaml:"text"`
	// Audio is an optional pre-rendered clip played instead of synthesizing Text.
	Audio string `yaml:"audio,omitempty"`
	// Sprite is an optional presentation payload shown while speaking.
	Sprite    string    `yaml:"sprite,omitempty"`
	TimeRange TimeRange `yaml:"time_range,omitempty"`
	// Weight biases random selection. Values below 0.01 count as 0.01.
	Weight   float64       `yaml:"weight,omitempty"`
	Cooldown time.Duration `yaml:"cooldown,omitempty"`
	Tags     []string      `yaml:"tags,omitempty"`
}

// Catalog is the set of lines loaded from a dialogue file.
type Catalog struct {
	Idle  []Script `yaml:"idle"`
	Panic []Script `yaml:"panic"`
}

// Load reads a YAML catalog. Missing sections fall back to the built-in
// lines so that a file with only idle lines still has a panic pool.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading script catalog: %w", err)
	}

	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing script catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	builtin := Builtin()
	if len(c.Idle) == 0 {
		c.Idle = builtin.Idle
	}
	if len(c.Panic) == 0 {
		c.Panic = builtin.Panic
	}
	return &c, nil
}

// LoadOrBuiltin loads path, or returns the built-in catalog when path is empty.
func LoadOrBuiltin(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return Builtin(), nil
	}
	return Load(path)
}

// Validate checks that every line has an id and something to play, and that
// ids are unique within a pool.
func (c *Catalog) Validate() error {
	for pool, scripts := range map[string][]Script{"idle": c.Idle, "panic": c.Panic} {
		seen := make(map[string]bool, len(scripts))
		for i, s := range scripts {
			if s.ID == "" {
				return fmt.Errorf("%w: %s[%d] has no id", errors.ErrInvalidScript, pool, i)
			}
			if seen[s.ID] {
				return fmt.Errorf("%w: duplicate id %q in %s", errors.ErrInvalidScript, s.ID, pool)
			}
			seen[s.ID] = true
			if strings.TrimSpace(s.Text) == "" && s.Audio == "" {
				return fmt.Errorf("%w: %s has neither text nor audio", errors.ErrInvalidScript, s.ID)
			}
			if s.Weight < 0 || s.Cooldown < 0 {
				return fmt.Errorf("%w: %s has a negative weight or cooldown", errors.ErrInvalidScript, s.ID)
			}
		}
	}
	return nil
}

func mustRange(s string) TimeRange {
	r, err := ParseTimeRange(s)
	if err != nil {
		panic(err)
	}
	return r
}

// Builtin returns the lines used when no catalog file is configured.
func Builtin() *Catalog {
	return &Catalog{
		Idle: []Script{
			{ID: "morning_default", Text: "Morning. Have you had any water yet?", TimeRange: mustRange("05:00-11:00"), Weight: 1, Cooldown: 10 * time.Minute},
			{ID: "afternoon_default", Text: "Long afternoon. Stretch a little?", TimeRange: mustRange("11:00-18:00"), Weight: 1, Cooldown: 10 * time.Minute},
			{ID: "evening_default", Text: "It's getting late. Don't forget dinner.", TimeRange: mustRange("18:00-23:00"), Weight: 1, Cooldown: 10 * time.Minute},
			{ID: "night_default", Text: "Still up? The screen will still be here tomorrow.", TimeRange: mustRange("23:00-05:00"), Weight: 1, Cooldown: 10 * time.Minute},
			{ID: "peek", Text: "...is anyone there?", Weight: 0.5},
			{ID: "bored", Text: "I'm bored. Entertain me.", Weight: 0.3, Cooldown: 30 * time.Minute},
		},
		Panic: []Script{
			{ID: "panic_caught", Text: "Eek! I wasn't here!", Weight: 1},
			{ID: "panic_leaving", Text: "Leaving, leaving!", Weight: 1},
		},
	}
}
