package script

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// TimeRange is a daily window in minutes since midnight. The start is
// inclusive and the end exclusive; a range whose end is before its start
// wraps past midnight. The zero value (Any) matches every time.
type TimeRange struct {
	Start int
	End   int
	set   bool
}

// Any matches all times.
var Any = TimeRange{}

// ParseTimeRange parses "HH:MM-HH:MM". An empty string or "default" yields Any.
func ParseTimeRange(s string) (TimeRange, error) {
	value := strings.ToLower(strings.TrimSpace(s))
	if value == "" || value == "default" {
		return Any, nil
	}
	startText, endText, ok := strings.Cut(value, "-")
	if !ok {
		return Any, fmt.Errorf("invalid time range %q: expected HH:MM-HH:MM", s)
	}
	start, err := parseClock(startText)
	if err != nil {
		return Any, fmt.Errorf("invalid time range %q: %w", s, err)
	}
	end, err := parseClock(endText)
	if err != nil {
		return Any, fmt.Errorf("invalid time range %q: %w", s, err)
	}
	return TimeRange{Start: start, End: end, set: true}, nil
}

func parseClock(s string) (int, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("%q is not HH:MM", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h*60 + m, nil
}

// IsAny reports whether r matches all times.
func (r TimeRange) IsAny() bool {
	return !r.set
}

// Contains reports whether t's wall-clock time falls within r.
func (r TimeRange) Contains(t time.Time) bool {
	if !r.set {
		return true
	}
	cur := t.Hour()*60 + t.Minute()
	if r.Start <= r.End {
		return r.Start <= cur && cur < r.End
	}
	return cur >= r.Start || cur < r.End
}

// String formats r as HH:MM-HH:MM, or "default" for Any.
func (r TimeRange) String() string {
	if !r.set {
		return "default"
	}
	return fmt.Sprintf("%02d:%02d-%02d:%02d", r.Start/60, r.Start%60, r.End/60, r.End%60)
}

// UnmarshalYAML implements yaml.Unmarshaler for the HH:MM-HH:MM form.
func (r *TimeRange) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseTimeRange(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (r TimeRange) MarshalYAML() (any, error) {
	return r.String(), nil
}
