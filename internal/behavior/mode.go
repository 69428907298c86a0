// Package behavior holds the behavior-mode overlay: an axis orthogonal to the
// lifecycle state that records why the companion looks the way it does.
package behavior

// Mode is the current activity context.
type Mode int

const (
	// Busy means the user is working; the companion stays out of the way.
	Busy Mode = iota
	// Idle means the user is idle and the companion may act.
	Idle
	// MediaPlaying means external audio is playing.
	MediaPlaying
	// Summoning means the companion was called explicitly.
	Summoning
)

// String returns the upper-case name of the mode.
func (m Mode) String() string {
	switch m {
	case Busy:
		return "BUSY"
	case Idle:
		return "IDLE"
	case MediaPlaying:
		return "MEDIA_PLAYING"
	case Summoning:
		return "SUMMONING"
	default:
		return "UNKNOWN"
	}
}

// Visual names the look the presentation should adopt.
type Visual string

const (
	VisualBusy      Visual = "busy"
	VisualIdle      Visual = "idle"
	VisualListening Visual = "listening"
	VisualSummoning Visual = "summoning"
	VisualThinking  Visual = "thinking"
	VisualNeutral   Visual = "neutral"
)

// Overlay holds the current mode. The zero value is in Busy.
type Overlay struct {
	mode Mode
}

// Mode returns the current mode.
func (o *Overlay) Mode() Mode {
	return o.mode
}

// Set changes the mode and reports whether it differed.
func (o *Overlay) Set(m Mode) bool {
	if o.mode == m {
		return false
	}
	o.mode = m
	return true
}

// Visual resolves the look for the current mode. An active scripted
// entrance always shows the summoning look.
func (o *Overlay) Visual(trajectoryActive bool) Visual {
	if trajectoryActive {
		return VisualSummoning
	}
	switch o.mode {
	case Idle:
		return VisualIdle
	case MediaPlaying:
		return VisualListening
	case Summoning:
		return VisualSummoning
	default:
		return VisualBusy
	}
}

// Fallback returns the mode to use when an overlay such as MediaPlaying ends:
// Idle while the companion is visible, Busy otherwise.
func Fallback(visible bool) Mode {
	if visible {
		return Idle
	}
	return Busy
}
