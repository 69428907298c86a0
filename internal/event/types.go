package event

import (
	"time"

	"github.com/Iron-Ham/haunt/internal/behavior"
	"github.com/Iron-Ham/haunt/internal/invasion"
	"github.com/Iron-Ham/haunt/internal/orchestrator/lifecycle"
	"github.com/Iron-Ham/haunt/internal/presence"
	"github.com/Iron-Ham/haunt/internal/session"
)

// Event is the interface that all events implement.
type Event interface {
	// EventType returns "category.action", e.g. "lifecycle.changed".
	EventType() string
	Timestamp() time.Time
}

// Event type names.
const (
	TypeLifecycleChanged  = "lifecycle.changed"
	TypeLifecycleRejected = "lifecycle.rejected"
	TypeModeChanged       = "mode.changed"
	TypeMoodChanged       = "mood.changed"
	TypeGuardRejected     = "guard.rejected"
	TypeResultDropped     = "result.dropped"
	TypeConfigApplied     = "config.applied"
	TypePresenceJudged    = "presence.judged"
	TypeIdleProlonged     = "idle.prolonged"
	TypeSpeechQueued      = "speech.queued"
	TypeInvasionChanged   = "invasion.changed"
)

type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

func newBaseEvent(eventType string, at time.Time) baseEvent {
	if at.IsZero() {
		at = time.Now()
	}
	return baseEvent{eventType: eventType, timestamp: at}
}

// LifecycleChangedEvent is published after every accepted transition.
type LifecycleChangedEvent struct {
	baseEvent
	From lifecycle.State
	To   lifecycle.State
	// Mode is the behavior mode at the time of the transition.
	Mode behavior.Mode
}

// NewLifecycleChangedEvent creates a LifecycleChangedEvent.
func NewLifecycleChangedEvent(at time.Time, from, to lifecycle.State, mode behavior.Mode) LifecycleChangedEvent {
	return LifecycleChangedEvent{
		baseEvent: newBaseEvent(TypeLifecycleChanged, at),
		From:      from,
		To:        to,
		Mode:      mode,
	}
}

// LifecycleRejectedEvent is published when an illegal transition is attempted.
type LifecycleRejectedEvent struct {
	baseEvent
	From lifecycle.State
	To   lifecycle.State
}

// NewLifecycleRejectedEvent creates a LifecycleRejectedEvent.
func NewLifecycleRejectedEvent(at time.Time, from, to lifecycle.State) LifecycleRejectedEvent {
	return LifecycleRejectedEvent{baseEvent: newBaseEvent(TypeLifecycleRejected, at), From: from, To: to}
}

// ModeChangedEvent is published when the behavior mode changes.
type ModeChangedEvent struct {
	baseEvent
	From behavior.Mode
	To   behavior.Mode
}

// NewModeChangedEvent creates a ModeChangedEvent.
func NewModeChangedEvent(at time.Time, from, to behavior.Mode) ModeChangedEvent {
	return ModeChangedEvent{baseEvent: newBaseEvent(TypeModeChanged, at), From: from, To: to}
}

// MoodChangedEvent is published when the mood value changes.
type MoodChangedEvent struct {
	baseEvent
	Value float64
	Label string
	// Cause is what moved the mood: dismissed, interacted, engaged, decay or set.
	Cause string
}

// NewMoodChangedEvent creates a MoodChangedEvent.
func NewMoodChangedEvent(at time.Time, value float64, label, cause string) MoodChangedEvent {
	return MoodChangedEvent{baseEvent: newBaseEvent(TypeMoodChanged, at), Value: value, Label: label, Cause: cause}
}

// GuardRejectedEvent is published when a guard blocks a signal.
type GuardRejectedEvent struct {
	baseEvent
	Signal string
	Reason string
}

// NewGuardRejectedEvent creates a GuardRejectedEvent.
func NewGuardRejectedEvent(at time.Time, signal, reason string) GuardRejectedEvent {
	return GuardRejectedEvent{baseEvent: newBaseEvent(TypeGuardRejected, at), Signal: signal, Reason: reason}
}

// ResultDroppedEvent is published when a stale task result is discarded.
type ResultDroppedEvent struct {
	baseEvent
	Kind    session.Kind
	Session session.ID
	Current session.ID
}

// NewResultDroppedEvent creates a ResultDroppedEvent.
func NewResultDroppedEvent(at time.Time, kind session.Kind, id, current session.ID) ResultDroppedEvent {
	return ResultDroppedEvent{baseEvent: newBaseEvent(TypeResultDropped, at), Kind: kind, Session: id, Current: current}
}

// ConfigAppliedEvent is published after a runtime config patch is applied.
type ConfigAppliedEvent struct {
	baseEvent
	// Fields names the settings the patch changed.
	Fields []string
}

// NewConfigAppliedEvent creates a ConfigAppliedEvent.
func NewConfigAppliedEvent(at time.Time, fields []string) ConfigAppliedEvent {
	return ConfigAppliedEvent{baseEvent: newBaseEvent(TypeConfigApplied, at), Fields: fields}
}

// PresenceJudgedEvent is published each time presence is classified.
type PresenceJudgedEvent struct {
	baseEvent
	Judgment presence.Judgment
	Idle     time.Duration
}

// NewPresenceJudgedEvent creates a PresenceJudgedEvent.
func NewPresenceJudgedEvent(at time.Time, j presence.Judgment, idle time.Duration) PresenceJudgedEvent {
	return PresenceJudgedEvent{baseEvent: newBaseEvent(TypePresenceJudged, at), Judgment: j, Idle: idle}
}

// IdleProlongedEvent is published when the companion has stayed hidden for
// the prolonged-idle period.
type IdleProlongedEvent struct {
	baseEvent
}

// NewIdleProlongedEvent creates an IdleProlongedEvent.
func NewIdleProlongedEvent(at time.Time) IdleProlongedEvent {
	return IdleProlongedEvent{baseEvent: newBaseEvent(TypeIdleProlonged, at)}
}

// SpeechQueuedEvent is published when the engine submits a line to audio.
type SpeechQueuedEvent struct {
	baseEvent
	ScriptID string
	Text     string
	Priority string
}

// NewSpeechQueuedEvent creates a SpeechQueuedEvent.
func NewSpeechQueuedEvent(at time.Time, scriptID, text, priority string) SpeechQueuedEvent {
	return SpeechQueuedEvent{
		baseEvent: newBaseEvent(TypeSpeechQueued, at),
		ScriptID:  scriptID,
		Text:      text,
		Priority:  priority,
	}
}

// InvasionChangedEvent is published when the idle invasion changes phase.
type InvasionChangedEvent struct {
	baseEvent
	From     invasion.State
	To       invasion.State
	Invaders int
}

// NewInvasionChangedEvent creates an InvasionChangedEvent.
func NewInvasionChangedEvent(at time.Time, from, to invasion.State, invaders int) InvasionChangedEvent {
	return InvasionChangedEvent{
		baseEvent: newBaseEvent(TypeInvasionChanged, at),
		From:      from,
		To:        to,
		Invaders:  invaders,
	}
}
