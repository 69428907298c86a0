// Package metrics provides Prometheus collectors for the haunt daemon.
//
// Labels are limited to bounded enumerations (signal names, lifecycle states,
// priorities, session kinds); ids never appear in labels.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SignalsTotal counts signals handled by the engine loop, by signal type.
	SignalsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "haunt_signals_total",
		Help: "Total number of signals handled by the engine, by signal.",
	}, []string{"signal"})

	// SignalDuration observes how long a single handler step takes.
	SignalDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "haunt_signal_duration_seconds",
		Help:    "Time spent handling one signal, by signal.",
		Buckets: []float64{.00005, .0001, .00025, .0005, .001, .0025, .005, .01, .05},
	}, []string{"signal"})

	// TransitionsTotal counts accepted lifecycle transitions.
	TransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "haunt_transitions_total",
		Help: "Total number of lifecycle transitions, by from and to state.",
	}, []string{"from", "to"})

	// TransitionsRejectedTotal counts illegal transition attempts.
	TransitionsRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "haunt_transitions_rejected_total",
		Help: "Total number of rejected lifecycle transitions, by from and to state.",
	}, []string{"from", "to"})

	// GuardRejectionsTotal counts signals blocked by a guard condition.
	GuardRejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "haunt_guard_rejections_total",
		Help: "Total number of signals rejected by a guard, by signal and reason.",
	}, []string{"signal", "reason"})

	// StaleResultsTotal counts task results dropped because their session was superseded.
	StaleResultsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "haunt_stale_results_total",
		Help: "Total number of task results discarded as stale, by session kind.",
	}, []string{"kind"})

	// AudioDroppedTotal counts audio requests dropped by the dispatch policy.
	AudioDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "haunt_audio_dropped_total",
		Help: "Total number of audio requests dropped, by priority.",
	}, []string{"priority"})

	// AudioFailuresTotal counts playback failures.
	AudioFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "haunt_audio_failures_total",
		Help: "Total number of audio playback failures.",
	})

	// TaskOutcomesTotal counts async task completions by kind and outcome.
	TaskOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "haunt_task_outcomes_total",
		Help: "Total number of async task outcomes, by kind and outcome (ok/error).",
	}, []string{"kind", "outcome"})

	// Mood is the companion's current mood value in [0, 1].
	Mood = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "haunt_mood",
		Help: "Current mood value between 0 and 1.",
	})

	// LifecycleState is 1 for the current lifecycle state and 0 otherwise.
	LifecycleState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "haunt_lifecycle_state",
		Help: "1 for the current lifecycle state, 0 for the others.",
	}, []string{"state"})

	// Invaders is the number of idle invaders on screen.
	Invaders = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "haunt_invaders",
		Help: "Number of idle invaders currently on screen.",
	})
)

// ObserveSignal records one handled signal.
func ObserveSignal(signal string, d time.Duration) {
	SignalsTotal.WithLabelValues(signal).Inc()
	SignalDuration.WithLabelValues(signal).Observe(d.Seconds())
}

// IncTransition records an accepted transition and updates the state gauge.
func IncTransition(from, to string) {
	TransitionsTotal.WithLabelValues(from, to).Inc()
	LifecycleState.WithLabelValues(from).Set(0)
	LifecycleState.WithLabelValues(to).Set(1)
}

// IncTransitionRejected records a rejected transition.
func IncTransitionRejected(from, to string) {
	TransitionsRejectedTotal.WithLabelValues(from, to).Inc()
}

// IncGuardRejection records a guard rejection.
func IncGuardRejection(signal, reason string) {
	GuardRejectionsTotal.WithLabelValues(signal, reason).Inc()
}

// IncStaleResult records a discarded stale result.
func IncStaleResult(kind string) {
	StaleResultsTotal.WithLabelValues(kind).Inc()
}

// IncAudioDropped records a dropped audio request.
func IncAudioDropped(priority string) {
	AudioDroppedTotal.WithLabelValues(priority).Inc()
}

// IncAudioFailure records a failed playback.
func IncAudioFailure() {
	AudioFailuresTotal.Inc()
}

// IncTaskOutcome records a task outcome.
func IncTaskOutcome(kind string, failed bool) {
	outcome := "ok"
	if failed {
		outcome = "error"
	}
	TaskOutcomesTotal.WithLabelValues(kind, outcome).Inc()
}

// SetMood updates the mood gauge.
func SetMood(v float64) {
	Mood.Set(v)
}

// SetInvaders updates the invader gauge.
func SetInvaders(n int) {
	Invaders.Set(float64(n))
}
