package config

import (
	"fmt"
	"net"
	"slices"
	"strings"
	"time"

	"github.com/Iron-Ham/haunt/internal/command"
	"github.com/Iron-Ham/haunt/internal/invasion"
	"github.com/gobwas/glob"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "trigger.idle_threshold")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"trace", "debug", "info", "warn", "error"}
}

// MinIdleThreshold is the smallest idle threshold the idle monitor accepts
// after jitter.
const MinIdleThreshold = 60 * time.Second

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateTrigger()...)
	errors = append(errors, c.validateVision()...)
	errors = append(errors, c.validateBehavior()...)
	errors = append(errors, c.validateCommentary()...)
	errors = append(errors, c.validateCommands()...)
	errors = append(errors, c.validateInvasion()...)
	errors = append(errors, c.validateControl()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

// validateTrigger validates the TriggerConfig
func (c *Config) validateTrigger() []ValidationError {
	var errors []ValidationError

	if c.Trigger.IdleThreshold < MinIdleThreshold {
		errors = append(errors, ValidationError{
			Field:   "trigger.idle_threshold",
			Value:   c.Trigger.IdleThreshold,
			Message: fmt.Sprintf("must be at least %s", MinIdleThreshold),
		})
	}

	// 0 disables auto-dismiss
	if c.Trigger.AutoDismiss < 0 {
		errors = append(errors, ValidationError{
			Field:   "trigger.auto_dismiss",
			Value:   c.Trigger.AutoDismiss,
			Message: "must be non-negative",
		})
	}

	if c.Trigger.ProlongedIdle <= 0 {
		errors = append(errors, ValidationError{
			Field:   "trigger.prolonged_idle",
			Value:   c.Trigger.ProlongedIdle,
			Message: "must be positive",
		})
	}

	const maxFleeTimeout = time.Minute
	if c.Trigger.FleeTimeout <= 0 || c.Trigger.FleeTimeout > maxFleeTimeout {
		errors = append(errors, ValidationError{
			Field:   "trigger.flee_timeout",
			Value:   c.Trigger.FleeTimeout,
			Message: fmt.Sprintf("must be between 0 and %s", maxFleeTimeout),
		})
	}

	return errors
}

// validateVision validates the VisionConfig
func (c *Config) validateVision() []ValidationError {
	var errors []ValidationError

	if c.Vision.SampleFreshness <= 0 {
		errors = append(errors, ValidationError{
			Field:   "vision.sample_freshness",
			Value:   c.Vision.SampleFreshness,
			Message: "must be positive",
		})
	}

	return errors
}

// validateBehavior validates the BehaviorConfig
func (c *Config) validateBehavior() []ValidationError {
	var errors []ValidationError

	if c.Behavior.JitterLow > c.Behavior.JitterHigh {
		errors = append(errors, ValidationError{
			Field:   "behavior.jitter_low",
			Value:   c.Behavior.JitterLow,
			Message: fmt.Sprintf("must not exceed behavior.jitter_high (%s)", c.Behavior.JitterHigh),
		})
	}

	if c.Behavior.MoodDecayInterval <= 0 {
		errors = append(errors, ValidationError{
			Field:   "behavior.mood_decay_interval",
			Value:   c.Behavior.MoodDecayInterval,
			Message: "must be positive",
		})
	}

	return errors
}

// validateCommentary validates the CommentaryConfig
func (c *Config) validateCommentary() []ValidationError {
	var errors []ValidationError

	if c.Commentary.Interval < 0 {
		errors = append(errors, ValidationError{
			Field:   "commentary.interval",
			Value:   c.Commentary.Interval,
			Message: "must be non-negative",
		})
	}

	if c.Commentary.Burst < 1 {
		errors = append(errors, ValidationError{
			Field:   "commentary.burst",
			Value:   c.Commentary.Burst,
			Message: "must be at least 1",
		})
	}

	if c.Commentary.Timeout <= 0 {
		errors = append(errors, ValidationError{
			Field:   "commentary.timeout",
			Value:   c.Commentary.Timeout,
			Message: "must be positive",
		})
	}

	return errors
}

// validateCommands checks alias keys name real actions and patterns compile
func (c *Config) validateCommands() []ValidationError {
	var errors []ValidationError

	for name, patterns := range c.Commands.Aliases {
		field := "commands.aliases." + name
		if _, ok := command.ParseAction(name); !ok {
			errors = append(errors, ValidationError{
				Field:   field,
				Value:   name,
				Message: fmt.Sprintf("unknown action, must be one of: %s", strings.Join(actionNames(), ", ")),
			})
			continue
		}
		for _, p := range patterns {
			if _, err := glob.Compile(command.NormalizePattern(p)); err != nil {
				errors = append(errors, ValidationError{
					Field:   field,
					Value:   p,
					Message: fmt.Sprintf("invalid pattern: %v", err),
				})
			}
		}
	}

	if c.Commands.MinScore < 0 || c.Commands.MinScore > 100 {
		errors = append(errors, ValidationError{
			Field:   "commands.min_score",
			Value:   c.Commands.MinScore,
			Message: "must be between 0 and 100",
		})
	}

	// Map iteration order is random
	slices.SortFunc(errors, func(a, b ValidationError) int {
		return strings.Compare(a.Field, b.Field)
	})
	return errors
}

func actionNames() []string {
	var names []string
	for _, a := range command.Actions() {
		names = append(names, string(a))
	}
	return names
}

// validateInvasion validates the InvasionConfig
func (c *Config) validateInvasion() []ValidationError {
	var errors []ValidationError
	inv := c.Invasion

	if inv.StartDelay < MinIdleThreshold {
		errors = append(errors, ValidationError{
			Field:   "invasion.start_delay",
			Value:   inv.StartDelay,
			Message: fmt.Sprintf("must be at least %s", MinIdleThreshold),
		})
	}

	if inv.InitialInterval < invasion.Floor {
		errors = append(errors, ValidationError{
			Field:   "invasion.initial_interval",
			Value:   inv.InitialInterval,
			Message: fmt.Sprintf("must be at least %s", invasion.Floor),
		})
	}

	if inv.MinInterval < invasion.Floor || inv.MinInterval > inv.InitialInterval {
		errors = append(errors, ValidationError{
			Field:   "invasion.min_interval",
			Value:   inv.MinInterval,
			Message: fmt.Sprintf("must be between %s and invasion.initial_interval", invasion.Floor),
		})
	}

	if inv.MaxInvaders < 1 {
		errors = append(errors, ValidationError{
			Field:   "invasion.max_invaders",
			Value:   inv.MaxInvaders,
			Message: "must be at least 1",
		})
	}

	if inv.GridCols < 1 || inv.GridRows < 1 {
		errors = append(errors, ValidationError{
			Field:   "invasion.grid",
			Value:   fmt.Sprintf("%dx%d", inv.GridCols, inv.GridRows),
			Message: "grid_cols and grid_rows must be at least 1",
		})
	}

	if _, ok := invasion.ParseRetreatStyle(inv.RetreatStyle); !ok {
		errors = append(errors, ValidationError{
			Field:   "invasion.retreat_style",
			Value:   inv.RetreatStyle,
			Message: "must be one of: instant, scatter, ripple",
		})
	}

	if inv.RetreatTimeout <= 0 {
		errors = append(errors, ValidationError{
			Field:   "invasion.retreat_timeout",
			Value:   inv.RetreatTimeout,
			Message: "must be positive",
		})
	}

	return errors
}

// validateControl validates the ControlConfig
func (c *Config) validateControl() []ValidationError {
	var errors []ValidationError

	host, _, err := net.SplitHostPort(c.Control.Addr)
	if err != nil {
		errors = append(errors, ValidationError{
			Field:   "control.addr",
			Value:   c.Control.Addr,
			Message: "must be host:port",
		})
	} else if !isLoopback(host) {
		errors = append(errors, ValidationError{
			Field:   "control.addr",
			Value:   c.Control.Addr,
			Message: "must listen on a loopback address",
		})
	}

	if c.Control.RateLimit < 0 {
		errors = append(errors, ValidationError{
			Field:   "control.rate_limit",
			Value:   c.Control.RateLimit,
			Message: "must be non-negative",
		})
	}

	return errors
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	// Validate log level
	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	// Max size must be positive
	if c.Logging.MaxSizeMB <= 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be positive",
		})
	}

	// Reasonable upper bound for log file size
	const maxLogSizeMB = 1000 // 1GB
	if c.Logging.MaxSizeMB > maxLogSizeMB {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: fmt.Sprintf("exceeds maximum of %dMB", maxLogSizeMB),
		})
	}

	// Max backups must be non-negative
	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	return errors
}
