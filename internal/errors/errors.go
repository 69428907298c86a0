// Package errors provides centralized error definitions and error handling utilities
// for haunt. It defines sentinel errors grouped by subsystem, typed errors that carry
// orchestration context, and classification helpers used by the daemon's top-level
// shutdown path.
//
// # Error Classes
//
// The orchestration engine distinguishes five classes of failure:
//   - Guard rejection: an event arrived but a guard blocked it. Not an error value at all.
//   - Illegal transition: TransitionError wrapping ErrIllegalTransition.
//   - Collaborator failure: CollaboratorError, surfaced as a task outcome and degraded
//     to a fallback behavior by the engine.
//   - Stale result: ErrStaleSession, dropped silently.
//   - Fatal initialization failure: InitError, which terminates the process.
//
// # Usage
//
//	err := errors.NewInitError("timer registry", errors.ErrTimerInit)
//	if errors.IsFatal(err) { ... }
//
//	var te *errors.TransitionError
//	if errors.As(err, &te) { ... }
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for conditions worth tracing but not reporting.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for caller bugs the process survives.
	SeverityWarning
	// SeverityError is for collaborator failures.
	SeverityError
	// SeverityCritical terminates the process.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Lifecycle-related sentinel errors
var (
	// ErrIllegalTransition indicates a target state outside the allowed-successor set.
	ErrIllegalTransition = New("illegal lifecycle transition")
	// ErrUnknownState indicates a state name that could not be parsed.
	ErrUnknownState = New("unknown lifecycle state")
)

// Engine-related sentinel errors
var (
	// ErrEngineStopped indicates a signal was posted after the engine shut down.
	ErrEngineStopped = New("engine stopped")
	// ErrMissingCollaborator indicates a required collaborator was not supplied.
	ErrMissingCollaborator = New("missing collaborator")
	// ErrTimerInit indicates the timer registry could not be created.
	ErrTimerInit = New("timer registry initialization failed")
	// ErrUnknownCommand indicates a command that matched no action.
	ErrUnknownCommand = New("unknown command")
)

// Session and task sentinel errors
var (
	// ErrStaleSession indicates a result whose session is no longer current.
	ErrStaleSession = New("stale session")
	// ErrThrottled indicates a task start was denied by the rate limiter.
	ErrThrottled = New("task throttled")
	// ErrTaskPanicked indicates a task recovered from a panic.
	ErrTaskPanicked = New("task panicked")
)

// Audio sentinel errors
var (
	// ErrDispatcherClosed indicates a submit after the dispatcher was closed.
	ErrDispatcherClosed = New("audio dispatcher closed")
	// ErrPlaybackFailed indicates the player could not render a request.
	ErrPlaybackFailed = New("audio playback failed")
)

// Asset sentinel errors
var (
	// ErrInvalidTrajectory indicates a trajectory file failed validation.
	ErrInvalidTrajectory = New("invalid trajectory")
	// ErrInvalidScript indicates a script catalog entry failed validation.
	ErrInvalidScript = New("invalid script")
)

// Configuration sentinel errors
var (
	// ErrInvalidConfig indicates a configuration file that failed validation.
	ErrInvalidConfig = New("invalid configuration")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// HauntError is the base interface for all typed haunt errors.
type HauntError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Severity returns the severity level of this error.
	Severity() Severity
}

// baseError provides common functionality for all error types.
type baseError struct {
	message  string
	cause    error
	severity Severity
}

func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

func (e *baseError) Unwrap() error {
	return e.cause
}

func (e *baseError) Severity() Severity {
	return e.severity
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// TransitionError reports a rejected lifecycle transition.
//
// Example:
//
//	err := errors.NewTransitionError("HIDDEN", "FLEEING")
//	fmt.Println(err) // "illegal transition HIDDEN -> FLEEING: illegal lifecycle transition"
type TransitionError struct {
	baseError
	From string
	To   string
}

// NewTransitionError creates a TransitionError wrapping ErrIllegalTransition.
func NewTransitionError(from, to string) *TransitionError {
	return &TransitionError{
		baseError: baseError{
			message:  fmt.Sprintf("illegal transition %s -> %s", from, to),
			cause:    ErrIllegalTransition,
			severity: SeverityWarning,
		},
		From: from,
		To:   to,
	}
}

// InitError reports a component that could not be constructed. The engine
// cannot run without it, so it is always critical.
type InitError struct {
	baseError
	Component string
}

// NewInitError creates a new InitError for the named component.
func NewInitError(component string, cause error) *InitError {
	return &InitError{
		baseError: baseError{
			message:  "failed to initialize " + component,
			cause:    cause,
			severity: SeverityCritical,
		},
		Component: component,
	}
}

// ConfigError reports a configuration file that could not be loaded or
// validated. A bad reload is not fatal: the daemon keeps the last good
// configuration.
type ConfigError struct {
	baseError
	Path string
}

// NewConfigError creates a ConfigError for the file at path.
func NewConfigError(path string, cause error) *ConfigError {
	msg := "configuration error"
	if path != "" {
		msg = "configuration error in " + path
	}
	return &ConfigError{
		baseError: baseError{
			message:  msg,
			cause:    cause,
			severity: SeverityError,
		},
		Path: path,
	}
}

// CollaboratorError represents a failure inside an external collaborator
// (audio player, vision source, commentary backend).
type CollaboratorError struct {
	baseError
	Collaborator string
	Op           string
}

// NewCollaboratorError creates a new CollaboratorError.
func NewCollaboratorError(collaborator, op string, cause error) *CollaboratorError {
	return &CollaboratorError{
		baseError: baseError{
			message:  op + " failed",
			cause:    cause,
			severity: SeverityError,
		},
		Collaborator: collaborator,
		Op:           op,
	}
}

// Error returns the formatted error message.
func (e *CollaboratorError) Error() string {
	var parts []string
	if e.Collaborator != "" {
		parts = append(parts, "collaborator="+e.Collaborator)
	}
	prefix := "collaborator error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("collaborator error [%s]", strings.Join(parts, ", "))
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// -----------------------------------------------------------------------------
// Classification Helpers
// -----------------------------------------------------------------------------

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement HauntError.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}

	var hauntErr HauntError
	if As(err, &hauntErr) {
		return hauntErr.Severity()
	}

	if Is(err, ErrStaleSession) {
		return SeverityDebug
	}
	return SeverityError
}

// IsFatal reports whether err must terminate the process.
func IsFatal(err error) bool {
	return err != nil && GetSeverity(err) == SeverityCritical
}

// Wrap wraps an error with additional context message.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
