// Package logging provides structured logging for the haunt daemon.
//
// This package wraps Go's log/slog to provide JSON-formatted logs with
// persistent context attributes. The daemon writes a single log file that
// can be filtered after the fact with the `haunt logs` command.
//
// # Features
//
//   - JSON-formatted structured logging via slog
//   - Configurable log levels (TRACE, DEBUG, INFO, WARN, ERROR)
//   - Context propagation (run ID, component)
//   - Log rotation with configurable size limits
//   - Optional gzip compression for rotated logs
//   - Reading and filtering utilities for the JSON log file
//
// # Thread Safety
//
// All types in this package are safe for concurrent use. Child loggers
// created via With* methods share the underlying writer.
//
// # Basic Usage
//
//	logger, err := logging.NewLogger(logging.Options{
//	    Dir:      "/home/me/.local/state/haunt",
//	    Level:    "INFO",
//	    Rotation: logging.DefaultRotationConfig(),
//	})
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	engineLog := logger.WithRun(runID).WithComponent("engine")
//	engineLog.Info("lifecycle transition", "from", "HIDDEN", "to", "ENGAGED")
//
// Output:
//
//	{"time":"...","level":"INFO","msg":"lifecycle transition","run_id":"...","component":"engine","from":"HIDDEN","to":"ENGAGED"}
//
// # Trace Level
//
// TRACE sits below DEBUG. It is used for events that are expected and
// silently discarded, such as results from superseded sessions, so that
// they can be surfaced when chasing an ordering bug without flooding
// ordinary debug output.
//
// # Reading Logs
//
//	entries, err := logging.ReadEntries(path)
//	entries = logging.FilterEntries(entries, logging.EntryFilter{
//	    Level:     "WARN",
//	    Component: "engine",
//	})
package logging
