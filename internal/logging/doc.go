// Package logging provides structured logging for lanlink.
//
// This package wraps a zap logger with convenience functions for the patterns
// used throughout the command channel and discovery code.
//
// # Log Levels
//
//   - Debug: payload dumps (outbound commands, inbound chunks), per-host probe results
//   - Info: connection lifecycle, sweep summaries
//   - Warn: dropped commands, neighbor cache failures during a sweep
//   - Error: startup failures
//
// # Configuration
//
// Logging is silent unless a level is given explicitly or through the
// LANLINK_LOG_LEVEL environment variable:
//
//	if err := logging.Initialize("debug"); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// Output goes to stderr so that stdout stays usable for command output and the
// interactive console.
//
// # Injected Loggers
//
// Long-lived components take a *zap.Logger in their constructors. A nil logger
// falls back to the global one through Or:
//
//	logger := logging.Or(cfg.Logger).Named("dispatch")
//
// # Thread Safety
//
// All logging functions are safe for concurrent use.
package logging
