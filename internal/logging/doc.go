// Package logging provides structured logging with per-module log level configuration.
//
// # Overview
//
// The logging system uses Go's slog package with automatic output routing:
//   - Logs to systemd journal when available (Linux systems with journald)
//   - Logs to stdout when a terminal, pipe, or file is connected
//   - Logs to both when both are available
//
// # Usage
//
// Initialize the logging system once at startup:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",      // Global log level: debug, info, warn, error
//		Format: "text",      // Output format: text or json
//		Modules: map[string]string{
//			"pipeline": "debug", // Per-module overrides
//			"runtime":  "warn",
//		},
//	})
//
// Get a logger for your module:
//
//	logger := logging.GetLogger("mymodule")
//	logger.Info("Starting up", "port", 8080)
//	logger.Debug("Details", "config", cfg)
//	logger.Warn("Something unusual", "error", err)
//	logger.Error("Failed", "error", err)
//
// Add contextual attributes:
//
//	logger := logging.GetLogger("lifecycle").With("input", path)
//	logger.Info("device reopened")  // Includes input in all logs
//
// # Log Levels
//
//	debug - Verbose debugging information
//	info  - General operational messages
//	warn  - Warning conditions
//	error - Error conditions
//
// # Output Destinations
//
// The system automatically detects available outputs and always adds a
// BufferHandler for the in-memory ring buffer, so the result is a
// MultiHandler over:
//
//	Journal available + stdout available → stdout, JournalHandler, BufferHandler
//	Journal available only              → JournalHandler, BufferHandler
//	Stdout available only               → TextHandler or JSONHandler, BufferHandler
//
// Journal availability is checked via [github.com/coreos/go-systemd/v22/journal.Enabled].
//
// # Viewing Logs
//
// When running as a systemd service or on a system with journald:
//
//	journalctl -t evsieve              # All evsieve logs
//	journalctl -t evsieve -f           # Follow live
//	journalctl -t evsieve --since "5m" # Last 5 minutes
//	journalctl -t evsieve -p err       # Errors only
//
// Filter by structured fields:
//
//	journalctl -t evsieve MODULE=pipeline
//
// # Configuration
//
// Log levels can be set globally or per-module. Module-specific levels
// override the global level for that module only.
//
// Example TOML configuration:
//
//	[logging]
//	level = "info"
//	format = "text"
//
//	[logging.modules]
//	pipeline = "debug"
//	runtime  = "warn"
//	devio    = "error"
//
// # Recent-history dump
//
// GetBuffer returns a ring buffer of the most recent log entries.
// main.go dumps it on a fatal startup error so a short-lived evsieve
// invocation still surfaces what it logged right before exiting, even
// when stdout carries pipeline output instead of logs.
package logging
