// Package logging provides structured logging for toolrunner with
// per-module log levels and an append-only sink for raw tool output.
//
// # Usage
//
// Initialize once at startup:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",
//		Format: "text",
//		Modules: map[string]string{
//			"supervisor": "debug",
//			"relay":      "info",
//		},
//	})
//
// Get a logger for your module:
//
//	logger := logging.GetLogger("supervisor")
//	logger.Info("Process started", "pid", pid)
//
// # Output Destinations
//
// Records fan out to every available destination:
//
//	stdout   - text or JSON, when stdout is a terminal, pipe, socket or file
//	journal  - when journald is reachable ([github.com/coreos/go-systemd/v22/journal.Enabled])
//	buffer   - always; backs GET /api/logs and the SSE stream
//
// # Tool Output
//
// Child process output does not go through slog. [OutputLog] receives
// every line in arrival order, writes it verbatim to its writer and keeps
// it in its own ring buffer.
//
// Levels can be changed at runtime with [UpdateLevels]; the config watcher
// calls it when the TOML file changes:
//
//	[logging]
//	level = "info"
//	format = "text"
//	supervisor = "debug"
package logging
