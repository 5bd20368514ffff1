// Package logging provides structured logging for the wifiboot daemon.
//
// This package wraps a zap logger with convenience functions for the logging
// patterns used across the bring-up sequence: connection state transitions,
// control-plane HTTP requests and raw configuration payloads.
//
// # Log Levels
//
//   - Debug: payload hex dumps, individual network-stack events
//   - Info: state transitions, server start, handled requests
//   - Warn: retries, degraded server, storage fallbacks
//   - Error: connection exhaustion, restart, start failures
//
// # Configuration
//
// Initialize logging at startup:
//
//	if err := logging.Initialize("debug"); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// An empty level falls back to the WIFIBOOT_LOG_LEVEL environment variable,
// and if that is also empty the logger is a no-op.
//
// # Thread Safety
//
// All logging functions are safe for concurrent use. Initialize and SetLogger
// are meant to be called once before other goroutines start.
package logging
