// Package logging builds slog loggers with shuttle's console and JSON
// handlers and exposes the standardized structured field names used across
// the daemon and CLI.
package logging
