// Command shuttle is the operator CLI for the Shuttle auto-posting daemon.
// It manages the content queue, credentials, and the daemon lifecycle, and
// talks to a running daemon over its authenticated HTTP API with direct
// store access as the offline fallback.
package main
