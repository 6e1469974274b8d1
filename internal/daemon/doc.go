// Package daemon coordinates the long-running Shuttle process.
//
// It wires configuration, queue storage, the posting scheduler, monitoring,
// and notifications into a single lifecycle with flock-based locking to
// prevent multiple instances. The daemon also serves the authenticated
// operator API: queue inspection and enqueue, audit logs, manual overrides,
// real-time monitoring, and Prometheus metrics.
//
// Keep orchestration logic here: dispatch mechanics live in the scheduler
// package while the daemon focuses on startup, shutdown, and the operator
// surface.
package daemon
