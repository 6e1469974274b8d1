// Package api defines wire-format types and converters for the operator
// HTTP API. It translates internal queue, monitor, and scheduler state into
// transport-friendly DTOs so dashboard consumers never couple to internal
// types.
//
// DTOs use camelCase JSON tags for JavaScript/TypeScript consumers. Internal
// enums (queue.Status, monitor.HealthState) are exposed as lowercase
// strings. Timestamps use RFC3339 with milliseconds.
package api
