// Package notifications delivers operational events via pluggable sinks.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and gracefully degrades to a no-op when notifications are
// disabled. A throttle window in front of the sink keeps alert storms at bay:
// the first notification in a window goes out immediately, the rest queue
// until Flush, and nothing is ever dropped.
//
// Extend this package if you need alternative transports; callers depend only
// on the Service type and the Sink interface.
package notifications
