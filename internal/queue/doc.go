// Package queue persists schedulable content items in SQLite and owns
// their status state machine.
package queue
