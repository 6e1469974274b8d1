package queue

import "errors"

// ErrNotFound is returned when an operation references an unknown item id.
var ErrNotFound = errors.New("queue item not found")

// ErrIllegalTransition is returned when a status update would violate the
// item lifecycle DAG.
var ErrIllegalTransition = errors.New("illegal status transition")
