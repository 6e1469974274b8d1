package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a queue item.
type Status string

const (
	StatusPending   Status = "pending"
	StatusScheduled Status = "scheduled"
	StatusPosted    Status = "posted"
	StatusFailed    Status = "failed"
)

var allStatuses = []Status{
	StatusPending,
	StatusScheduled,
	StatusPosted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// legalTransitions encodes the status DAG. Failed items may be returned to
// pending only through the operator retry path, which is listed here because
// it is a real edge the store must accept.
var legalTransitions = map[Status][]Status{
	StatusPending:   {StatusScheduled, StatusFailed},
	StatusScheduled: {StatusPosted, StatusFailed},
	StatusFailed:    {StatusPending},
}

// CanTransition reports whether moving from one status to another is legal.
func CanTransition(from, to Status) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// Item represents a queue item persisted in SQLite.
type Item struct {
	ID           string
	Content      string
	Platforms    []string
	Caption      string
	Hashtags     []string
	ScheduledAt  time.Time
	Status       Status
	ErrorMessage string
	// PostIDs maps platform name to the remote post identifier returned by
	// that platform's adapter.
	PostIDs   map[string]string
	Attempts  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewItem describes a content item prior to enqueueing. The store assigns
// identity and initial status.
type NewItem struct {
	Content     string
	Platforms   []string
	Caption     string
	Hashtags    []string
	ScheduledAt time.Time
}

// IsTerminal reports whether the item has reached a final posting outcome.
func (i Item) IsTerminal() bool {
	return i.Status == StatusPosted
}

// SetFailed marks the item as failed with the given error message.
func (i *Item) SetFailed(message string) {
	i.Status = StatusFailed
	i.ErrorMessage = message
}

// HealthSummary describes aggregated queue counts per lifecycle state.
type HealthSummary struct {
	Total     int
	Pending   int
	Scheduled int
	Posted    int
	Failed    int
}
