package api

import (
	"time"

	"shuttle/internal/queue"
)

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// QueueItem describes a queue entry in a transport-friendly format.
type QueueItem struct {
	ID           string            `json:"id"`
	Content      string            `json:"content"`
	Platforms    []string          `json:"platforms"`
	Caption      string            `json:"caption,omitempty"`
	Hashtags     []string          `json:"hashtags,omitempty"`
	ScheduledAt  string            `json:"scheduledAt"`
	Status       string            `json:"status"`
	ErrorMessage string            `json:"errorMessage,omitempty"`
	PostIDs      map[string]string `json:"postIds,omitempty"`
	Attempts     int               `json:"attempts"`
	CreatedAt    string            `json:"createdAt,omitempty"`
	UpdatedAt    string            `json:"updatedAt,omitempty"`
}

// FromQueueItem converts an internal queue item to its DTO.
func FromQueueItem(item *queue.Item) QueueItem {
	return QueueItem{
		ID:           item.ID,
		Content:      item.Content,
		Platforms:    item.Platforms,
		Caption:      item.Caption,
		Hashtags:     item.Hashtags,
		ScheduledAt:  formatTime(item.ScheduledAt),
		Status:       string(item.Status),
		ErrorMessage: item.ErrorMessage,
		PostIDs:      item.PostIDs,
		Attempts:     item.Attempts,
		CreatedAt:    formatTime(item.CreatedAt),
		UpdatedAt:    formatTime(item.UpdatedAt),
	}
}

// FromQueueItems converts a slice of queue items.
func FromQueueItems(items []*queue.Item) []QueueItem {
	if len(items) == 0 {
		return nil
	}
	out := make([]QueueItem, 0, len(items))
	for _, item := range items {
		out = append(out, FromQueueItem(item))
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

// QueueListResponse wraps the queue listing endpoint payload.
type QueueListResponse struct {
	Items []QueueItem    `json:"items"`
	Stats map[string]int `json:"stats,omitempty"`
}

// QueueItemResponse wraps a single queue item payload.
type QueueItemResponse struct {
	Item QueueItem `json:"item"`
}

// EnqueueRequest is the payload accepted by POST /api/queue.
type EnqueueRequest struct {
	Content     string   `json:"content"`
	Platforms   []string `json:"platforms"`
	Caption     string   `json:"caption,omitempty"`
	Hashtags    []string `json:"hashtags,omitempty"`
	ScheduledAt string   `json:"scheduledAt,omitempty"`
}

// EnqueueResponse returns the generated item id.
type EnqueueResponse struct {
	ID string `json:"id"`
}

// SchedulerStatus mirrors the dispatch loop state.
type SchedulerStatus struct {
	Running   bool   `json:"running"`
	Paused    bool   `json:"paused"`
	Cycles    uint64 `json:"cycles"`
	LastCycle string `json:"lastCycle,omitempty"`
	LastError string `json:"lastError,omitempty"`
}

// DaemonStatus is the payload for GET /api/status.
type DaemonStatus struct {
	Running      bool            `json:"running"`
	PID          int             `json:"pid"`
	Scheduler    SchedulerStatus `json:"scheduler"`
	QueueDBPath  string          `json:"queueDbPath"`
	LockFilePath string          `json:"lockFilePath"`
}

// QueueHealth carries per-status counts for the monitoring payload.
type QueueHealth struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Scheduled int `json:"scheduled"`
	Posted    int `json:"posted"`
	Failed    int `json:"failed"`
}

// OutcomeWindow describes the recent success/failure window.
type OutcomeWindow struct {
	Successes   int     `json:"successes"`
	Failures    int     `json:"failures"`
	WindowSize  int     `json:"windowSize"`
	Anomalous   bool    `json:"anomalous"`
	FailureRate float64 `json:"failureRate"`
}

// MonitoringResponse is the payload for GET /api/monitoring.
type MonitoringResponse struct {
	Health    string          `json:"health"`
	Queue     QueueHealth     `json:"queue"`
	Window    OutcomeWindow   `json:"window"`
	Scheduler SchedulerStatus `json:"scheduler"`
}

// OverrideRequest is the payload for POST /api/override.
type OverrideRequest struct {
	Action string `json:"action"`
	ItemID string `json:"itemId,omitempty"`
}

// OverrideResponse reports the result of a manual override.
type OverrideResponse struct {
	Action    string `json:"action"`
	Retried   int64  `json:"retried,omitempty"`
	Fetched   int    `json:"fetched,omitempty"`
	Scheduled int    `json:"scheduled,omitempty"`
	Failed    int    `json:"failed,omitempty"`
}

// AuditEntry is one audit-log record.
type AuditEntry struct {
	Seq       int64  `json:"seq"`
	Timestamp string `json:"timestamp"`
	Action    string `json:"action"`
	User      string `json:"user,omitempty"`
	Details   string `json:"details,omitempty"`
}

// LogsResponse is the payload for GET /api/logs.
type LogsResponse struct {
	Entries []AuditEntry `json:"entries"`
	Intact  bool         `json:"intact"`
}
