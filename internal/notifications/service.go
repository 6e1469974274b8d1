package notifications

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"shuttle/internal/config"
	"shuttle/internal/logging"
)

const userAgent = "Shuttle-Go/0.1.0"

// Level is the urgency class of a notification.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

func (l Level) urgency() int {
	if l == LevelError {
		return 1
	}
	return 0
}

// Note is one formatted notification ready for delivery.
type Note struct {
	Title    string
	Message  string
	Tags     []string
	Priority string
}

// Sink delivers formatted notes to the operator channel.
type Sink interface {
	Deliver(ctx context.Context, note Note) error
}

// Service applies the throttling policy in front of a sink. The first
// notification inside a throttle window is delivered immediately; later
// ones of the same or lower urgency are queued until Flush. Nothing is
// dropped, only delayed.
type Service struct {
	sink   Sink
	logger *slog.Logger
	posts  bool
	errors bool
	window time.Duration

	mu            sync.Mutex
	windowStart   time.Time
	windowUrgency int
	queued        []Note

	now func() time.Time
}

// NewService builds a notification service backed by ntfy when a topic is
// configured, and a discarding sink otherwise.
func NewService(cfg *config.Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}

	var sink Sink = noopSink{}
	if topic := strings.TrimSpace(cfg.Notifications.NtfyTopic); topic != "" {
		timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		sink = &ntfySink{
			endpoint: topic,
			client:   &http.Client{Timeout: timeout},
		}
	}

	return &Service{
		sink:   sink,
		logger: logging.NewComponentLogger(logger, "notifications"),
		posts:  cfg.Notifications.Posts,
		errors: cfg.Notifications.Errors,
		window: time.Duration(cfg.Notifications.ThrottleWindowSeconds) * time.Second,
		now:    time.Now,
	}
}

// Send submits a notification. It returns nil when the note was queued by
// the throttle rather than delivered.
func (s *Service) Send(ctx context.Context, level Level, message string) error {
	note := Note{
		Title:   "Shuttle - " + titleFor(level),
		Message: message,
		Tags:    []string{"shuttle", string(level)},
	}
	if level == LevelError {
		note.Priority = "high"
	}
	return s.submit(ctx, level, note)
}

func (s *Service) submit(ctx context.Context, level Level, note Note) error {
	s.mu.Lock()
	now := s.now()
	inWindow := s.window > 0 && !s.windowStart.IsZero() && now.Sub(s.windowStart) < s.window
	if inWindow && level.urgency() <= s.windowUrgency {
		s.queued = append(s.queued, note)
		queued := len(s.queued)
		s.mu.Unlock()
		s.logger.Debug("notification throttled",
			logging.String("level", string(level)),
			logging.Int("queued", queued))
		return nil
	}
	if !inWindow {
		s.windowStart = now
	}
	s.windowUrgency = level.urgency()
	s.mu.Unlock()

	return s.sink.Deliver(ctx, note)
}

// Flush delivers every queued notification in FIFO order and clears the
// queue. It returns the number delivered; a delivery failure re-queues the
// remainder so nothing is lost.
func (s *Service) Flush(ctx context.Context) (int, error) {
	s.mu.Lock()
	pending := s.queued
	s.queued = nil
	s.mu.Unlock()

	for i, note := range pending {
		if err := s.sink.Deliver(ctx, note); err != nil {
			s.mu.Lock()
			s.queued = append(pending[i:], s.queued...)
			s.mu.Unlock()
			return i, err
		}
	}
	return len(pending), nil
}

// QueuedCount reports how many notifications the throttle is holding.
func (s *Service) QueuedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queued)
}

// Alert delivers an admin alert immediately, bypassing the throttle.
func (s *Service) Alert(ctx context.Context, message string) error {
	return s.sink.Deliver(ctx, Note{
		Title:    "Shuttle - Admin Alert",
		Message:  message,
		Tags:     []string{"shuttle", "alert", "admin"},
		Priority: "high",
	})
}

// NotifyPostScheduled announces a successful dispatch when post
// notifications are enabled.
func (s *Service) NotifyPostScheduled(ctx context.Context, itemID, platform string) error {
	if !s.posts {
		return nil
	}
	return s.Send(ctx, LevelSuccess, fmt.Sprintf("Post scheduled on %s (item %s)", platform, itemID))
}

// NotifyPostFailed announces a failed dispatch when error notifications
// are enabled.
func (s *Service) NotifyPostFailed(ctx context.Context, itemID string, cause error) error {
	if !s.errors {
		return nil
	}
	message := fmt.Sprintf("Post failed (item %s)", itemID)
	if cause != nil {
		message = fmt.Sprintf("%s: %s", message, strings.TrimSpace(cause.Error()))
	}
	return s.Send(ctx, LevelError, message)
}

// Test pushes a low-priority check note straight to the sink.
func (s *Service) Test(ctx context.Context) error {
	return s.sink.Deliver(ctx, Note{
		Title:    "Shuttle - Test",
		Message:  "Notification system test",
		Tags:     []string{"shuttle", "test"},
		Priority: "low",
	})
}

func titleFor(level Level) string {
	if level == LevelError {
		return "Error"
	}
	return "Posted"
}

type ntfySink struct {
	endpoint string
	client   *http.Client
}

func (n *ntfySink) Deliver(ctx context.Context, note Note) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(note.Message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if note.Title != "" {
		req.Header.Set("Title", note.Title)
	}
	if len(note.Tags) > 0 {
		req.Header.Set("Tags", strings.Join(note.Tags, ","))
	}
	if note.Priority != "" && note.Priority != "default" {
		req.Header.Set("Priority", note.Priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopSink struct{}

func (noopSink) Deliver(context.Context, Note) error { return nil }
