package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	gobreaker "github.com/sony/gobreaker/v2"

	"shuttle/internal/logging"
	"shuttle/internal/poster"
	"shuttle/internal/queue"
	"shuttle/internal/retry"
)

// CycleStats summarizes one dispatch cycle.
type CycleStats struct {
	CycleID   string
	Fetched   int
	Scheduled int
	Failed    int
	Duration  time.Duration
}

// ProcessQueue runs one dispatch cycle: fetch the due batch, submit each
// item concurrently under the worker limit, and record outcomes. One item's
// failure never aborts its siblings. Cycles are serialized; a concurrent
// invocation waits for the in-flight cycle and then fetches whatever work
// remains.
func (s *Scheduler) ProcessQueue(ctx context.Context) (CycleStats, error) {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()

	start := time.Now()
	stats := CycleStats{CycleID: uuid.NewString()}
	logger := s.logger.With(logging.String(logging.FieldCycleID, stats.CycleID))

	items, err := s.store.NextBatch(ctx, s.cfg.Dispatch.BatchSize, time.Now().UTC(), s.cfg.Dispatch.DueOnly)
	if err != nil {
		return stats, fmt.Errorf("fetch batch: %w", err)
	}
	stats.Fetched = len(items)
	if len(items) == 0 {
		s.markCycle()
		s.observeQueueDepth(ctx, logger)
		s.flushNotifications(ctx, logger)
		return stats, nil
	}

	logger.Info("dispatch cycle started", logging.Int("items", len(items)))

	workers := s.cfg.Dispatch.Workers
	if workers <= 0 {
		workers = 1
	}
	sem := make(chan struct{}, workers)

	var (
		wg      sync.WaitGroup
		statsMu sync.Mutex
	)
	for _, item := range items {
		select {
		case <-ctx.Done():
			wg.Wait()
			return stats, ctx.Err()
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(item *queue.Item) {
			defer wg.Done()
			defer func() { <-sem }()

			scheduled := s.processItem(ctx, logger, item)
			statsMu.Lock()
			if scheduled {
				stats.Scheduled++
			} else {
				stats.Failed++
			}
			statsMu.Unlock()
		}(item)
	}
	wg.Wait()

	stats.Duration = time.Since(start)
	s.markCycle()
	s.observeQueueDepth(ctx, logger)
	s.flushNotifications(ctx, logger)

	logger.Info("dispatch cycle finished",
		logging.Int("scheduled", stats.Scheduled),
		logging.Int("failed", stats.Failed),
		logging.Duration("duration", stats.Duration))
	return stats, nil
}

// processItem submits one item to every target platform. It reports whether
// the item ended up scheduled. Outcomes are always persisted before the
// monitor and notifier hear about them.
func (s *Scheduler) processItem(ctx context.Context, logger *slog.Logger, item *queue.Item) bool {
	itemLogger := logger.With(logging.String(logging.FieldItemID, item.ID))

	content := poster.Content{
		ID:          item.ID,
		Body:        item.Content,
		Caption:     item.Caption,
		Hashtags:    poster.NormalizeHashtags(item.Hashtags),
		ScheduledAt: item.ScheduledAt,
	}

	postIDs := make(map[string]string, len(item.Platforms))
	var dispatchErr error
	for _, platform := range item.Platforms {
		postID, err := s.dispatch(ctx, platform, content)
		if err != nil {
			dispatchErr = fmt.Errorf("%s: %w", platform, err)
			break
		}
		postIDs[platform] = postID
	}

	item.Attempts++
	if item.PostIDs == nil {
		item.PostIDs = make(map[string]string)
	}
	for platform, id := range postIDs {
		item.PostIDs[platform] = id
	}

	if dispatchErr != nil {
		item.ErrorMessage = dispatchErr.Error()
		if err := s.persistOutcome(ctx, item, queue.StatusFailed); err != nil {
			itemLogger.Error("failed to persist failure", logging.Error(err))
			return false
		}
		itemLogger.Warn("item failed",
			logging.Error(dispatchErr),
			logging.String(logging.FieldEventType, "post_failed"))
		s.monitor.RecordFailure(ctx)
		if err := s.notifier.NotifyPostFailed(ctx, item.ID, dispatchErr); err != nil {
			itemLogger.Warn("failure notification not delivered", logging.Error(err))
		}
		return false
	}

	item.ErrorMessage = ""
	if err := s.persistOutcome(ctx, item, queue.StatusScheduled); err != nil {
		itemLogger.Error("failed to persist success", logging.Error(err))
		s.monitor.RecordFailure(ctx)
		return false
	}
	itemLogger.Info("item scheduled",
		logging.String("platforms", strings.Join(item.Platforms, ",")),
		logging.String(logging.FieldEventType, "post_scheduled"))
	s.monitor.RecordSuccess(ctx)
	if err := s.notifier.NotifyPostScheduled(ctx, item.ID, strings.Join(item.Platforms, ",")); err != nil {
		itemLogger.Warn("success notification not delivered", logging.Error(err))
	}
	return true
}

// persistOutcome writes side fields first, then the status transition, so a
// crash between the two leaves the item pending and re-dispatchable rather
// than torn.
func (s *Scheduler) persistOutcome(ctx context.Context, item *queue.Item, status queue.Status) error {
	if err := s.store.Update(ctx, item); err != nil {
		return err
	}
	if err := s.store.UpdateStatus(ctx, item.ID, status); err != nil {
		return err
	}
	item.Status = status
	return nil
}

// dispatch validates and schedules content on one platform, applying the
// per-platform circuit breaker and transient-failure retry policy.
func (s *Scheduler) dispatch(ctx context.Context, platform string, content poster.Content) (string, error) {
	p, err := s.registry.Get(platform)
	if err != nil {
		return "", err
	}
	if err := p.ValidateContent(ctx, content); err != nil {
		return "", err
	}

	breaker := s.breakerFor(platform)
	var postID string
	err = retry.Do(ctx, s.policy, func(ctx context.Context) error {
		id, execErr := breaker.Execute(func() (string, error) {
			return p.SchedulePost(ctx, content)
		})
		if execErr != nil {
			return execErr
		}
		postID = id
		return nil
	})
	if err != nil {
		return "", err
	}
	return postID, nil
}

func (s *Scheduler) breakerFor(platform string) *gobreaker.CircuitBreaker[string] {
	s.breakerMu.Lock()
	defer s.breakerMu.Unlock()
	if breaker, ok := s.breakers[platform]; ok {
		return breaker
	}

	trips := uint32(s.cfg.Dispatch.BreakerTrips)
	if trips == 0 {
		trips = 5
	}
	breaker := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:    "poster." + platform,
		Timeout: s.interval,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= trips
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			s.logger.Warn("circuit breaker state changed",
				logging.String("breaker", name),
				logging.String("from", from.String()),
				logging.String("to", to.String()))
		},
	})
	s.breakers[platform] = breaker
	return breaker
}

// flushNotifications delivers notes the throttle window held back.
func (s *Scheduler) flushNotifications(ctx context.Context, logger *slog.Logger) {
	if s.notifier.QueuedCount() == 0 {
		return
	}
	delivered, err := s.notifier.Flush(ctx)
	if err != nil {
		logger.Warn("notification flush incomplete", logging.Error(err))
	}
	if delivered > 0 {
		logger.Debug("queued notifications delivered", logging.Int("count", delivered))
	}
}

// observeQueueDepth refreshes the health classification after a cycle.
func (s *Scheduler) observeQueueDepth(ctx context.Context, logger *slog.Logger) {
	health, err := s.store.Health(ctx)
	if err != nil {
		logger.Warn("queue health read failed", logging.Error(err))
		return
	}
	state := s.monitor.CheckQueueHealth(health.Pending)
	logger.Debug("queue depth observed",
		logging.Int("pending", health.Pending),
		logging.String("health", string(state)))
}
