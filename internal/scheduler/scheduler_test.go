package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"shuttle/internal/config"
	"shuttle/internal/monitor"
	"shuttle/internal/notifications"
	"shuttle/internal/poster"
	"shuttle/internal/queue"
	"shuttle/internal/services"
	"shuttle/internal/testsupport"
)

type fakePoster struct {
	platform      string
	validateErr   error
	transientLeft atomic.Int32
	scheduleCalls atomic.Int32
}

func (f *fakePoster) Platform() string { return f.platform }

func (f *fakePoster) ValidateContent(context.Context, poster.Content) error {
	return f.validateErr
}

func (f *fakePoster) SchedulePost(_ context.Context, content poster.Content) (string, error) {
	f.scheduleCalls.Add(1)
	if f.transientLeft.Load() > 0 {
		f.transientLeft.Add(-1)
		return "", services.Wrap(services.ErrTransient, "poster."+f.platform, "schedule", "platform unavailable", nil)
	}
	return f.platform + "-post-" + content.ID, nil
}

func (f *fakePoster) PostStatus(context.Context, string) (poster.PostStatus, error) {
	return poster.PostStatus{State: poster.PostScheduled}, nil
}

type fixture struct {
	cfg       *config.Config
	store     *queue.Store
	registry  *poster.Registry
	monitor   *monitor.Service
	scheduler *Scheduler
}

func newFixture(t *testing.T, posters ...poster.Poster) *fixture {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	cfg.Dispatch.RetryBaseMS = 1
	store := testsupport.MustOpenStore(t, cfg)

	registry := poster.NewRegistry()
	for _, p := range posters {
		registry.Register(p)
	}

	mon := monitor.NewService(cfg, nil, nil)
	notifier := notifications.NewService(cfg, nil)
	return &fixture{
		cfg:       cfg,
		store:     store,
		registry:  registry,
		monitor:   mon,
		scheduler: New(cfg, store, registry, mon, notifier, nil),
	}
}

func TestProcessQueueSchedulesSuccessfulItem(t *testing.T) {
	fx := newFixture(t, &fakePoster{platform: "tiktok"})
	ctx := context.Background()

	item := testsupport.Enqueue(t, fx.store, "launch clip", "tiktok")

	stats, err := fx.scheduler.ProcessQueue(ctx)
	if err != nil {
		t.Fatalf("ProcessQueue: %v", err)
	}
	if stats.Fetched != 1 || stats.Scheduled != 1 || stats.Failed != 0 {
		t.Fatalf("stats = %+v", stats)
	}

	got, err := fx.store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != queue.StatusScheduled {
		t.Fatalf("status = %s, want scheduled", got.Status)
	}
	if got.PostIDs["tiktok"] == "" {
		t.Fatal("post id not recorded")
	}
	if got.Attempts != 1 {
		t.Fatalf("attempts = %d, want 1", got.Attempts)
	}

	health, err := fx.store.Health(ctx)
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if health.Pending != 0 {
		t.Fatalf("pending = %d, want 0 after dispatch", health.Pending)
	}
	if fx.monitor.DetectAnomalies() {
		t.Fatal("successful cycle must not be anomalous")
	}
}

func TestProcessQueueMarksValidationFailure(t *testing.T) {
	bad := &fakePoster{
		platform:    "tiktok",
		validateErr: services.Wrap(services.ErrValidation, "poster.tiktok", "validate", "body too long", nil),
	}
	fx := newFixture(t, bad)
	ctx := context.Background()

	item := testsupport.Enqueue(t, fx.store, "oversized clip", "tiktok")

	stats, err := fx.scheduler.ProcessQueue(ctx)
	if err != nil {
		t.Fatalf("ProcessQueue: %v", err)
	}
	if stats.Failed != 1 {
		t.Fatalf("stats = %+v, want 1 failure", stats)
	}

	got, err := fx.store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != queue.StatusFailed {
		t.Fatalf("status = %s, want failed", got.Status)
	}
	if got.ErrorMessage == "" {
		t.Fatal("error message not recorded")
	}
	if bad.scheduleCalls.Load() != 0 {
		t.Fatal("schedule must not run after validation fails")
	}
	if !fx.monitor.DetectAnomalies() {
		t.Fatal("recordFailure should have been invoked")
	}
}

func TestProcessQueueIsolatesItemFailures(t *testing.T) {
	fx := newFixture(t,
		&fakePoster{platform: "tiktok"},
		&fakePoster{
			platform:    "youtube",
			validateErr: services.Wrap(services.ErrValidation, "poster.youtube", "validate", "rejected", nil),
		},
	)
	ctx := context.Background()

	failing := testsupport.Enqueue(t, fx.store, "first", "youtube")
	healthy := testsupport.Enqueue(t, fx.store, "second", "tiktok")

	stats, err := fx.scheduler.ProcessQueue(ctx)
	if err != nil {
		t.Fatalf("ProcessQueue: %v", err)
	}
	if stats.Scheduled != 1 || stats.Failed != 1 {
		t.Fatalf("stats = %+v, want one of each", stats)
	}

	gotFailing, _ := fx.store.GetByID(ctx, failing.ID)
	gotHealthy, _ := fx.store.GetByID(ctx, healthy.ID)
	if gotFailing.Status != queue.StatusFailed {
		t.Fatalf("failing item status = %s", gotFailing.Status)
	}
	if gotHealthy.Status != queue.StatusScheduled {
		t.Fatalf("healthy item status = %s", gotHealthy.Status)
	}
}

func TestProcessQueueRetriesTransientFailures(t *testing.T) {
	flaky := &fakePoster{platform: "tiktok"}
	flaky.transientLeft.Store(2)
	fx := newFixture(t, flaky)
	ctx := context.Background()

	item := testsupport.Enqueue(t, fx.store, "flaky clip", "tiktok")

	if _, err := fx.scheduler.ProcessQueue(ctx); err != nil {
		t.Fatalf("ProcessQueue: %v", err)
	}

	got, _ := fx.store.GetByID(ctx, item.ID)
	if got.Status != queue.StatusScheduled {
		t.Fatalf("status = %s, want scheduled after retries", got.Status)
	}
	if calls := flaky.scheduleCalls.Load(); calls != 3 {
		t.Fatalf("schedule calls = %d, want 3 (two transient failures then success)", calls)
	}
}

func TestProcessQueueMultiPlatformPartialFailure(t *testing.T) {
	fx := newFixture(t,
		&fakePoster{platform: "tiktok"},
		&fakePoster{
			platform:    "instagram",
			validateErr: services.Wrap(services.ErrValidation, "poster.instagram", "validate", "rejected", nil),
		},
	)
	ctx := context.Background()

	item := testsupport.Enqueue(t, fx.store, "cross-post", "tiktok", "instagram")

	if _, err := fx.scheduler.ProcessQueue(ctx); err != nil {
		t.Fatalf("ProcessQueue: %v", err)
	}

	got, _ := fx.store.GetByID(ctx, item.ID)
	if got.Status != queue.StatusFailed {
		t.Fatalf("status = %s, want failed when any platform rejects", got.Status)
	}
	if got.PostIDs["tiktok"] == "" {
		t.Fatal("successful platform's post id should still be recorded")
	}
}

func TestProcessQueueLeavesDispatchedItemsAlone(t *testing.T) {
	p := &fakePoster{platform: "tiktok"}
	fx := newFixture(t, p)
	ctx := context.Background()

	testsupport.Enqueue(t, fx.store, "once only", "tiktok")

	if _, err := fx.scheduler.ProcessQueue(ctx); err != nil {
		t.Fatalf("first cycle: %v", err)
	}
	stats, err := fx.scheduler.ProcessQueue(ctx)
	if err != nil {
		t.Fatalf("second cycle: %v", err)
	}
	if stats.Fetched != 0 {
		t.Fatalf("second cycle fetched %d items, want 0", stats.Fetched)
	}
	if p.scheduleCalls.Load() != 1 {
		t.Fatalf("schedule calls = %d, want 1", p.scheduleCalls.Load())
	}
}

func TestDueOnlySkipsFutureItems(t *testing.T) {
	fx := newFixture(t, &fakePoster{platform: "tiktok"})
	ctx := context.Background()

	_, err := fx.store.Add(ctx, queue.NewItem{
		Content:     "tomorrow's clip",
		Platforms:   []string{"tiktok"},
		ScheduledAt: time.Now().UTC().Add(24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	stats, err := fx.scheduler.ProcessQueue(ctx)
	if err != nil {
		t.Fatalf("ProcessQueue: %v", err)
	}
	if stats.Fetched != 0 {
		t.Fatalf("fetched = %d, want future item withheld", stats.Fetched)
	}
}

func TestConcurrentCyclesDoNotDoubleDispatch(t *testing.T) {
	p := &fakePoster{platform: "tiktok"}
	fx := newFixture(t, p)
	ctx := context.Background()

	items := make([]*queue.Item, 3)
	for i := range items {
		items[i] = testsupport.Enqueue(t, fx.store, fmt.Sprintf("clip-%d", i), "tiktok")
	}

	var (
		wg             sync.WaitGroup
		statsMu        sync.Mutex
		totalScheduled int
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			stats, err := fx.scheduler.ProcessQueue(ctx)
			if err != nil {
				t.Errorf("ProcessQueue: %v", err)
				return
			}
			statsMu.Lock()
			totalScheduled += stats.Scheduled
			statsMu.Unlock()
		}()
	}
	wg.Wait()

	if totalScheduled != len(items) {
		t.Fatalf("scheduled = %d across both cycles, want %d", totalScheduled, len(items))
	}
	if calls := p.scheduleCalls.Load(); calls != int32(len(items)) {
		t.Fatalf("schedule calls = %d, want %d (items must not be submitted twice)", calls, len(items))
	}
	for _, item := range items {
		got, err := fx.store.GetByID(ctx, item.ID)
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if got.Attempts != 1 {
			t.Fatalf("attempts = %d for %s, want 1", got.Attempts, got.ID)
		}
		if got.Status != queue.StatusScheduled {
			t.Fatalf("status = %s for %s, want scheduled", got.Status, got.ID)
		}
	}
}

func TestStartStopLifecycle(t *testing.T) {
	fx := newFixture(t, &fakePoster{platform: "tiktok"})
	ctx := context.Background()

	if fx.scheduler.Running() {
		t.Fatal("scheduler should start stopped")
	}
	if err := fx.scheduler.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := fx.scheduler.Start(ctx); err == nil {
		t.Fatal("second Start should fail while running")
	}
	if !fx.scheduler.Running() {
		t.Fatal("scheduler should report running")
	}

	fx.scheduler.Stop()
	if fx.scheduler.Running() {
		t.Fatal("scheduler should report stopped")
	}
	// Stop again is a no-op.
	fx.scheduler.Stop()
}

func TestPauseResume(t *testing.T) {
	fx := newFixture(t, &fakePoster{platform: "tiktok"})

	fx.scheduler.Pause()
	if !fx.scheduler.Paused() {
		t.Fatal("Paused should report true after Pause")
	}
	fx.scheduler.Resume()
	if fx.scheduler.Paused() {
		t.Fatal("Paused should report false after Resume")
	}

	status := fx.scheduler.Status()
	if status.Running || status.Paused {
		t.Fatalf("status = %+v", status)
	}
}
