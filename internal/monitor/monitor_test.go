package monitor

import (
	"context"
	"sync"
	"testing"

	"shuttle/internal/testsupport"
)

type captureAlerter struct {
	mu       sync.Mutex
	messages []string
}

func (c *captureAlerter) Alert(_ context.Context, message string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, message)
	return nil
}

func (c *captureAlerter) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

func newTestService(t *testing.T, alerter Alerter) *Service {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithThresholds(10, 30))
	return NewService(cfg, alerter, nil)
}

func TestCheckQueueHealthThresholds(t *testing.T) {
	svc := newTestService(t, nil)

	cases := []struct {
		pending int
		want    HealthState
	}{
		{0, HealthHealthy},
		{9, HealthHealthy},
		{10, HealthWarning},
		{29, HealthWarning},
		{30, HealthCritical},
		{500, HealthCritical},
	}
	for _, tc := range cases {
		if got := svc.CheckQueueHealth(tc.pending); got != tc.want {
			t.Errorf("CheckQueueHealth(%d) = %s, want %s", tc.pending, got, tc.want)
		}
	}
}

func TestDetectAnomaliesFailureDominant(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		svc.RecordFailure(ctx)
	}
	for i := 0; i < 5; i++ {
		svc.RecordSuccess(ctx)
	}
	if !svc.DetectAnomalies() {
		t.Fatal("10 failures and 5 successes should be anomalous")
	}

	fresh := newTestService(t, nil)
	for i := 0; i < 20; i++ {
		fresh.RecordSuccess(ctx)
	}
	if fresh.DetectAnomalies() {
		t.Fatal("all-success window must not be anomalous")
	}
}

func TestAlertFiresOnceOnTransition(t *testing.T) {
	alerter := &captureAlerter{}
	svc := newTestService(t, alerter)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		svc.RecordFailure(ctx)
	}
	if alerter.count() != 1 {
		t.Fatalf("alerts = %d, want exactly 1 for a single transition", alerter.count())
	}

	// Recovering and degrading again raises a fresh alert.
	for i := 0; i < 20; i++ {
		svc.RecordSuccess(ctx)
	}
	if svc.DetectAnomalies() {
		t.Fatal("window should have recovered")
	}
	for i := 0; i < 30; i++ {
		svc.RecordFailure(ctx)
	}
	if alerter.count() != 2 {
		t.Fatalf("alerts = %d, want 2 after second transition", alerter.count())
	}
}

func TestWindowEvictsOldOutcomes(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithThresholds(10, 30))
	cfg.Monitor.WindowSize = 4
	svc := NewService(cfg, nil, nil)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		svc.RecordFailure(ctx)
	}
	if !svc.DetectAnomalies() {
		t.Fatal("all-failure window should be anomalous")
	}
	for i := 0; i < 4; i++ {
		svc.RecordSuccess(ctx)
	}
	if svc.DetectAnomalies() {
		t.Fatal("old failures should have rotated out of the window")
	}

	stats := svc.Snapshot()
	if stats.Successes != 4 || stats.Failures != 0 || stats.WindowSize != 4 {
		t.Fatalf("snapshot = %+v", stats)
	}
	if stats.FailureRate != 0 {
		t.Fatalf("failure rate = %v, want 0", stats.FailureRate)
	}
}
