// Package monitor classifies queue health and watches dispatch outcomes
// for failure-dominant windows.
package monitor

import (
	"context"
	"log/slog"
	"sync"

	"shuttle/internal/config"
	"shuttle/internal/logging"
)

// HealthState classifies the queue by pending depth.
type HealthState string

const (
	HealthHealthy  HealthState = "healthy"
	HealthWarning  HealthState = "warning"
	HealthCritical HealthState = "critical"
)

// Alerter receives operator-visible alerts. The notification service
// satisfies this.
type Alerter interface {
	Alert(ctx context.Context, message string) error
}

// Stats is a point-in-time snapshot of the outcome window.
type Stats struct {
	Successes   int     `json:"successes"`
	Failures    int     `json:"failures"`
	WindowSize  int     `json:"window_size"`
	Anomalous   bool    `json:"anomalous"`
	FailureRate float64 `json:"failure_rate"`
}

// Service keeps a bounded sliding window of dispatch outcomes. Outcomes
// are recorded synchronously as they become known, so health and anomaly
// reads always reflect completed work.
type Service struct {
	warning  int
	critical int
	alerter  Alerter
	logger   *slog.Logger

	mu        sync.Mutex
	outcomes  []bool
	next      int
	filled    int
	anomalous bool
}

// NewService builds a monitor from the configured thresholds. A nil
// alerter downgrades AlertAdmin to a log line.
func NewService(cfg *config.Config, alerter Alerter, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	window := cfg.Monitor.WindowSize
	if window <= 0 {
		window = 100
	}
	return &Service{
		warning:  cfg.Monitor.WarningThreshold,
		critical: cfg.Monitor.CriticalThreshold,
		alerter:  alerter,
		logger:   logging.NewComponentLogger(logger, "monitor"),
		outcomes: make([]bool, window),
	}
}

// CheckQueueHealth classifies a pending-item count against the configured
// thresholds. The classification is monotonic in pending count.
func (s *Service) CheckQueueHealth(pending int) HealthState {
	QueuePendingItems.Set(float64(pending))
	switch {
	case pending >= s.critical:
		return HealthCritical
	case pending >= s.warning:
		return HealthWarning
	default:
		return HealthHealthy
	}
}

// RecordSuccess notes one successful dispatch outcome.
func (s *Service) RecordSuccess(ctx context.Context) {
	PostSuccessTotal.Inc()
	s.record(ctx, true)
}

// RecordFailure notes one failed dispatch outcome.
func (s *Service) RecordFailure(ctx context.Context) {
	PostFailureTotal.Inc()
	s.record(ctx, false)
}

func (s *Service) record(ctx context.Context, success bool) {
	s.mu.Lock()
	s.outcomes[s.next] = success
	s.next = (s.next + 1) % len(s.outcomes)
	if s.filled < len(s.outcomes) {
		s.filled++
	}

	anomalous := s.failureDominantLocked()
	transitioned := anomalous && !s.anomalous
	s.anomalous = anomalous
	s.mu.Unlock()

	if anomalous {
		AnomalyState.Set(1)
	} else {
		AnomalyState.Set(0)
	}
	if transitioned {
		s.AlertAdmin(ctx, "posting failures exceed successes in the recent outcome window")
	}
}

// DetectAnomalies reports whether failures outnumber successes in the
// tracked window.
func (s *Service) DetectAnomalies() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failureDominantLocked()
}

func (s *Service) failureDominantLocked() bool {
	failures := 0
	for i := 0; i < s.filled; i++ {
		if !s.outcomes[i] {
			failures++
		}
	}
	return failures > s.filled-failures
}

// AlertAdmin raises an operator-visible alert. The alert is always logged;
// delivery failures never propagate into the dispatch path.
func (s *Service) AlertAdmin(ctx context.Context, message string) {
	AdminAlertsTotal.Inc()
	s.logger.Warn(message, logging.Alert("admin"))
	if s.alerter == nil {
		return
	}
	if err := s.alerter.Alert(ctx, message); err != nil {
		s.logger.Warn("admin alert delivery failed", logging.Error(err))
	}
}

// Snapshot returns the current window contents for the dashboard.
func (s *Service) Snapshot() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	failures := 0
	for i := 0; i < s.filled; i++ {
		if !s.outcomes[i] {
			failures++
		}
	}
	stats := Stats{
		Successes:  s.filled - failures,
		Failures:   failures,
		WindowSize: len(s.outcomes),
		Anomalous:  s.anomalous,
	}
	if s.filled > 0 {
		stats.FailureRate = float64(failures) / float64(s.filled)
	}
	return stats
}
