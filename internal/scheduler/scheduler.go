// Package scheduler owns the posting cycle: it drains due batches from the
// content queue, submits each item to its platform adapters, and records
// outcomes.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"shuttle/internal/config"
	"shuttle/internal/logging"
	"shuttle/internal/monitor"
	"shuttle/internal/notifications"
	"shuttle/internal/poster"
	"shuttle/internal/queue"
	"shuttle/internal/retry"
)

// Scheduler runs the recurring dispatch cycle. Start launches a background
// loop; Stop cancels further cycles and waits for the in-flight one to
// finish, leaving every item either fully scheduled, failed, or still
// pending.
type Scheduler struct {
	cfg      *config.Config
	store    *queue.Store
	registry *poster.Registry
	monitor  *monitor.Service
	notifier *notifications.Service
	logger   *slog.Logger

	interval time.Duration
	policy   retry.Policy

	breakerMu sync.Mutex
	breakers  map[string]*gobreaker.CircuitBreaker[string]

	// cycleMu serializes dispatch cycles so a force-post override queues
	// behind the ticker loop instead of double-fetching the pending batch.
	cycleMu sync.Mutex

	mu        sync.Mutex
	running   bool
	paused    bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	lastErr   error
	lastCycle time.Time
	cycles    uint64
}

// New constructs a scheduler wired to its collaborators.
func New(cfg *config.Config, store *queue.Store, registry *poster.Registry, mon *monitor.Service, notifier *notifications.Service, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Scheduler{
		cfg:      cfg,
		store:    store,
		registry: registry,
		monitor:  mon,
		notifier: notifier,
		logger:   logging.NewComponentLogger(logger, "scheduler"),
		interval: time.Duration(cfg.Dispatch.Interval) * time.Second,
		policy: retry.Policy{
			MaxAttempts: cfg.Dispatch.MaxAttempts,
			BaseDelay:   time.Duration(cfg.Dispatch.RetryBaseMS) * time.Millisecond,
			Multiplier:  cfg.Dispatch.RetryFactor,
		},
		breakers: make(map[string]*gobreaker.CircuitBreaker[string]),
	}
}

// Start begins background processing. It fails if the scheduler is already
// running.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("scheduler already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.wg.Add(1)
	s.mu.Unlock()

	go s.run(runCtx)
	s.logger.Info("scheduler started",
		logging.Duration("interval", s.interval),
		logging.Int("batch_size", s.cfg.Dispatch.BatchSize))
	return nil
}

// Stop prevents further cycles and waits for the current one to complete.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	s.running = false
	s.cancel = nil
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

// Pause suspends dispatch without stopping the timer loop.
func (s *Scheduler) Pause() {
	s.mu.Lock()
	s.paused = true
	s.mu.Unlock()
	s.logger.Info("dispatch paused")
}

// Resume lifts a pause.
func (s *Scheduler) Resume() {
	s.mu.Lock()
	s.paused = false
	s.mu.Unlock()
	s.logger.Info("dispatch resumed")
}

// Running reports whether the background loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Paused reports whether dispatch is suspended.
func (s *Scheduler) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// Status is a point-in-time view for the operator surface.
type Status struct {
	Running   bool      `json:"running"`
	Paused    bool      `json:"paused"`
	Cycles    uint64    `json:"cycles"`
	LastCycle time.Time `json:"last_cycle"`
	LastError string    `json:"last_error,omitempty"`
}

// Status snapshots loop state.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		Running:   s.running,
		Paused:    s.paused,
		Cycles:    s.cycles,
		LastCycle: s.lastCycle,
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}

func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if s.Paused() {
			continue
		}
		if _, err := s.ProcessQueue(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.setLastError(err)
			s.logger.Error("dispatch cycle failed",
				logging.Error(err),
				logging.String(logging.FieldEventType, "cycle_failed"))
		}
	}
}

func (s *Scheduler) setLastError(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}

func (s *Scheduler) markCycle() {
	s.mu.Lock()
	s.cycles++
	s.lastCycle = time.Now().UTC()
	s.mu.Unlock()
}
