package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/gofrs/flock"

	"shuttle/internal/audit"
	"shuttle/internal/config"
	"shuttle/internal/credentials"
	"shuttle/internal/logging"
	"shuttle/internal/monitor"
	"shuttle/internal/notifications"
	"shuttle/internal/poster"
	"shuttle/internal/queue"
	"shuttle/internal/scheduler"
)

// Daemon coordinates the background services and enforces single-instance
// execution.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *queue.Store
	scheduler *scheduler.Scheduler
	monitor   *monitor.Service
	notifier  *notifications.Service
	auditLog  *audit.Log
	creds     *credentials.Store

	lockPath string
	lock     *flock.Flock

	api *apiServer

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	Scheduler    scheduler.Status
	QueueDBPath  string
	LockFilePath string
}

// New constructs a daemon and wires its collaborators from configuration.
// The caller owns the store and must close it after Stop.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil {
		return nil, errors.New("daemon requires config and store")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	auditLog := audit.NewLog(store.DB())
	notifier := notifications.NewService(cfg, logger)
	mon := monitor.NewService(cfg, notifier, logger)

	// Without a credential store every poster would skip its credential
	// check and submit unauthenticated. Refuse to run rather than post
	// with no credentials at all.
	if cfg.Credentials.Secret == "" {
		return nil, errors.New("credentials.secret must be set (or export SHUTTLE_CREDENTIALS_SECRET) before the daemon can dispatch")
	}
	creds, err := credentials.NewStore(store.DB(), cfg.Credentials.Secret, auditLog)
	if err != nil {
		return nil, fmt.Errorf("open credential store: %w", err)
	}

	registry, err := poster.NewRegistryFromConfig(cfg, creds, logger)
	if err != nil {
		return nil, fmt.Errorf("build poster registry: %w", err)
	}

	d := &Daemon{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "daemon"),
		store:     store,
		scheduler: scheduler.New(cfg, store, registry, mon, notifier, logger),
		monitor:   mon,
		notifier:  notifier,
		auditLog:  auditLog,
		creds:     creds,
		lockPath:  cfg.LockPath(),
		lock:      flock.New(cfg.LockPath()),
	}
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock, launches the scheduler, and begins
// serving the operator API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another shuttle daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	if err := d.scheduler.Start(runCtx); err != nil {
		_ = d.lock.Unlock()
		cancel()
		d.cancel = nil
		return fmt.Errorf("start scheduler: %w", err)
	}
	if err := d.api.start(runCtx); err != nil {
		d.scheduler.Stop()
		_ = d.lock.Unlock()
		cancel()
		d.cancel = nil
		return fmt.Errorf("start api: %w", err)
	}

	d.running.Store(true)
	d.logger.Info("shuttle daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop halts background processing and releases the daemon lock. In-flight
// dispatch completes before Stop returns.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()
	d.scheduler.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("shuttle daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	return nil
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Scheduler:    d.scheduler.Status(),
		QueueDBPath:  d.cfg.DatabasePath(),
		LockFilePath: d.lockPath,
	}
}

// Scheduler exposes the dispatch loop to the operator surface.
func (d *Daemon) Scheduler() *scheduler.Scheduler {
	return d.scheduler
}

// APIAddr reports the bound operator API address, empty when disabled.
func (d *Daemon) APIAddr() string {
	return d.api.addr()
}

// Enqueue adds a content item to the queue.
func (d *Daemon) Enqueue(ctx context.Context, in queue.NewItem) (*queue.Item, error) {
	item, err := d.store.Add(ctx, in)
	if err != nil {
		return nil, err
	}
	d.logger.Info("item enqueued",
		logging.String(logging.FieldItemID, item.ID),
		logging.Int("platforms", len(item.Platforms)))
	return item, nil
}

// QueueItem looks up one queue item; missing ids resolve to nil.
func (d *Daemon) QueueItem(ctx context.Context, id string) (*queue.Item, error) {
	return d.store.GetByID(ctx, id)
}

// RetryFailed resets failed items (optionally a subset) back to pending.
func (d *Daemon) RetryFailed(ctx context.Context, ids []string) (int64, error) {
	return d.store.RetryFailed(ctx, ids...)
}

// QueueHealth returns aggregate queue diagnostics.
func (d *Daemon) QueueHealth(ctx context.Context) (queue.HealthSummary, error) {
	return d.store.Health(ctx)
}

// Monitoring returns the health classification and the outcome window.
func (d *Daemon) Monitoring(ctx context.Context) (monitor.HealthState, queue.HealthSummary, monitor.Stats, error) {
	health, err := d.store.Health(ctx)
	if err != nil {
		return "", queue.HealthSummary{}, monitor.Stats{}, err
	}
	state := d.monitor.CheckQueueHealth(health.Pending)
	return state, health, d.monitor.Snapshot(), nil
}

// AuditLogs returns audit entries, optionally filtered by user, together
// with the result of the integrity check.
func (d *Daemon) AuditLogs(ctx context.Context, user string) ([]audit.Entry, bool, error) {
	entries, err := d.auditLog.Logs(ctx, user)
	if err != nil {
		return nil, false, err
	}
	intact, err := d.auditLog.VerifyIntegrity(ctx)
	if err != nil {
		return nil, false, err
	}
	return entries, intact, nil
}

// RecordOverride appends an audit entry for a manual override action.
func (d *Daemon) RecordOverride(ctx context.Context, action, user, details string) {
	if err := d.auditLog.Append(ctx, "override_"+action, user, details); err != nil {
		d.logger.Warn("failed to audit override", logging.Error(err))
	}
}

// TestNotification triggers a test notification using the current
// configuration.
func (d *Daemon) TestNotification(ctx context.Context) error {
	return d.notifier.Test(ctx)
}
