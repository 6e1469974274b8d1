// Package daemonctl orchestrates the shuttle daemon process from the CLI:
// launching it detached, waiting for its API to come up, and stopping it by
// signal when the API asks too little.
package daemonctl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"shuttle/internal/config"
	"shuttle/internal/queue"
)

// LaunchOptions controls daemon process launch behavior.
type LaunchOptions struct {
	ConfigPath string
}

type StartState string

const (
	StartStateStarted        StartState = "started"
	StartStateAlreadyRunning StartState = "already_running"
)

// StartResult captures daemon start orchestration state.
type StartResult struct {
	State    StartState
	Launched bool
	PID      int
}

// StopResult captures daemon stop/termination outcome.
type StopResult struct {
	ForcedKill bool
	PID        int
}

// RestartResult captures stop/start outcomes for daemon restart.
type RestartResult struct {
	WasRunning bool
	Stop       StopResult
	Start      StartResult
}

// Launch starts a detached daemon process running the same executable with
// the hidden daemon subcommand.
func Launch(executablePath string, opts LaunchOptions) error {
	if strings.TrimSpace(executablePath) == "" {
		return errors.New("resolve executable: executable path is empty")
	}

	args := []string{"daemon"}
	if cfg := strings.TrimSpace(opts.ConfigPath); cfg != "" {
		args = append(args, "--config", cfg)
	}

	proc := exec.Command(executablePath, args...)
	if err := proc.Start(); err != nil {
		return fmt.Errorf("launch daemon: %w", err)
	}
	return proc.Process.Release()
}

// WaitForAPI polls until the daemon API answers or the timeout elapses.
func WaitForAPI(client *Client, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		if _, err := client.Status(); err == nil {
			return nil
		} else {
			lastErr = err
		}
		time.Sleep(200 * time.Millisecond)
	}
	if lastErr == nil {
		lastErr = errors.New("timeout waiting for daemon")
	}
	return fmt.Errorf("daemon failed to start: %w", lastErr)
}

// EnsureStarted launches the daemon when it is not running and waits for its
// API to become reachable.
func EnsureStarted(client *Client, executablePath string, opts LaunchOptions, waitTimeout time.Duration) (StartResult, error) {
	if status, err := client.Status(); err == nil && status.Running {
		return StartResult{State: StartStateAlreadyRunning, PID: status.PID}, nil
	} else if err != nil && !errors.Is(err, ErrDaemonNotRunning) {
		return StartResult{}, err
	}

	if err := Launch(executablePath, opts); err != nil {
		return StartResult{}, err
	}
	if err := WaitForAPI(client, waitTimeout); err != nil {
		return StartResult{}, err
	}

	status, err := client.Status()
	if err != nil {
		return StartResult{}, err
	}
	return StartResult{State: StartStateStarted, Launched: true, PID: status.PID}, nil
}

// StopAndTerminate signals the daemon process to shut down and force-kills it
// if it is still answering after gracePeriod.
func StopAndTerminate(client *Client, gracePeriod time.Duration) (StopResult, error) {
	status, err := client.Status()
	if err != nil {
		if errors.Is(err, ErrDaemonNotRunning) {
			return StopResult{}, ErrDaemonNotRunning
		}
		return StopResult{}, err
	}

	pid := status.PID
	if pid <= 0 {
		return StopResult{}, errors.New("daemon did not report its pid")
	}
	if pid == os.Getpid() {
		return StopResult{}, fmt.Errorf("refusing to kill current process (pid %d)", pid)
	}

	if err := syscall.Kill(pid, syscall.SIGTERM); err != nil {
		return StopResult{}, fmt.Errorf("signal daemon process %d: %w", pid, err)
	}

	if waitForShutdown(client, gracePeriod) {
		return StopResult{PID: pid}, nil
	}

	if err := syscall.Kill(pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		return StopResult{PID: pid}, fmt.Errorf("kill daemon process %d: %w", pid, err)
	}
	return StopResult{PID: pid, ForcedKill: true}, nil
}

// Restart stops the daemon if running, then ensures it is started.
func Restart(client *Client, executablePath string, opts LaunchOptions, stopGracePeriod, startWaitTimeout time.Duration) (RestartResult, error) {
	stopResult, stopErr := StopAndTerminate(client, stopGracePeriod)
	if stopErr != nil && !errors.Is(stopErr, ErrDaemonNotRunning) {
		return RestartResult{}, stopErr
	}

	startResult, err := EnsureStarted(client, executablePath, opts, startWaitTimeout)
	if err != nil {
		return RestartResult{}, err
	}

	return RestartResult{
		WasRunning: stopErr == nil,
		Stop:       stopResult,
		Start:      startResult,
	}, nil
}

func waitForShutdown(client *Client, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if _, err := client.Status(); errors.Is(err, ErrDaemonNotRunning) {
			return true
		}
		time.Sleep(200 * time.Millisecond)
	}
	return false
}

// StatusSnapshot combines daemon runtime state with queue statistics. When
// the daemon is unreachable the queue numbers come straight from the store so
// `shuttle status` stays useful offline.
type StatusSnapshot struct {
	Running    bool
	PID        int
	Paused     bool
	Cycles     uint64
	Health     string
	QueueStats map[string]int
}

// BuildStatusSnapshot collects daemon status and applies offline fallbacks
// for queue statistics.
func BuildStatusSnapshot(ctx context.Context, client *Client, cfg *config.Config) (*StatusSnapshot, error) {
	if cfg == nil {
		return nil, errors.New("configuration not available")
	}

	snapshot := &StatusSnapshot{QueueStats: make(map[string]int)}

	status, err := client.Status()
	if err == nil && status.Running {
		snapshot.Running = true
		snapshot.PID = status.PID
		snapshot.Paused = status.Scheduler.Paused
		snapshot.Cycles = status.Scheduler.Cycles

		if mon, monErr := client.Monitoring(); monErr == nil {
			snapshot.Health = mon.Health
			snapshot.QueueStats["pending"] = mon.Queue.Pending
			snapshot.QueueStats["scheduled"] = mon.Queue.Scheduled
			snapshot.QueueStats["posted"] = mon.Queue.Posted
			snapshot.QueueStats["failed"] = mon.Queue.Failed
		}
		return snapshot, nil
	}
	if err != nil && !errors.Is(err, ErrDaemonNotRunning) {
		return nil, err
	}

	queryCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	store, openErr := queue.Open(cfg)
	if openErr != nil {
		return snapshot, nil
	}
	defer store.Close()

	stats, statsErr := store.Stats(queryCtx)
	if statsErr == nil {
		for status, count := range stats {
			snapshot.QueueStats[string(status)] = count
		}
	}
	return snapshot, nil
}
