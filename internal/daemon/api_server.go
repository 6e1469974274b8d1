package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"shuttle/internal/api"
	"shuttle/internal/audit"
	"shuttle/internal/config"
	"shuttle/internal/logging"
	"shuttle/internal/queue"
	"shuttle/internal/scheduler"
)

type apiServer struct {
	bind     string
	logger   *slog.Logger
	daemon   *Daemon
	queueSvc *api.QueueService

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil
	}

	srv := &apiServer{
		bind:     bind,
		logger:   logger,
		daemon:   d,
		queueSvc: api.NewQueueService(d.store),
	}

	guard := func(h http.HandlerFunc) http.HandlerFunc {
		return authMiddleware(cfg.API.AdminToken, cfg.API.TokenSecret, h)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", guard(srv.handleStatus))
	mux.HandleFunc("/api/queue", guard(srv.handleQueue))
	mux.HandleFunc("/api/queue/", guard(srv.handleQueueItem))
	mux.HandleFunc("/api/override", guard(srv.handleOverride))
	mux.HandleFunc("/api/logs", guard(srv.handleLogs))
	mux.HandleFunc("/api/monitoring", guard(srv.handleMonitoring))
	mux.HandleFunc("/metrics", guard(promhttp.Handler().ServeHTTP))

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	status := s.daemon.Status()
	s.writeJSON(w, http.StatusOK, api.DaemonStatus{
		Running:      status.Running,
		PID:          status.PID,
		Scheduler:    fromSchedulerStatus(status.Scheduler),
		QueueDBPath:  status.QueueDBPath,
		LockFilePath: status.LockFilePath,
	})
}

func (s *apiServer) handleQueue(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listQueue(w, r)
	case http.MethodPost:
		s.enqueue(w, r)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) listQueue(w http.ResponseWriter, r *http.Request) {
	var statuses []queue.Status
	for _, value := range r.URL.Query()["status"] {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		status, ok := queue.ParseStatus(trimmed)
		if !ok {
			s.writeError(w, http.StatusBadRequest, "unknown status "+trimmed)
			return
		}
		statuses = append(statuses, status)
	}

	items, err := s.queueSvc.List(r.Context(), statuses...)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	stats, err := s.queueSvc.Stats(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.QueueListResponse{Items: items, Stats: stats})
}

func (s *apiServer) enqueue(w http.ResponseWriter, r *http.Request) {
	var req api.EnqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	in := queue.NewItem{
		Content:   req.Content,
		Platforms: req.Platforms,
		Caption:   req.Caption,
		Hashtags:  req.Hashtags,
	}
	if req.ScheduledAt != "" {
		scheduledAt, err := time.Parse(time.RFC3339, req.ScheduledAt)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "scheduledAt must be RFC3339")
			return
		}
		in.ScheduledAt = scheduledAt
	}

	item, err := s.daemon.Enqueue(r.Context(), in)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusCreated, api.EnqueueResponse{ID: item.ID})
}

func (s *apiServer) handleQueueItem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/queue/")
	if id == "" || strings.Contains(id, "/") {
		s.writeError(w, http.StatusNotFound, "queue item not found")
		return
	}
	item, err := s.queueSvc.Describe(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if item == nil {
		s.writeError(w, http.StatusNotFound, "queue item not found")
		return
	}
	s.writeJSON(w, http.StatusOK, api.QueueItemResponse{Item: *item})
}

func (s *apiServer) handleOverride(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req api.OverrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	operator := operatorFrom(r.Context())
	resp := api.OverrideResponse{Action: req.Action}

	switch req.Action {
	case "pause":
		s.daemon.Scheduler().Pause()
	case "resume":
		s.daemon.Scheduler().Resume()
	case "force-post":
		if req.ItemID != "" {
			item, err := s.daemon.QueueItem(r.Context(), req.ItemID)
			if err != nil {
				s.writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
			if item == nil {
				s.writeError(w, http.StatusNotFound, "queue item not found: "+req.ItemID)
				return
			}
			if item.Status == queue.StatusFailed {
				retried, err := s.daemon.RetryFailed(r.Context(), []string{req.ItemID})
				if err != nil {
					s.writeError(w, http.StatusInternalServerError, err.Error())
					return
				}
				resp.Retried = retried
			} else if item.Status != queue.StatusPending {
				s.writeError(w, http.StatusBadRequest, fmt.Sprintf("item %s is %s, not retryable", req.ItemID, item.Status))
				return
			}
		}
		stats, err := s.daemon.Scheduler().ProcessQueue(r.Context())
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		resp.Fetched = stats.Fetched
		resp.Scheduled = stats.Scheduled
		resp.Failed = stats.Failed
	default:
		s.writeError(w, http.StatusBadRequest, "unknown override action "+req.Action)
		return
	}

	s.daemon.RecordOverride(r.Context(), req.Action, operator, req.ItemID)
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	entries, intact, err := s.daemon.AuditLogs(r.Context(), strings.TrimSpace(r.URL.Query().Get("user")))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.LogsResponse{
		Entries: fromAuditEntries(entries),
		Intact:  intact,
	})
}

func (s *apiServer) handleMonitoring(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	state, health, window, err := s.daemon.Monitoring(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.MonitoringResponse{
		Health: string(state),
		Queue: api.QueueHealth{
			Total:     health.Total,
			Pending:   health.Pending,
			Scheduled: health.Scheduled,
			Posted:    health.Posted,
			Failed:    health.Failed,
		},
		Window: api.OutcomeWindow{
			Successes:   window.Successes,
			Failures:    window.Failures,
			WindowSize:  window.WindowSize,
			Anomalous:   window.Anomalous,
			FailureRate: window.FailureRate,
		},
		Scheduler: fromSchedulerStatus(s.daemon.Scheduler().Status()),
	})
}

func fromSchedulerStatus(status scheduler.Status) api.SchedulerStatus {
	out := api.SchedulerStatus{
		Running:   status.Running,
		Paused:    status.Paused,
		Cycles:    status.Cycles,
		LastError: status.LastError,
	}
	if !status.LastCycle.IsZero() {
		out.LastCycle = status.LastCycle.UTC().Format(time.RFC3339)
	}
	return out
}

func fromAuditEntries(entries []audit.Entry) []api.AuditEntry {
	if len(entries) == 0 {
		return nil
	}
	out := make([]api.AuditEntry, 0, len(entries))
	for _, entry := range entries {
		out = append(out, api.AuditEntry{
			Seq:       entry.Seq,
			Timestamp: entry.Timestamp.UTC().Format(time.RFC3339),
			Action:    entry.Action,
			User:      entry.User,
			Details:   entry.Details,
		})
	}
	return out
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return logging.NewComponentLogger(s.logger, "api-server")
	}
	return logging.NewNop()
}
