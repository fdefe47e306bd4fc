package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"autoingest/internal/api"
	"autoingest/internal/config"
	"autoingest/internal/logging"
	"autoingest/internal/queue"
	"autoingest/internal/services"
	"autoingest/internal/workflow"
)

const defaultLogLimit = 200

type apiServer struct {
	bind   string
	token  string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

// newAPIServer returns nil when no bind address is configured.
func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil {
		return nil, nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, nil
	}

	srv := &apiServer{
		bind:   bind,
		token:  strings.TrimSpace(cfg.Paths.APIToken),
		logger: logger,
		daemon: d,
	}
	srv.server = &http.Server{
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      time.Duration(cfg.Engine.StopGraceSeconds)*time.Second + 30*time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(authMiddleware(s.token))

	r.Get("/api/status", s.handleStatus)
	r.Route("/api/workflows", func(r chi.Router) {
		r.Get("/", s.handleWorkflows)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleWorkflow)
			r.Post("/start", s.handleWorkflowStart)
			r.Post("/stop", s.handleWorkflowStop)
			r.Get("/queue", s.handleWorkflowQueue)
			r.Get("/logs", s.handleWorkflowLogs)
		})
	})
	r.Get("/api/queue", s.handleQueue)
	r.Get("/api/queue/stats", s.handleQueueStats)
	r.Get("/api/queue/{id}", s.handleQueueItem)
	return r
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

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.daemon.Status(r.Context())
	s.writeJSON(w, http.StatusOK, api.DaemonStatus{
		Running:         status.Running,
		PID:             status.PID,
		DatabasePath:    status.DatabasePath,
		LockFilePath:    status.LockFilePath,
		SocketPath:      status.SocketPath,
		ActiveWorkflows: status.ActiveWorkflows,
		MaxConcurrent:   status.MaxConcurrent,
		Workflows:       status.Workflows,
		QueueStats:      status.QueueStats,
	})
}

func (s *apiServer) handleWorkflows(w http.ResponseWriter, r *http.Request) {
	workflows, err := s.daemon.ListWorkflows(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.WorkflowListResponse{Workflows: workflows})
}

func (s *apiServer) handleWorkflow(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	wf, err := s.daemon.DescribeWorkflow(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if wf == nil {
		s.writeError(w, http.StatusNotFound, "workflow not found")
		return
	}
	s.writeJSON(w, http.StatusOK, api.WorkflowResponse{Workflow: *wf})
}

func (s *apiServer) handleWorkflowStart(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	started, err := s.daemon.StartWorkflow(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	resp := api.WorkflowActionResponse{WorkflowID: id, Changed: started, Message: "workflow started"}
	if !started {
		resp.Message = "workflow already running"
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleWorkflowStop(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	stopped, err := s.daemon.StopWorkflow(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.WorkflowActionResponse{WorkflowID: id, Changed: stopped, Message: "workflow stopped"})
}

func (s *apiServer) handleWorkflowQueue(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	s.listQueue(w, r, id)
}

func (s *apiServer) handleQueue(w http.ResponseWriter, r *http.Request) {
	var workflowID int64
	if value := strings.TrimSpace(r.URL.Query().Get("workflow")); value != "" {
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid workflow id")
			return
		}
		workflowID = parsed
	}
	s.listQueue(w, r, workflowID)
}

func (s *apiServer) listQueue(w http.ResponseWriter, r *http.Request, workflowID int64) {
	statuses, err := parseStatuses(r.URL.Query()["status"])
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	items, err := s.daemon.ListQueue(r.Context(), workflowID, statuses)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.QueueListResponse{Items: items})
}

func (s *apiServer) handleQueueStats(w http.ResponseWriter, r *http.Request) {
	var workflowID int64
	if value := strings.TrimSpace(r.URL.Query().Get("workflow")); value != "" {
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid workflow id")
			return
		}
		workflowID = parsed
	}
	counts, err := s.daemon.QueueStats(r.Context(), workflowID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.QueueStatsResponse{Counts: counts})
}

func (s *apiServer) handleQueueItem(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	item, err := s.daemon.DescribeQueueItem(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if item == nil {
		s.writeError(w, http.StatusNotFound, "queue item not found")
		return
	}
	s.writeJSON(w, http.StatusOK, api.QueueItemResponse{Item: *item})
}

func (s *apiServer) handleWorkflowLogs(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	query := r.URL.Query()
	filter := queue.LogFilter{WorkflowID: id, Limit: defaultLogLimit}
	filter.AfterID, _ = strconv.ParseInt(query.Get("after"), 10, 64)
	if limit, err := strconv.Atoi(query.Get("limit")); err == nil && limit > 0 {
		filter.Limit = limit
	}
	if value := strings.TrimSpace(query.Get("item")); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			filter.ItemID = parsed
		}
	}
	for _, value := range query["level"] {
		level, ok := queue.ParseLogLevel(value)
		if !ok {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown log level %q", value))
			return
		}
		filter.Levels = append(filter.Levels, level)
	}

	entries, next, err := s.daemon.Logs(r.Context(), filter)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.LogListResponse{Entries: entries, Next: next})
}

func (s *apiServer) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		s.writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func parseStatuses(values []string) ([]queue.Status, error) {
	var statuses []queue.Status
	for _, value := range values {
		for part := range strings.SplitSeq(value, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			status, ok := queue.ParseStatus(part)
			if !ok {
				return nil, fmt.Errorf("unknown status %q", part)
			}
			statuses = append(statuses, status)
		}
	}
	return statuses, nil
}

// writeServiceError maps engine and store errors to HTTP status codes.
func (s *apiServer) writeServiceError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, workflow.ErrConcurrencyLimit), errors.Is(err, queue.ErrWorkflowRunning):
		status = http.StatusConflict
	case errors.Is(err, workflow.ErrNotFound), errors.Is(err, services.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, workflow.ErrInvalidSourcePath), errors.Is(err, services.ErrValidation):
		status = http.StatusUnprocessableEntity
	}
	s.writeError(w, status, err.Error())
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
		return s.logger.With(logging.String(logging.FieldComponent, "api-server"))
	}
	return logging.NewNop()
}
