package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"

	"github.com/google/uuid"

	"autoingest/internal/daemon"
	"autoingest/internal/logging"
	"autoingest/internal/queue"
	"autoingest/internal/services"
)

// serviceName prefixes every RPC method, e.g. "AutoIngest.Status".
const serviceName = "AutoIngest"

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	daemon    *daemon.Daemon
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		listener.Close()
		return nil, fmt.Errorf("restrict socket permissions: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logging.NewComponentLogger(logger, "ipc"), ctx: serverCtx}
	if err := rpcServer.RegisterName(serviceName, srv); err != nil {
		cancel()
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	return &Server{
		path:      path,
		daemon:    d,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				if errors.Is(err, net.ErrClosed) {
					return
				}
				logging.WarnWithContext(s.logger, "accept failed", "ipc_accept_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "IPC clients may fail to connect"),
					logging.String(logging.FieldErrorHint, "check socket permissions and restart the daemon if needed"))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		logging.WarnWithContext(s.logger, "failed to remove socket", "ipc_socket_cleanup_failed",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "stale IPC socket may block future starts"),
			logging.String(logging.FieldErrorHint, "remove the socket file manually"))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

// request returns a context tagged with a fresh request id and its logger.
func (s *service) request() (context.Context, *slog.Logger) {
	ctx := services.WithRequestID(s.ctx, uuid.NewString())
	return ctx, logging.WithContext(ctx, s.logger)
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	ctx, _ := s.request()
	status := s.daemon.Status(ctx)
	resp.Running = status.Running
	resp.PID = status.PID
	resp.DatabasePath = status.DatabasePath
	resp.LockPath = status.LockFilePath
	resp.SocketPath = status.SocketPath
	resp.ActiveWorkflows = status.ActiveWorkflows
	resp.MaxConcurrent = status.MaxConcurrent
	resp.Workflows = status.Workflows
	resp.QueueStats = status.QueueStats
	return nil
}

func (s *service) WorkflowAdd(req WorkflowAddRequest, resp *WorkflowResponse) error {
	ctx, _ := s.request()
	wf, err := s.daemon.AddWorkflow(ctx, daemon.AddWorkflowRequest{
		Name:            req.Name,
		UserID:          req.UserID,
		SourcePath:      req.SourcePath,
		IntervalSeconds: req.IntervalSeconds,
	})
	if err != nil {
		return err
	}
	resp.Workflow = *wf
	return nil
}

func (s *service) WorkflowList(_ WorkflowListRequest, resp *WorkflowListResponse) error {
	ctx, _ := s.request()
	workflows, err := s.daemon.ListWorkflows(ctx)
	if err != nil {
		return err
	}
	resp.Workflows = workflows
	return nil
}

func (s *service) WorkflowShow(req WorkflowRequest, resp *WorkflowResponse) error {
	ctx, _ := s.request()
	wf, err := s.daemon.DescribeWorkflow(ctx, req.ID)
	if err != nil {
		return err
	}
	if wf == nil {
		return fmt.Errorf("workflow %d not found", req.ID)
	}
	resp.Workflow = *wf
	return nil
}

func (s *service) WorkflowStart(req WorkflowRequest, resp *WorkflowActionResponse) error {
	ctx, logger := s.request()
	logger.Debug("workflow start requested", logging.Int64(logging.FieldWorkflowID, req.ID))
	started, err := s.daemon.StartWorkflow(services.WithWorkflowID(ctx, req.ID), req.ID)
	if err != nil {
		return err
	}
	resp.Changed = started
	resp.Message = "workflow started"
	if !started {
		resp.Message = "workflow already running"
	}
	return nil
}

func (s *service) WorkflowStop(req WorkflowRequest, resp *WorkflowActionResponse) error {
	ctx, logger := s.request()
	logger.Debug("workflow stop requested", logging.Int64(logging.FieldWorkflowID, req.ID))
	stopped, err := s.daemon.StopWorkflow(services.WithWorkflowID(ctx, req.ID), req.ID)
	if err != nil {
		return err
	}
	resp.Changed = stopped
	resp.Message = "workflow stopped"
	return nil
}

func (s *service) WorkflowRemove(req WorkflowRequest, resp *WorkflowActionResponse) error {
	ctx, _ := s.request()
	removed, err := s.daemon.RemoveWorkflow(ctx, req.ID)
	if err != nil {
		return err
	}
	resp.Changed = removed
	resp.Message = "workflow removed"
	if !removed {
		resp.Message = fmt.Sprintf("workflow %d not found", req.ID)
	}
	return nil
}

func (s *service) UserAdd(req UserAddRequest, resp *UserAddResponse) error {
	ctx, _ := s.request()
	user, err := s.daemon.AddUser(ctx, req.Username, req.FullName, req.Email, req.Role)
	if err != nil {
		return err
	}
	resp.ID = user.ID
	resp.Username = user.Username
	return nil
}

func (s *service) QueueList(req QueueListRequest, resp *QueueListResponse) error {
	ctx, _ := s.request()
	statuses, err := parseStatuses(req.Statuses)
	if err != nil {
		return err
	}
	items, err := s.daemon.ListQueue(ctx, req.WorkflowID, statuses)
	if err != nil {
		return err
	}
	resp.Items = items
	return nil
}

func (s *service) QueueDescribe(req QueueDescribeRequest, resp *QueueDescribeResponse) error {
	if req.ID <= 0 {
		return fmt.Errorf("invalid queue item id %d", req.ID)
	}
	ctx, _ := s.request()
	item, err := s.daemon.DescribeQueueItem(ctx, req.ID)
	if err != nil {
		return err
	}
	if item == nil {
		return fmt.Errorf("queue item %d not found", req.ID)
	}
	resp.Item = *item
	return nil
}

func (s *service) QueueStats(req QueueStatsRequest, resp *QueueStatsResponse) error {
	ctx, _ := s.request()
	counts, err := s.daemon.QueueStats(ctx, req.WorkflowID)
	if err != nil {
		return err
	}
	resp.Counts = counts
	return nil
}

func (s *service) QueueHealth(req QueueHealthRequest, resp *QueueHealthResponse) error {
	ctx, _ := s.request()
	health, err := s.daemon.QueueHealth(ctx, req.WorkflowID)
	if err != nil {
		return err
	}
	*resp = health
	return nil
}

func (s *service) QueueReset(req QueueResetRequest, resp *QueueResetResponse) error {
	ctx, _ := s.request()
	updated, err := s.daemon.ResetStuck(ctx, req.WorkflowID)
	if err != nil {
		return err
	}
	resp.Updated = updated
	return nil
}

func (s *service) QueueRetry(req QueueRetryRequest, resp *QueueRetryResponse) error {
	ctx, _ := s.request()
	updated, err := s.daemon.RetryFailed(ctx, req.WorkflowID, req.IDs)
	if err != nil {
		return err
	}
	resp.Updated = updated
	return nil
}

func (s *service) QueueClear(req QueueClearRequest, resp *QueueClearResponse) error {
	ctx, _ := s.request()
	statuses, err := parseStatuses(req.Statuses)
	if err != nil {
		return err
	}
	removed, err := s.daemon.ClearQueue(ctx, req.WorkflowID, statuses)
	if err != nil {
		return err
	}
	resp.Removed = removed
	return nil
}

func (s *service) Logs(req LogsRequest, resp *LogsResponse) error {
	ctx, _ := s.request()
	filter := queue.LogFilter{
		WorkflowID: req.WorkflowID,
		ItemID:     req.ItemID,
		AfterID:    req.AfterID,
		Limit:      req.Limit,
	}
	for _, value := range req.Levels {
		level, ok := queue.ParseLogLevel(value)
		if !ok {
			return fmt.Errorf("unknown log level %q", value)
		}
		filter.Levels = append(filter.Levels, level)
	}
	entries, next, err := s.daemon.Logs(ctx, filter)
	if err != nil {
		return err
	}
	resp.Entries = entries
	resp.Next = next
	return nil
}

func (s *service) DatabaseHealth(_ DatabaseHealthRequest, resp *DatabaseHealthResponse) error {
	ctx, _ := s.request()
	health, err := s.daemon.DatabaseHealth(ctx)
	resp.DBPath = health.DBPath
	resp.DatabaseExists = health.DatabaseExists
	resp.DatabaseReadable = health.DatabaseReadable
	resp.IntegrityCheck = health.IntegrityCheck
	resp.Workflows = health.Workflows
	resp.TotalItems = health.TotalItems
	resp.Error = health.Error
	if err != nil && health.Error == "" {
		return err
	}
	return nil
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	ctx, _ := s.request()
	sent, message, err := s.daemon.TestNotification(ctx)
	resp.Sent = sent
	resp.Message = message
	return err
}

func parseStatuses(values []string) ([]queue.Status, error) {
	statuses := make([]queue.Status, 0, len(values))
	for _, value := range values {
		parsed, ok := queue.ParseStatus(value)
		if !ok {
			return nil, fmt.Errorf("unknown queue status %q", value)
		}
		statuses = append(statuses, parsed)
	}
	return statuses, nil
}
