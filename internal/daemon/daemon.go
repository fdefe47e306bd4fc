package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"autoingest/internal/api"
	"autoingest/internal/config"
	"autoingest/internal/logging"
	"autoingest/internal/notifications"
	"autoingest/internal/queue"
	"autoingest/internal/workflow"
)

// shutdownSlack is added to the stop grace period when the daemon waits for
// every workflow loop to exit.
const shutdownSlack = 5 * time.Second

// Daemon coordinates workflow loops, queue maintenance, and the control
// surfaces, and enforces single-instance execution.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *queue.Store
	workflows *workflow.Manager
	queueSvc  *api.QueueService
	notifier  notifications.Service

	lockPath string
	lock     *flock.Flock

	mu      sync.Mutex
	running atomic.Bool
	cancel  context.CancelFunc
	api     *apiServer
}

// Status represents daemon runtime information.
type Status struct {
	Running         bool
	PID             int
	DatabasePath    string
	LockFilePath    string
	SocketPath      string
	ActiveWorkflows int
	MaxConcurrent   int
	Workflows       []api.Workflow
	QueueStats      map[string]int
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger, mgr *workflow.Manager) (*Daemon, error) {
	if cfg == nil || store == nil || mgr == nil {
		return nil, errors.New("daemon requires config, store, and workflow manager")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "daemon"),
		store:     store,
		workflows: mgr,
		queueSvc:  api.NewQueueService(store),
		notifier:  notifications.NewService(cfg),
		lockPath:  lockPath,
		lock:      flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock, reconciles state left by a previous
// process, and starts the HTTP API when one is configured. Workflows are
// never resumed automatically.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another autoingest daemon instance is already running")
	}

	if err := d.reconcile(ctx); err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("reconcile state: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	srv, err := newAPIServer(d.cfg, d, d.logger)
	if err == nil {
		err = srv.start(runCtx)
	}
	if err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start api server: %w", err)
	}

	d.cancel = cancel
	d.api = srv
	d.running.Store(true)
	d.logger.Info("autoingest daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath),
		logging.Int("max_concurrent_workflows", d.workflows.MaxConcurrent()),
	)
	return nil
}

// reconcile moves workflows a previous process left running to stopped and
// reports items stuck in processing. Stuck items stay untouched until an
// operator resets them.
func (d *Daemon) reconcile(ctx context.Context) error {
	reconciled, err := d.store.ReconcileRunning(ctx, queue.DaemonRestartReason)
	if err != nil {
		return err
	}
	for _, wf := range reconciled {
		logging.WarnWithContext(d.logger, "workflow left running by previous daemon", "workflow_reconciled",
			logging.Int64(logging.FieldWorkflowID, wf.ID),
			logging.String("name", wf.Name),
			logging.String(logging.FieldImpact, "workflow marked stopped"),
			logging.String(logging.FieldErrorHint, "start the workflow again when ready"),
		)
		if err := d.store.AppendLog(ctx, queue.LogEntry{
			WorkflowID: wf.ID,
			Level:      queue.LevelWarning,
			Message:    "Workflow stopped: " + queue.DaemonRestartReason,
			CreatedAt:  time.Now().UTC(),
		}); err != nil {
			d.logger.Warn("failed to record reconciliation log",
				logging.Int64(logging.FieldWorkflowID, wf.ID),
				logging.Error(err),
			)
		}
	}

	health, err := d.store.Health(ctx, 0)
	if err != nil {
		return err
	}
	if health.Processing > 0 {
		logging.WarnWithContext(d.logger, "queue items stuck in processing", "queue_stuck_items",
			logging.Int("count", health.Processing),
			logging.String(logging.FieldImpact, "items are skipped until reset"),
			logging.String(logging.FieldErrorHint, "run `autoingest queue reset-stuck` to return them to pending"),
		)
	}
	return nil
}

// Stop stops every workflow loop, the HTTP API, and releases the daemon lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}

	grace := time.Duration(d.cfg.Engine.StopGraceSeconds)*time.Second + shutdownSlack
	ctx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := d.workflows.Shutdown(ctx); err != nil {
		logging.WarnWithContext(d.logger, "workflow shutdown incomplete", "daemon_shutdown_incomplete",
			logging.Error(err),
			logging.String(logging.FieldImpact, "some workflows may still read running until the next start"),
			logging.String(logging.FieldErrorHint, "the next daemon start reconciles them"),
		)
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()
	d.api = nil
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("autoingest daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Running reports whether Start succeeded and Stop has not run since.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// TestNotification triggers a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:         d.running.Load(),
		PID:             os.Getpid(),
		DatabasePath:    d.store.Path(),
		LockFilePath:    d.lockPath,
		SocketPath:      d.cfg.SocketPath(),
		ActiveWorkflows: d.workflows.ActiveCount(),
		MaxConcurrent:   d.workflows.MaxConcurrent(),
	}
	if workflows, err := d.ListWorkflows(ctx); err == nil {
		status.Workflows = workflows
	} else {
		d.logger.Warn("status: list workflows failed", logging.Error(err))
	}
	if stats, err := d.queueSvc.Stats(ctx, 0); err == nil {
		status.QueueStats = stats
	} else {
		d.logger.Warn("status: queue stats failed", logging.Error(err))
	}
	return status
}
