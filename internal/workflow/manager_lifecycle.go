package workflow

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"autoingest/internal/fileutil"
	"autoingest/internal/logging"
	"autoingest/internal/queue"
	"autoingest/internal/services"
)

// Start launches the loop for workflowID. It returns (false, nil) when the
// workflow already has a live loop. The concurrency check and registration
// happen under one lock, so concurrent starts cannot exceed the cap.
func (m *Manager) Start(ctx context.Context, workflowID int64) (bool, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = services.WithWorkflowID(ctx, workflowID)
	logger := logging.WithContext(ctx, m.logger)

	m.mu.Lock()
	if _, ok := m.handles[workflowID]; ok {
		m.mu.Unlock()
		logger.Warn("workflow already running",
			logging.String(logging.FieldEventType, "workflow_already_running"),
			logging.String(logging.FieldImpact, "start request ignored"),
		)
		return false, nil
	}
	if active := len(m.handles); active >= m.maxConcurrent {
		m.mu.Unlock()
		logging.WarnWithContext(logger, "workflow start refused", "workflow_concurrency_limit",
			logging.Int("active", active),
			logging.Int("max", m.maxConcurrent),
			logging.String(logging.FieldImpact, "workflow stays in its current state"),
			logging.String(logging.FieldErrorHint, "stop another workflow or raise engine.max_concurrent_workflows"),
		)
		return false, &ConcurrencyLimitError{Max: m.maxConcurrent}
	}
	loopCtx, cancel := context.WithCancel(services.WithWorkflowID(context.Background(), workflowID))
	h := &handle{cancel: cancel, done: make(chan struct{}), startedAt: m.now()}
	m.handles[workflowID] = h
	m.mu.Unlock()

	launched := false
	defer func() {
		if !launched {
			m.release(workflowID, h)
		}
	}()

	wf, err := m.store.WorkflowByID(ctx, workflowID)
	if err != nil {
		return false, services.Wrap(services.ErrTransient, "workflow", "start", "load workflow", err)
	}
	if wf == nil {
		m.markStopped(ctx, workflowID, fmt.Sprintf("Workflow %d not found", workflowID))
		return false, fmt.Errorf("%w: id %d", ErrNotFound, workflowID)
	}
	if err := fileutil.CheckDirAccess(wf.SourcePath); err != nil {
		msg := fmt.Sprintf("Source path does not exist: %s", wf.SourcePath)
		m.markStopped(ctx, workflowID, msg)
		m.appendLog(ctx, logEntry{
			workflowID: workflowID,
			level:      queue.LevelError,
			message:    "Workflow start failed: " + msg,
			details:    map[string]any{"error": err.Error()},
		})
		return false, fmt.Errorf("%w: %s: %w", ErrInvalidSourcePath, wf.SourcePath, err)
	}
	if err := m.store.UpdateWorkflowStatus(ctx, workflowID, queue.WorkflowRunning, ""); err != nil {
		return false, services.Wrap(services.ErrTransient, "workflow", "start", "mark running", err)
	}

	m.appendLog(ctx, logEntry{
		workflowID: workflowID,
		level:      queue.LevelSuccess,
		message:    "Workflow started: " + wf.Name,
	})

	launched = true
	go m.runLoop(loopCtx, workflowID, h)

	logger.Info("workflow started",
		logging.String(logging.FieldEventType, "workflow_started"),
		logging.String("name", wf.Name),
		logging.String("source_path", wf.SourcePath),
		logging.Int("interval_seconds", wf.IntervalSeconds),
	)
	return true, nil
}

// Stop cancels the loop for workflowID and waits up to the grace period for
// it to exit. A workflow with no live loop is marked stopped and reported as
// stopped. Unexpected failures are returned wrapped in ErrStopFailed.
func (m *Manager) Stop(ctx context.Context, workflowID int64) (stopped bool, err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = services.WithWorkflowID(ctx, workflowID)
	logger := logging.WithContext(ctx, m.logger)
	defer func() {
		if r := recover(); r != nil {
			logging.ErrorWithContext(logger, "workflow stop panicked", "workflow_stop_failed",
				logging.Any("panic", r),
				logging.String(logging.FieldErrorHint, "inspect the daemon log for the stack"),
			)
			stopped = false
			err = fmt.Errorf("%w: %v", ErrStopFailed, r)
		}
	}()

	m.mu.Lock()
	h, ok := m.handles[workflowID]
	if ok {
		h.stopRequested = true
		h.cancel()
	}
	m.mu.Unlock()

	if !ok {
		logger.Info("workflow not running; marking stopped",
			logging.String(logging.FieldEventType, "workflow_stop_noop"),
		)
		if err := m.store.UpdateWorkflowStatus(ctx, workflowID, queue.WorkflowStopped, ""); err != nil {
			return false, fmt.Errorf("%w: %w", ErrStopFailed, err)
		}
		return true, nil
	}

	timer := time.NewTimer(m.stopGrace)
	defer timer.Stop()
	select {
	case <-h.done:
	case <-timer.C:
		logging.WarnWithContext(logger, "workflow did not stop within grace period", "workflow_stop_timeout",
			logging.Duration("grace", m.stopGrace),
			logging.String(logging.FieldImpact, "the in-flight item finishes in the background"),
			logging.String(logging.FieldErrorHint, "check classifier and upload endpoints for slow responses"),
		)
	case <-ctx.Done():
		return false, fmt.Errorf("%w: %w", ErrStopFailed, ctx.Err())
	}

	m.forget(workflowID, h)

	if err := m.store.UpdateWorkflowStatus(ctx, workflowID, queue.WorkflowStopped, ""); err != nil {
		return false, fmt.Errorf("%w: %w", ErrStopFailed, err)
	}
	name := fmt.Sprintf("%d", workflowID)
	if wf, err := m.store.WorkflowByID(ctx, workflowID); err == nil && wf != nil {
		name = wf.Name
	}
	m.appendLog(ctx, logEntry{
		workflowID: workflowID,
		level:      queue.LevelInfo,
		message:    "Workflow stopped: " + name,
	})
	logger.Info("workflow stopped",
		logging.String(logging.FieldEventType, "workflow_stopped"),
		logging.String("name", name),
	)
	return true, nil
}

// Shutdown stops every live loop in parallel. The stored status of each
// workflow ends up stopped.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	ids := slices.Sorted(maps.Keys(m.handles))
	m.mu.Unlock()
	if len(ids) == 0 {
		return nil
	}
	m.logger.Info("stopping workflows",
		logging.String(logging.FieldEventType, "workflow_shutdown"),
		logging.Int("count", len(ids)),
	)

	var g errgroup.Group
	for _, id := range ids {
		g.Go(func() error {
			if _, err := m.Stop(ctx, id); err != nil {
				return fmt.Errorf("stop workflow %d: %w", id, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// forget removes h from the registry if it is still current for workflowID.
func (m *Manager) forget(workflowID int64, h *handle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if current, ok := m.handles[workflowID]; ok && current == h {
		delete(m.handles, workflowID)
	}
}

func (m *Manager) markStopped(ctx context.Context, workflowID int64, msg string) {
	if err := m.store.UpdateWorkflowStatus(ctx, workflowID, queue.WorkflowStopped, msg); err != nil && !errors.Is(err, context.Canceled) {
		logging.WarnWithContext(logging.WithContext(ctx, m.logger), "failed to mark workflow stopped", "workflow_status_update_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "stored status may be stale"),
			logging.String(logging.FieldErrorHint, "check database access"),
		)
	}
}
