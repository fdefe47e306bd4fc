package workflow

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"autoingest/internal/criticality"
	"autoingest/internal/logging"
	"autoingest/internal/queue"
	"autoingest/internal/services"
)

// runLoop drives one workflow until it is cancelled, stops itself, or faults.
func (m *Manager) runLoop(ctx context.Context, workflowID int64, h *handle) {
	logger := logging.WithContext(ctx, m.logger)
	var fault error
	defer func() {
		if r := recover(); r != nil {
			fault = fmt.Errorf("panic in workflow loop: %v", r)
			logging.ErrorWithContext(logger, "workflow loop panicked", "workflow_loop_panic",
				logging.Any("panic", r),
				logging.String("stack", string(debug.Stack())),
			)
		}
		m.finishLoop(workflowID, h, fault)
	}()

	logger.Debug("workflow loop started", logging.String(logging.FieldEventType, "workflow_loop_started"))
	for {
		if ctx.Err() != nil {
			return
		}
		wf, err := m.store.WorkflowByID(ctx, workflowID)
		if err != nil {
			if ctx.Err() == nil {
				fault = fmt.Errorf("load workflow: %w", err)
			}
			return
		}
		if wf == nil || wf.Status != queue.WorkflowRunning {
			logger.Info("workflow no longer running; loop exiting",
				logging.String(logging.FieldEventType, "workflow_loop_exit"),
			)
			return
		}

		rules := m.loadRules(ctx, wf)
		mustStop, err := m.runCycle(ctx, wf, rules)
		switch {
		case ctx.Err() != nil:
			return
		case errors.Is(err, errItemStranded):
			fault = err
			return
		case err != nil:
			m.appendLog(ctx, logEntry{
				workflowID: wf.ID,
				level:      queue.LevelError,
				message:    "Workflow error: " + err.Error(),
			})
		case mustStop:
			logger.Info("workflow halted after exhausting retries",
				logging.String(logging.FieldEventType, "workflow_halted"),
			)
			return
		}

		if !sleepContext(ctx, m.intervalFor(wf)) {
			return
		}
	}
}

// runCycle scans, enqueues, and processes at most one pending item. It
// reports whether the workflow must stop.
func (m *Manager) runCycle(ctx context.Context, wf *queue.Workflow, rules *criticality.Config) (bool, error) {
	m.appendLog(ctx, logEntry{
		workflowID: wf.ID,
		level:      queue.LevelInfo,
		message:    "Starting folder scan",
	})

	for _, candidate := range m.scan(ctx, wf) {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		m.enqueue(ctx, wf, candidate)
	}

	if err := m.store.UpdateScanTimestamp(ctx, wf.ID, m.now()); err != nil {
		return false, fmt.Errorf("update scan timestamp: %w", err)
	}

	item, err := m.store.NextPendingItem(ctx, wf.ID)
	if err != nil {
		return false, fmt.Errorf("fetch next pending item: %w", err)
	}
	if item == nil {
		return false, nil
	}
	outcome, err := m.process(ctx, wf, item, rules)
	if err != nil {
		return false, err
	}
	return outcome == OutcomeWorkflowMustStop, nil
}

// loadRules re-reads the criticality rules each cycle. A bad file keeps the
// previous rules in effect.
func (m *Manager) loadRules(ctx context.Context, wf *queue.Workflow) *criticality.Config {
	rules, err := m.rules.Load()
	if err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, m.logger), "criticality rules reload failed", "criticality_reload_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "previous rules stay in effect"),
			logging.String(logging.FieldErrorHint, "fix the criticality rules file"),
		)
		m.appendLog(ctx, logEntry{
			workflowID: wf.ID,
			level:      queue.LevelWarning,
			message:    "Criticality rules reload failed; using previous rules",
			details:    map[string]any{"error": err.Error()},
		})
	}
	if rules == nil {
		rules = criticality.Default()
	}
	return rules
}

// finishLoop runs exactly once when a loop exits. It repairs the stored status
// (error on fault, stopped when the loop ended while still marked running)
// and then releases the handle. Status is only touched while the handle is
// still registered, so a newer loop for the same workflow is never
// overwritten. A stop whose caller gave up before the loop exited leaves the
// handle registered, so the repair also covers stop requests.
func (m *Manager) finishLoop(workflowID int64, h *handle, fault error) {
	ctx := services.WithWorkflowID(context.Background(), workflowID)
	logger := logging.WithContext(ctx, m.logger)
	defer m.release(workflowID, h)

	m.mu.Lock()
	owned := m.handles[workflowID] == h
	stopRequested := h.stopRequested
	m.mu.Unlock()

	if fault != nil {
		logging.ErrorWithContext(logger, "workflow loop failed", "workflow_fault",
			logging.Error(fault),
			logging.String(logging.FieldErrorHint, "investigate before restarting the workflow"),
		)
		if !owned {
			return
		}
		if err := m.store.UpdateWorkflowStatus(ctx, workflowID, queue.WorkflowError, fault.Error()); err != nil {
			logging.WarnWithContext(logger, "failed to record workflow fault", "workflow_status_update_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "stored status may still read running"),
				logging.String(logging.FieldErrorHint, "check database access"),
			)
		}
		m.appendLog(ctx, logEntry{
			workflowID: workflowID,
			level:      queue.LevelError,
			message:    "Workflow error: " + fault.Error(),
		})
		m.notifyFault(ctx, workflowID, fault)
		return
	}

	if !owned {
		logger.Debug("workflow loop exited", logging.String(logging.FieldEventType, "workflow_loop_exited"))
		return
	}
	wf, err := m.store.WorkflowByID(ctx, workflowID)
	if err != nil {
		logging.WarnWithContext(logger, "failed to reload workflow after loop exit", "workflow_status_update_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "stored status may still read running"),
			logging.String(logging.FieldErrorHint, "check database access"),
		)
		return
	}
	if wf != nil && wf.Status == queue.WorkflowRunning {
		logger.Debug("workflow loop exited; marking stopped",
			logging.String(logging.FieldEventType, "workflow_loop_exited"),
			logging.Bool("stop_requested", stopRequested),
		)
		m.markStopped(ctx, workflowID, "")
	}
}

// sleepContext waits for d or until ctx is done. It reports whether the full
// interval elapsed.
func sleepContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
