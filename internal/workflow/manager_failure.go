package workflow

import (
	"context"
	"errors"
	"fmt"

	"autoingest/internal/logging"
	"autoingest/internal/queue"
)

// errItemStranded reports an item left in processing because neither its
// retry count nor its status could be written. The loop treats it as a fault.
var errItemStranded = errors.New("queue item stranded in processing")

// handleFailure consumes one retry for item. While budget remains the item
// goes back to pending. Once it is spent the item fails and the workflow is
// stopped; the caller must exit its loop. When the retry count cannot be
// recorded the item is returned to pending without consuming budget; if that
// also fails the error wraps errItemStranded.
func (m *Manager) handleFailure(ctx context.Context, wf *queue.Workflow, item *queue.Item, cause error) (Outcome, error) {
	logger := logging.WithContext(ctx, m.logger)
	message := cause.Error()

	count, err := m.store.IncrementRetry(ctx, item.ID)
	if err != nil {
		m.appendLog(ctx, logEntry{
			workflowID: wf.ID,
			itemID:     item.ID,
			level:      queue.LevelError,
			message:    "Workflow error: " + err.Error(),
			filePath:   item.FilePath,
		})
		if resetErr := m.store.UpdateItemStatus(ctx, item.ID, queue.StatusPending, 0, message); resetErr != nil {
			return OutcomeInterrupted, fmt.Errorf("%w: item %d: record retry: %w; reset to pending: %w",
				errItemStranded, item.ID, err, resetErr)
		}
		logging.WarnWithContext(logger, "failed to record retry; item returned to pending", "item_retry_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "this attempt does not count against the retry budget"),
			logging.String(logging.FieldErrorHint, "check database access"),
		)
		return OutcomeRetryScheduled, nil
	}

	if count < item.MaxRetries {
		if err := m.store.UpdateItemStatus(ctx, item.ID, queue.StatusPending, 0, message); err != nil {
			return OutcomeInterrupted, fmt.Errorf("%w: item %d: reschedule: %w", errItemStranded, item.ID, err)
		}
		m.appendLog(ctx, logEntry{
			workflowID: wf.ID,
			itemID:     item.ID,
			level:      queue.LevelWarning,
			message:    fmt.Sprintf("Processing failed (retry %d/%d): %s", count, item.MaxRetries, item.OriginalFileName),
			filePath:   item.FilePath,
			details:    map[string]any{"error": message},
		})
		return OutcomeRetryScheduled, nil
	}

	if err := m.store.UpdateItemStatus(ctx, item.ID, queue.StatusFailed, 0, message); err != nil {
		logging.WarnWithContext(logger, "failed to mark item failed", "item_status_update_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "item may still read processing"),
			logging.String(logging.FieldErrorHint, "check database access"),
		)
	}
	m.incrementStats(ctx, wf.ID, false)
	reason := "Max retries reached for file: " + item.OriginalFileName
	m.markStopped(ctx, wf.ID, reason)
	m.appendLog(ctx, logEntry{
		workflowID: wf.ID,
		itemID:     item.ID,
		level:      queue.LevelError,
		message:    fmt.Sprintf("Failed after %d retries: %s", item.MaxRetries, item.OriginalFileName),
		filePath:   item.FilePath,
		details:    map[string]any{"error": message},
	})
	m.notifyHalted(ctx, wf, item, reason)
	return OutcomeWorkflowMustStop, nil
}
