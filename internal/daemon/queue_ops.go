package daemon

import (
	"context"

	"autoingest/internal/api"
	"autoingest/internal/logging"
	"autoingest/internal/queue"
)

// ListQueue returns queue items of a workflow (all when workflowID <= 0)
// filtered by optional statuses.
func (d *Daemon) ListQueue(ctx context.Context, workflowID int64, statuses []queue.Status) ([]api.QueueItem, error) {
	return d.queueSvc.List(ctx, workflowID, statuses...)
}

// DescribeQueueItem returns one queue item, or nil when it does not exist.
func (d *Daemon) DescribeQueueItem(ctx context.Context, id int64) (*api.QueueItem, error) {
	return d.queueSvc.Describe(ctx, id)
}

// QueueStats returns item counts per status.
func (d *Daemon) QueueStats(ctx context.Context, workflowID int64) (map[string]int, error) {
	return d.queueSvc.Stats(ctx, workflowID)
}

// QueueHealth returns aggregate queue diagnostics.
func (d *Daemon) QueueHealth(ctx context.Context, workflowID int64) (api.QueueHealth, error) {
	health, err := d.store.Health(ctx, workflowID)
	if err != nil {
		return api.QueueHealth{}, err
	}
	return api.FromHealthSummary(health), nil
}

// DatabaseHealth returns detailed database diagnostics.
func (d *Daemon) DatabaseHealth(ctx context.Context) (queue.DatabaseHealth, error) {
	return d.store.CheckHealth(ctx)
}

// ResetStuck transitions items left in processing back to pending. The retry
// count is left untouched.
func (d *Daemon) ResetStuck(ctx context.Context, workflowID int64) (int64, error) {
	updated, err := d.store.ResetStuckProcessing(ctx, workflowID)
	if err != nil {
		return 0, err
	}
	d.logger.Info("stuck queue items reset",
		logging.String(logging.FieldEventType, "queue_reset_stuck"),
		logging.Int64(logging.FieldWorkflowID, workflowID),
		logging.Int64("updated_count", updated),
	)
	return updated, nil
}

// RetryFailed resets failed items (optionally a subset) back to pending with
// a fresh retry budget.
func (d *Daemon) RetryFailed(ctx context.Context, workflowID int64, ids []int64) (int64, error) {
	updated, err := d.store.RetryFailed(ctx, workflowID, ids...)
	if err != nil {
		return 0, err
	}
	d.logger.Info("failed queue items retried",
		logging.String(logging.FieldEventType, "queue_retry"),
		logging.Int64(logging.FieldWorkflowID, workflowID),
		logging.Int64("updated_count", updated),
	)
	return updated, nil
}

// ClearQueue removes queue items, optionally limited to statuses.
func (d *Daemon) ClearQueue(ctx context.Context, workflowID int64, statuses []queue.Status) (int64, error) {
	removed, err := d.store.Clear(ctx, workflowID, statuses...)
	if err != nil {
		return 0, err
	}
	d.logger.Info("queue cleared",
		logging.String(logging.FieldEventType, "queue_clear"),
		logging.Int64(logging.FieldWorkflowID, workflowID),
		logging.Int64("removed_count", removed),
	)
	return removed, nil
}

// Logs returns workflow log entries after filter.AfterID and the next cursor.
func (d *Daemon) Logs(ctx context.Context, filter queue.LogFilter) ([]api.LogEntry, int64, error) {
	return d.queueSvc.Logs(ctx, filter)
}
