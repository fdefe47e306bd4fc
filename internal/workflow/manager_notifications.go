package workflow

import (
	"context"
	"fmt"

	"autoingest/internal/logging"
	"autoingest/internal/queue"
)

func (m *Manager) notifyHalted(ctx context.Context, wf *queue.Workflow, item *queue.Item, reason string) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.NotifyWorkflowHalted(ctx, wf.Name, item.OriginalFileName, reason); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, m.logger), "workflow halt notification failed", "notification_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "operator not alerted about the stopped workflow"),
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
		)
	}
}

func (m *Manager) notifyFault(ctx context.Context, workflowID int64, fault error) {
	if m.notifier == nil {
		return
	}
	name := fmt.Sprintf("workflow %d", workflowID)
	if wf, err := m.store.WorkflowByID(ctx, workflowID); err == nil && wf != nil {
		name = wf.Name
	}
	if err := m.notifier.NotifyWorkflowFault(ctx, name, fault); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, m.logger), "workflow fault notification failed", "notification_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "operator not alerted about the workflow error"),
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
		)
	}
}
