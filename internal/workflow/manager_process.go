package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"autoingest/internal/criticality"
	"autoingest/internal/document"
	"autoingest/internal/fileutil"
	"autoingest/internal/logging"
	"autoingest/internal/queue"
	"autoingest/internal/services"
)

// errInterrupted marks an attempt abandoned between steps because the loop
// was cancelled.
var errInterrupted = errors.New("processing interrupted")

// process runs one attempt for item. Cancellation is observed between steps;
// an in-flight classifier, upload, or persistence call is allowed to finish.
// The returned error is non-nil only when the item could not be claimed or
// was left stranded in processing.
func (m *Manager) process(ctx context.Context, wf *queue.Workflow, item *queue.Item, rules *criticality.Config) (Outcome, error) {
	ctx = services.WithItemID(services.WithRequestID(ctx, uuid.NewString()), item.ID)
	logger := logging.WithContext(ctx, m.logger)
	work := context.WithoutCancel(ctx)

	if err := m.store.UpdateItemStatus(ctx, item.ID, queue.StatusProcessing, 0, ""); err != nil {
		return OutcomeInterrupted, fmt.Errorf("mark item processing: %w", err)
	}
	m.appendLog(ctx, logEntry{
		workflowID: wf.ID,
		itemID:     item.ID,
		level:      queue.LevelInfo,
		message:    "Processing file: " + item.OriginalFileName,
		filePath:   item.FilePath,
	})

	docID, result, err := m.attempt(ctx, work, wf, item, rules)
	if errors.Is(err, errInterrupted) {
		m.rollbackInterrupted(work, item)
		return OutcomeInterrupted, nil
	}
	if err != nil {
		logger.Warn("processing attempt failed",
			logging.String(logging.FieldEventType, "item_attempt_failed"),
			logging.String("error_kind", services.Kind(err)),
			logging.Error(err),
			logging.String(logging.FieldImpact, "item retried on a later cycle unless its budget is spent"),
			logging.String(logging.FieldErrorHint, "see the workflow log for the failing step"),
		)
		return m.handleFailure(work, wf, item, err)
	}

	finalPath, err := fileutil.RenameProcessed(item.FilePath, m.now())
	if err != nil {
		finalPath = item.FilePath
		m.appendLog(work, logEntry{
			workflowID: wf.ID,
			itemID:     item.ID,
			level:      queue.LevelWarning,
			message:    "Rename after processing failed: " + item.OriginalFileName,
			filePath:   item.FilePath,
			details:    map[string]any{"error": err.Error()},
		})
	}
	m.incrementStats(work, wf.ID, true)
	m.appendLog(work, logEntry{
		workflowID: wf.ID,
		itemID:     item.ID,
		level:      queue.LevelSuccess,
		message:    "Successfully processed: " + item.OriginalFileName,
		filePath:   finalPath,
		details: map[string]any{
			"document_type": result.DocumentType,
			"criticality":   result.Criticality,
			"document_id":   docID,
		},
	})
	return OutcomeCompleted, nil
}

// attempt runs the steps that count against the retry budget: user lookup,
// classification, enrichment and upload, persistence, and marking the item
// completed. It returns errInterrupted when ctx is cancelled before the
// upload step.
func (m *Manager) attempt(ctx, work context.Context, wf *queue.Workflow, item *queue.Item, rules *criticality.Config) (int64, document.Result, error) {
	user, err := m.store.UserByID(work, wf.UserID)
	if err != nil {
		return 0, document.Result{}, fmt.Errorf("resolve user: %w", err)
	}
	if user == nil {
		return 0, document.Result{}, services.Wrap(services.ErrNotFound, "workflow", "resolve user",
			fmt.Sprintf("User not found for workflow: %d", wf.UserID), nil)
	}
	if ctx.Err() != nil {
		return 0, document.Result{}, errInterrupted
	}

	start := m.now()
	cls, err := m.classifier.Classify(work, item.FilePath)
	if err != nil {
		return 0, document.Result{}, err
	}
	if ctx.Err() != nil {
		return 0, document.Result{}, errInterrupted
	}
	result, err := m.enricher.AssignCriticalityAndUpload(work, item.FilePath, cls, rules)
	if err != nil {
		return 0, result, err
	}
	end := m.now()

	docID, err := m.results.PersistProcessingResult(work, item.FilePath, result, start, end, user)
	if err != nil {
		return 0, result, fmt.Errorf("persist result: %w", err)
	}
	if err := m.store.UpdateItemStatus(work, item.ID, queue.StatusCompleted, docID, ""); err != nil {
		return docID, result, fmt.Errorf("mark item completed: %w", err)
	}
	return docID, result, nil
}

func (m *Manager) rollbackInterrupted(ctx context.Context, item *queue.Item) {
	logger := logging.WithContext(ctx, m.logger)
	if err := m.store.UpdateItemStatus(ctx, item.ID, queue.StatusPending, 0, ""); err != nil {
		logging.WarnWithContext(logger, "failed to return interrupted item to pending", "item_rollback_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "item stays in processing until reset"),
			logging.String(logging.FieldErrorHint, "run: autoingest queue reset-stuck"),
		)
		return
	}
	logger.Info("processing interrupted; item returned to pending",
		logging.String(logging.FieldEventType, "item_interrupted"),
		logging.String(logging.FieldFile, item.OriginalFileName),
	)
}

func (m *Manager) incrementStats(ctx context.Context, workflowID int64, success bool) {
	if err := m.store.IncrementWorkflowStats(ctx, workflowID, success); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, m.logger), "failed to update workflow counters", "workflow_stats_failed",
			logging.Error(err),
			logging.Bool("success", success),
			logging.String(logging.FieldImpact, "workflow counters undercount"),
			logging.String(logging.FieldErrorHint, "check database access"),
		)
	}
}
