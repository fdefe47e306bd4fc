package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// NewWorkflow describes a workflow to create.
type NewWorkflow struct {
	Name            string
	UserID          int64
	SourcePath      string
	IntervalSeconds int
}

// CreateWorkflow inserts a stopped workflow.
func (s *Store) CreateWorkflow(ctx context.Context, spec NewWorkflow) (*Workflow, error) {
	name := strings.TrimSpace(spec.Name)
	if name == "" {
		return nil, errors.New("workflow name is required")
	}
	if strings.TrimSpace(spec.SourcePath) == "" {
		return nil, errors.New("workflow source path is required")
	}
	if spec.IntervalSeconds <= 0 {
		return nil, errors.New("workflow interval must be positive")
	}
	if spec.UserID <= 0 {
		spec.UserID = 1
	}
	timestamp := s.timestamp()
	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO workflows (name, user_id, source_path, interval_seconds, status, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		name,
		spec.UserID,
		spec.SourcePath,
		spec.IntervalSeconds,
		WorkflowStopped,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert workflow: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.WorkflowByID(ctx, id)
}

// WorkflowByID fetches a workflow. A missing workflow returns (nil, nil).
func (s *Store) WorkflowByID(ctx context.Context, id int64) (*Workflow, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+workflowColumns+` FROM workflows WHERE id = ?`, id)
	wf, err := scanWorkflow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get workflow: %w", err)
	}
	return wf, nil
}

// ListWorkflows returns workflows ordered by id, optionally filtered by status.
func (s *Store) ListWorkflows(ctx context.Context, statuses ...WorkflowStatus) ([]*Workflow, error) {
	query := `SELECT ` + workflowColumns + ` FROM workflows`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + makePlaceholders(len(statuses)) + `)`
		for _, status := range statuses {
			args = append(args, status)
		}
	}
	query += ` ORDER BY id`
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list workflows: %w", err)
	}
	defer rows.Close()

	var workflows []*Workflow
	for rows.Next() {
		wf, err := scanWorkflow(rows)
		if err != nil {
			return nil, err
		}
		workflows = append(workflows, wf)
	}
	return workflows, rows.Err()
}

// DeleteWorkflow removes a workflow and its queue and log rows. Running
// workflows are rejected with ErrWorkflowRunning.
func (s *Store) DeleteWorkflow(ctx context.Context, id int64) (bool, error) {
	wf, err := s.WorkflowByID(ctx, id)
	if err != nil {
		return false, err
	}
	if wf == nil {
		return false, nil
	}
	if wf.Status == WorkflowRunning {
		return false, ErrWorkflowRunning
	}
	res, err := s.execWithRetry(ctx, `DELETE FROM workflows WHERE id = ? AND status != ?`, id, WorkflowRunning)
	if err != nil {
		return false, fmt.Errorf("delete workflow: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// UpdateWorkflowStatus sets the workflow status and replaces its error
// message. An empty message clears it.
func (s *Store) UpdateWorkflowStatus(ctx context.Context, id int64, status WorkflowStatus, errMsg string) error {
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE workflows SET status = ?, error_message = ?, updated_at = ? WHERE id = ?`,
		status,
		nullableString(errMsg),
		s.timestamp(),
		id,
	); err != nil {
		return fmt.Errorf("update workflow status: %w", err)
	}
	return nil
}

// UpdateScanTimestamp records when the workflow last scanned its directory.
func (s *Store) UpdateScanTimestamp(ctx context.Context, id int64, at time.Time) error {
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE workflows SET last_scan_at = ?, updated_at = ? WHERE id = ?`,
		at.UTC().Format(time.RFC3339Nano),
		s.timestamp(),
		id,
	); err != nil {
		return fmt.Errorf("update scan timestamp: %w", err)
	}
	return nil
}

// IncrementWorkflowStats bumps the success or failure counter.
func (s *Store) IncrementWorkflowStats(ctx context.Context, id int64, success bool) error {
	column := "failure_count"
	if success {
		column = "success_count"
	}
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE workflows SET `+column+` = `+column+` + 1, updated_at = ? WHERE id = ?`,
		s.timestamp(),
		id,
	); err != nil {
		return fmt.Errorf("increment workflow stats: %w", err)
	}
	return nil
}

// ReconcileRunning moves workflows left running by a previous process to
// stopped with reason, returning the affected workflows.
func (s *Store) ReconcileRunning(ctx context.Context, reason string) ([]*Workflow, error) {
	running, err := s.ListWorkflows(ctx, WorkflowRunning)
	if err != nil {
		return nil, err
	}
	for _, wf := range running {
		if err := s.UpdateWorkflowStatus(ctx, wf.ID, WorkflowStopped, reason); err != nil {
			return nil, err
		}
		wf.Status = WorkflowStopped
		wf.ErrorMessage = reason
	}
	return running, nil
}
