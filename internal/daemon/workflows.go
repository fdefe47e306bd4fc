package daemon

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"autoingest/internal/api"
	"autoingest/internal/fileutil"
	"autoingest/internal/logging"
	"autoingest/internal/queue"
	"autoingest/internal/services"
)

// AddWorkflowRequest describes a new folder-watch workflow.
type AddWorkflowRequest struct {
	Name            string
	UserID          int64
	SourcePath      string
	IntervalSeconds int
}

// AddWorkflow validates and stores a stopped workflow.
func (d *Daemon) AddWorkflow(ctx context.Context, req AddWorkflowRequest) (*api.Workflow, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, services.Wrap(services.ErrValidation, "daemon", "add workflow", "workflow name is required", nil)
	}
	source := strings.TrimSpace(req.SourcePath)
	if source == "" {
		return nil, services.Wrap(services.ErrValidation, "daemon", "add workflow", "source path is required", nil)
	}
	absPath, err := filepath.Abs(source)
	if err != nil {
		return nil, fmt.Errorf("resolve source path: %w", err)
	}
	if err := fileutil.CheckDirAccess(absPath); err != nil {
		return nil, services.Wrap(services.ErrValidation, "daemon", "add workflow", "source path is not an accessible directory", err)
	}
	user, err := d.store.UserByID(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, services.Wrap(services.ErrNotFound, "daemon", "add workflow", fmt.Sprintf("user %d not found", req.UserID), nil)
	}
	interval := req.IntervalSeconds
	if interval <= 0 {
		interval = d.cfg.Engine.DefaultIntervalSeconds
	}

	wf, err := d.store.CreateWorkflow(ctx, queue.NewWorkflow{
		Name:            name,
		UserID:          user.ID,
		SourcePath:      absPath,
		IntervalSeconds: interval,
	})
	if err != nil {
		return nil, err
	}
	d.logger.Info("workflow added",
		logging.String(logging.FieldEventType, "workflow_added"),
		logging.Int64(logging.FieldWorkflowID, wf.ID),
		logging.String("name", wf.Name),
		logging.String("source_path", wf.SourcePath),
	)
	dto := d.workflowView(wf)
	return &dto, nil
}

// ListWorkflows returns every workflow with its live-loop flag.
func (d *Daemon) ListWorkflows(ctx context.Context) ([]api.Workflow, error) {
	workflows, err := d.store.ListWorkflows(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]api.Workflow, 0, len(workflows))
	for _, wf := range workflows {
		out = append(out, d.workflowView(wf))
	}
	return out, nil
}

// DescribeWorkflow returns one workflow, or nil when it does not exist.
func (d *Daemon) DescribeWorkflow(ctx context.Context, id int64) (*api.Workflow, error) {
	wf, err := d.store.WorkflowByID(ctx, id)
	if err != nil || wf == nil {
		return nil, err
	}
	dto := d.workflowView(wf)
	return &dto, nil
}

// StartWorkflow launches the loop for a workflow. It reports false when a
// loop is already running.
func (d *Daemon) StartWorkflow(ctx context.Context, id int64) (bool, error) {
	if !d.running.Load() {
		return false, errors.New("daemon is not running")
	}
	return d.workflows.Start(ctx, id)
}

// StopWorkflow stops the loop for a workflow and waits up to the grace period.
func (d *Daemon) StopWorkflow(ctx context.Context, id int64) (bool, error) {
	return d.workflows.Stop(ctx, id)
}

// RemoveWorkflow deletes a stopped workflow with its queue and logs.
func (d *Daemon) RemoveWorkflow(ctx context.Context, id int64) (bool, error) {
	if d.workflows.IsRunning(id) {
		return false, queue.ErrWorkflowRunning
	}
	removed, err := d.store.DeleteWorkflow(ctx, id)
	if err != nil {
		return false, err
	}
	if removed {
		d.logger.Info("workflow removed",
			logging.String(logging.FieldEventType, "workflow_removed"),
			logging.Int64(logging.FieldWorkflowID, id),
		)
	}
	return removed, nil
}

// AddUser creates the owner record workflows are attributed to.
func (d *Daemon) AddUser(ctx context.Context, username, fullName, email, role string) (*queue.User, error) {
	user, err := d.store.CreateUser(ctx, username, fullName, email, role)
	if err != nil {
		return nil, err
	}
	d.logger.Info("user added",
		logging.String(logging.FieldEventType, "user_added"),
		logging.Int64("user_id", user.ID),
		logging.String("username", user.Username),
	)
	return user, nil
}

func (d *Daemon) workflowView(wf *queue.Workflow) api.Workflow {
	dto := api.FromWorkflow(wf)
	for _, snap := range d.workflows.Snapshots() {
		if snap.WorkflowID == wf.ID {
			dto.Active = true
			dto.StartedAt = api.FormatTime(snap.StartedAt)
			break
		}
	}
	return dto
}
