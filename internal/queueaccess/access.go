// Package queueaccess gives CLI commands one queue interface whether the
// daemon is reachable over IPC or the database must be opened directly.
package queueaccess

import (
	"context"
	"fmt"

	"autoingest/internal/api"
	"autoingest/internal/ipc"
	"autoingest/internal/queue"
)

// Access provides queue operations regardless of IPC or direct store backing.
type Access interface {
	Stats(ctx context.Context, workflowID int64) (map[string]int, error)
	List(ctx context.Context, workflowID int64, statuses []string) ([]api.QueueItem, error)
	Describe(ctx context.Context, id int64) (*api.QueueItem, error)
	Health(ctx context.Context, workflowID int64) (api.QueueHealth, error)
	DatabaseHealth(ctx context.Context) (queue.DatabaseHealth, error)
	ResetStuck(ctx context.Context, workflowID int64) (int64, error)
	Retry(ctx context.Context, workflowID int64, ids []int64) (int64, error)
	Clear(ctx context.Context, workflowID int64, statuses []string) (int64, error)
	Logs(ctx context.Context, req ipc.LogsRequest) ([]api.LogEntry, int64, error)
	Direct() bool
}

// NewIPCAccess returns an Access backed by daemon IPC.
func NewIPCAccess(client *ipc.Client) Access {
	return &ipcAccess{client: client}
}

// NewStoreAccess returns an Access backed by direct DB access.
func NewStoreAccess(store *queue.Store) Access {
	return &storeAccess{store: store, service: api.NewQueueService(store)}
}

type ipcAccess struct {
	client *ipc.Client
}

func (a *ipcAccess) Direct() bool { return false }

func (a *ipcAccess) Stats(_ context.Context, workflowID int64) (map[string]int, error) {
	resp, err := a.client.QueueStats(workflowID)
	if err != nil {
		return nil, err
	}
	return resp.Counts, nil
}

func (a *ipcAccess) List(_ context.Context, workflowID int64, statuses []string) ([]api.QueueItem, error) {
	resp, err := a.client.QueueList(workflowID, statuses)
	if err != nil {
		return nil, err
	}
	return resp.Items, nil
}

func (a *ipcAccess) Describe(_ context.Context, id int64) (*api.QueueItem, error) {
	resp, err := a.client.QueueDescribe(id)
	if err != nil {
		return nil, err
	}
	return &resp.Item, nil
}

func (a *ipcAccess) Health(_ context.Context, workflowID int64) (api.QueueHealth, error) {
	resp, err := a.client.QueueHealth(workflowID)
	if err != nil {
		return api.QueueHealth{}, err
	}
	return *resp, nil
}

func (a *ipcAccess) DatabaseHealth(_ context.Context) (queue.DatabaseHealth, error) {
	resp, err := a.client.DatabaseHealth()
	if err != nil {
		return queue.DatabaseHealth{}, err
	}
	return queue.DatabaseHealth{
		DBPath:           resp.DBPath,
		DatabaseExists:   resp.DatabaseExists,
		DatabaseReadable: resp.DatabaseReadable,
		IntegrityCheck:   resp.IntegrityCheck,
		Workflows:        resp.Workflows,
		TotalItems:       resp.TotalItems,
		Error:            resp.Error,
	}, nil
}

func (a *ipcAccess) ResetStuck(_ context.Context, workflowID int64) (int64, error) {
	resp, err := a.client.QueueReset(workflowID)
	if err != nil {
		return 0, err
	}
	return resp.Updated, nil
}

func (a *ipcAccess) Retry(_ context.Context, workflowID int64, ids []int64) (int64, error) {
	resp, err := a.client.QueueRetry(workflowID, ids)
	if err != nil {
		return 0, err
	}
	return resp.Updated, nil
}

func (a *ipcAccess) Clear(_ context.Context, workflowID int64, statuses []string) (int64, error) {
	resp, err := a.client.QueueClear(workflowID, statuses)
	if err != nil {
		return 0, err
	}
	return resp.Removed, nil
}

func (a *ipcAccess) Logs(_ context.Context, req ipc.LogsRequest) ([]api.LogEntry, int64, error) {
	resp, err := a.client.Logs(req)
	if err != nil {
		return nil, req.AfterID, err
	}
	return resp.Entries, resp.Next, nil
}

type storeAccess struct {
	store   *queue.Store
	service *api.QueueService
}

func (a *storeAccess) Direct() bool { return true }

func (a *storeAccess) Stats(ctx context.Context, workflowID int64) (map[string]int, error) {
	return a.service.Stats(ctx, workflowID)
}

func (a *storeAccess) List(ctx context.Context, workflowID int64, statuses []string) ([]api.QueueItem, error) {
	filters, err := parseStatuses(statuses)
	if err != nil {
		return nil, err
	}
	return a.service.List(ctx, workflowID, filters...)
}

func (a *storeAccess) Describe(ctx context.Context, id int64) (*api.QueueItem, error) {
	item, err := a.service.Describe(ctx, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("queue item %d not found", id)
	}
	return item, nil
}

func (a *storeAccess) Health(ctx context.Context, workflowID int64) (api.QueueHealth, error) {
	summary, err := a.store.Health(ctx, workflowID)
	if err != nil {
		return api.QueueHealth{}, err
	}
	return api.FromHealthSummary(summary), nil
}

func (a *storeAccess) DatabaseHealth(ctx context.Context) (queue.DatabaseHealth, error) {
	return a.store.CheckHealth(ctx)
}

func (a *storeAccess) ResetStuck(ctx context.Context, workflowID int64) (int64, error) {
	return a.store.ResetStuckProcessing(ctx, workflowID)
}

func (a *storeAccess) Retry(ctx context.Context, workflowID int64, ids []int64) (int64, error) {
	return a.store.RetryFailed(ctx, workflowID, ids...)
}

func (a *storeAccess) Clear(ctx context.Context, workflowID int64, statuses []string) (int64, error) {
	filters, err := parseStatuses(statuses)
	if err != nil {
		return 0, err
	}
	return a.store.Clear(ctx, workflowID, filters...)
}

func (a *storeAccess) Logs(ctx context.Context, req ipc.LogsRequest) ([]api.LogEntry, int64, error) {
	filter := queue.LogFilter{
		WorkflowID: req.WorkflowID,
		ItemID:     req.ItemID,
		AfterID:    req.AfterID,
		Limit:      req.Limit,
	}
	for _, value := range req.Levels {
		level, ok := queue.ParseLogLevel(value)
		if !ok {
			return nil, req.AfterID, fmt.Errorf("unknown log level %q", value)
		}
		filter.Levels = append(filter.Levels, level)
	}
	return a.service.Logs(ctx, filter)
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
