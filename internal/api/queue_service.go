package api

import (
	"context"

	"autoingest/internal/queue"
)

// QueueReader abstracts queue persistence interactions needed for API queries.
type QueueReader interface {
	ListItems(ctx context.Context, filter queue.ItemFilter) ([]*queue.Item, error)
	Stats(ctx context.Context, workflowID int64) (map[queue.Status]int, error)
	GetItem(ctx context.Context, id int64) (*queue.Item, error)
	ListLogs(ctx context.Context, filter queue.LogFilter) ([]*queue.LogEntry, error)
}

// QueueService exposes read-only queue operations returning API DTOs.
type QueueService struct {
	store QueueReader
}

// NewQueueService constructs a QueueService around the provided reader.
func NewQueueService(store QueueReader) *QueueService {
	if store == nil {
		return nil
	}
	return &QueueService{store: store}
}

// List returns queue items of a workflow (all workflows when workflowID <= 0)
// filtered by status.
func (s *QueueService) List(ctx context.Context, workflowID int64, statuses ...queue.Status) ([]QueueItem, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	items, err := s.store.ListItems(ctx, queue.ItemFilter{WorkflowID: workflowID, Statuses: statuses})
	if err != nil {
		return nil, err
	}
	return FromQueueItems(items), nil
}

// Stats returns queue summary counts keyed by status string.
func (s *QueueService) Stats(ctx context.Context, workflowID int64) (map[string]int, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	stats, err := s.store.Stats(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	return MergeQueueStats(stats), nil
}

// Describe fetches a single queue item.
func (s *QueueService) Describe(ctx context.Context, id int64) (*QueueItem, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	item, err := s.store.GetItem(ctx, id)
	if err != nil || item == nil {
		return nil, err
	}
	dto := FromQueueItem(item)
	return &dto, nil
}

// Logs returns log entries matching filter and the cursor a follower should
// pass as AfterID next time. The cursor stays at filter.AfterID when nothing
// new was found.
func (s *QueueService) Logs(ctx context.Context, filter queue.LogFilter) ([]LogEntry, int64, error) {
	if s == nil || s.store == nil {
		return nil, filter.AfterID, nil
	}
	entries, err := s.store.ListLogs(ctx, filter)
	if err != nil {
		return nil, filter.AfterID, err
	}
	next := filter.AfterID
	for _, entry := range entries {
		if entry != nil && entry.ID > next {
			next = entry.ID
		}
	}
	return FromLogEntries(entries), next, nil
}
