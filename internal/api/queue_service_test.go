package api

import (
	"context"
	"errors"
	"testing"
	"time"

	"autoingest/internal/queue"
)

type mockQueueReader struct {
	items    []*queue.Item
	stats    map[queue.Status]int
	logs     []*queue.LogEntry
	filter   queue.ItemFilter
	itemErr  error
	statsErr error
}

func (m *mockQueueReader) ListItems(_ context.Context, filter queue.ItemFilter) ([]*queue.Item, error) {
	m.filter = filter
	return m.items, m.itemErr
}

func (m *mockQueueReader) Stats(context.Context, int64) (map[queue.Status]int, error) {
	return m.stats, m.statsErr
}

func (m *mockQueueReader) GetItem(context.Context, int64) (*queue.Item, error) {
	if len(m.items) == 0 {
		return nil, m.itemErr
	}
	return m.items[0], m.itemErr
}

func (m *mockQueueReader) ListLogs(context.Context, queue.LogFilter) ([]*queue.LogEntry, error) {
	return m.logs, nil
}

func TestQueueService_List(t *testing.T) {
	now := time.Now().UTC()
	reader := &mockQueueReader{
		items: []*queue.Item{{
			ID:               1,
			WorkflowID:       7,
			OriginalFileName: "receipt.jpg",
			Status:           queue.StatusPending,
			MaxRetries:       3,
			CreatedAt:        now,
			UpdatedAt:        now,
		}},
	}
	svc := NewQueueService(reader)
	got, err := svc.List(context.Background(), 7, queue.StatusPending)
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if reader.filter.WorkflowID != 7 || len(reader.filter.Statuses) != 1 {
		t.Fatalf("unexpected filter: %+v", reader.filter)
	}
	if len(got) != 1 {
		t.Fatalf("unexpected item count: %d", len(got))
	}
	if got[0].OriginalFileName != "receipt.jpg" {
		t.Fatalf("unexpected file name: %q", got[0].OriginalFileName)
	}
	if got[0].Status != string(queue.StatusPending) {
		t.Fatalf("unexpected status: %q", got[0].Status)
	}
	if got[0].CreatedAt == "" || got[0].UpdatedAt == "" {
		t.Fatalf("expected timestamps to be formatted")
	}
}

func TestQueueService_ListError(t *testing.T) {
	reader := &mockQueueReader{itemErr: errors.New("boom")}
	svc := NewQueueService(reader)
	if _, err := svc.List(context.Background(), 0); err == nil {
		t.Fatal("expected error")
	}
}

func TestQueueService_StatsFillsMissingStatuses(t *testing.T) {
	reader := &mockQueueReader{stats: map[queue.Status]int{queue.StatusFailed: 2}}
	svc := NewQueueService(reader)
	got, err := svc.Stats(context.Background(), 0)
	if err != nil {
		t.Fatalf("Stats returned error: %v", err)
	}
	if got["failed"] != 2 {
		t.Fatalf("expected failed=2, got %d", got["failed"])
	}
	for _, status := range queue.AllStatuses() {
		if _, ok := got[string(status)]; !ok {
			t.Fatalf("missing status %q in %v", status, got)
		}
	}
}

func TestQueueService_Describe(t *testing.T) {
	svc := NewQueueService(&mockQueueReader{})
	item, err := svc.Describe(context.Background(), 4)
	if err != nil {
		t.Fatalf("Describe returned error: %v", err)
	}
	if item != nil {
		t.Fatalf("expected nil for missing item, got %+v", item)
	}
}

func TestQueueService_LogsAdvancesCursor(t *testing.T) {
	reader := &mockQueueReader{logs: []*queue.LogEntry{
		{ID: 11, WorkflowID: 1, Level: queue.LevelInfo, Message: "Starting folder scan"},
		{ID: 12, WorkflowID: 1, QueueItemID: 3, Level: queue.LevelSuccess, Message: "Successfully processed: a.jpg", Details: map[string]any{"document_id": 9}},
	}}
	svc := NewQueueService(reader)
	entries, next, err := svc.Logs(context.Background(), queue.LogFilter{WorkflowID: 1, AfterID: 10})
	if err != nil {
		t.Fatalf("Logs returned error: %v", err)
	}
	if next != 12 {
		t.Fatalf("expected cursor 12, got %d", next)
	}
	if len(entries) != 2 || entries[1].ItemID != 3 || entries[1].Details["document_id"] != 9 {
		t.Fatalf("unexpected entries: %+v", entries)
	}

	reader.logs = nil
	_, next, err = svc.Logs(context.Background(), queue.LogFilter{WorkflowID: 1, AfterID: 12})
	if err != nil {
		t.Fatalf("Logs returned error: %v", err)
	}
	if next != 12 {
		t.Fatalf("expected cursor to stay at 12, got %d", next)
	}
}

func TestNilQueueService(t *testing.T) {
	if svc := NewQueueService(nil); svc != nil {
		t.Fatal("expected nil service for nil reader")
	}
	var svc *QueueService
	items, err := svc.List(context.Background(), 0)
	if err != nil || items != nil {
		t.Fatalf("expected nil result, got %v %v", items, err)
	}
}
