package testsupport

import (
	"context"
	"testing"

	"autoingest/internal/config"
	"autoingest/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewWorkflow creates a stopped workflow owned by the seeded admin user.
func NewWorkflow(t testing.TB, store *queue.Store, name, sourcePath string, intervalSeconds int) *queue.Workflow {
	t.Helper()

	wf, err := store.CreateWorkflow(context.Background(), queue.NewWorkflow{
		Name:            name,
		UserID:          1,
		SourcePath:      sourcePath,
		IntervalSeconds: intervalSeconds,
	})
	if err != nil {
		t.Fatalf("store.CreateWorkflow: %v", err)
	}
	return wf
}

// Enqueue inserts a pending item with the given checksum.
func Enqueue(t testing.TB, store *queue.Store, workflowID int64, path, checksum string, maxRetries int) *queue.Item {
	t.Helper()

	item := &queue.Item{
		WorkflowID:       workflowID,
		FilePath:         path,
		OriginalFileName: path,
		Checksum:         checksum,
		MaxRetries:       maxRetries,
	}
	if _, err := store.Enqueue(context.Background(), item); err != nil {
		t.Fatalf("store.Enqueue: %v", err)
	}
	return item
}
