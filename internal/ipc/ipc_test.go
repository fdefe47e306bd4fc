package ipc_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"autoingest/internal/daemon"
	"autoingest/internal/document"
	"autoingest/internal/enrichment"
	"autoingest/internal/ipc"
	"autoingest/internal/logging"
	"autoingest/internal/queue"
	"autoingest/internal/testsupport"
	"autoingest/internal/workflow"
)

type noopClassifier struct{}

func (noopClassifier) Classify(context.Context, string) (document.Classification, error) {
	return document.Classification{DocumentType: "Letter", Confidence: 0.7}, nil
}

func startServer(t *testing.T) (*ipc.Client, *queue.Store, string) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Paths.APIBind = ""
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	store := testsupport.MustOpenStore(t, cfg)
	logger := logging.NewNop()
	mgr := workflow.NewManager(cfg, workflow.Dependencies{
		Store:      store,
		Classifier: noopClassifier{},
		Enricher:   enrichment.New(nil, logger),
		Results:    store,
	}, logger)
	d, err := daemon.New(cfg, store, logger, mgr)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}
	t.Cleanup(d.Stop)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	socket := cfg.SocketPath()
	srv, err := ipc.NewServer(ctx, socket, d, logger)
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping IPC server test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(srv.Close)

	time.Sleep(50 * time.Millisecond)

	client, err := ipc.Dial(socket)
	if err != nil {
		t.Fatalf("ipc.Dial: %v", err)
	}
	t.Cleanup(func() {
		client.Close()
	})
	return client, store, testsupport.BaseDir(cfg)
}

func TestIPCServerClient(t *testing.T) {
	client, _, base := startServer(t)

	status, err := client.Status()
	if err != nil {
		t.Fatalf("Status RPC failed: %v", err)
	}
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}
	if status.MaxConcurrent != 2 {
		t.Fatalf("expected default cap of 2, got %d", status.MaxConcurrent)
	}

	source := filepath.Join(base, "inbox")
	if err := os.MkdirAll(source, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	added, err := client.WorkflowAdd(ipc.WorkflowAddRequest{Name: "Inbox", UserID: 1, SourcePath: source, IntervalSeconds: 60})
	if err != nil {
		t.Fatalf("WorkflowAdd RPC failed: %v", err)
	}
	id := added.Workflow.ID

	start, err := client.WorkflowStart(id)
	if err != nil {
		t.Fatalf("WorkflowStart RPC failed: %v", err)
	}
	if !start.Changed {
		t.Fatalf("expected workflow to start: %s", start.Message)
	}
	again, err := client.WorkflowStart(id)
	if err != nil {
		t.Fatalf("second WorkflowStart RPC failed: %v", err)
	}
	if again.Changed || again.Message != "workflow already running" {
		t.Fatalf("expected no-op second start, got %+v", again)
	}

	list, err := client.WorkflowList()
	if err != nil {
		t.Fatalf("WorkflowList RPC failed: %v", err)
	}
	if len(list.Workflows) != 1 || !list.Workflows[0].Active {
		t.Fatalf("unexpected workflow list: %+v", list.Workflows)
	}

	stop, err := client.WorkflowStop(id)
	if err != nil {
		t.Fatalf("WorkflowStop RPC failed: %v", err)
	}
	if !stop.Changed {
		t.Fatal("expected workflow to stop")
	}
	show, err := client.WorkflowShow(id)
	if err != nil {
		t.Fatalf("WorkflowShow RPC failed: %v", err)
	}
	if show.Workflow.Status != string(queue.WorkflowStopped) || show.Workflow.Active {
		t.Fatalf("expected stopped workflow, got %+v", show.Workflow)
	}

	logs, err := client.Logs(ipc.LogsRequest{WorkflowID: id})
	if err != nil {
		t.Fatalf("Logs RPC failed: %v", err)
	}
	if len(logs.Entries) == 0 || logs.Next == 0 {
		t.Fatalf("expected workflow logs, got %+v", logs)
	}
	more, err := client.Logs(ipc.LogsRequest{WorkflowID: id, AfterID: logs.Next})
	if err != nil {
		t.Fatalf("Logs follow RPC failed: %v", err)
	}
	if len(more.Entries) != 0 || more.Next != logs.Next {
		t.Fatalf("expected no new entries after cursor, got %+v", more)
	}
}

func TestIPCQueueMaintenance(t *testing.T) {
	client, store, base := startServer(t)
	ctx := context.Background()

	wf := testsupport.NewWorkflow(t, store, "Scans", base, 30)
	stuck := testsupport.Enqueue(t, store, wf.ID, filepath.Join(base, "a.jpg"), "c1", 3)
	failed := testsupport.Enqueue(t, store, wf.ID, filepath.Join(base, "b.jpg"), "c2", 3)
	if err := store.UpdateItemStatus(ctx, stuck.ID, queue.StatusProcessing, 0, ""); err != nil {
		t.Fatalf("UpdateItemStatus: %v", err)
	}
	if err := store.UpdateItemStatus(ctx, failed.ID, queue.StatusFailed, 0, "boom"); err != nil {
		t.Fatalf("UpdateItemStatus: %v", err)
	}

	stats, err := client.QueueStats(wf.ID)
	if err != nil {
		t.Fatalf("QueueStats RPC failed: %v", err)
	}
	if stats.Counts["processing"] != 1 || stats.Counts["failed"] != 1 {
		t.Fatalf("unexpected stats: %v", stats.Counts)
	}

	if _, err := client.QueueList(wf.ID, []string{"nope"}); err == nil {
		t.Fatal("expected unknown status to be rejected")
	}

	reset, err := client.QueueReset(wf.ID)
	if err != nil || reset.Updated != 1 {
		t.Fatalf("QueueReset = %+v, %v", reset, err)
	}
	retry, err := client.QueueRetry(wf.ID, nil)
	if err != nil || retry.Updated != 1 {
		t.Fatalf("QueueRetry = %+v, %v", retry, err)
	}
	pending, err := client.QueueList(wf.ID, []string{"pending"})
	if err != nil {
		t.Fatalf("QueueList RPC failed: %v", err)
	}
	if len(pending.Items) != 2 {
		t.Fatalf("expected both items pending, got %+v", pending.Items)
	}
	for _, item := range pending.Items {
		if item.RetryCount != 0 {
			t.Fatalf("expected retry count reset, got %+v", item)
		}
	}

	cleared, err := client.QueueClear(wf.ID, []string{"pending"})
	if err != nil || cleared.Removed != 2 {
		t.Fatalf("QueueClear = %+v, %v", cleared, err)
	}

	health, err := client.DatabaseHealth()
	if err != nil {
		t.Fatalf("DatabaseHealth RPC failed: %v", err)
	}
	if !health.DatabaseExists || !health.IntegrityCheck || health.Workflows != 1 {
		t.Fatalf("unexpected database health: %+v", health)
	}
}
