package workflow

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"autoingest/internal/config"
	"autoingest/internal/criticality"
	"autoingest/internal/document"
	"autoingest/internal/enrichment"
	"autoingest/internal/queue"
	"autoingest/internal/testsupport"
)

type stubClassifier struct {
	mu    sync.Mutex
	calls []string
	err   error

	entered chan struct{}
	release chan struct{}
}

func (s *stubClassifier) Classify(ctx context.Context, path string) (document.Classification, error) {
	s.mu.Lock()
	s.calls = append(s.calls, filepath.Base(path))
	err := s.err
	entered, release := s.entered, s.release
	s.mu.Unlock()

	if entered != nil {
		select {
		case entered <- struct{}{}:
		default:
		}
	}
	if release != nil {
		<-release
	}
	if err != nil {
		return document.Classification{}, err
	}
	return document.Classification{DocumentType: "Invoice", Confidence: 0.9, Tags: []string{"finance"}}, nil
}

func (s *stubClassifier) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

type recordingNotifier struct {
	mu     sync.Mutex
	halted []string
	faults []string
}

func (n *recordingNotifier) NotifyWorkflowHalted(_ context.Context, workflowName, fileName, reason string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.halted = append(n.halted, workflowName+"|"+fileName+"|"+reason)
	return nil
}

func (n *recordingNotifier) NotifyWorkflowFault(_ context.Context, workflowName string, err error) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.faults = append(n.faults, workflowName+"|"+err.Error())
	return nil
}

func (n *recordingNotifier) TestNotification(context.Context) error { return nil }

func (n *recordingNotifier) snapshot() ([]string, []string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.halted...), append([]string(nil), n.faults...)
}

type harness struct {
	cfg        *config.Config
	store      *queue.Store
	classifier *stubClassifier
	notifier   *recordingNotifier
	manager    *Manager
}

func newHarness(t *testing.T, storeOverride func(*queue.Store) Store, opts ...testsupport.ConfigOption) *harness {
	t.Helper()

	cfg := testsupport.NewConfig(t, opts...)
	store := testsupport.MustOpenStore(t, cfg)
	h := &harness{
		cfg:        cfg,
		store:      store,
		classifier: &stubClassifier{},
		notifier:   &recordingNotifier{},
	}
	var engineStore Store = store
	if storeOverride != nil {
		engineStore = storeOverride(store)
	}
	h.manager = NewManager(cfg, Dependencies{
		Store:      engineStore,
		Classifier: h.classifier,
		Enricher:   enrichment.New(nil, nil),
		Results:    store,
		Rules:      criticality.NewSource(cfg.Engine.CriticalityConfig),
		Notifier:   h.notifier,
	}, nil)
	h.manager.intervalFor = func(*queue.Workflow) time.Duration { return 5 * time.Millisecond }
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = h.manager.Shutdown(ctx)
	})
	return h
}

func (h *harness) workflow(t *testing.T, id int64) *queue.Workflow {
	t.Helper()
	wf, err := h.store.WorkflowByID(context.Background(), id)
	if err != nil || wf == nil {
		t.Fatalf("WorkflowByID(%d): %#v, %v", id, wf, err)
	}
	return wf
}

func (h *harness) items(t *testing.T, workflowID int64) []*queue.Item {
	t.Helper()
	items, err := h.store.ListItems(context.Background(), queue.ItemFilter{WorkflowID: workflowID})
	if err != nil {
		t.Fatalf("ListItems: %v", err)
	}
	return items
}

func (h *harness) logMessages(t *testing.T, workflowID int64) []string {
	t.Helper()
	entries, err := h.store.ListLogs(context.Background(), queue.LogFilter{WorkflowID: workflowID})
	if err != nil {
		t.Fatalf("ListLogs: %v", err)
	}
	messages := make([]string, 0, len(entries))
	for _, entry := range entries {
		messages = append(messages, entry.Message)
	}
	return messages
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func containsMessage(messages []string, want string) bool {
	for _, msg := range messages {
		if msg == want {
			return true
		}
	}
	return false
}

func countPrefix(messages []string, prefix string) int {
	n := 0
	for _, msg := range messages {
		if strings.HasPrefix(msg, prefix) {
			n++
		}
	}
	return n
}

func markRunning(t *testing.T, store *queue.Store, wf *queue.Workflow) {
	t.Helper()
	if err := store.UpdateWorkflowStatus(context.Background(), wf.ID, queue.WorkflowRunning, ""); err != nil {
		t.Fatalf("UpdateWorkflowStatus: %v", err)
	}
	wf.Status = queue.WorkflowRunning
}

func TestStartEnforcesConcurrencyCap(t *testing.T) {
	h := newHarness(t, nil, testsupport.WithMaxConcurrentWorkflows(2))
	h.manager.intervalFor = func(*queue.Workflow) time.Duration { return time.Hour }
	ctx := context.Background()

	first := testsupport.NewWorkflow(t, h.store, "first", t.TempDir(), 30)
	second := testsupport.NewWorkflow(t, h.store, "second", t.TempDir(), 30)
	third := testsupport.NewWorkflow(t, h.store, "third", t.TempDir(), 30)

	for _, wf := range []*queue.Workflow{first, second} {
		started, err := h.manager.Start(ctx, wf.ID)
		if err != nil || !started {
			t.Fatalf("Start(%s) = %v, %v", wf.Name, started, err)
		}
	}

	started, err := h.manager.Start(ctx, third.ID)
	if started || !errors.Is(err, ErrConcurrencyLimit) {
		t.Fatalf("expected concurrency limit, got %v, %v", started, err)
	}
	var limitErr *ConcurrencyLimitError
	if !errors.As(err, &limitErr) || limitErr.Max != 2 {
		t.Fatalf("expected ConcurrencyLimitError{Max: 2}, got %#v", err)
	}
	if err.Error() != "Maximum concurrent workflows (2) reached" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if got := h.workflow(t, third.ID); got.Status != queue.WorkflowStopped || got.ErrorMessage != "" {
		t.Fatalf("third workflow mutated: %#v", got)
	}
	if h.manager.ActiveCount() != 2 {
		t.Fatalf("expected 2 active loops, got %d", h.manager.ActiveCount())
	}

	if stopped, err := h.manager.Stop(ctx, first.ID); err != nil || !stopped {
		t.Fatalf("Stop(first) = %v, %v", stopped, err)
	}
	if h.manager.IsRunning(first.ID) {
		t.Fatal("first workflow still registered after stop")
	}
	if started, err := h.manager.Start(ctx, third.ID); err != nil || !started {
		t.Fatalf("Start(third) after stop = %v, %v", started, err)
	}
	if got := h.workflow(t, third.ID); got.Status != queue.WorkflowRunning {
		t.Fatalf("expected third running, got %s", got.Status)
	}
}

func TestStartTwiceReturnsFalse(t *testing.T) {
	h := newHarness(t, nil)
	h.manager.intervalFor = func(*queue.Workflow) time.Duration { return time.Hour }
	wf := testsupport.NewWorkflow(t, h.store, "scans", t.TempDir(), 30)

	if started, err := h.manager.Start(context.Background(), wf.ID); err != nil || !started {
		t.Fatalf("first Start = %v, %v", started, err)
	}
	started, err := h.manager.Start(context.Background(), wf.ID)
	if err != nil || started {
		t.Fatalf("second Start = %v, %v; want false, nil", started, err)
	}
	if h.manager.ActiveCount() != 1 {
		t.Fatalf("expected one loop, got %d", h.manager.ActiveCount())
	}
	messages := h.logMessages(t, wf.ID)
	if countPrefix(messages, "Workflow started: scans") != 1 {
		t.Fatalf("expected a single start log, got %v", messages)
	}
}

func TestStartRejectsMissingWorkflowAndSourcePath(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	if started, err := h.manager.Start(ctx, 999); started || !errors.Is(err, ErrNotFound) {
		t.Fatalf("Start(missing) = %v, %v", started, err)
	}

	missingDir := filepath.Join(t.TempDir(), "gone")
	wf := testsupport.NewWorkflow(t, h.store, "broken", missingDir, 30)
	started, err := h.manager.Start(ctx, wf.ID)
	if started || !errors.Is(err, ErrInvalidSourcePath) {
		t.Fatalf("Start(bad path) = %v, %v", started, err)
	}
	got := h.workflow(t, wf.ID)
	if got.Status != queue.WorkflowStopped || got.ErrorMessage != "Source path does not exist: "+missingDir {
		t.Fatalf("unexpected workflow state %#v", got)
	}
	if h.manager.ActiveCount() != 0 || h.manager.IsRunning(wf.ID) {
		t.Fatal("failed start left a registered handle")
	}
}

func TestStopWithoutLoopForcesStopped(t *testing.T) {
	h := newHarness(t, nil)
	wf := testsupport.NewWorkflow(t, h.store, "stale", t.TempDir(), 30)
	if err := h.store.UpdateWorkflowStatus(context.Background(), wf.ID, queue.WorkflowRunning, "left over"); err != nil {
		t.Fatalf("UpdateWorkflowStatus: %v", err)
	}

	stopped, err := h.manager.Stop(context.Background(), wf.ID)
	if err != nil || !stopped {
		t.Fatalf("Stop = %v, %v", stopped, err)
	}
	got := h.workflow(t, wf.ID)
	if got.Status != queue.WorkflowStopped || got.ErrorMessage != "" {
		t.Fatalf("expected clean stopped state, got %#v", got)
	}
}

func TestRetryExhaustionStopsWorkflow(t *testing.T) {
	h := newHarness(t, nil, testsupport.WithMaxRetries(3))
	h.classifier.err = errors.New("model unavailable")
	dir := t.TempDir()
	testsupport.WriteFile(t, filepath.Join(dir, "doc.png"), 64, 'x')
	wf := testsupport.NewWorkflow(t, h.store, "inbox", dir, 30)

	if started, err := h.manager.Start(context.Background(), wf.ID); err != nil || !started {
		t.Fatalf("Start = %v, %v", started, err)
	}
	waitFor(t, "loop exit", func() bool { return !h.manager.IsRunning(wf.ID) })

	if calls := h.classifier.callCount(); calls != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", calls)
	}
	items := h.items(t, wf.ID)
	if len(items) != 1 {
		t.Fatalf("expected one item, got %d", len(items))
	}
	item := items[0]
	if item.Status != queue.StatusFailed || item.RetryCount != 3 || item.ErrorMessage != "model unavailable" {
		t.Fatalf("unexpected item %#v", item)
	}

	got := h.workflow(t, wf.ID)
	if got.Status != queue.WorkflowStopped || got.ErrorMessage != "Max retries reached for file: doc.png" {
		t.Fatalf("unexpected workflow %#v", got)
	}
	if got.FailureCount != 1 || got.SuccessCount != 0 {
		t.Fatalf("unexpected counters %d/%d", got.SuccessCount, got.FailureCount)
	}

	messages := h.logMessages(t, wf.ID)
	for _, want := range []string{
		"Processing failed (retry 1/3): doc.png",
		"Processing failed (retry 2/3): doc.png",
		"Failed after 3 retries: doc.png",
	} {
		if !containsMessage(messages, want) {
			t.Fatalf("missing log %q in %v", want, messages)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "doc.png")); err != nil {
		t.Fatalf("failed file should stay in place: %v", err)
	}

	halted, _ := h.notifier.snapshot()
	if len(halted) != 1 || halted[0] != "inbox|doc.png|Max retries reached for file: doc.png" {
		t.Fatalf("unexpected halt notifications %v", halted)
	}
}

func TestCycleProcessesOneItem(t *testing.T) {
	h := newHarness(t, nil)
	dir := t.TempDir()
	for i := 0; i < 5; i++ {
		testsupport.WriteFile(t, filepath.Join(dir, fmt.Sprintf("page%d.jpg", i)), int64(16+i), byte('a'+i))
	}
	wf := testsupport.NewWorkflow(t, h.store, "pages", dir, 30)
	markRunning(t, h.store, wf)

	ctx := context.Background()
	for cycle := 0; cycle < 3; cycle++ {
		mustStop, err := h.manager.runCycle(ctx, wf, criticality.Default())
		if err != nil || mustStop {
			t.Fatalf("cycle %d: mustStop=%v err=%v", cycle, mustStop, err)
		}
	}

	counts := map[queue.Status]int{}
	for _, item := range h.items(t, wf.ID) {
		counts[item.Status]++
		if item.Status == queue.StatusCompleted && item.DocumentID == 0 {
			t.Fatalf("completed item without document: %#v", item)
		}
	}
	if counts[queue.StatusCompleted] != 3 || counts[queue.StatusPending] != 2 || len(counts) != 2 {
		t.Fatalf("unexpected status counts %v", counts)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	renamed := 0
	for _, entry := range entries {
		if strings.Contains(entry.Name(), "_processed") {
			renamed++
		}
	}
	if renamed != 3 {
		t.Fatalf("expected 3 renamed files, got %d", renamed)
	}

	got := h.workflow(t, wf.ID)
	if got.SuccessCount != 3 || got.LastScanAt == nil {
		t.Fatalf("unexpected workflow after cycles %#v", got)
	}
	messages := h.logMessages(t, wf.ID)
	if countPrefix(messages, "Starting folder scan") != 3 {
		t.Fatalf("expected 3 scan logs, got %v", messages)
	}
	if countPrefix(messages, "File added to queue: ") != 5 {
		t.Fatalf("expected 5 enqueue logs, got %v", messages)
	}
	if countPrefix(messages, "Successfully processed: ") != 3 {
		t.Fatalf("expected 3 success logs, got %v", messages)
	}
}

func TestScanSkipsDuplicateContent(t *testing.T) {
	h := newHarness(t, nil)
	dir := t.TempDir()
	testsupport.WriteText(t, filepath.Join(dir, "a.jpg"), "same bytes")
	testsupport.WriteText(t, filepath.Join(dir, "b.jpg"), "same bytes")
	testsupport.WriteText(t, filepath.Join(dir, "notes.txt"), "ignored")
	if err := os.Mkdir(filepath.Join(dir, "nested.png"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	wf := testsupport.NewWorkflow(t, h.store, "dups", dir, 30)
	ctx := context.Background()

	candidates := h.manager.scan(ctx, wf)
	if len(candidates) != 1 || candidates[0].Name != "a.jpg" {
		t.Fatalf("expected only a.jpg, got %#v", candidates)
	}
	if !containsMessage(h.logMessages(t, wf.ID), "Duplicate content skipped: b.jpg") {
		t.Fatal("expected duplicate log for b.jpg")
	}
	h.manager.enqueue(ctx, wf, candidates[0])

	testsupport.WriteText(t, filepath.Join(dir, "copy.JPEG"), "same bytes")
	if again := h.manager.scan(ctx, wf); len(again) != 0 {
		t.Fatalf("expected no new candidates after enqueue, got %#v", again)
	}
	if items := h.items(t, wf.ID); len(items) != 1 {
		t.Fatalf("expected a single queued item, got %d", len(items))
	}
}

func TestStopWaitsForInFlightStep(t *testing.T) {
	h := newHarness(t, nil)
	h.classifier.entered = make(chan struct{}, 1)
	h.classifier.release = make(chan struct{})
	dir := t.TempDir()
	testsupport.WriteFile(t, filepath.Join(dir, "scan.png"), 32, 'z')
	wf := testsupport.NewWorkflow(t, h.store, "slow", dir, 30)

	if started, err := h.manager.Start(context.Background(), wf.ID); err != nil || !started {
		t.Fatalf("Start = %v, %v", started, err)
	}
	select {
	case <-h.classifier.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("classifier never called")
	}

	type result struct {
		stopped bool
		err     error
	}
	done := make(chan result, 1)
	go func() {
		stopped, err := h.manager.Stop(context.Background(), wf.ID)
		done <- result{stopped, err}
	}()
	waitFor(t, "stop request", func() bool {
		snaps := h.manager.Snapshots()
		return len(snaps) == 1 && snaps[0].StopRequested
	})
	close(h.classifier.release)

	var res result
	select {
	case res = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return")
	}
	if res.err != nil || !res.stopped {
		t.Fatalf("Stop = %v, %v", res.stopped, res.err)
	}
	if h.manager.IsRunning(wf.ID) {
		t.Fatal("handle still registered after stop")
	}
	got := h.workflow(t, wf.ID)
	if got.Status != queue.WorkflowStopped {
		t.Fatalf("expected stopped, got %s", got.Status)
	}
	items := h.items(t, wf.ID)
	if len(items) != 1 || items[0].Status != queue.StatusPending || items[0].RetryCount != 0 {
		t.Fatalf("interrupted item should be pending with no retry consumed: %#v", items)
	}
	if !containsMessage(h.logMessages(t, wf.ID), "Workflow stopped: slow") {
		t.Fatal("expected stop log")
	}
}

func TestStopReturnsAfterGracePeriod(t *testing.T) {
	h := newHarness(t, nil)
	h.manager.stopGrace = 20 * time.Millisecond
	h.classifier.entered = make(chan struct{}, 1)
	h.classifier.release = make(chan struct{})
	dir := t.TempDir()
	testsupport.WriteFile(t, filepath.Join(dir, "stuck.png"), 32, 'q')
	wf := testsupport.NewWorkflow(t, h.store, "stuck", dir, 30)

	if started, err := h.manager.Start(context.Background(), wf.ID); err != nil || !started {
		t.Fatalf("Start = %v, %v", started, err)
	}
	<-h.classifier.entered

	stopped, err := h.manager.Stop(context.Background(), wf.ID)
	if err != nil || !stopped {
		t.Fatalf("Stop = %v, %v", stopped, err)
	}
	if h.manager.IsRunning(wf.ID) {
		t.Fatal("handle should be dropped after the grace period")
	}

	close(h.classifier.release)
	waitFor(t, "interrupted item rollback", func() bool {
		items := h.items(t, wf.ID)
		return len(items) == 1 && items[0].Status == queue.StatusPending
	})
	if got := h.workflow(t, wf.ID); got.Status != queue.WorkflowStopped {
		t.Fatalf("late loop exit changed status to %s", got.Status)
	}
}

func TestSleepIsCancellable(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	start := time.Now()
	if sleepContext(ctx, time.Hour) {
		t.Fatal("expected sleep to report cancellation")
	}
	if time.Since(start) > 5*time.Second {
		t.Fatal("sleep ignored cancellation")
	}
	if !sleepContext(context.Background(), time.Millisecond) {
		t.Fatal("expected short sleep to complete")
	}
}

type flakyStore struct {
	*queue.Store

	mu        sync.Mutex
	calls     int
	failAfter int
}

func (s *flakyStore) WorkflowByID(ctx context.Context, id int64) (*queue.Workflow, error) {
	s.mu.Lock()
	s.calls++
	fail := s.calls > s.failAfter
	s.mu.Unlock()
	if fail {
		return nil, errors.New("database is locked")
	}
	return s.Store.WorkflowByID(ctx, id)
}

func TestLoopFaultSetsErrorStatus(t *testing.T) {
	h := newHarness(t, func(store *queue.Store) Store {
		return &flakyStore{Store: store, failAfter: 1}
	})
	wf := testsupport.NewWorkflow(t, h.store, "faulty", t.TempDir(), 30)

	if started, err := h.manager.Start(context.Background(), wf.ID); err != nil || !started {
		t.Fatalf("Start = %v, %v", started, err)
	}
	waitFor(t, "loop exit", func() bool { return !h.manager.IsRunning(wf.ID) })

	got := h.workflow(t, wf.ID)
	if got.Status != queue.WorkflowError || !strings.Contains(got.ErrorMessage, "database is locked") {
		t.Fatalf("expected error status, got %#v", got)
	}
	_, faults := h.notifier.snapshot()
	if len(faults) != 1 {
		t.Fatalf("expected one fault notification, got %v", faults)
	}
}

func TestShutdownStopsAllLoops(t *testing.T) {
	h := newHarness(t, nil)
	h.manager.intervalFor = func(*queue.Workflow) time.Duration { return time.Hour }
	a := testsupport.NewWorkflow(t, h.store, "a", t.TempDir(), 30)
	b := testsupport.NewWorkflow(t, h.store, "b", t.TempDir(), 30)
	for _, wf := range []*queue.Workflow{a, b} {
		if _, err := h.manager.Start(context.Background(), wf.ID); err != nil {
			t.Fatalf("Start(%s): %v", wf.Name, err)
		}
	}

	if err := h.manager.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if h.manager.ActiveCount() != 0 {
		t.Fatalf("expected no loops, got %d", h.manager.ActiveCount())
	}
	for _, wf := range []*queue.Workflow{a, b} {
		if got := h.workflow(t, wf.ID); got.Status != queue.WorkflowStopped {
			t.Fatalf("workflow %s status %s", wf.Name, got.Status)
		}
	}
}
