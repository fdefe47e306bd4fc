package workflow

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"autoingest/internal/config"
	"autoingest/internal/criticality"
	"autoingest/internal/fileutil"
	"autoingest/internal/logging"
	"autoingest/internal/notifications"
	"autoingest/internal/queue"
)

var (
	// ErrConcurrencyLimit is matched by the error Start returns when the cap is reached.
	ErrConcurrencyLimit = errors.New("maximum concurrent workflows reached")
	// ErrNotFound reports a workflow id with no stored record.
	ErrNotFound = errors.New("workflow not found")
	// ErrInvalidSourcePath reports a source directory that is missing or inaccessible.
	ErrInvalidSourcePath = errors.New("invalid source path")
	// ErrStopFailed reports an unexpected failure while stopping a workflow.
	ErrStopFailed = errors.New("workflow stop failed")
)

// ConcurrencyLimitError carries the configured cap. It matches ErrConcurrencyLimit.
type ConcurrencyLimitError struct {
	Max int
}

func (e *ConcurrencyLimitError) Error() string {
	return fmt.Sprintf("Maximum concurrent workflows (%d) reached", e.Max)
}

// Is reports whether target is ErrConcurrencyLimit.
func (e *ConcurrencyLimitError) Is(target error) bool {
	return target == ErrConcurrencyLimit
}

// Dependencies are the collaborators a Manager drives. Rules and Notifier
// default from the config when nil.
type Dependencies struct {
	Store      Store
	Classifier Classifier
	Enricher   Enricher
	Results    ResultStore
	Rules      RulesSource
	Notifier   notifications.Service
}

type handle struct {
	cancel        context.CancelFunc
	done          chan struct{}
	startedAt     time.Time
	stopRequested bool
}

// Manager is the workflow registry. It owns one loop per running workflow.
type Manager struct {
	cfg        *config.Config
	store      Store
	classifier Classifier
	enricher   Enricher
	results    ResultStore
	rules      RulesSource
	notifier   notifications.Service
	logger     *slog.Logger

	maxConcurrent int
	stopGrace     time.Duration
	maxRetries    int

	mu      sync.Mutex
	handles map[int64]*handle

	now         func() time.Time
	intervalFor func(*queue.Workflow) time.Duration
	checksum    func(path string) (string, int64, error)
}

// NewManager constructs a workflow manager.
func NewManager(cfg *config.Config, deps Dependencies, logger *slog.Logger) *Manager {
	rules := deps.Rules
	if rules == nil {
		rules = criticality.NewSource(cfg.Engine.CriticalityConfig)
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}
	defaults := config.Default().Engine
	maxConcurrent := cfg.Engine.MaxConcurrentWorkflows
	if maxConcurrent <= 0 {
		maxConcurrent = defaults.MaxConcurrentWorkflows
	}
	grace := time.Duration(cfg.Engine.StopGraceSeconds) * time.Second
	if grace <= 0 {
		grace = time.Duration(defaults.StopGraceSeconds) * time.Second
	}
	maxRetries := cfg.Engine.DefaultMaxRetries
	if maxRetries <= 0 {
		maxRetries = defaults.DefaultMaxRetries
	}
	return &Manager{
		cfg:           cfg,
		store:         deps.Store,
		classifier:    deps.Classifier,
		enricher:      deps.Enricher,
		results:       deps.Results,
		rules:         rules,
		notifier:      notifier,
		logger:        logging.NewComponentLogger(logger, "workflow"),
		maxConcurrent: maxConcurrent,
		stopGrace:     grace,
		maxRetries:    maxRetries,
		handles:       make(map[int64]*handle),
		now:           time.Now,
		intervalFor: func(wf *queue.Workflow) time.Duration {
			return wf.Interval()
		},
		checksum: fileutil.Checksum,
	}
}

// ActiveCount returns the number of live workflow loops.
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.handles)
}

// IsRunning reports whether a loop is registered for workflowID.
func (m *Manager) IsRunning(workflowID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.handles[workflowID]
	return ok
}

// MaxConcurrent returns the configured workflow cap.
func (m *Manager) MaxConcurrent() int {
	return m.maxConcurrent
}

// Snapshots lists the live loops ordered by workflow id.
func (m *Manager) Snapshots() []Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Snapshot, 0, len(m.handles))
	for id, h := range m.handles {
		out = append(out, Snapshot{WorkflowID: id, StartedAt: h.startedAt, StopRequested: h.stopRequested})
	}
	slices.SortFunc(out, func(a, b Snapshot) int {
		return cmp.Compare(a.WorkflowID, b.WorkflowID)
	})
	return out
}

// release drops h from the registry when it is still the registered handle
// for workflowID, then cancels it and marks it done.
func (m *Manager) release(workflowID int64, h *handle) {
	m.forget(workflowID, h)
	h.cancel()
	close(h.done)
}
