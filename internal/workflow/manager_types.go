package workflow

import (
	"context"
	"time"

	"autoingest/internal/criticality"
	"autoingest/internal/document"
	"autoingest/internal/queue"
)

// Store is the persistence surface the engine needs. *queue.Store satisfies it.
type Store interface {
	WorkflowByID(ctx context.Context, id int64) (*queue.Workflow, error)
	UpdateWorkflowStatus(ctx context.Context, id int64, status queue.WorkflowStatus, errMsg string) error
	UpdateScanTimestamp(ctx context.Context, id int64, at time.Time) error
	IncrementWorkflowStats(ctx context.Context, id int64, success bool) error
	ChecksumExists(ctx context.Context, workflowID int64, checksum string) (bool, error)
	Enqueue(ctx context.Context, item *queue.Item) (int64, error)
	NextPendingItem(ctx context.Context, workflowID int64) (*queue.Item, error)
	UpdateItemStatus(ctx context.Context, id int64, status queue.Status, documentID int64, errMsg string) error
	IncrementRetry(ctx context.Context, id int64) (int, error)
	AppendLog(ctx context.Context, entry queue.LogEntry) error
	UserByID(ctx context.Context, id int64) (*queue.User, error)
}

// Classifier turns an image into a document classification.
type Classifier interface {
	Classify(ctx context.Context, path string) (document.Classification, error)
}

// Enricher assigns criticality and optionally uploads the file.
type Enricher interface {
	AssignCriticalityAndUpload(ctx context.Context, path string, cls document.Classification, rules *criticality.Config) (document.Result, error)
}

// ResultStore persists an enriched result and returns the document id.
type ResultStore interface {
	PersistProcessingResult(ctx context.Context, path string, result document.Result, start, end time.Time, user *queue.User) (int64, error)
}

// RulesSource yields the current criticality rules. On error it still returns
// usable rules (the last good set or the defaults).
type RulesSource interface {
	Load() (*criticality.Config, error)
}

// Outcome is the result of one processing attempt.
type Outcome int

const (
	// OutcomeCompleted means the item was persisted and marked completed.
	OutcomeCompleted Outcome = iota
	// OutcomeRetryScheduled means the attempt failed and the item is pending again.
	OutcomeRetryScheduled
	// OutcomeWorkflowMustStop means the retry budget is spent and the workflow was stopped.
	OutcomeWorkflowMustStop
	// OutcomeInterrupted means cancellation arrived mid-attempt; no retry was consumed.
	OutcomeInterrupted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeRetryScheduled:
		return "retry_scheduled"
	case OutcomeWorkflowMustStop:
		return "workflow_must_stop"
	case OutcomeInterrupted:
		return "interrupted"
	default:
		return "unknown"
	}
}

// Snapshot describes one live workflow loop.
type Snapshot struct {
	WorkflowID    int64
	StartedAt     time.Time
	StopRequested bool
}
