package queue

import (
	"strings"
	"time"
)

// WorkflowStatus is the lifecycle state of a workflow record.
type WorkflowStatus string

const (
	WorkflowStopped WorkflowStatus = "stopped"
	WorkflowRunning WorkflowStatus = "running"
	WorkflowError   WorkflowStatus = "error"
)

// Status represents the lifecycle of a queue item.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

var allStatuses = []Status{
	StatusPending,
	StatusProcessing,
	StatusCompleted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// LogLevel is the severity of a workflow log entry.
type LogLevel string

const (
	LevelDebug   LogLevel = "debug"
	LevelInfo    LogLevel = "info"
	LevelSuccess LogLevel = "success"
	LevelWarning LogLevel = "warning"
	LevelError   LogLevel = "error"
)

// DaemonRestartReason is recorded on workflows left running by a previous daemon.
const DaemonRestartReason = "interrupted by daemon restart"

// Workflow is a configured folder-watch job.
type Workflow struct {
	ID              int64
	Name            string
	UserID          int64
	SourcePath      string
	IntervalSeconds int
	Status          WorkflowStatus
	LastScanAt      *time.Time
	SuccessCount    int64
	FailureCount    int64
	ErrorMessage    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Interval returns the scan interval as a duration.
func (w Workflow) Interval() time.Duration {
	return time.Duration(w.IntervalSeconds) * time.Second
}

// Item represents one discovered file persisted in SQLite.
type Item struct {
	ID               int64
	WorkflowID       int64
	FilePath         string
	OriginalFileName string
	FileSize         int64
	Checksum         string
	Status           Status
	RetryCount       int
	MaxRetries       int
	DocumentID       int64
	ErrorMessage     string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// RetriesExhausted reports whether the retry budget is spent.
func (i Item) RetriesExhausted() bool {
	return i.RetryCount >= i.MaxRetries
}

// LogEntry is one append-only workflow log record.
type LogEntry struct {
	ID          int64
	WorkflowID  int64
	QueueItemID int64
	Level       LogLevel
	Message     string
	FilePath    string
	Details     map[string]any
	CreatedAt   time.Time
}

// User is the owner context resolved for processed documents.
type User struct {
	ID       int64
	Username string
	FullName string
	Email    string
	Role     string
	Active   bool
}

// DisplayName prefers the full name over the username.
func (u User) DisplayName() string {
	if name := strings.TrimSpace(u.FullName); name != "" {
		return name
	}
	return u.Username
}

// HealthSummary describes aggregated queue counts per lifecycle state.
type HealthSummary struct {
	Total      int
	Pending    int
	Processing int
	Failed     int
	Completed  int
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// ParseLogLevel converts a string into a known LogLevel.
func ParseLogLevel(value string) (LogLevel, bool) {
	switch level := LogLevel(strings.ToLower(strings.TrimSpace(value))); level {
	case LevelDebug, LevelInfo, LevelSuccess, LevelWarning, LevelError:
		return level, true
	default:
		return "", false
	}
}
