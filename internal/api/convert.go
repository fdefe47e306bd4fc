package api

import (
	"maps"
	"time"

	"autoingest/internal/queue"
)

// FromWorkflow converts a workflow record to its API representation. Active
// and StartedAt are left for the caller, which knows about live loops.
func FromWorkflow(wf *queue.Workflow) Workflow {
	if wf == nil {
		return Workflow{}
	}
	dto := Workflow{
		ID:              wf.ID,
		Name:            wf.Name,
		UserID:          wf.UserID,
		SourcePath:      wf.SourcePath,
		IntervalSeconds: wf.IntervalSeconds,
		Status:          string(wf.Status),
		ErrorMessage:    wf.ErrorMessage,
		SuccessCount:    wf.SuccessCount,
		FailureCount:    wf.FailureCount,
		CreatedAt:       FormatTime(wf.CreatedAt),
		UpdatedAt:       FormatTime(wf.UpdatedAt),
	}
	if wf.LastScanAt != nil {
		dto.LastScanAt = FormatTime(*wf.LastScanAt)
	}
	return dto
}

// FromWorkflows converts a slice of workflow records into API DTOs.
func FromWorkflows(workflows []*queue.Workflow) []Workflow {
	if len(workflows) == 0 {
		return nil
	}
	out := make([]Workflow, 0, len(workflows))
	for _, wf := range workflows {
		out = append(out, FromWorkflow(wf))
	}
	return out
}

// FromQueueItem converts a queue record to its API representation.
func FromQueueItem(item *queue.Item) QueueItem {
	if item == nil {
		return QueueItem{}
	}
	return QueueItem{
		ID:               item.ID,
		WorkflowID:       item.WorkflowID,
		FilePath:         item.FilePath,
		OriginalFileName: item.OriginalFileName,
		FileSize:         item.FileSize,
		Checksum:         item.Checksum,
		Status:           string(item.Status),
		RetryCount:       item.RetryCount,
		MaxRetries:       item.MaxRetries,
		DocumentID:       item.DocumentID,
		ErrorMessage:     item.ErrorMessage,
		CreatedAt:        FormatTime(item.CreatedAt),
		UpdatedAt:        FormatTime(item.UpdatedAt),
	}
}

// FromQueueItems converts a slice of queue records into API DTOs.
func FromQueueItems(items []*queue.Item) []QueueItem {
	if len(items) == 0 {
		return nil
	}
	out := make([]QueueItem, 0, len(items))
	for _, item := range items {
		out = append(out, FromQueueItem(item))
	}
	return out
}

// FromLogEntry converts a stored workflow log entry.
func FromLogEntry(entry *queue.LogEntry) LogEntry {
	if entry == nil {
		return LogEntry{}
	}
	dto := LogEntry{
		ID:         entry.ID,
		WorkflowID: entry.WorkflowID,
		ItemID:     entry.QueueItemID,
		Level:      string(entry.Level),
		Message:    entry.Message,
		FilePath:   entry.FilePath,
		CreatedAt:  FormatTime(entry.CreatedAt),
	}
	if len(entry.Details) > 0 {
		dto.Details = maps.Clone(entry.Details)
	}
	return dto
}

// FromLogEntries converts stored log entries, preserving order.
func FromLogEntries(entries []*queue.LogEntry) []LogEntry {
	if len(entries) == 0 {
		return nil
	}
	out := make([]LogEntry, 0, len(entries))
	for _, entry := range entries {
		out = append(out, FromLogEntry(entry))
	}
	return out
}

// FromHealthSummary converts aggregate queue counts.
func FromHealthSummary(summary queue.HealthSummary) QueueHealth {
	return QueueHealth{
		Total:      summary.Total,
		Pending:    summary.Pending,
		Processing: summary.Processing,
		Failed:     summary.Failed,
		Completed:  summary.Completed,
	}
}

// MergeQueueStats produces a string-keyed representation of queue stats.
// Every known status is present, zero when no item holds it.
func MergeQueueStats(stats map[queue.Status]int) map[string]int {
	out := make(map[string]int, len(stats))
	for _, status := range queue.AllStatuses() {
		out[string(status)] = 0
	}
	for status, count := range stats {
		out[string(status)] = count
	}
	return out
}

// FormatTime renders t in the API timestamp format, or "" for the zero time.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
