package ipc

import "autoingest/internal/api"

// Workflow mirrors the HTTP API workflow DTO for IPC callers.
type Workflow = api.Workflow

// QueueItem mirrors the HTTP API queue DTO for IPC callers.
type QueueItem = api.QueueItem

// LogEntry mirrors the HTTP API log DTO for IPC callers.
type LogEntry = api.LogEntry

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse represents combined daemon and workflow status information.
type StatusResponse struct {
	Running         bool           `json:"running"`
	PID             int            `json:"pid"`
	DatabasePath    string         `json:"database_path"`
	LockPath        string         `json:"lock_path"`
	SocketPath      string         `json:"socket_path"`
	ActiveWorkflows int            `json:"active_workflows"`
	MaxConcurrent   int            `json:"max_concurrent"`
	Workflows       []Workflow     `json:"workflows"`
	QueueStats      map[string]int `json:"queue_stats"`
}

// WorkflowAddRequest creates a stopped workflow.
type WorkflowAddRequest struct {
	Name            string `json:"name"`
	UserID          int64  `json:"user_id"`
	SourcePath      string `json:"source_path"`
	IntervalSeconds int    `json:"interval_seconds"`
}

// WorkflowResponse contains a single workflow.
type WorkflowResponse struct {
	Workflow Workflow `json:"workflow"`
}

// WorkflowListRequest lists every workflow.
type WorkflowListRequest struct{}

// WorkflowListResponse contains workflows ordered by id.
type WorkflowListResponse struct {
	Workflows []Workflow `json:"workflows"`
}

// WorkflowRequest addresses one workflow by id.
type WorkflowRequest struct {
	ID int64 `json:"id"`
}

// WorkflowActionResponse reports whether a start, stop, or remove changed anything.
type WorkflowActionResponse struct {
	Changed bool   `json:"changed"`
	Message string `json:"message"`
}

// UserAddRequest creates the owner record for workflows.
type UserAddRequest struct {
	Username string `json:"username"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

// UserAddResponse reports the created user id.
type UserAddResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// QueueListRequest filters queue listing by workflow and status.
type QueueListRequest struct {
	WorkflowID int64    `json:"workflow_id"`
	Statuses   []string `json:"statuses"`
}

// QueueListResponse contains queue entries.
type QueueListResponse struct {
	Items []QueueItem `json:"items"`
}

// QueueDescribeRequest fetches a single queue item by id.
type QueueDescribeRequest struct {
	ID int64 `json:"id"`
}

// QueueDescribeResponse contains a single queue entry.
type QueueDescribeResponse struct {
	Item QueueItem `json:"item"`
}

// QueueStatsRequest fetches item counts per status.
type QueueStatsRequest struct {
	WorkflowID int64 `json:"workflow_id"`
}

// QueueStatsResponse reports item counts keyed by status.
type QueueStatsResponse struct {
	Counts map[string]int `json:"counts"`
}

// QueueHealthRequest fetches aggregate diagnostics.
type QueueHealthRequest struct {
	WorkflowID int64 `json:"workflow_id"`
}

// QueueHealthResponse reports queue health information.
type QueueHealthResponse = api.QueueHealth

// QueueResetRequest resets items stuck in processing.
type QueueResetRequest struct {
	WorkflowID int64 `json:"workflow_id"`
}

// QueueResetResponse reports number of items reset.
type QueueResetResponse struct {
	Updated int64 `json:"updated"`
}

// QueueRetryRequest retries failed items. Empty list means all failed items.
type QueueRetryRequest struct {
	WorkflowID int64   `json:"workflow_id"`
	IDs        []int64 `json:"ids"`
}

// QueueRetryResponse reports number of retried items.
type QueueRetryResponse struct {
	Updated int64 `json:"updated"`
}

// QueueClearRequest removes items. Empty statuses means every status.
type QueueClearRequest struct {
	WorkflowID int64    `json:"workflow_id"`
	Statuses   []string `json:"statuses"`
}

// QueueClearResponse reports number of removed entries.
type QueueClearResponse struct {
	Removed int64 `json:"removed"`
}

// LogsRequest fetches workflow log entries after a cursor.
type LogsRequest struct {
	WorkflowID int64    `json:"workflow_id"`
	ItemID     int64    `json:"item_id"`
	Levels     []string `json:"levels"`
	AfterID    int64    `json:"after_id"`
	Limit      int      `json:"limit"`
}

// LogsResponse returns log entries and the next cursor.
type LogsResponse struct {
	Entries []LogEntry `json:"entries"`
	Next    int64      `json:"next"`
}

// DatabaseHealthRequest fetches detailed database diagnostics.
type DatabaseHealthRequest struct{}

// DatabaseHealthResponse reports database health information.
type DatabaseHealthResponse struct {
	DBPath           string `json:"db_path"`
	DatabaseExists   bool   `json:"database_exists"`
	DatabaseReadable bool   `json:"database_readable"`
	IntegrityCheck   bool   `json:"integrity_check"`
	Workflows        int    `json:"workflows"`
	TotalItems       int    `json:"total_items"`
	Error            string `json:"error"`
}

// TestNotificationRequest triggers a notification test.
type TestNotificationRequest struct{}

// TestNotificationResponse reports notification test outcome.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}
