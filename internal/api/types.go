package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Workflow describes a folder-watch workflow in a transport-friendly format.
type Workflow struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	UserID          int64  `json:"userId"`
	SourcePath      string `json:"sourcePath"`
	IntervalSeconds int    `json:"intervalSeconds"`
	Status          string `json:"status"`
	ErrorMessage    string `json:"errorMessage,omitempty"`
	LastScanAt      string `json:"lastScanAt,omitempty"`
	SuccessCount    int64  `json:"successCount"`
	FailureCount    int64  `json:"failureCount"`
	CreatedAt       string `json:"createdAt,omitempty"`
	UpdatedAt       string `json:"updatedAt,omitempty"`

	// Active reports whether this daemon currently holds a live loop for the
	// workflow. It can differ from Status after a crash or a restart.
	Active    bool   `json:"active"`
	StartedAt string `json:"startedAt,omitempty"`
}

// QueueItem describes a queue entry in a transport-friendly format.
type QueueItem struct {
	ID               int64  `json:"id"`
	WorkflowID       int64  `json:"workflowId"`
	FilePath         string `json:"filePath"`
	OriginalFileName string `json:"originalFileName"`
	FileSize         int64  `json:"fileSize"`
	Checksum         string `json:"checksum"`
	Status           string `json:"status"`
	RetryCount       int    `json:"retryCount"`
	MaxRetries       int    `json:"maxRetries"`
	DocumentID       int64  `json:"documentId,omitempty"`
	ErrorMessage     string `json:"errorMessage,omitempty"`
	CreatedAt        string `json:"createdAt,omitempty"`
	UpdatedAt        string `json:"updatedAt,omitempty"`
}

// LogEntry is one workflow log record.
type LogEntry struct {
	ID         int64          `json:"id"`
	WorkflowID int64          `json:"workflowId"`
	ItemID     int64          `json:"itemId,omitempty"`
	Level      string         `json:"level"`
	Message    string         `json:"message"`
	FilePath   string         `json:"filePath,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	CreatedAt  string         `json:"createdAt"`
}

// QueueHealth summarizes queue counts per lifecycle state.
type QueueHealth struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Failed     int `json:"failed"`
	Completed  int `json:"completed"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running         bool           `json:"running"`
	PID             int            `json:"pid"`
	DatabasePath    string         `json:"databasePath"`
	LockFilePath    string         `json:"lockFilePath"`
	SocketPath      string         `json:"socketPath"`
	ActiveWorkflows int            `json:"activeWorkflows"`
	MaxConcurrent   int            `json:"maxConcurrent"`
	Workflows       []Workflow     `json:"workflows"`
	QueueStats      map[string]int `json:"queueStats"`
}

// WorkflowListResponse wraps a collection of workflows.
type WorkflowListResponse struct {
	Workflows []Workflow `json:"workflows"`
}

// WorkflowResponse wraps a single workflow.
type WorkflowResponse struct {
	Workflow Workflow `json:"workflow"`
}

// WorkflowActionResponse reports the outcome of a start or stop request.
type WorkflowActionResponse struct {
	WorkflowID int64  `json:"workflowId"`
	Changed    bool   `json:"changed"`
	Message    string `json:"message"`
}

// QueueStatsResponse provides a normalized queue stats payload.
type QueueStatsResponse struct {
	Counts map[string]int `json:"counts"`
}

// QueueListResponse wraps a collection of queue items for API responses.
type QueueListResponse struct {
	Items []QueueItem `json:"items"`
}

// QueueItemResponse wraps a single queue item.
type QueueItemResponse struct {
	Item QueueItem `json:"item"`
}

// LogListResponse wraps workflow log entries and the cursor for the next page.
type LogListResponse struct {
	Entries []LogEntry `json:"entries"`
	Next    int64      `json:"next"`
}
