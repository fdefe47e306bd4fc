// Package api defines wire-format types and converters for the IPC and HTTP
// API layer. It translates internal queue models into transport-friendly DTOs
// that the CLI and other consumers can render without coupling to internal
// types.
//
// # Key Types
//
// Workflow: a folder-watch workflow with stored status, counters, and whether
// the running daemon holds a live loop for it.
//
// QueueItem: one discovered file with its lifecycle status and retry budget.
//
// LogEntry/LogListResponse: workflow log records with a cursor for following.
//
// DaemonStatus: aggregated runtime information for the status command.
//
// # Converters
//
// FromWorkflow, FromQueueItem, FromLogEntry and their slice variants map
// queue models; MergeQueueStats fills every known status so consumers never
// see a missing key.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Internal enums are exposed as lowercase
// strings. Timestamps use RFC3339 with milliseconds in UTC.
package api
