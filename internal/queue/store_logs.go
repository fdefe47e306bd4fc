package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// AppendLog writes one workflow log entry.
func (s *Store) AppendLog(ctx context.Context, entry LogEntry) error {
	if entry.WorkflowID <= 0 {
		return errors.New("log entry workflow id is required")
	}
	if _, ok := ParseLogLevel(string(entry.Level)); !ok {
		return fmt.Errorf("unknown log level %q", entry.Level)
	}
	var details any
	if len(entry.Details) > 0 {
		encoded, err := json.Marshal(entry.Details)
		if err != nil {
			return fmt.Errorf("marshal log details: %w", err)
		}
		details = string(encoded)
	}
	createdAt := s.timestamp()
	if !entry.CreatedAt.IsZero() {
		createdAt = entry.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	if err := s.execWithoutResultRetry(
		ctx,
		`INSERT INTO workflow_logs (workflow_id, queue_item_id, level, message, file_path, details_json, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.WorkflowID,
		nullableID(entry.QueueItemID),
		entry.Level,
		entry.Message,
		nullableString(entry.FilePath),
		details,
		createdAt,
	); err != nil {
		return fmt.Errorf("append workflow log: %w", err)
	}
	return nil
}

// LogFilter narrows ListLogs. Zero values select everything.
type LogFilter struct {
	WorkflowID int64
	ItemID     int64
	Levels     []LogLevel
	AfterID    int64
	Limit      int
}

// ListLogs returns workflow log entries in insertion order. When Limit is set
// the newest Limit entries are returned, still oldest first.
func (s *Store) ListLogs(ctx context.Context, filter LogFilter) ([]*LogEntry, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.WorkflowID > 0 {
		clauses = append(clauses, "workflow_id = ?")
		args = append(args, filter.WorkflowID)
	}
	if filter.ItemID > 0 {
		clauses = append(clauses, "queue_item_id = ?")
		args = append(args, filter.ItemID)
	}
	if filter.AfterID > 0 {
		clauses = append(clauses, "id > ?")
		args = append(args, filter.AfterID)
	}
	if len(filter.Levels) > 0 {
		clauses = append(clauses, "level IN ("+makePlaceholders(len(filter.Levels))+")")
		for _, level := range filter.Levels {
			args = append(args, level)
		}
	}
	inner := `SELECT ` + logColumns + ` FROM workflow_logs`
	if len(clauses) > 0 {
		inner += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	query := inner + ` ORDER BY id`
	if filter.Limit > 0 {
		query = `SELECT * FROM (` + inner + fmt.Sprintf(` ORDER BY id DESC LIMIT %d) ORDER BY id`, filter.Limit)
	}
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list workflow logs: %w", err)
	}
	defer rows.Close()

	var entries []*LogEntry
	for rows.Next() {
		entry, err := scanLog(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
