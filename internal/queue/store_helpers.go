package queue

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

type rowScanner interface{ Scan(dest ...any) error }

const workflowColumns = "id, name, user_id, source_path, interval_seconds, status, last_scan_at, success_count, failure_count, error_message, created_at, updated_at"

func scanWorkflow(scanner rowScanner) (*Workflow, error) {
	var (
		wf          Workflow
		statusStr   string
		lastScanRaw sql.NullString
		errorMsg    sql.NullString
		createdRaw  sql.NullString
		updatedRaw  sql.NullString
	)
	if err := scanner.Scan(
		&wf.ID,
		&wf.Name,
		&wf.UserID,
		&wf.SourcePath,
		&wf.IntervalSeconds,
		&statusStr,
		&lastScanRaw,
		&wf.SuccessCount,
		&wf.FailureCount,
		&errorMsg,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	wf.Status = WorkflowStatus(statusStr)
	wf.ErrorMessage = errorMsg.String
	if lastScanRaw.Valid {
		if scanned, err := parseTimeString(lastScanRaw.String); err == nil {
			wf.LastScanAt = &scanned
		}
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		wf.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		wf.UpdatedAt = updated
	}
	return &wf, nil
}

const itemColumns = "id, workflow_id, file_path, original_file_name, file_size, checksum, status, retry_count, max_retries, document_id, error_message, created_at, updated_at"

func scanItem(scanner rowScanner) (*Item, error) {
	var (
		item       Item
		statusStr  string
		documentID sql.NullInt64
		errorMsg   sql.NullString
		createdRaw sql.NullString
		updatedRaw sql.NullString
	)
	if err := scanner.Scan(
		&item.ID,
		&item.WorkflowID,
		&item.FilePath,
		&item.OriginalFileName,
		&item.FileSize,
		&item.Checksum,
		&statusStr,
		&item.RetryCount,
		&item.MaxRetries,
		&documentID,
		&errorMsg,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	item.Status = Status(statusStr)
	item.DocumentID = documentID.Int64
	item.ErrorMessage = errorMsg.String
	if created, err := parseTimeString(createdRaw.String); err == nil {
		item.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		item.UpdatedAt = updated
	}
	return &item, nil
}

const logColumns = "id, workflow_id, queue_item_id, level, message, file_path, details_json, created_at"

func scanLog(scanner rowScanner) (*LogEntry, error) {
	var (
		entry       LogEntry
		itemID      sql.NullInt64
		levelStr    string
		filePath    sql.NullString
		detailsJSON sql.NullString
		createdRaw  sql.NullString
	)
	if err := scanner.Scan(
		&entry.ID,
		&entry.WorkflowID,
		&itemID,
		&levelStr,
		&entry.Message,
		&filePath,
		&detailsJSON,
		&createdRaw,
	); err != nil {
		return nil, err
	}
	entry.QueueItemID = itemID.Int64
	entry.Level = LogLevel(levelStr)
	entry.FilePath = filePath.String
	if detailsJSON.Valid && detailsJSON.String != "" {
		var details map[string]any
		if err := json.Unmarshal([]byte(detailsJSON.String), &details); err == nil {
			entry.Details = details
		}
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		entry.CreatedAt = created
	}
	return &entry, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableID(value int64) any {
	if value <= 0 {
		return nil
	}
	return value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}

func collectItems(rows *sql.Rows) ([]*Item, error) {
	defer rows.Close()
	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
