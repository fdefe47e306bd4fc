package queue

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// Stats returns a count of items grouped by status. workflowID <= 0 counts all workflows.
func (s *Store) Stats(ctx context.Context, workflowID int64) (map[Status]int, error) {
	query := `SELECT status, COUNT(1) FROM queue_items`
	var args []any
	if workflowID > 0 {
		query += ` WHERE workflow_id = ?`
		args = append(args, workflowID)
	}
	query += ` GROUP BY status`
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Health aggregates queue state for diagnostic output.
func (s *Store) Health(ctx context.Context, workflowID int64) (HealthSummary, error) {
	stats, err := s.Stats(ctx, workflowID)
	if err != nil {
		return HealthSummary{}, err
	}
	health := HealthSummary{}
	for status, count := range stats {
		health.Total += count
		switch status {
		case StatusPending:
			health.Pending += count
		case StatusProcessing:
			health.Processing += count
		case StatusFailed:
			health.Failed += count
		case StatusCompleted:
			health.Completed += count
		}
	}
	return health, nil
}

// ResetStuckProcessing returns items left in processing back to pending
// without touching their retry count. It is an explicit operator action;
// the engine never calls it. workflowID <= 0 resets every workflow.
func (s *Store) ResetStuckProcessing(ctx context.Context, workflowID int64) (int64, error) {
	query := `UPDATE queue_items SET status = ?, updated_at = ? WHERE status = ?`
	args := []any{StatusPending, s.timestamp(), StatusProcessing}
	if workflowID > 0 {
		query += ` AND workflow_id = ?`
		args = append(args, workflowID)
	}
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("reset stuck items: %w", err)
	}
	return res.RowsAffected()
}

// RetryFailed moves failed items back to pending with a fresh retry budget.
// With no ids every failed item of the workflow (or of all workflows when
// workflowID <= 0) is retried.
func (s *Store) RetryFailed(ctx context.Context, workflowID int64, ids ...int64) (int64, error) {
	query := `UPDATE queue_items
        SET status = ?, retry_count = 0, error_message = NULL, updated_at = ?
        WHERE status = ?`
	args := []any{StatusPending, s.timestamp(), StatusFailed}
	if workflowID > 0 {
		query += ` AND workflow_id = ?`
		args = append(args, workflowID)
	}
	if len(ids) > 0 {
		query += ` AND id IN (` + makePlaceholders(len(ids)) + `)`
		for _, id := range ids {
			args = append(args, id)
		}
	}
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("retry failed items: %w", err)
	}
	return res.RowsAffected()
}

// Clear removes queue items, optionally limited to a workflow and statuses.
// Removing items forgets their checksums, so matching files are enqueued again
// on the next scan unless they were renamed as processed.
func (s *Store) Clear(ctx context.Context, workflowID int64, statuses ...Status) (int64, error) {
	var (
		clauses []string
		args    []any
	)
	if workflowID > 0 {
		clauses = append(clauses, "workflow_id = ?")
		args = append(args, workflowID)
	}
	if len(statuses) > 0 {
		clauses = append(clauses, "status IN ("+makePlaceholders(len(statuses))+")")
		for _, status := range statuses {
			args = append(args, status)
		}
	}
	query := `DELETE FROM queue_items`
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("clear queue: %w", err)
	}
	return res.RowsAffected()
}

// DatabaseHealth captures diagnostic information about the database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	IntegrityCheck   bool
	Workflows        int
	TotalItems       int
	Error            string
}

// CheckHealth returns diagnostic information about the database.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	health := DatabaseHealth{DBPath: s.path}
	if s.path == "" {
		return health, errors.New("database path is unknown")
	}
	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return health, nil
		}
		return health, fmt.Errorf("stat database: %w", err)
	}
	if info.IsDir() {
		return health, fmt.Errorf("database path %q is a directory", s.path)
	}
	health.DatabaseExists = true

	connCtx, cancel := context.WithTimeout(ensureContext(ctx), 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(connCtx); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("ping database: %w", err)
	}
	health.DatabaseReadable = true

	if err := s.db.QueryRowContext(connCtx, "SELECT COUNT(*) FROM workflows").Scan(&health.Workflows); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("count workflows: %w", err)
	}
	if err := s.db.QueryRowContext(connCtx, "SELECT COUNT(*) FROM queue_items").Scan(&health.TotalItems); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("count queue items: %w", err)
	}

	var integrityResult string
	if err := s.db.QueryRowContext(connCtx, "PRAGMA integrity_check").Scan(&integrityResult); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("integrity check: %w", err)
	}
	health.IntegrityCheck = strings.EqualFold(integrityResult, "ok")
	return health, nil
}
