package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// ChecksumExists reports whether any item of the workflow already carries checksum.
func (s *Store) ChecksumExists(ctx context.Context, workflowID int64, checksum string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT COUNT(1) FROM queue_items WHERE workflow_id = ? AND checksum = ?`,
		workflowID,
		checksum,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check checksum: %w", err)
	}
	return count > 0, nil
}

// Enqueue inserts a pending item and returns its id. A checksum already
// present in the workflow yields ErrDuplicateChecksum.
func (s *Store) Enqueue(ctx context.Context, item *Item) (int64, error) {
	if item == nil {
		return 0, errors.New("item is nil")
	}
	if strings.TrimSpace(item.Checksum) == "" {
		return 0, errors.New("item checksum is required")
	}
	if item.MaxRetries <= 0 {
		return 0, errors.New("item max_retries must be positive")
	}
	timestamp := s.timestamp()
	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO queue_items (
            workflow_id, file_path, original_file_name, file_size, checksum,
            status, retry_count, max_retries, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?, ?)`,
		item.WorkflowID,
		item.FilePath,
		item.OriginalFileName,
		item.FileSize,
		item.Checksum,
		StatusPending,
		item.MaxRetries,
		timestamp,
		timestamp,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("%w: %s", ErrDuplicateChecksum, item.Checksum)
		}
		return 0, fmt.Errorf("insert item: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	item.ID = id
	item.Status = StatusPending
	item.RetryCount = 0
	return id, nil
}

// GetItem fetches a queue item by identifier. A missing item returns (nil, nil).
func (s *Store) GetItem(ctx context.Context, id int64) (*Item, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+itemColumns+` FROM queue_items WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

// NextPendingItem returns the oldest pending item of the workflow, or (nil, nil).
func (s *Store) NextPendingItem(ctx context.Context, workflowID int64) (*Item, error) {
	row := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT `+itemColumns+` FROM queue_items WHERE workflow_id = ? AND status = ? ORDER BY id LIMIT 1`,
		workflowID,
		StatusPending,
	)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("next pending item: %w", err)
	}
	return item, nil
}

// UpdateItemStatus transitions an item. documentID is kept when zero; errMsg
// replaces the stored message (empty clears it).
func (s *Store) UpdateItemStatus(ctx context.Context, id int64, status Status, documentID int64, errMsg string) error {
	if _, ok := statusSet[status]; !ok {
		return fmt.Errorf("unknown item status %q", status)
	}
	res, err := s.execWithRetry(
		ctx,
		`UPDATE queue_items
         SET status = ?, document_id = COALESCE(?, document_id), error_message = ?, updated_at = ?
         WHERE id = ?`,
		status,
		nullableID(documentID),
		nullableString(errMsg),
		s.timestamp(),
		id,
	)
	if err != nil {
		return fmt.Errorf("update item status: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("update item status: item %d not found", id)
	}
	return nil
}

// IncrementRetry bumps retry_count, capped at max_retries, and returns the new value.
func (s *Store) IncrementRetry(ctx context.Context, id int64) (int, error) {
	ctx = ensureContext(ctx)
	var count int
	err := retryOnBusy(ctx, func() error {
		return s.db.QueryRowContext(
			ctx,
			`UPDATE queue_items
             SET retry_count = MIN(retry_count + 1, max_retries), updated_at = ?
             WHERE id = ?
             RETURNING retry_count`,
			s.timestamp(),
			id,
		).Scan(&count)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("increment retry: item %d not found", id)
	}
	if err != nil {
		return 0, fmt.Errorf("increment retry: %w", err)
	}
	return count, nil
}

// ItemFilter narrows ListItems. Zero values select everything.
type ItemFilter struct {
	WorkflowID int64
	Statuses   []Status
	Limit      int
}

// ListItems returns queue items oldest first.
func (s *Store) ListItems(ctx context.Context, filter ItemFilter) ([]*Item, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.WorkflowID > 0 {
		clauses = append(clauses, "workflow_id = ?")
		args = append(args, filter.WorkflowID)
	}
	if len(filter.Statuses) > 0 {
		clauses = append(clauses, "status IN ("+makePlaceholders(len(filter.Statuses))+")")
		for _, status := range filter.Statuses {
			args = append(args, status)
		}
	}
	query := `SELECT ` + itemColumns + ` FROM queue_items`
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY id`
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list queue items: %w", err)
	}
	return collectItems(rows)
}
