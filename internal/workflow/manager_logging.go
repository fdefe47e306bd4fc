package workflow

import (
	"context"
	"log/slog"
	"maps"
	"path/filepath"
	"slices"

	"autoingest/internal/logging"
	"autoingest/internal/queue"
)

// logEntry is a workflow log record that is both persisted and mirrored to
// the daemon logger.
type logEntry struct {
	workflowID int64
	itemID     int64
	level      queue.LogLevel
	message    string
	filePath   string
	details    map[string]any
}

func (m *Manager) appendLog(ctx context.Context, entry logEntry) {
	logger := logging.WithContext(ctx, m.logger)

	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "workflow_log"),
		logging.String("workflow_level", string(entry.level)),
	}
	if entry.itemID > 0 && !hasItemID(ctx) {
		attrs = append(attrs, logging.Int64(logging.FieldItemID, entry.itemID))
	}
	if entry.filePath != "" {
		attrs = append(attrs, logging.String(logging.FieldFile, filepath.Base(entry.filePath)))
	}
	for _, key := range slices.Sorted(maps.Keys(entry.details)) {
		attrs = append(attrs, logging.Any(key, entry.details[key]))
	}
	logger.Log(ctx, slogLevel(entry.level), entry.message, logging.Args(attrs...)...)

	// Log rows are written even when the loop is being cancelled.
	err := m.store.AppendLog(context.WithoutCancel(ctx), queue.LogEntry{
		WorkflowID:  entry.workflowID,
		QueueItemID: entry.itemID,
		Level:       entry.level,
		Message:     entry.message,
		FilePath:    entry.filePath,
		Details:     entry.details,
		CreatedAt:   m.now(),
	})
	if err != nil {
		logging.WarnWithContext(logger, "failed to persist workflow log", "workflow_log_write_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "entry missing from workflow log history"),
			logging.String(logging.FieldErrorHint, "check database access"),
		)
	}
}

func hasItemID(ctx context.Context) bool {
	for _, attr := range logging.ContextFields(ctx) {
		if attr.Key == logging.FieldItemID {
			return true
		}
	}
	return false
}

func slogLevel(level queue.LogLevel) slog.Level {
	switch level {
	case queue.LevelDebug:
		return slog.LevelDebug
	case queue.LevelWarning:
		return slog.LevelWarn
	case queue.LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
