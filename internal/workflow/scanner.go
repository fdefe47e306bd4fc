package workflow

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"autoingest/internal/fileutil"
	"autoingest/internal/logging"
	"autoingest/internal/queue"
)

// Candidate is a newly discovered file ready to enqueue.
type Candidate struct {
	Path     string
	Name     string
	Size     int64
	Checksum string
}

// scan lists new supported images directly under the workflow source path.
// Files whose checksum is already queued for the workflow, or that repeat
// the content of an earlier file in the same pass, are skipped. Per-file
// failures are logged and never abort the scan.
func (m *Manager) scan(ctx context.Context, wf *queue.Workflow) []Candidate {
	logger := logging.WithContext(ctx, m.logger)

	if err := fileutil.CheckDirAccess(wf.SourcePath); err != nil {
		m.appendLog(ctx, logEntry{
			workflowID: wf.ID,
			level:      queue.LevelError,
			message:    "Source path does not exist: " + wf.SourcePath,
			details:    map[string]any{"error": err.Error()},
		})
		return nil
	}
	entries, err := os.ReadDir(wf.SourcePath)
	if err != nil {
		m.appendLog(ctx, logEntry{
			workflowID: wf.ID,
			level:      queue.LevelError,
			message:    "Error scanning folder: " + err.Error(),
		})
		return nil
	}

	seen := make(map[string]string)
	var candidates []Candidate
	for _, entry := range entries {
		if ctx.Err() != nil {
			return candidates
		}
		if !entry.Type().IsRegular() {
			continue
		}
		name := fileutil.NormalizeName(entry.Name())
		if !fileutil.IsSupportedImage(name) || fileutil.IsProcessedName(name) {
			continue
		}
		path := filepath.Join(wf.SourcePath, entry.Name())

		checksum, size, err := m.checksum(path)
		if err != nil {
			entry := logEntry{
				workflowID: wf.ID,
				level:      queue.LevelWarning,
				message:    "Checksum failed, skipping file: " + name,
				filePath:   path,
				details:    map[string]any{"error": err.Error()},
			}
			if errors.Is(err, os.ErrNotExist) {
				entry.level = queue.LevelDebug
				entry.message = "File vanished before checksum, skipping: " + name
			}
			m.appendLog(ctx, entry)
			continue
		}
		if first, dup := seen[checksum]; dup {
			m.logDuplicate(ctx, wf.ID, path, name, first)
			continue
		}
		exists, err := m.store.ChecksumExists(ctx, wf.ID, checksum)
		if err != nil {
			logging.WarnWithContext(logger, "checksum lookup failed; skipping file this cycle", "scan_dedup_failed",
				logging.Error(err),
				logging.String(logging.FieldFile, name),
				logging.String(logging.FieldImpact, "file is retried on the next scan"),
				logging.String(logging.FieldErrorHint, "check database access"),
			)
			continue
		}
		if exists {
			logger.Debug("file already in queue (duplicate)",
				logging.String(logging.FieldEventType, "scan_duplicate"),
				logging.String(logging.FieldFile, name),
			)
			continue
		}
		seen[checksum] = name
		candidates = append(candidates, Candidate{Path: path, Name: name, Size: size, Checksum: checksum})
	}
	logger.Debug("folder scan complete",
		logging.String(logging.FieldEventType, "scan_complete"),
		logging.Int("entries", len(entries)),
		logging.Int("candidates", len(candidates)),
	)
	return candidates
}

func (m *Manager) logDuplicate(ctx context.Context, workflowID int64, path, name, first string) {
	entry := logEntry{
		workflowID: workflowID,
		level:      queue.LevelDebug,
		message:    "Duplicate content skipped: " + name,
		filePath:   path,
	}
	if first != "" {
		entry.details = map[string]any{"duplicate_of": first}
	}
	m.appendLog(ctx, entry)
}

// enqueue adds a candidate as a pending item. Failures are logged and the
// cycle continues.
func (m *Manager) enqueue(ctx context.Context, wf *queue.Workflow, c Candidate) {
	id, err := m.store.Enqueue(ctx, &queue.Item{
		WorkflowID:       wf.ID,
		FilePath:         c.Path,
		OriginalFileName: c.Name,
		FileSize:         c.Size,
		Checksum:         c.Checksum,
		MaxRetries:       m.maxRetries,
	})
	switch {
	case errors.Is(err, queue.ErrDuplicateChecksum):
		m.logDuplicate(ctx, wf.ID, c.Path, c.Name, "")
	case err != nil:
		m.appendLog(ctx, logEntry{
			workflowID: wf.ID,
			level:      queue.LevelError,
			message:    "Error adding file to queue: " + c.Name,
			filePath:   c.Path,
			details:    map[string]any{"error": err.Error()},
		})
	default:
		m.appendLog(ctx, logEntry{
			workflowID: wf.ID,
			itemID:     id,
			level:      queue.LevelInfo,
			message:    "File added to queue: " + c.Name,
			filePath:   c.Path,
		})
	}
}
