// Package enrichment assigns criticality, retention, and storage type to a
// classified document and uploads it to object storage when the rules allow.
package enrichment

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"autoingest/internal/criticality"
	"autoingest/internal/document"
	"autoingest/internal/fileutil"
	"autoingest/internal/logging"
	"autoingest/internal/services"
	"autoingest/internal/services/objectstore"
)

// Enricher combines criticality rules with an optional uploader.
type Enricher struct {
	uploader objectstore.Uploader
	logger   *slog.Logger
	now      func() time.Time
}

// New returns an Enricher. A nil uploader disables uploads; results are then
// recorded with upload status "skipped".
func New(uploader objectstore.Uploader, logger *slog.Logger) *Enricher {
	return &Enricher{
		uploader: uploader,
		logger:   logging.NewComponentLogger(logger, "enrichment"),
		now:      time.Now,
	}
}

// AssignCriticalityAndUpload resolves rules for cls and uploads the file when
// the decision allows it. Upload failures are returned as errors so the
// caller's retry budget applies to them.
func (e *Enricher) AssignCriticalityAndUpload(ctx context.Context, path string, cls document.Classification, rules *criticality.Config) (document.Result, error) {
	if rules == nil {
		rules = criticality.Default()
	}
	decision := rules.Assign(cls)
	result := document.Result{
		Classification: cls,
		Criticality:    decision.Level,
		RetentionYears: decision.RetentionYears,
		StorageType:    decision.StorageType,
		UploadStatus:   document.UploadSkipped,
	}
	logger := logging.WithContext(ctx, e.logger)
	logger.Debug("criticality assigned",
		logging.String(logging.FieldEventType, "criticality_assigned"),
		logging.String("document_type", cls.DocumentType),
		logging.String("criticality", decision.Level),
		logging.String("matched_type", decision.MatchedType),
		logging.Int("retention_years", decision.RetentionYears),
	)

	if e.uploader == nil || !decision.Upload {
		return result, nil
	}

	checksum, _, err := fileutil.Checksum(path)
	if err != nil {
		return result, services.Wrap(services.ErrValidation, "enrichment", "checksum", path, err)
	}
	ext := filepath.Ext(path)
	key := objectstore.ObjectKey(decision.Level, checksum, ext, e.now().UTC())
	metadata := map[string]string{
		"document-type":   cls.DocumentType,
		"criticality":     decision.Level,
		"retention-years": fmt.Sprintf("%d", decision.RetentionYears),
		"original-name":   filepath.Base(path),
	}
	objectID, err := e.uploader.Upload(ctx, key, path, contentType(ext), metadata)
	if err != nil {
		result.UploadStatus = document.UploadFailed
		result.UploadError = err.Error()
		return result, fmt.Errorf("upload %s: %w", filepath.Base(path), err)
	}
	result.UploadStatus = document.UploadUploaded
	result.UploadObjectID = objectID
	logger.Info("document uploaded",
		logging.String(logging.FieldEventType, "document_uploaded"),
		logging.String("object_id", objectID),
		logging.String("criticality", decision.Level),
	)
	return result, nil
}

func contentType(ext string) string {
	ext = strings.ToLower(ext)
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
