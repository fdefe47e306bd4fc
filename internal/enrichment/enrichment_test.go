package enrichment

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"autoingest/internal/criticality"
	"autoingest/internal/document"
	"autoingest/internal/logging"
)

type recordingUploader struct {
	key         string
	contentType string
	metadata    map[string]string
	err         error
	calls       int
}

func (r *recordingUploader) Upload(_ context.Context, key, _, contentType string, metadata map[string]string) (string, error) {
	r.calls++
	r.key = key
	r.contentType = contentType
	r.metadata = metadata
	if r.err != nil {
		return "", r.err
	}
	return "documents/" + key, nil
}

func writeScan(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scan.JPG")
	if err := os.WriteFile(path, []byte("jpeg-bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func fixedClock() time.Time {
	return time.Date(2026, time.February, 3, 4, 5, 6, 0, time.UTC)
}

func TestAssignWithoutUploaderSkipsUpload(t *testing.T) {
	enricher := New(nil, logging.NewNop())
	result, err := enricher.AssignCriticalityAndUpload(context.Background(), writeScan(t),
		document.Classification{DocumentType: "Recipe", Confidence: 0.9}, nil)
	if err != nil {
		t.Fatalf("AssignCriticalityAndUpload failed: %v", err)
	}
	if result.Criticality != "Internal" || result.RetentionYears != 3 || result.StorageType != "Local Folder" {
		t.Fatalf("expected default rules, got %+v", result)
	}
	if result.UploadStatus != document.UploadSkipped {
		t.Fatalf("expected skipped upload, got %s", result.UploadStatus)
	}
}

func TestAssignUploadsWithCriticalityKey(t *testing.T) {
	uploader := &recordingUploader{}
	enricher := New(uploader, logging.NewNop())
	enricher.now = fixedClock

	rules, err := criticality.Parse([]byte("document_types:\n  Invoice:\n    level: Confidential\n    retention_years: 7\n"))
	if err != nil {
		t.Fatal(err)
	}
	result, err := enricher.AssignCriticalityAndUpload(context.Background(), writeScan(t),
		document.Classification{DocumentType: "Invoice", Confidence: 0.9}, rules)
	if err != nil {
		t.Fatalf("AssignCriticalityAndUpload failed: %v", err)
	}
	if result.UploadStatus != document.UploadUploaded || !strings.HasPrefix(result.UploadObjectID, "documents/confidential/2026/02/") {
		t.Fatalf("unexpected upload result: %+v", result)
	}
	if !strings.HasSuffix(uploader.key, ".jpg") || uploader.contentType != "image/jpeg" {
		t.Fatalf("unexpected key/content type: %q %q", uploader.key, uploader.contentType)
	}
	if uploader.metadata["criticality"] != "Confidential" || uploader.metadata["original-name"] != "scan.JPG" {
		t.Fatalf("unexpected metadata: %#v", uploader.metadata)
	}
}

func TestAssignHonorsUploadDisabledRule(t *testing.T) {
	uploader := &recordingUploader{}
	enricher := New(uploader, logging.NewNop())
	rules, err := criticality.Parse([]byte("document_types:\n  Passport:\n    level: Top Secret\n    upload: false\n"))
	if err != nil {
		t.Fatal(err)
	}
	result, err := enricher.AssignCriticalityAndUpload(context.Background(), writeScan(t),
		document.Classification{DocumentType: "passport", Confidence: 0.99}, rules)
	if err != nil {
		t.Fatal(err)
	}
	if uploader.calls != 0 || result.UploadStatus != document.UploadSkipped || result.Criticality != "Top Secret" {
		t.Fatalf("expected upload skipped for restricted type, got %+v (calls=%d)", result, uploader.calls)
	}
}

func TestAssignReturnsUploadError(t *testing.T) {
	uploader := &recordingUploader{err: errors.New("bucket offline")}
	enricher := New(uploader, logging.NewNop())
	result, err := enricher.AssignCriticalityAndUpload(context.Background(), writeScan(t),
		document.Classification{DocumentType: "Letter", Confidence: 0.8}, nil)
	if err == nil || !strings.Contains(err.Error(), "bucket offline") {
		t.Fatalf("expected upload error, got %v", err)
	}
	if result.UploadStatus != document.UploadFailed || result.UploadError == "" {
		t.Fatalf("expected failed upload status, got %+v", result)
	}
}
