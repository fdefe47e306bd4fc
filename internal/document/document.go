// Package document holds the value types exchanged between the classifier,
// the enrichment step, and result persistence.
package document

import (
	"strings"
	"time"
)

// Classification is the classifier's verdict for one image.
type Classification struct {
	DocumentType string   `json:"document_type"`
	Confidence   float64  `json:"confidence"`
	Summary      string   `json:"summary"`
	Tags         []string `json:"tags"`
	Reasoning    string   `json:"reasoning"`
}

// Normalize trims free-text fields and clamps confidence to [0,1].
func (c *Classification) Normalize() {
	c.DocumentType = strings.TrimSpace(c.DocumentType)
	if c.DocumentType == "" {
		c.DocumentType = UnknownType
	}
	c.Summary = strings.TrimSpace(c.Summary)
	c.Reasoning = strings.TrimSpace(c.Reasoning)
	if c.Confidence < 0 {
		c.Confidence = 0
	}
	if c.Confidence > 1 {
		c.Confidence = 1
	}
	tags := c.Tags[:0]
	for _, tag := range c.Tags {
		if trimmed := strings.TrimSpace(tag); trimmed != "" {
			tags = append(tags, trimmed)
		}
	}
	c.Tags = tags
}

// UnknownType is recorded when the classifier returns no document type.
const UnknownType = "Unknown"

// UploadStatus tracks whether the enriched document reached object storage.
type UploadStatus string

const (
	UploadUploaded UploadStatus = "uploaded"
	UploadSkipped  UploadStatus = "skipped"
	UploadFailed   UploadStatus = "failed"
)

// Result is a classification enriched with criticality and upload outcome.
type Result struct {
	Classification

	Criticality    string       `json:"criticality"`
	RetentionYears int          `json:"retention_years"`
	StorageType    string       `json:"storage_type"`
	UploadStatus   UploadStatus `json:"upload_status"`
	UploadObjectID string       `json:"upload_object_id,omitempty"`
	UploadError    string       `json:"upload_error,omitempty"`
}

// Record is a persisted processing result.
type Record struct {
	ID                  int64
	UserID              int64
	UploadedBy          string
	FileName            string
	OriginalFileName    string
	FileSize            int64
	FileType            string
	MimeType            string
	FilePath            string
	Checksum            string
	Result              Result
	ProcessingStartedAt time.Time
	ProcessingDuration  time.Duration
	ProcessingStatus    string
	CreatedAt           time.Time
}
