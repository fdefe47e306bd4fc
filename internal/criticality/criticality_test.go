package criticality_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"autoingest/internal/criticality"
	"autoingest/internal/document"
)

const sampleRules = `
levels: [Public, Internal, Confidential, Restricted, Top Secret]
default:
  level: Internal
  retention_years: 3
  storage_type: Local Folder
min_confidence: 0.6
low_confidence:
  level: restricted
  upload: false
document_types:
  Invoice:
    level: Confidential
    retention_years: 7
    storage_type: Object Storage
  "ID  Card":
    level: top secret
    retention_years: 10
`

func TestAssignMatchesDocumentTypeCaseInsensitively(t *testing.T) {
	cfg, err := criticality.Parse([]byte(sampleRules))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	got := cfg.Assign(document.Classification{DocumentType: "invoice", Confidence: 0.9})
	if got.Level != "Confidential" || got.RetentionYears != 7 || got.StorageType != "Object Storage" {
		t.Fatalf("unexpected invoice decision: %+v", got)
	}
	if !got.Upload {
		t.Fatal("expected upload enabled by default")
	}

	got = cfg.Assign(document.Classification{DocumentType: "id card", Confidence: 0.95})
	if got.Level != "Top Secret" || got.RetentionYears != 10 || got.StorageType != "Local Folder" {
		t.Fatalf("unexpected id card decision: %+v", got)
	}
}

func TestAssignFallsBackToDefault(t *testing.T) {
	cfg, err := criticality.Parse([]byte(sampleRules))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	got := cfg.Assign(document.Classification{DocumentType: "Recipe", Confidence: 0.8})
	if got.Level != "Internal" || got.RetentionYears != 3 || got.MatchedType != "" {
		t.Fatalf("unexpected default decision: %+v", got)
	}
}

func TestAssignLowConfidenceOverrides(t *testing.T) {
	cfg, err := criticality.Parse([]byte(sampleRules))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	got := cfg.Assign(document.Classification{DocumentType: "Invoice", Confidence: 0.2})
	if got.Level != "Restricted" {
		t.Fatalf("expected low confidence level, got %+v", got)
	}
	if got.Upload {
		t.Fatal("expected upload disabled for low confidence")
	}
	if got.RetentionYears != 7 {
		t.Fatalf("expected type retention preserved, got %d", got.RetentionYears)
	}
}

func TestParseRejectsUnknownLevel(t *testing.T) {
	_, err := criticality.Parse([]byte("document_types:\n  Memo:\n    level: Galactic\n"))
	if err == nil || !strings.Contains(err.Error(), "Galactic") {
		t.Fatalf("expected unknown level error, got %v", err)
	}
}

func TestLoadMissingFileUsesDefault(t *testing.T) {
	cfg, err := criticality.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Default.Level != "Internal" {
		t.Fatalf("expected default rules, got %+v", cfg.Default)
	}
}

func TestSourceKeepsLastGoodRules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(path, []byte(sampleRules), 0o644); err != nil {
		t.Fatalf("write rules: %v", err)
	}
	source := criticality.NewSource(path)
	first, err := source.Load()
	if err != nil {
		t.Fatalf("first Load failed: %v", err)
	}

	if err := os.WriteFile(path, []byte("levels: [unterminated"), 0o644); err != nil {
		t.Fatalf("rewrite rules: %v", err)
	}
	second, err := source.Load()
	if err == nil {
		t.Fatal("expected parse error")
	}
	if second != first {
		t.Fatal("expected last good rules to be returned")
	}
}
