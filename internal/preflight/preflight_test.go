package preflight

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"autoingest/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if !strings.Contains(result.Detail, "does not exist") {
		t.Fatalf("unexpected detail %q", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if result := CheckDirectoryAccess("test", f); result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckClassifier(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"models":[{"name":"llama3.2-vision:latest","model":"llama3.2-vision:latest"}]}`))
	}))
	defer srv.Close()

	tests := []struct {
		model string
		pass  bool
	}{
		{"llama3.2-vision", true},
		{"llama3.2-vision:latest", true},
		{"llama3.2-vision:11b", false},
		{"llava", false},
	}
	for _, tt := range tests {
		result := CheckClassifier(context.Background(), srv.URL+"/", tt.model)
		if result.Passed != tt.pass {
			t.Errorf("model %q: passed=%v detail=%q", tt.model, result.Passed, result.Detail)
		}
	}
}

func TestCheckClassifier_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	result := CheckClassifier(context.Background(), srv.URL, "llama3.2-vision")
	if result.Passed || !strings.Contains(result.Detail, "500") {
		t.Fatalf("expected status failure, got %+v", result)
	}
	if result := CheckClassifier(context.Background(), "", "m"); result.Passed {
		t.Fatal("expected missing base url to fail")
	}
}

func TestCheckCriticalityRules(t *testing.T) {
	dir := t.TempDir()
	if result := CheckCriticalityRules(filepath.Join(dir, "missing.yaml")); !result.Passed {
		t.Fatalf("missing rules file should fall back to defaults: %+v", result)
	}

	bad := filepath.Join(dir, "bad.yaml")
	testsupport.WriteText(t, bad, "document_types: [unterminated")
	if result := CheckCriticalityRules(bad); result.Passed {
		t.Fatal("expected malformed rules to fail")
	}
}

type stubBucket struct {
	exists bool
	err    error
}

func (s stubBucket) BucketExists(context.Context) (bool, error) { return s.exists, s.err }

func TestCheckBucket(t *testing.T) {
	if result := CheckBucket(context.Background(), stubBucket{exists: true}, "docs"); !result.Passed {
		t.Fatalf("expected pass, got %+v", result)
	}
	if result := CheckBucket(context.Background(), stubBucket{}, "docs"); !result.Passed || !strings.Contains(result.Detail, "created") {
		t.Fatalf("missing bucket should pass with note, got %+v", result)
	}
	if result := CheckBucket(context.Background(), stubBucket{err: errors.New("access denied")}, "docs"); result.Passed {
		t.Fatal("expected error to fail")
	}
}

func TestRunAllSkipsDisabledUpload(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Classifier.BaseURL = "http://127.0.0.1:1"
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	results := RunAll(context.Background(), cfg, nil)
	if len(results) != 5 {
		t.Fatalf("expected 5 results, got %d", len(results))
	}
	last := results[len(results)-1]
	if last.Name != "Object storage" || !last.Optional || last.Detail != "Disabled" {
		t.Fatalf("unexpected upload result %+v", last)
	}
	failed := Failed(results)
	if len(failed) != 1 || failed[0] != "Classifier" {
		t.Fatalf("expected only the classifier to fail, got %v", failed)
	}
}
