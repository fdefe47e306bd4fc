package ollama

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image/color"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/disintegration/imaging"

	"autoingest/internal/services"
)

func writeTestImage(t *testing.T, name string, width, height int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	img := imaging.New(width, height, color.NRGBA{R: 200, G: 200, B: 200, A: 255})
	if err := imaging.Save(img, path); err != nil {
		t.Fatalf("save test image: %v", err)
	}
	return path
}

func respond(t *testing.T, w http.ResponseWriter, content string) {
	t.Helper()
	if err := json.NewEncoder(w).Encode(map[string]any{"model": "demo", "response": content, "done": true}); err != nil {
		t.Fatalf("encode response: %v", err)
	}
}

func TestClassifierClassify(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "demo" || req.Format != "json" || req.Stream {
			t.Errorf("unexpected request: %+v", req)
		}
		if len(req.Images) != 1 {
			t.Errorf("expected one image, got %d", len(req.Images))
		}
		respond(t, w, `{"document_type":" Invoice ","confidence":1.4,"summary":"ACME invoice","tags":["billing",""],"reasoning":"header"}`)
	}))
	defer server.Close()

	path := writeTestImage(t, "scan.png", 40, 30)
	classifier := NewClassifier(Config{BaseURL: server.URL, Model: "demo"})
	got, err := classifier.Classify(context.Background(), path)
	if err != nil {
		t.Fatalf("Classify returned error: %v", err)
	}
	if got.DocumentType != "Invoice" {
		t.Fatalf("unexpected document type %q", got.DocumentType)
	}
	if got.Confidence != 1 {
		t.Fatalf("expected confidence clamped to 1, got %v", got.Confidence)
	}
	if len(got.Tags) != 1 || got.Tags[0] != "billing" {
		t.Fatalf("unexpected tags %v", got.Tags)
	}
}

func TestClassifierDownscalesLargeImages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		raw, err := base64.StdEncoding.DecodeString(req.Images[0])
		if err != nil {
			t.Errorf("decode image payload: %v", err)
		}
		img, err := imaging.Decode(bytes.NewReader(raw))
		if err != nil {
			t.Errorf("decode jpeg: %v", err)
		} else if b := img.Bounds(); b.Dx() > 100 || b.Dy() > 100 {
			t.Errorf("expected image within 100px, got %dx%d", b.Dx(), b.Dy())
		}
		respond(t, w, "```json\n{\"document_type\":\"Letter\",\"confidence\":0.5}\n```")
	}))
	defer server.Close()

	path := writeTestImage(t, "large.jpg", 400, 200)
	classifier := NewClassifier(Config{BaseURL: server.URL, Model: "demo", MaxDimension: 100})
	got, err := classifier.Classify(context.Background(), path)
	if err != nil {
		t.Fatalf("Classify returned error: %v", err)
	}
	if got.DocumentType != "Letter" {
		t.Fatalf("unexpected document type %q", got.DocumentType)
	}
}

func TestClientRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("loading model"))
			return
		}
		respond(t, w, `{"ok":true}`)
	}))
	defer server.Close()

	var slept []time.Duration
	client := NewClient(Config{BaseURL: server.URL, Model: "demo"},
		WithSleeper(func(d time.Duration) { slept = append(slept, d) }))
	content, err := client.GenerateJSON(context.Background(), "ping")
	if err != nil {
		t.Fatalf("GenerateJSON returned error: %v", err)
	}
	if content != `{"ok":true}` {
		t.Fatalf("unexpected content %q", content)
	}
	if calls.Load() != 2 || len(slept) != 1 {
		t.Fatalf("expected one retry, calls=%d sleeps=%v", calls.Load(), slept)
	}
}

func TestClientDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model not found"}`))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, Model: "missing"}, WithSleeper(func(time.Duration) {}))
	if _, err := client.GenerateJSON(context.Background(), "ping"); err == nil {
		t.Fatal("expected error for 404")
	}
	if calls.Load() != 1 {
		t.Fatalf("expected single attempt, got %d", calls.Load())
	}
}

func TestClassifierRejectsUnreadableImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.png")
	classifier := NewClassifier(Config{BaseURL: "http://127.0.0.1:1", Model: "demo"})
	_, err := classifier.Classify(context.Background(), path)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDecodeJSONExtractsEmbeddedObject(t *testing.T) {
	var out struct {
		OK bool `json:"ok"`
	}
	if err := DecodeJSON("Sure! Here you go: {\"ok\": true} hope that helps", &out); err != nil {
		t.Fatalf("DecodeJSON returned error: %v", err)
	}
	if !out.OK {
		t.Fatal("expected ok=true")
	}
	if err := DecodeJSON("   ", &out); err == nil {
		t.Fatal("expected error for empty payload")
	}
}
