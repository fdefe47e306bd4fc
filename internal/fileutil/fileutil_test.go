package fileutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestChecksumMatchesForIdenticalContent(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.jpg")
	b := filepath.Join(dir, "b.jpg")
	c := filepath.Join(dir, "c.jpg")
	payload := []byte(strings.Repeat("scan-data", 2000))
	for _, p := range []string{a, b} {
		if err := os.WriteFile(p, payload, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(c, append(payload, '!'), 0o644); err != nil {
		t.Fatal(err)
	}

	sumA, sizeA, err := Checksum(a)
	if err != nil {
		t.Fatal(err)
	}
	sumB, _, err := Checksum(b)
	if err != nil {
		t.Fatal(err)
	}
	sumC, _, err := Checksum(c)
	if err != nil {
		t.Fatal(err)
	}
	if sumA != sumB {
		t.Fatalf("identical files hashed differently: %s vs %s", sumA, sumB)
	}
	if sumA == sumC {
		t.Fatal("different files produced the same checksum")
	}
	if len(sumA) != 16 {
		t.Fatalf("expected 16 hex chars, got %q", sumA)
	}
	if sizeA != int64(len(payload)) {
		t.Fatalf("unexpected size %d", sizeA)
	}
}

func TestChecksumMissingFile(t *testing.T) {
	if _, _, err := Checksum(filepath.Join(t.TempDir(), "missing.png")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestProcessedName(t *testing.T) {
	at := time.Date(2026, time.January, 2, 15, 4, 5, 0, time.Local)
	got := ProcessedName("/in/Scan 01.JPG", at)
	want := filepath.Join("/in", "Scan 01_20260102_150405_processed.JPG")
	if got != want {
		t.Fatalf("ProcessedName = %q, want %q", got, want)
	}
}

func TestRenameProcessedAvoidsCollisions(t *testing.T) {
	dir := t.TempDir()
	at := time.Date(2026, time.January, 2, 15, 4, 5, 0, time.Local)

	first := filepath.Join(dir, "doc.png")
	if err := os.WriteFile(first, []byte("one"), 0o644); err != nil {
		t.Fatal(err)
	}
	renamed, err := RenameProcessed(first, at)
	if err != nil {
		t.Fatalf("RenameProcessed failed: %v", err)
	}
	if filepath.Base(renamed) != "doc_20260102_150405_processed.png" {
		t.Fatalf("unexpected name %q", renamed)
	}
	if _, err := os.Stat(first); !os.IsNotExist(err) {
		t.Fatal("expected original to be gone")
	}

	if err := os.WriteFile(first, []byte("two"), 0o644); err != nil {
		t.Fatal(err)
	}
	second, err := RenameProcessed(first, at)
	if err != nil {
		t.Fatalf("second RenameProcessed failed: %v", err)
	}
	if filepath.Base(second) != "doc_20260102_150405_processed_1.png" {
		t.Fatalf("unexpected collision name %q", second)
	}
	data, err := os.ReadFile(renamed)
	if err != nil || string(data) != "one" {
		t.Fatalf("first processed file clobbered: %q %v", data, err)
	}
}

func TestIsSupportedImage(t *testing.T) {
	cases := map[string]bool{
		"a.png":   true,
		"a.JPG":   true,
		"a.Jpeg":  true,
		"a.gif":   false,
		"a.pdf":   false,
		"png":     false,
		"a.png.x": false,
	}
	for name, want := range cases {
		if got := IsSupportedImage(name); got != want {
			t.Fatalf("IsSupportedImage(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestNormalizeName(t *testing.T) {
	decomposed := "résumé.png"
	composed := "résumé.png"
	if NormalizeName(decomposed) != composed {
		t.Fatalf("expected NFC normalization, got %q", NormalizeName(decomposed))
	}
}

func TestCheckDirAccess(t *testing.T) {
	dir := t.TempDir()
	if err := CheckDirAccess(dir); err != nil {
		t.Fatalf("expected accessible dir, got %v", err)
	}
	file := filepath.Join(dir, "file.txt")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := CheckDirAccess(file); err == nil {
		t.Fatal("expected error for regular file")
	}
	if err := CheckDirAccess(filepath.Join(dir, "missing")); err == nil {
		t.Fatal("expected error for missing dir")
	}
}

func TestIsProcessedName(t *testing.T) {
	at := time.Date(2026, time.January, 2, 15, 4, 5, 0, time.Local)
	if !IsProcessedName(ProcessedName("/in/doc.png", at)) {
		t.Fatal("expected processed name to be recognized")
	}
	if !IsProcessedName("doc_20260102_150405_processed_3.JPG") {
		t.Fatal("expected collision-suffixed name to be recognized")
	}
	for _, name := range []string{"doc.png", "processed.png", "doc_processed.png", "doc_2026_processed.png"} {
		if IsProcessedName(name) {
			t.Fatalf("did not expect %q to be treated as processed", name)
		}
	}
}
