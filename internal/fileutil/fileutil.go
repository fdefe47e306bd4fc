package fileutil

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sys/unix"
	"golang.org/x/text/unicode/norm"
)

const checksumChunkSize = 4096

// ProcessedTimeLayout is the timestamp layout embedded in archived file names.
const ProcessedTimeLayout = "20060102_150405"

var supportedImageExtensions = map[string]struct{}{
	".png":  {},
	".jpg":  {},
	".jpeg": {},
}

// IsSupportedImage reports whether name has an ingestible extension (case-insensitive).
func IsSupportedImage(name string) bool {
	_, ok := supportedImageExtensions[strings.ToLower(filepath.Ext(name))]
	return ok
}

var processedStem = regexp.MustCompile(`_\d{8}_\d{6}_processed(_\d+)?$`)

// IsProcessedName reports whether name already carries the processed marker
// written by RenameProcessed.
func IsProcessedName(name string) bool {
	base := filepath.Base(name)
	return processedStem.MatchString(strings.TrimSuffix(base, filepath.Ext(base)))
}

// NormalizeName returns name in Unicode NFC so visually identical names compare equal.
func NormalizeName(name string) string {
	return norm.NFC.String(name)
}

// Checksum streams the file in fixed-size chunks and returns its xxHash64
// digest as 16 lowercase hex characters together with the byte count.
func Checksum(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	digest := xxhash.New()
	buf := make([]byte, checksumChunkSize)
	n, err := io.CopyBuffer(digest, f, buf)
	if err != nil {
		return "", 0, fmt.Errorf("read %s: %w", path, err)
	}
	return fmt.Sprintf("%016x", digest.Sum64()), n, nil
}

// ProcessedName returns `{stem}_{yyyyMMdd_HHmmss}_processed{ext}` for path,
// keeping the directory and the original extension case.
func ProcessedName(path string, at time.Time) string {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	return filepath.Join(dir, fmt.Sprintf("%s_%s_processed%s", stem, at.Format(ProcessedTimeLayout), ext))
}

// RenameProcessed renames path in place to its processed name. When the
// target already exists a numeric suffix is appended to the stem.
func RenameProcessed(path string, at time.Time) (string, error) {
	target := ProcessedName(path, at)
	for attempt := 1; ; attempt++ {
		if _, err := os.Lstat(target); errors.Is(err, fs.ErrNotExist) {
			break
		}
		if attempt > 99 {
			return "", fmt.Errorf("rename %s: no free processed name", path)
		}
		ext := filepath.Ext(path)
		stem := strings.TrimSuffix(filepath.Base(path), ext)
		target = filepath.Join(filepath.Dir(path),
			fmt.Sprintf("%s_%s_processed_%d%s", stem, at.Format(ProcessedTimeLayout), attempt, ext))
	}
	if err := os.Rename(path, target); err != nil {
		return "", err
	}
	return target, nil
}

// CheckDirAccess verifies dir exists, is a directory, and is readable,
// writable, and searchable by the current process.
func CheckDirAccess(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	if err := unix.Access(dir, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return fmt.Errorf("%s is not accessible: %w", dir, err)
	}
	return nil
}
