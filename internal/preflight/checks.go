package preflight

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"autoingest/internal/criticality"
	"autoingest/internal/fileutil"
)

const (
	classifierCheckTimeout = 5 * time.Second
	bucketCheckTimeout     = 10 * time.Second
)

// CheckDirectoryAccess verifies that path exists and is read/write/searchable.
func CheckDirectoryAccess(name, path string) Result {
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	if err := fileutil.CheckDirAccess(path); err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s does not exist", path)}
		}
		return Result{Name: name, Detail: err.Error()}
	}
	return Result{Name: name, Passed: true, Detail: path}
}

// CheckCriticalityRules parses the rules file. A missing file passes because
// the built-in defaults apply.
func CheckCriticalityRules(path string) Result {
	const name = "Criticality rules"
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Passed: true, Detail: "defaults (no file configured)"}
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return Result{Name: name, Passed: true, Detail: "defaults (" + path + " not found)"}
	}
	cfg, err := criticality.Load(path)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%d document types", len(cfg.DocumentTypes))}
}

type tagsResponse struct {
	Models []struct {
		Name  string `json:"name"`
		Model string `json:"model"`
	} `json:"models"`
}

// CheckClassifier verifies the Ollama endpoint answers and has the model pulled.
func CheckClassifier(ctx context.Context, baseURL, model string) Result {
	const name = "Classifier"

	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		return Result{Name: name, Detail: "missing base_url"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, classifierCheckTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, base+"/api/tags", nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("build request: %v", err)}
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return Result{Name: name, Detail: summarizeNetError(err, base)}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Result{Name: name, Detail: fmt.Sprintf("unexpected status %d from %s", resp.StatusCode, base)}
	}

	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("decode model list: %v", err)}
	}
	for _, m := range tags.Models {
		if modelMatches(m.Name, model) || modelMatches(m.Model, model) {
			return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s ready at %s", model, base)}
		}
	}
	return Result{Name: name, Detail: fmt.Sprintf("model %s not pulled on %s", model, base)}
}

// modelMatches treats an untagged model name as ":latest".
func modelMatches(candidate, want string) bool {
	candidate = strings.TrimSpace(candidate)
	want = strings.TrimSpace(want)
	if candidate == "" || want == "" {
		return false
	}
	if candidate == want {
		return true
	}
	if !strings.Contains(want, ":") {
		return candidate == want+":latest"
	}
	return false
}

// BucketChecker reports whether the upload bucket exists.
type BucketChecker interface {
	BucketExists(ctx context.Context) (bool, error)
}

// CheckBucket verifies object storage credentials by probing the bucket. A
// missing bucket passes because uploads create it on first use.
func CheckBucket(ctx context.Context, store BucketChecker, bucket string) Result {
	const name = "Object storage"

	checkCtx, cancel := context.WithTimeout(ctx, bucketCheckTimeout)
	defer cancel()

	exists, err := store.BucketExists(checkCtx)
	if err != nil {
		return Result{Name: name, Detail: summarizeNetError(err, bucket)}
	}
	if !exists {
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("bucket %s will be created on first upload", bucket)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("bucket %s reachable", bucket)}
}

func summarizeNetError(err error, target string) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Sprintf("timed out reaching %s", target)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Sprintf("timed out reaching %s", target)
	}
	return err.Error()
}
