package preflight

import (
	"context"
	"log/slog"

	"autoingest/internal/config"
	"autoingest/internal/services/objectstore"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name     string
	Passed   bool
	Optional bool
	Detail   string
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config, logger *slog.Logger) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckCriticalityRules(cfg.Engine.CriticalityConfig),
		CheckClassifier(ctx, cfg.Classifier.BaseURL, cfg.Classifier.Model),
	}

	if cfg.Upload.Enabled {
		store, err := objectstore.NewMinio(cfg.Upload, logger)
		if err != nil {
			results = append(results, Result{Name: "Object storage", Detail: err.Error()})
		} else {
			results = append(results, CheckBucket(ctx, store, cfg.Upload.Bucket))
		}
	} else {
		results = append(results, Result{Name: "Object storage", Passed: true, Optional: true, Detail: "Disabled"})
	}

	return results
}

// Failed returns the names of required checks that did not pass.
func Failed(results []Result) []string {
	var names []string
	for _, r := range results {
		if !r.Passed && !r.Optional {
			names = append(names, r.Name)
		}
	}
	return names
}
