package testsupport

import (
	"path/filepath"
	"testing"

	"autoingest/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Engine.CriticalityConfig = filepath.Join(base, "criticality.yaml")
	cfgVal.Engine.StopGraceSeconds = 5
	cfgVal.Upload.Enabled = false
	cfgVal.Notifications.NtfyTopic = ""

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithMaxConcurrentWorkflows overrides the global workflow cap.
func WithMaxConcurrentWorkflows(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Engine.MaxConcurrentWorkflows = n
	}
}

// WithMaxRetries overrides the per-item retry budget.
func WithMaxRetries(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Engine.DefaultMaxRetries = n
	}
}

// WithCriticalityRules writes a rules file and points the engine at it.
func WithCriticalityRules(yaml string) ConfigOption {
	return func(b *configBuilder) {
		WriteText(b.t, b.cfg.Engine.CriticalityConfig, yaml)
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
