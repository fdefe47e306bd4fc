package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"autoingest/internal/config"
	"autoingest/internal/criticality"
	"autoingest/internal/daemon"
	"autoingest/internal/enrichment"
	"autoingest/internal/ipc"
	"autoingest/internal/logging"
	"autoingest/internal/notifications"
	"autoingest/internal/preflight"
	"autoingest/internal/queue"
	"autoingest/internal/services/objectstore"
	"autoingest/internal/services/ollama"
	"autoingest/internal/workflow"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the autoingest daemon and blocks until SIGINT or SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger, err := newLogger(cfg, opts)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	pidPath := filepath.Join(cfg.Paths.DataDir, "autoingestd.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open queue store", logging.Error(err))
		return err
	}

	rules := criticality.NewSource(cfg.Engine.CriticalityConfig)
	if _, err := rules.Load(); err != nil {
		logging.WarnWithContext(logger, "criticality rules unavailable; using defaults", "criticality_load_failed",
			logging.Error(err),
			logging.String("path", rules.Path()),
			logging.String(logging.FieldImpact, "documents get the default criticality level"),
			logging.String(logging.FieldErrorHint, "create or fix engine.criticality_config"),
		)
	}

	uploader, err := newUploader(cfg, logger)
	if err != nil {
		store.Close()
		return err
	}

	notifier := notifications.NewService(cfg)
	manager := workflow.NewManager(cfg, workflow.Dependencies{
		Store:      store,
		Classifier: ollama.NewClassifier(classifierConfig(cfg)),
		Enricher:   enrichment.New(uploader, logger),
		Results:    store,
		Rules:      rules,
		Notifier:   notifier,
	}, logger)
	logDependencySnapshot(logger, cfg)
	logPreflight(signalCtx, logger, cfg)

	d, err := daemon.New(cfg, store, logger, manager)
	if err != nil {
		store.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	ipcServer, err := ipc.NewServer(signalCtx, cfg.SocketPath(), d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	<-signalCtx.Done()
	logger.Info("autoingest daemon shutting down",
		logging.String(logging.FieldEventType, "daemon_shutdown"),
		logging.Int("active_workflows", manager.ActiveCount()),
	)
	return nil
}

func newLogger(cfg *config.Config, opts Options) (*slog.Logger, error) {
	if strings.TrimSpace(opts.LogLevel) == "" && !opts.Development {
		return logging.NewFromConfig(cfg)
	}
	level := cfg.Logging.Level
	if strings.TrimSpace(opts.LogLevel) != "" {
		level = opts.LogLevel
	}
	return logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", cfg.LogFilePath()},
		Development: opts.Development,
		Rotation: logging.Rotation{
			MaxSizeMB:     cfg.Logging.MaxSizeMB,
			MaxBackups:    cfg.Logging.MaxBackups,
			RetentionDays: cfg.Logging.RetentionDays,
			Compress:      true,
		},
	})
}

// newUploader returns nil when uploads are disabled; enrichment then records
// the upload as skipped.
func newUploader(cfg *config.Config, logger *slog.Logger) (objectstore.Uploader, error) {
	if !cfg.Upload.Enabled {
		return nil, nil
	}
	store, err := objectstore.NewMinio(cfg.Upload, logger)
	if err != nil {
		return nil, fmt.Errorf("init upload target: %w", err)
	}
	return store, nil
}

func classifierConfig(cfg *config.Config) ollama.Config {
	return ollama.Config{
		BaseURL:        cfg.Classifier.BaseURL,
		Model:          cfg.Classifier.Model,
		TimeoutSeconds: cfg.Classifier.TimeoutSeconds,
		MaxDimension:   cfg.Classifier.MaxDimension,
		JPEGQuality:    cfg.Classifier.JPEGQuality,
	}
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	logger.Info("dependency snapshot",
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.String("classifier_url", cfg.Classifier.BaseURL),
		logging.String("classifier_model", cfg.Classifier.Model),
		logging.Bool("upload_enabled", cfg.Upload.Enabled),
		logging.String("upload_endpoint", cfg.Upload.Endpoint),
		logging.String("upload_bucket", cfg.Upload.Bucket),
		logging.Bool("ntfy_configured", strings.TrimSpace(cfg.Notifications.NtfyTopic) != ""),
		logging.Bool("api_enabled", strings.TrimSpace(cfg.Paths.APIBind) != ""),
		logging.Int("max_concurrent_workflows", cfg.Engine.MaxConcurrentWorkflows),
	)
}

// logPreflight reports unhealthy dependencies without blocking startup;
// workflows surface the same failures per item once they run.
func logPreflight(ctx context.Context, logger *slog.Logger, cfg *config.Config) {
	logPreflightResults(ctx, logger, preflight.RunAll(ctx, cfg, logger))
}

func logPreflightResults(ctx context.Context, logger *slog.Logger, results []preflight.Result) {
	for _, result := range results {
		attrs := []logging.Attr{
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.Bool("passed", result.Passed),
			logging.Bool("optional", result.Optional),
		}
		switch {
		case result.Passed:
			logger.LogAttrs(ctx, slog.LevelDebug, "preflight check passed",
				append(attrs, logging.String(logging.FieldEventType, "preflight_ok"))...)
		case result.Optional:
			logger.LogAttrs(ctx, slog.LevelInfo, "optional preflight check failed",
				append(attrs, logging.String(logging.FieldEventType, "preflight_optional_failed"))...)
		default:
			logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
				append(attrs,
					logging.String(logging.FieldImpact, "workflows may fail items until this is fixed"),
					logging.String(logging.FieldErrorHint, "run `autoingest status` for the full dependency report"),
				)...)
		}
	}
}
