package main

import (
	"path/filepath"
	"testing"

	"autoingest/internal/testsupport"
)

func TestConfigPathPrecedence(t *testing.T) {
	t.Setenv(configEnvVar, "/etc/autoingest/env.toml")

	if got := configPath([]string{"/tmp/arg.toml"}); got != "/tmp/arg.toml" {
		t.Fatalf("expected argument to win, got %q", got)
	}
	if got := configPath(nil); got != "/etc/autoingest/env.toml" {
		t.Fatalf("expected env path, got %q", got)
	}
	t.Setenv(configEnvVar, "")
	if got := configPath([]string{"  "}); got != "" {
		t.Fatalf("expected empty path, got %q", got)
	}
}

func TestLoadConfigCreatesDirectories(t *testing.T) {
	base := t.TempDir()
	t.Setenv("HOME", base)
	path := filepath.Join(base, "config.toml")
	dataDir := filepath.Join(base, "state")
	testsupport.WriteText(t, path, "[paths]\ndata_dir = \""+dataDir+"\"\n")

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.DatabasePath() != filepath.Join(dataDir, "autoingest.db") {
		t.Fatalf("unexpected database path %q", cfg.DatabasePath())
	}
	if cfg.SocketPath() != filepath.Join(dataDir, "autoingest.sock") {
		t.Fatalf("unexpected socket path %q", cfg.SocketPath())
	}
}

func TestLoadConfigRejectsInvalidFile(t *testing.T) {
	base := t.TempDir()
	t.Setenv("HOME", base)
	path := filepath.Join(base, "config.toml")
	testsupport.WriteText(t, path, "[logging]\nformat = \"xml\"\n")
	if _, err := loadConfig(path); err == nil {
		t.Fatal("expected invalid logging format to fail")
	}
}
