package main

import (
	"fmt"
	"os"
	"strings"

	"autoingest/internal/config"
)

const configEnvVar = "AUTOINGEST_CONFIG"

// configPath prefers the first argument, then AUTOINGEST_CONFIG, then the
// default location.
func configPath(args []string) string {
	if len(args) > 0 && strings.TrimSpace(args[0]) != "" {
		return strings.TrimSpace(args[0])
	}
	return strings.TrimSpace(os.Getenv(configEnvVar))
}

func loadConfig(path string) (*config.Config, error) {
	cfg, _, _, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return cfg, nil
}
