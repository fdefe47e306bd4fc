package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateEngine(); err != nil {
		return err
	}
	if err := c.validateClassifier(); err != nil {
		return err
	}
	if err := c.validateUpload(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateEngine() error {
	if c.Engine.MaxConcurrentWorkflows < 1 {
		return errors.New("engine.max_concurrent_workflows must be positive")
	}
	if c.Engine.StopGraceSeconds < 1 {
		return errors.New("engine.stop_grace_seconds must be positive")
	}
	if c.Engine.DefaultMaxRetries < 1 {
		return errors.New("engine.default_max_retries must be positive")
	}
	if c.Engine.DefaultIntervalSeconds < 1 {
		return errors.New("engine.default_interval_seconds must be positive")
	}
	return nil
}

func (c *Config) validateClassifier() error {
	parsed, err := url.Parse(c.Classifier.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("classifier.base_url must be an absolute URL, got %q", c.Classifier.BaseURL)
	}
	if c.Classifier.JPEGQuality > 100 {
		return errors.New("classifier.jpeg_quality must be between 1 and 100")
	}
	return nil
}

func (c *Config) validateUpload() error {
	if !c.Upload.Enabled {
		return nil
	}
	if c.Upload.Endpoint == "" {
		return errors.New("upload.endpoint is required when upload is enabled")
	}
	if strings.Contains(c.Upload.Endpoint, "://") {
		return fmt.Errorf("upload.endpoint must be host[:port] without a scheme, got %q", c.Upload.Endpoint)
	}
	if c.Upload.AccessKey == "" || c.Upload.SecretKey == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = defaultConfigPath
		}
		return fmt.Errorf("upload credentials are required. Set %s/%s or edit %s", envUploadAccessKey, envUploadSecretKey, defaultPath)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
