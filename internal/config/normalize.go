package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

const (
	envAPIToken        = "AUTOINGEST_API_TOKEN"
	envUploadAccessKey = "AUTOINGEST_UPLOAD_ACCESS_KEY"
	envUploadSecretKey = "AUTOINGEST_UPLOAD_SECRET_KEY"
	envNtfyTopic       = "AUTOINGEST_NTFY_TOPIC"
	envClassifierURL   = "OLLAMA_HOST"
)

func (c *Config) loadEnvFile(configDir string) error {
	c.envValues = nil
	name := strings.TrimSpace(c.Paths.EnvFile)
	if name == "" {
		return nil
	}
	if strings.HasPrefix(name, "~") {
		expanded, err := expandPath(name)
		if err != nil {
			return fmt.Errorf("paths.env_file: %w", err)
		}
		name = expanded
	} else if !filepath.IsAbs(name) {
		name = filepath.Join(configDir, name)
	}
	values, err := godotenv.Read(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read env file %s: %w", name, err)
	}
	c.envValues = values
	c.Paths.EnvFile = name
	return nil
}

// lookupEnv prefers process environment variables over env file entries.
func (c *Config) lookupEnv(key string) (string, bool) {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value), true
	}
	if value, ok := c.envValues[key]; ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value), true
	}
	return "", false
}

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeEngine(); err != nil {
		return err
	}
	c.normalizeClassifier()
	c.normalizeUpload()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = filepath.Join(c.Paths.DataDir, "logs")
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		if value, ok := c.lookupEnv(envAPIToken); ok {
			c.Paths.APIToken = value
		}
	}
	return nil
}

func (c *Config) normalizeEngine() error {
	if c.Engine.MaxConcurrentWorkflows == 0 {
		c.Engine.MaxConcurrentWorkflows = defaultMaxConcurrentWorkflows
	}
	if c.Engine.StopGraceSeconds == 0 {
		c.Engine.StopGraceSeconds = defaultStopGraceSeconds
	}
	if c.Engine.DefaultMaxRetries == 0 {
		c.Engine.DefaultMaxRetries = defaultMaxRetries
	}
	if c.Engine.DefaultIntervalSeconds == 0 {
		c.Engine.DefaultIntervalSeconds = defaultIntervalSeconds
	}
	if strings.TrimSpace(c.Engine.CriticalityConfig) != "" {
		path, err := expandPath(strings.TrimSpace(c.Engine.CriticalityConfig))
		if err != nil {
			return fmt.Errorf("engine.criticality_config: %w", err)
		}
		c.Engine.CriticalityConfig = path
	}
	return nil
}

func (c *Config) normalizeClassifier() {
	c.Classifier.BaseURL = strings.TrimRight(strings.TrimSpace(c.Classifier.BaseURL), "/")
	if c.Classifier.BaseURL == "" {
		if value, ok := c.lookupEnv(envClassifierURL); ok {
			c.Classifier.BaseURL = strings.TrimRight(value, "/")
		} else {
			c.Classifier.BaseURL = defaultClassifierBaseURL
		}
	}
	c.Classifier.Model = strings.TrimSpace(c.Classifier.Model)
	if c.Classifier.Model == "" {
		c.Classifier.Model = defaultClassifierModel
	}
	if c.Classifier.TimeoutSeconds <= 0 {
		c.Classifier.TimeoutSeconds = defaultClassifierTimeout
	}
	if c.Classifier.MaxDimension <= 0 {
		c.Classifier.MaxDimension = defaultClassifierMaxDimension
	}
	if c.Classifier.JPEGQuality <= 0 {
		c.Classifier.JPEGQuality = defaultClassifierJPEGQuality
	}
}

func (c *Config) normalizeUpload() {
	c.Upload.Endpoint = strings.TrimSpace(c.Upload.Endpoint)
	c.Upload.Bucket = strings.TrimSpace(c.Upload.Bucket)
	if c.Upload.Bucket == "" {
		c.Upload.Bucket = defaultUploadBucket
	}
	if c.Upload.AccessKey == "" {
		if value, ok := c.lookupEnv(envUploadAccessKey); ok {
			c.Upload.AccessKey = value
		}
	}
	if c.Upload.SecretKey == "" {
		if value, ok := c.lookupEnv(envUploadSecretKey); ok {
			c.Upload.SecretKey = value
		}
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := c.lookupEnv(envNtfyTopic); ok {
			c.Notifications.NtfyTopic = value
		}
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.MaxSizeMB <= 0 {
		c.Logging.MaxSizeMB = defaultLogMaxSizeMB
	}
	if c.Logging.MaxBackups < 0 {
		c.Logging.MaxBackups = 0
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
