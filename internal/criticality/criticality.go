// Package criticality maps classified document types to a criticality level,
// retention period, and storage type using a YAML rules file.
//
// The rules file is re-read by each workflow cycle through a Source so edits
// take effect without restarting workflows. A file that fails to parse or
// validate never replaces the last good rules.
package criticality

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"autoingest/internal/document"
)

// Rule is the outcome assigned to one document type.
type Rule struct {
	Level          string `yaml:"level"`
	RetentionYears int    `yaml:"retention_years"`
	StorageType    string `yaml:"storage_type"`
	Upload         *bool  `yaml:"upload,omitempty"`
}

// Config is the parsed rules file.
type Config struct {
	Levels        []string        `yaml:"levels"`
	Default       Rule            `yaml:"default"`
	MinConfidence float64         `yaml:"min_confidence"`
	LowConfidence *Rule           `yaml:"low_confidence,omitempty"`
	DocumentTypes map[string]Rule `yaml:"document_types"`
}

// Decision is the resolved rule for one classification.
type Decision struct {
	Level          string
	RetentionYears int
	StorageType    string
	Upload         bool
	MatchedType    string
}

// Default returns the built-in rules used when no file is configured.
func Default() *Config {
	return &Config{
		Levels: []string{"Public", "Internal", "Confidential", "Restricted", "Top Secret"},
		Default: Rule{
			Level:          "Internal",
			RetentionYears: 3,
			StorageType:    "Local Folder",
		},
		DocumentTypes: map[string]Rule{},
	}
}

// Parse decodes and validates rules from YAML data, filling gaps from Default.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse criticality rules: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads rules from path. A missing file yields Default.
func Load(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("read criticality rules %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) normalize() {
	normalized := make(map[string]Rule, len(c.DocumentTypes))
	for name, rule := range c.DocumentTypes {
		key := typeKey(name)
		if key == "" {
			continue
		}
		normalized[key] = rule
	}
	c.DocumentTypes = normalized
	if strings.TrimSpace(c.Default.StorageType) == "" {
		c.Default.StorageType = "Local Folder"
	}
}

// Validate checks that every rule names a known level.
func (c *Config) Validate() error {
	if len(c.Levels) == 0 {
		return errors.New("criticality rules: levels must not be empty")
	}
	if strings.TrimSpace(c.Default.Level) == "" {
		return errors.New("criticality rules: default.level is required")
	}
	if err := c.checkRule("default", c.Default); err != nil {
		return err
	}
	if c.LowConfidence != nil {
		if err := c.checkRule("low_confidence", *c.LowConfidence); err != nil {
			return err
		}
	}
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return errors.New("criticality rules: min_confidence must be between 0 and 1")
	}
	for name, rule := range c.DocumentTypes {
		if err := c.checkRule("document_types."+name, rule); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) checkRule(name string, rule Rule) error {
	if rule.RetentionYears < 0 {
		return fmt.Errorf("criticality rules: %s.retention_years must not be negative", name)
	}
	if rule.Level != "" && c.canonicalLevel(rule.Level) == "" {
		return fmt.Errorf("criticality rules: %s.level %q is not one of %v", name, rule.Level, c.Levels)
	}
	return nil
}

func (c *Config) canonicalLevel(level string) string {
	for _, known := range c.Levels {
		if strings.EqualFold(strings.TrimSpace(known), strings.TrimSpace(level)) {
			return known
		}
	}
	return ""
}

// Assign resolves the rule for a classification. Unknown types and empty
// fields fall back to the default rule.
func (c *Config) Assign(cls document.Classification) Decision {
	rule := c.Default
	matched := ""
	if specific, ok := c.DocumentTypes[typeKey(cls.DocumentType)]; ok {
		rule = merge(c.Default, specific)
		matched = cls.DocumentType
	}
	if c.LowConfidence != nil && c.MinConfidence > 0 && cls.Confidence < c.MinConfidence {
		rule = merge(rule, *c.LowConfidence)
	}
	decision := Decision{
		Level:          c.canonicalLevel(rule.Level),
		RetentionYears: rule.RetentionYears,
		StorageType:    rule.StorageType,
		Upload:         true,
		MatchedType:    matched,
	}
	if decision.Level == "" {
		decision.Level = rule.Level
	}
	if rule.Upload != nil {
		decision.Upload = *rule.Upload
	}
	return decision
}

func merge(base, override Rule) Rule {
	out := base
	if strings.TrimSpace(override.Level) != "" {
		out.Level = override.Level
	}
	if override.RetentionYears > 0 {
		out.RetentionYears = override.RetentionYears
	}
	if strings.TrimSpace(override.StorageType) != "" {
		out.StorageType = override.StorageType
	}
	if override.Upload != nil {
		out.Upload = override.Upload
	}
	return out
}

func typeKey(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// Source reloads rules from a path and remembers the last good result.
type Source struct {
	path string

	mu       sync.Mutex
	lastGood *Config
}

// NewSource returns a Source reading path. An empty path always yields Default.
func NewSource(path string) *Source {
	return &Source{path: path}
}

// Path returns the rules file location.
func (s *Source) Path() string {
	return s.path
}

// Load re-reads the rules file. On failure it returns the last good rules
// (or Default) together with the error so callers can log and continue.
func (s *Source) Load() (*Config, error) {
	cfg, err := Load(s.path)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		if s.lastGood != nil {
			return s.lastGood, err
		}
		return Default(), err
	}
	s.lastGood = cfg
	return cfg, nil
}
