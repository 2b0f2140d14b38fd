package guard

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/trustgate/internal/alert"
	"github.com/ppiankov/trustgate/internal/rules"
)

// Config holds gate-wide settings: where the rule documents live, where
// decisions are audited, and how approvals and alerts behave. Per-rule
// configuration lives in the rule documents themselves.
type Config struct {
	RulesDir           string         `yaml:"rules_dir"`
	AuditPath          string         `yaml:"audit_path"`
	ApprovalTTLMinutes int            `yaml:"approval_ttl_minutes"`
	ApprovalDir        string         `yaml:"approval_dir"`
	HistorySize        int            `yaml:"history_size"`
	Webhooks           []alert.Config `yaml:"webhooks"`
}

// DefaultConfig returns the built-in gate configuration. Empty paths
// resolve under ~/.trustgate at construction.
func DefaultConfig() *Config {
	return &Config{
		ApprovalTTLMinutes: 15,
		HistorySize:        1000,
	}
}

// DefaultConfigPath is where LoadConfig looks when no path is given.
func DefaultConfigPath() string {
	return filepath.Join(baseDir(), "config.yaml")
}

// LoadConfig loads gate configuration from a YAML file.
// Empty path falls back to ~/.trustgate/config.yaml.
// Missing file returns defaults. Invalid YAML returns an error.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("failed to read gate config: %w", err)
	}

	// Start with defaults, YAML overwrites only specified fields
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse gate config: %w", err)
	}

	return cfg, nil
}

// RulePaths resolves the rule document locations, defaulting under
// ~/.trustgate when no rules directory is configured.
func (c *Config) RulePaths() rules.Paths {
	if c.RulesDir == "" {
		return rules.DefaultPaths()
	}
	return rules.PathsIn(c.RulesDir)
}

// AuditFile resolves the decision log location.
func (c *Config) AuditFile() string {
	if c.AuditPath != "" {
		return c.AuditPath
	}
	return filepath.Join(baseDir(), "audit.jsonl")
}

// MirrorDir resolves the approval mirror directory, where pending
// requests are exposed as files for out-of-process resolution.
func (c *Config) MirrorDir() string {
	if c.ApprovalDir != "" {
		return c.ApprovalDir
	}
	return filepath.Join(baseDir(), "approvals")
}

func (c *Config) approvalTTL() time.Duration {
	if c.ApprovalTTLMinutes <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(c.ApprovalTTLMinutes) * time.Minute
}

func baseDir() string {
	base := filepath.Join(os.TempDir(), "trustgate")
	if home, err := os.UserHomeDir(); err == nil {
		base = filepath.Join(home, ".trustgate")
	}
	return base
}

// DefaultConfigYAML returns a commented YAML string for trustgate init.
func DefaultConfigYAML() string {
	return `# trustgate gate configuration
# Generated by: trustgate init
#
# Rule documents (tools.yaml, network.yaml, secrets.yaml) live in rules_dir
# and are hot-reloaded when they change on disk. This file is read once at
# startup.

# Directory holding the three rule documents. Empty means ~/.trustgate.
rules_dir: ""

# Hash-chained JSONL decision log. Empty means ~/.trustgate/audit.jsonl.
# Check integrity with: trustgate audit --verify
audit_path: ""

# How long a pending request waits for an operator before it expires into
# a rejection.
approval_ttl_minutes: 15

# Directory where pending requests are mirrored as JSON files so that
# "trustgate approve <id>" works from another process.
# Empty means ~/.trustgate/approvals.
approval_dir: ""

# In-memory decision history kept per engine.
history_size: 1000

# Webhook alert destinations. Events name the decisions to forward.
# Formats: generic (raw JSON), slack, pagerduty.
#webhooks:
#  - url: https://hooks.slack.com/services/T000/B000/XXXX
#    format: slack
#    events: [block, rate_limit, pending]
`
}
