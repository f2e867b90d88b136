// Package config provides YAML-based configuration loading for RTMirror.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level RTMirror configuration, loaded from rtmirror.yaml.
type Config struct {
	Project   ProjectConfig   `yaml:"project"`
	Remote    RemoteConfig    `yaml:"remote"`
	DB        DBConfig        `yaml:"db"`
	Sync      SyncConfig      `yaml:"sync"`
	Notify    NotifyConfig    `yaml:"notify"`
	Dashboard DashboardConfig `yaml:"dashboard"`
}

// ProjectConfig identifies the remote project being mirrored.
type ProjectConfig struct {
	Key  string `yaml:"key"`
	ID   int64  `yaml:"id"`
	Name string `yaml:"name"`
}

// RemoteConfig holds connection settings for the remote issue service.
// Credentials are basic auth (username + personal access token).
type RemoteConfig struct {
	BaseURL  string `yaml:"base_url"`
	Username string `yaml:"username"`
	APIToken string `yaml:"api_token"`
}

// DBConfig selects the local mirror backend: sqlite (default, single user)
// or mysql (shared team mirror).
type DBConfig struct {
	Driver   string `yaml:"driver"`
	Path     string `yaml:"path"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// SyncConfig tunes the pull/push passes.
type SyncConfig struct {
	// TreeScopes lists the kind-scoped trees to pull, in remote treeType
	// notation. Empty means all five scopes.
	TreeScopes []string `yaml:"tree_scopes"`
	// SkipDirty skips pull overwrites of records with unpushed local edits.
	// Off by default: pull is remote-authoritative.
	SkipDirty bool `yaml:"skip_dirty"`
}

// NotifyConfig enables Slack notifications for sync run summaries.
type NotifyConfig struct {
	SlackToken   string `yaml:"slack_token"`
	SlackChannel string `yaml:"slack_channel"`
}

// DashboardConfig holds settings for the local status API server.
type DashboardConfig struct {
	Port int `yaml:"port"`
}

// DefaultTreeScopes are the five kind-scoped trees the remote service exposes.
var DefaultTreeScopes = []string{
	"requirements",
	"test-cases",
	"test-plans",
	"test-executions",
	"defects",
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.DB.Driver == "" {
		c.DB.Driver = "sqlite"
	}
	if c.DB.Driver == "sqlite" && c.DB.Path == "" {
		c.DB.Path = "rtmirror.db"
	}
	if c.DB.Driver == "mysql" {
		if c.DB.Host == "" {
			c.DB.Host = "127.0.0.1"
		}
		if c.DB.Port == 0 {
			c.DB.Port = 3306
		}
		if c.DB.User == "" {
			c.DB.User = "root"
		}
		if c.DB.Database == "" && c.Project.Key != "" {
			c.DB.Database = "rtmirror_" + strings.ToLower(c.Project.Key)
		}
	}
	if len(c.Sync.TreeScopes) == 0 {
		c.Sync.TreeScopes = append([]string(nil), DefaultTreeScopes...)
	}
	if c.Dashboard.Port == 0 {
		c.Dashboard.Port = 8080
	}
	c.Remote.BaseURL = strings.TrimRight(c.Remote.BaseURL, "/")
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if c.Project.Key == "" {
		errs = append(errs, "project.key is required")
	}
	if c.Project.ID == 0 {
		errs = append(errs, "project.id is required")
	}
	if c.Remote.BaseURL == "" {
		errs = append(errs, "remote.base_url is required")
	}
	switch c.DB.Driver {
	case "sqlite", "mysql":
	default:
		errs = append(errs, fmt.Sprintf("db.driver must be sqlite or mysql, got %q", c.DB.Driver))
	}
	if c.DB.Driver == "mysql" && c.DB.Database == "" {
		errs = append(errs, "db.database is required for the mysql driver")
	}
	for i, scope := range c.Sync.TreeScopes {
		if !validScope(scope) {
			errs = append(errs, fmt.Sprintf("sync.tree_scopes[%d]: unknown scope %q", i, scope))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validScope(scope string) bool {
	for _, s := range DefaultTreeScopes {
		if s == scope {
			return true
		}
	}
	return false
}
