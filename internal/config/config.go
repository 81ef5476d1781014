// Package config resolves filesystem paths and settings for sessionlog.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Continuation modes for live sessions.
const (
	ContinueImplicit = "continue" // --continue, the CLI picks the most recent session
	ContinueExplicit = "resume"   // --resume ID
)

// Config holds paths and live-session settings.
type Config struct {
	// DataDir holds the database and the session id log.
	DataDir string `yaml:"data_dir"`
	// ProjectsDir is the root of the agent tool's per-project session logs.
	ProjectsDir string `yaml:"projects_dir"`
	// DBFile overrides the database location. Relative paths are under DataDir.
	DBFile string `yaml:"db_file"`
	// SessionsFile is the append-only session id log, relative to DataDir.
	SessionsFile string `yaml:"sessions_file"`

	ClaudeBinary    string   `yaml:"claude_binary"`
	ClaudeArgs      []string `yaml:"claude_args"` // prepended before the prompt flags
	SkipPermissions bool     `yaml:"skip_permissions"`
	ContinueMode    string   `yaml:"continue_mode"`

	LogLevel  string `yaml:"log_level"`
	LogPretty bool   `yaml:"log_pretty"`
}

// Default returns a Config rooted at ~/.sessionlog, reading ~/.claude/projects.
func Default() Config {
	home := os.Getenv("HOME")
	return Config{
		DataDir:         filepath.Join(home, ".sessionlog"),
		ProjectsDir:     filepath.Join(home, ".claude", "projects"),
		DBFile:          "sessions.duckdb",
		SessionsFile:    "sessions.log",
		ClaudeBinary:    "claude",
		SkipPermissions: true,
		ContinueMode:    ContinueImplicit,
		LogLevel:        "info",
		LogPretty:       true,
	}
}

// DefaultPath is where Load looks when no path is given.
func DefaultPath() string {
	return filepath.Join(Default().DataDir, "config.yaml")
}

// Load reads the YAML file at path over the defaults, then applies
// environment overrides. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return cfg, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	for env, dst := range map[string]*string{
		"SESSIONLOG_DATA_DIR":     &c.DataDir,
		"SESSIONLOG_PROJECTS_DIR": &c.ProjectsDir,
		"SESSIONLOG_DB":           &c.DBFile,
		"SESSIONLOG_LOG_LEVEL":    &c.LogLevel,
		"CLAUDE_BINARY":           &c.ClaudeBinary,
	} {
		if v := os.Getenv(env); v != "" {
			*dst = v
		}
	}
}

// Validate rejects settings the live adapter cannot act on.
func (c Config) Validate() error {
	switch c.ContinueMode {
	case ContinueImplicit, ContinueExplicit:
	default:
		return fmt.Errorf("continue_mode must be %q or %q, got %q", ContinueImplicit, ContinueExplicit, c.ContinueMode)
	}
	if c.ClaudeBinary == "" {
		return errors.New("claude_binary must not be empty")
	}
	return nil
}

// ProjectSlug encodes a working directory the way the agent tool names its
// project directories: every "/" and "." becomes "-".
func (c Config) ProjectSlug(cwd string) string {
	return strings.NewReplacer("/", "-", ".", "-").Replace(cwd)
}

// ProjectDir returns the session log directory for a working directory.
func (c Config) ProjectDir(cwd string) string {
	return filepath.Join(c.ProjectsDir, c.ProjectSlug(cwd))
}

// DBPath returns the DuckDB database file path.
func (c Config) DBPath() string {
	return c.under(c.DBFile)
}

// SessionsPath returns the session id log path.
func (c Config) SessionsPath() string {
	return c.under(c.SessionsFile)
}

func (c Config) under(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.DataDir, p)
}
