package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// --- ProjectSlug ---

func TestProjectSlug_WhenGivenAbsolutePath_ShouldReplaceSlashesWithDashes(t *testing.T) {
	got := Config{}.ProjectSlug("/Users/alice/projects/myapp")
	expected := "-Users-alice-projects-myapp"
	if got != expected {
		t.Errorf("expected %q, got %q", expected, got)
	}
}

func TestProjectSlug_WhenPathContainsDots_ShouldReplaceThemToo(t *testing.T) {
	got := Config{}.ProjectSlug("/home/user/my-project.v2")
	expected := "-home-user-my-project-v2"
	if got != expected {
		t.Errorf("expected %q, got %q", expected, got)
	}
}

func TestProjectSlug_WhenPathContainsSpaces_ShouldPreserveThem(t *testing.T) {
	got := Config{}.ProjectSlug("/home/user/My Project")
	expected := "-home-user-My Project"
	if got != expected {
		t.Errorf("expected %q, got %q", expected, got)
	}
}

func TestProjectDir_ShouldCombineProjectsDirAndSlug(t *testing.T) {
	c := Config{ProjectsDir: "/tmp/projects"}
	got := c.ProjectDir("/home/user/project")
	expected := filepath.Join("/tmp/projects", "-home-user-project")
	if got != expected {
		t.Errorf("expected %q, got %q", expected, got)
	}
}

// --- DBPath / SessionsPath ---

func TestDBPath_WhenRelative_ShouldResolveUnderDataDir(t *testing.T) {
	c := Config{DataDir: "/var/data", DBFile: "x.duckdb"}
	if got := c.DBPath(); got != filepath.Join("/var/data", "x.duckdb") {
		t.Errorf("unexpected path %q", got)
	}
}

func TestDBPath_WhenAbsolute_ShouldReturnUnchanged(t *testing.T) {
	c := Config{DataDir: "/var/data", DBFile: "/elsewhere/x.duckdb"}
	if got := c.DBPath(); got != "/elsewhere/x.duckdb" {
		t.Errorf("unexpected path %q", got)
	}
}

func TestSessionsPath_ShouldResolveUnderDataDir(t *testing.T) {
	c := Config{DataDir: "/var/data", SessionsFile: "sessions.log"}
	if got := c.SessionsPath(); got != filepath.Join("/var/data", "sessions.log") {
		t.Errorf("unexpected path %q", got)
	}
}

// --- Default ---

func TestDefault_ShouldRootPathsUnderHome(t *testing.T) {
	t.Setenv("HOME", "/home/tester")
	c := Default()
	if c.DataDir != filepath.Join("/home/tester", ".sessionlog") {
		t.Errorf("unexpected DataDir %q", c.DataDir)
	}
	if !strings.HasSuffix(c.ProjectsDir, filepath.Join(".claude", "projects")) {
		t.Errorf("expected ProjectsDir to end with .claude/projects, got %q", c.ProjectsDir)
	}
	if c.ContinueMode != ContinueImplicit {
		t.Errorf("expected implicit continuation by default, got %q", c.ContinueMode)
	}
}

// --- Load ---

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"SESSIONLOG_DATA_DIR", "SESSIONLOG_PROJECTS_DIR", "SESSIONLOG_DB", "SESSIONLOG_LOG_LEVEL", "CLAUDE_BINARY"} {
		t.Setenv(k, "")
	}
}

func TestLoad_WhenFileMissing_ShouldReturnDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("HOME", t.TempDir())

	c, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.ClaudeBinary != "claude" || c.DBFile != "sessions.duckdb" {
		t.Errorf("expected defaults, got %+v", c)
	}
}

func TestLoad_WhenFilePresent_ShouldOverlayDefaults(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := "data_dir: /srv/sl\ncontinue_mode: resume\nclaude_args: [\"--model\", \"opus\"]\nskip_permissions: false\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.DataDir != "/srv/sl" || c.ContinueMode != ContinueExplicit || c.SkipPermissions {
		t.Errorf("file values not applied: %+v", c)
	}
	if len(c.ClaudeArgs) != 2 || c.ClaudeArgs[1] != "opus" {
		t.Errorf("unexpected ClaudeArgs %v", c.ClaudeArgs)
	}
	if c.SessionsFile != "sessions.log" {
		t.Errorf("unset keys should keep defaults, got %q", c.SessionsFile)
	}
}

func TestLoad_WhenEnvSet_ShouldOverrideFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("claude_binary: /opt/claude\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CLAUDE_BINARY", "/usr/local/bin/mock-claude")
	t.Setenv("SESSIONLOG_DB", "/tmp/other.duckdb")

	c, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.ClaudeBinary != "/usr/local/bin/mock-claude" {
		t.Errorf("expected env binary, got %q", c.ClaudeBinary)
	}
	if c.DBPath() != "/tmp/other.duckdb" {
		t.Errorf("expected env db, got %q", c.DBPath())
	}
}

func TestLoad_WhenYAMLInvalid_ShouldFail(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("data_dir: [unclosed\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoad_WhenContinueModeUnknown_ShouldFail(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("continue_mode: sometimes\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "continue_mode") {
		t.Errorf("expected continue_mode error, got %v", err)
	}
}
