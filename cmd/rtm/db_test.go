package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDBCmd_Help(t *testing.T) {
	out, err := execCmd(t, "", "db", "--help")
	if err != nil {
		t.Fatalf("db --help failed: %v", err)
	}
	if !strings.Contains(out, "Database management") {
		t.Errorf("expected help to mention 'Database management', got: %s", out)
	}
	for _, sub := range []string{"init", "reset"} {
		if !strings.Contains(out, sub) {
			t.Errorf("expected help to list %q subcommand, got: %s", sub, out)
		}
	}
}

func TestDBInitCmd_Flags(t *testing.T) {
	cmd := newDBInitCmd()
	flag := cmd.Flags().Lookup("config")
	if flag == nil {
		t.Fatal("expected --config flag")
	}
	if flag.DefValue != "rtmirror.yaml" {
		t.Errorf("--config default = %q, want %q", flag.DefValue, "rtmirror.yaml")
	}
	if flag.Shorthand != "c" {
		t.Errorf("--config shorthand = %q, want %q", flag.Shorthand, "c")
	}
}

func TestDBInitCmd_MissingConfig(t *testing.T) {
	_, err := execCmd(t, "", "db", "init", "--config", "/nonexistent/rtmirror.yaml")
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
	if !strings.Contains(err.Error(), "load config") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "load config")
	}
}

func TestDBInitCmd_InvalidConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "rtmirror.yaml")
	if err := os.WriteFile(cfgPath, []byte("project:\n  name: only-a-name\n"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := execCmd(t, "", "db", "init", "--config", cfgPath)
	if err == nil {
		t.Fatal("expected error for invalid config")
	}
	if !strings.Contains(err.Error(), "load config") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "load config")
	}
}

func TestDBInitCmd_CreatesMirror(t *testing.T) {
	cfgPath := writeTestConfig(t)
	out, err := execCmd(t, "", "db", "init", "--config", cfgPath)
	if err != nil {
		t.Fatalf("db init failed: %v\n%s", err, out)
	}
	for _, want := range []string{"Connected to sqlite", "Migrated schema", "Project PROJ ready"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got: %s", want, out)
		}
	}

	// Re-running init is idempotent.
	if out, err = execCmd(t, "", "db", "init", "--config", cfgPath); err != nil {
		t.Fatalf("second db init failed: %v\n%s", err, out)
	}
}

func TestDBResetCmd_RemovesFile(t *testing.T) {
	cfgPath := initTestMirror(t)
	dbPath := filepath.Join(filepath.Dir(cfgPath), "mirror.db")
	if _, err := os.Stat(dbPath); err != nil {
		t.Fatalf("expected database file: %v", err)
	}

	out, err := execCmd(t, "", "db", "reset", "--config", cfgPath)
	if err != nil {
		t.Fatalf("db reset failed: %v\n%s", err, out)
	}
	if _, err := os.Stat(dbPath); !os.IsNotExist(err) {
		t.Errorf("expected database file removed, stat err = %v", err)
	}
}

func TestDBResetCmd_RefusesWithDirtyRows(t *testing.T) {
	cfgPath := initTestMirror(t)
	if out, err := execCmd(t, "", "issue", "create", "TEST_CASE", "Login works", "--config", cfgPath); err != nil {
		t.Fatalf("issue create failed: %v\n%s", err, out)
	}

	_, err := execCmd(t, "", "db", "reset", "--config", cfgPath)
	if err == nil {
		t.Fatal("expected reset to refuse with unpushed edits")
	}
	if !strings.Contains(err.Error(), "unpushed") {
		t.Errorf("error = %q, want to mention unpushed edits", err.Error())
	}

	// --force overrides the guard.
	if out, err := execCmd(t, "", "db", "reset", "--force", "--config", cfgPath); err != nil {
		t.Fatalf("db reset --force failed: %v\n%s", err, out)
	}
}
