package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// execCmd runs the CLI with args against a fresh root command, feeding stdin
// and capturing combined output.
func execCmd(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	if stdin != "" {
		cmd.SetIn(strings.NewReader(stdin))
	}
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// writeTestConfig writes a minimal sqlite-backed config into a temp dir and
// returns its path. The database file lives next to it.
func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "rtmirror.yaml")
	cfg := fmt.Sprintf(`
project:
  key: PROJ
  id: 41500
  name: Test Project
remote:
  base_url: https://jira.example.com
db:
  driver: sqlite
  path: %s
`, filepath.Join(dir, "mirror.db"))
	if err := os.WriteFile(cfgPath, []byte(cfg), 0644); err != nil {
		t.Fatal(err)
	}
	return cfgPath
}

// initTestMirror runs `db init` against a fresh config and returns its path.
func initTestMirror(t *testing.T) string {
	t.Helper()
	cfgPath := writeTestConfig(t)
	out, err := execCmd(t, "", "db", "init", "--config", cfgPath)
	if err != nil {
		t.Fatalf("db init failed: %v\n%s", err, out)
	}
	return cfgPath
}

func TestRootCmd_Help(t *testing.T) {
	out, err := execCmd(t, "", "--help")
	if err != nil {
		t.Fatalf("--help failed: %v", err)
	}
	for _, want := range []string{"rtm", "pull", "push", "status", "watch", "dashboard", "issue", "folder", "config"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected help to mention %q, got: %s", want, out)
		}
	}
}

func TestVersionCmd(t *testing.T) {
	out, err := execCmd(t, "", "version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.Contains(out, "rtm dev") {
		t.Errorf("expected version output, got: %s", out)
	}
	if !strings.Contains(out, "commit: none") {
		t.Errorf("expected commit info, got: %s", out)
	}
}

func TestExecute_ReturnsNonZeroOnError(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"no-such-command"})
	if code := execute(cmd); code != 1 {
		t.Errorf("execute = %d, want 1", code)
	}
}
