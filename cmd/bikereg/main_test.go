package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// runCmd executes the root command with args and returns its output.
func runCmd(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// writeTestConfig writes a config using a SQLite file in a temp dir and
// returns its path.
func writeTestConfig(t *testing.T, extra string) string {
	t.Helper()
	dir := t.TempDir()
	cfg := "database:\n  driver: sqlite\n  path: " + filepath.Join(dir, "bikereg.db") + "\n" + extra
	path := filepath.Join(dir, "bikereg.yaml")
	if err := os.WriteFile(path, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestVersionCmd(t *testing.T) {
	out, err := runCmd(t, "", "version")
	if err != nil {
		t.Fatalf("version command failed: %v", err)
	}
	if !strings.Contains(out, "bikereg dev") {
		t.Errorf("expected output to contain 'bikereg dev', got: %s", out)
	}
	if !strings.Contains(out, "commit: none") {
		t.Errorf("expected output to contain 'commit: none', got: %s", out)
	}
}

func TestVersionCmdWithCustomValues(t *testing.T) {
	origVersion, origCommit, origDate := Version, Commit, Date
	Version, Commit, Date = "1.0.0", "abc123", "2026-01-01"
	defer func() { Version, Commit, Date = origVersion, origCommit, origDate }()

	out, err := runCmd(t, "", "version")
	if err != nil {
		t.Fatalf("version command failed: %v", err)
	}
	for _, want := range []string{"bikereg 1.0.0", "commit: abc123", "built: 2026-01-01"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got: %s", want, out)
		}
	}
}

func TestRootCmdHelp(t *testing.T) {
	out, err := runCmd(t, "", "--help")
	if err != nil {
		t.Fatalf("--help failed: %v", err)
	}
	for _, sub := range []string{"serve", "db", "scan", "decode", "label", "version"} {
		if !strings.Contains(out, sub) {
			t.Errorf("help missing subcommand %q", sub)
		}
	}
}

func TestUnknownCommand(t *testing.T) {
	if _, err := runCmd(t, "", "bogus"); err == nil {
		t.Fatal("expected error for unknown command")
	}
}

func TestExecute_ReturnsExitCode(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"version"})
	if code := execute(cmd); code != 0 {
		t.Errorf("execute(version) = %d, want 0", code)
	}

	cmd = newRootCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"bogus"})
	if code := execute(cmd); code != 1 {
		t.Errorf("execute(bogus) = %d, want 1", code)
	}
}
