package command

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

const fakeClaude = `#!/bin/sh
for last; do :; done
case "$last" in
  *"Working directory:"*)
    echo "hello" > greeting.txt
    echo "Created greeting.txt"
    ;;
  *)
    echo "Create greeting.txt containing hello"
    ;;
esac
`

type env struct {
	repo       string
	configPath string
}

func setupEnv(t *testing.T, claudeScript string) env {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}

	repo := t.TempDir()
	for _, args := range [][]string{
		{"init"},
		{"symbolic-ref", "HEAD", "refs/heads/main"},
		{"config", "user.email", "test@test.com"},
		{"config", "user.name", "Test"},
		{"config", "commit.gpgsign", "false"},
	} {
		gitCmd(t, repo, args...)
	}
	os.WriteFile(filepath.Join(repo, "README.md"), []byte("# Test\n"), 0644)
	gitCmd(t, repo, "add", ".")
	gitCmd(t, repo, "commit", "-m", "Initial commit")

	work := t.TempDir()
	binary := filepath.Join(work, "claude")
	if err := os.WriteFile(binary, []byte(claudeScript), 0755); err != nil {
		t.Fatal(err)
	}

	configPath := filepath.Join(work, "config.toml")
	config := `[general]
repo_root = "` + repo + `"
database_path = "` + filepath.Join(work, "tasks.db") + `"
session_dir = "` + filepath.Join(work, "sessions") + `"

[claude]
binary = "` + binary + `"
timeout_seconds = 20

[log]
path = ""
`
	if err := os.WriteFile(configPath, []byte(config), 0644); err != nil {
		t.Fatal(err)
	}

	return env{repo: repo, configPath: configPath}
}

func gitCmd(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %v failed: %s", args, out)
	}
	return string(out)
}

func execute(t *testing.T, cmd *cobra.Command, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	err := cmd.Execute()
	return out.String(), err
}

func TestRunWorkflow_AutoMerge(t *testing.T) {
	e := setupEnv(t, fakeClaude)
	configPath := e.configPath

	out, err := execute(t, NewRunCmd("run PROMPT", "run", &configPath), "", "add a greeting file", "--auto-merge")
	if err != nil {
		t.Fatalf("run failed: %v\n%s", err, out)
	}

	for _, want := range []string{"Task: add a greeting file", "Base branch: main", "Work report", "greeting.txt", "Changes merged into main"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	if _, err := os.Stat(filepath.Join(e.repo, "greeting.txt")); err != nil {
		t.Error("greeting.txt should be merged into main")
	}
	log := gitCmd(t, e.repo, "log", "--format=%s", "-3")
	if !strings.Contains(log, "feat: add a greeting file") || !strings.Contains(log, "AI-generated changes") {
		t.Errorf("unexpected history:\n%s", log)
	}
}

func TestRunWorkflow_DeclineMerge(t *testing.T) {
	e := setupEnv(t, fakeClaude)
	configPath := e.configPath

	out, err := execute(t, NewRunCmd("run PROMPT", "run", &configPath), "n\n", "add a greeting file")
	if err != nil {
		t.Fatalf("declining should exit 0, got %v\n%s", err, out)
	}
	if !strings.Contains(out, "Merge the changes into main? [y/N]") {
		t.Errorf("confirmation not asked:\n%s", out)
	}
	if !strings.Contains(out, "The worktree was kept") || !strings.Contains(out, "git worktree remove") {
		t.Errorf("leftover instructions missing:\n%s", out)
	}
	if _, err := os.Stat(filepath.Join(e.repo, "greeting.txt")); err == nil {
		t.Error("nothing should be merged")
	}
}

func TestRunWorkflow_InterruptedConfirmation(t *testing.T) {
	e := setupEnv(t, fakeClaude)
	configPath := e.configPath

	// Empty stdin behaves like Ctrl+D at the prompt
	out, err := execute(t, NewRunCmd("run PROMPT", "run", &configPath), "", "add a greeting file")
	code, ok := IsExit(err)
	if !ok || code != 1 {
		t.Fatalf("err = %v, want exit 1\n%s", err, out)
	}
	if !strings.Contains(out, "interrupted") {
		t.Errorf("interrupted panel missing:\n%s", out)
	}
}

func TestRunWorkflow_EngineerFailure(t *testing.T) {
	script := `#!/bin/sh
for last; do :; done
case "$last" in
  *"Working directory:"*) echo "quota exceeded" >&2; exit 1 ;;
  *) echo "Edit README.md" ;;
esac
`
	e := setupEnv(t, script)
	configPath := e.configPath

	out, err := execute(t, NewRunCmd("run PROMPT", "run", &configPath), "", "x", "--auto-merge")
	if code, ok := IsExit(err); !ok || code != 1 {
		t.Fatalf("err = %v, want exit 1\n%s", err, out)
	}
	for _, want := range []string{"Task execution failed", "quota exceeded", "git worktree remove", "--force", "git branch -D feature/task-"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRunWorkflow_MissingCLI(t *testing.T) {
	e := setupEnv(t, fakeClaude)
	data, _ := os.ReadFile(e.configPath)
	os.WriteFile(e.configPath, []byte(strings.Replace(string(data), "[claude]\nbinary = \"", "[claude]\nbinary = \"/nonexistent", 1)), 0644)
	configPath := e.configPath

	out, err := execute(t, NewRunCmd("run PROMPT", "run", &configPath), "", "x")
	if code, ok := IsExit(err); !ok || code != 1 {
		t.Fatalf("err = %v, want exit 1", err)
	}
	if !strings.Contains(out, "not found") {
		t.Errorf("missing CLI message:\n%s", out)
	}
}

func TestRunWorkflow_MaxTurnsRange(t *testing.T) {
	configPath := ""
	for _, v := range []string{"0", "51"} {
		_, err := execute(t, NewRunCmd("run PROMPT", "run", &configPath), "", "x", "--max-turns", v)
		if err == nil || !strings.Contains(err.Error(), "--max-turns") {
			t.Errorf("--max-turns %s: err = %v", v, err)
		}
	}
}

func TestRunWorkflow_NoWorktree(t *testing.T) {
	e := setupEnv(t, fakeClaude)
	configPath := e.configPath

	out, err := execute(t, NewRunCmd("run PROMPT", "run", &configPath), "", "add a greeting file", "--no-worktree")
	if err != nil {
		t.Fatalf("run failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Changes committed on main") {
		t.Errorf("output:\n%s", out)
	}
	if strings.Contains(out, "[y/N]") {
		t.Error("direct mode should not ask to merge")
	}
	if msg := gitCmd(t, e.repo, "log", "-1", "--format=%s"); strings.TrimSpace(msg) != "feat: add a greeting file" {
		t.Errorf("HEAD = %q", msg)
	}
}

func TestCleanupWorktrees(t *testing.T) {
	e := setupEnv(t, fakeClaude)
	configPath := e.configPath

	// Leave a worktree behind by declining the merge
	if out, err := execute(t, NewRunCmd("run PROMPT", "run", &configPath), "n\n", "add a greeting file"); err != nil {
		t.Fatalf("run failed: %v\n%s", err, out)
	}

	out, err := execute(t, NewCleanupWorktreesCmd(&configPath), "")
	if err != nil {
		t.Fatalf("cleanup failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Removed 1 worktree(s)") {
		t.Errorf("output:\n%s", out)
	}

	out, _ = execute(t, NewCleanupWorktreesCmd(&configPath), "")
	if !strings.Contains(out, "No worktrees to clean up") {
		t.Errorf("second cleanup output:\n%s", out)
	}
}

func TestPrintError(t *testing.T) {
	var buf bytes.Buffer
	PrintError(&buf, &ExitError{Code: 1})
	if buf.Len() != 0 {
		t.Error("ExitError should not be printed")
	}
	PrintError(&buf, os.ErrNotExist)
	if !strings.Contains(buf.String(), "Error: file does not exist") {
		t.Errorf("got %q", buf.String())
	}
}

func TestRunWorkflow_MaxTurnsFromConfig(t *testing.T) {
	e := setupEnv(t, fakeClaude)
	data, _ := os.ReadFile(e.configPath)
	os.WriteFile(e.configPath, []byte(strings.Replace(string(data), "timeout_seconds = 20", "timeout_seconds = 20\nmax_turns = 60", 1)), 0644)
	configPath := e.configPath

	_, err := execute(t, NewRunCmd("run PROMPT", "run", &configPath), "", "x")
	if err == nil || !strings.Contains(err.Error(), "claude.max_turns") {
		t.Errorf("err = %v, want config range error", err)
	}

	// An explicit flag wins over the config value
	out, err := execute(t, NewRunCmd("run PROMPT", "run", &configPath), "", "add a greeting file", "-m", "7", "--auto-merge")
	if err != nil {
		t.Fatalf("run failed: %v\n%s", err, out)
	}
}
