//go:build integration

package integration

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
)

var (
	buildOnce sync.Once
	binDir    string
	buildErr  error
	buildOut  []byte
)

// moduleRoot returns the repository root containing go.mod
func moduleRoot(t *testing.T) string {
	t.Helper()
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("Failed to get current file path")
	}
	return filepath.Dir(filepath.Dir(filename))
}

// binaryPath builds both binaries once per test run and returns the requested one
func binaryPath(t *testing.T, name string) string {
	t.Helper()
	root := moduleRoot(t)

	buildOnce.Do(func() {
		binDir, buildErr = os.MkdirTemp("", "multi-engineer-bin-")
		if buildErr != nil {
			return
		}
		for _, bin := range []string{"multi-engineer", "hello-cli"} {
			cmd := exec.Command("go", "build", "-o", filepath.Join(binDir, bin), "./cmd/"+bin)
			cmd.Dir = root
			if buildOut, buildErr = cmd.CombinedOutput(); buildErr != nil {
				return
			}
		}
	})
	if buildErr != nil {
		t.Fatalf("Failed to build binaries: %v\n%s", buildErr, buildOut)
	}
	return filepath.Join(binDir, name)
}

// TempConfigPath creates a temporary config file path for testing
func TempConfigPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "config.toml")
}

// initRepo creates a git repository with one commit on main
func initRepo(t *testing.T) string {
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
		git(t, repo, args...)
	}
	if err := os.WriteFile(filepath.Join(repo, "README.md"), []byte("# Test\n"), 0644); err != nil {
		t.Fatal(err)
	}
	git(t, repo, "add", ".")
	git(t, repo, "commit", "-m", "Initial commit")
	return repo
}

func git(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %v failed: %v\n%s", args, err, out)
	}
	return string(out)
}

// fakeClaude writes a claude stand-in that answers the product owner with
// instructions and, as the engineer, writes greeting.txt into its working dir
func fakeClaude(t *testing.T) string {
	t.Helper()
	script := `#!/bin/sh
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
	path := filepath.Join(t.TempDir(), "claude")
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		t.Fatal(err)
	}
	return path
}

// createTestConfig writes a config pointing every path into temp dirs
func createTestConfig(t *testing.T, repo, claude string) string {
	t.Helper()
	configPath := TempConfigPath(t)
	work := filepath.Dir(configPath)

	config := `[general]
repo_root = "` + repo + `"
database_path = "` + filepath.Join(work, "tasks.db") + `"
session_dir = "` + filepath.Join(work, "sessions") + `"

[claude]
binary = "` + claude + `"
timeout_seconds = 30

[log]
level = "debug"
path = "` + filepath.Join(work, "multi-engineer.log") + `"

[notifications]
desktop = false
`
	if err := os.WriteFile(configPath, []byte(config), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return configPath
}
