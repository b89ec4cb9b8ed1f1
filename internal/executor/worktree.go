package executor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/hochfrequenz/multi-engineer/internal/domain"
	"go.uber.org/zap"
)

// WorktreeManager handles git worktree operations for development tasks
type WorktreeManager struct {
	repoDir     string
	worktreeDir string
	log         *zap.SugaredLogger
}

// NewWorktreeManager creates a new WorktreeManager
func NewWorktreeManager(repoDir, worktreeDir string) *WorktreeManager {
	return &WorktreeManager{
		repoDir:     repoDir,
		worktreeDir: worktreeDir,
		log:         zap.NewNop().Sugar(),
	}
}

// WithLogger sets the logger used for git command tracing
func (m *WorktreeManager) WithLogger(log *zap.SugaredLogger) *WorktreeManager {
	m.log = log
	return m
}

// RepoDir returns the main checkout the manager operates on
func (m *WorktreeManager) RepoDir() string {
	return m.repoDir
}

// WorktreePath returns the derived worktree location for a task
func (m *WorktreeManager) WorktreePath(taskID string) string {
	return filepath.Join(m.worktreeDir, "t-"+domain.ShortID(taskID))
}

// Create creates a worktree on a new branch forked from base.
// A directory already sitting at the derived path, and any leftover branch of the
// same name, are removed first so that recreation always succeeds.
func (m *WorktreeManager) Create(ctx context.Context, taskID, branch, base string) (string, error) {
	if err := os.MkdirAll(m.worktreeDir, 0755); err != nil {
		return "", fmt.Errorf("creating worktree dir: %w", err)
	}
	m.excludeWorktreeDir(ctx)

	wtPath := m.WorktreePath(taskID)
	if _, err := os.Stat(wtPath); err == nil {
		if err := m.Remove(ctx, taskID); err != nil {
			m.log.Warnw("existing worktree not registered, deleting directory", "path", wtPath, "error", err)
		}
		// Remove only unregisters known worktrees; a stray directory is deleted outright
		if err := os.RemoveAll(wtPath); err != nil {
			return "", fmt.Errorf("removing existing worktree dir: %w", err)
		}
	}

	m.cleanupExistingBranch(ctx, branch)

	if out, err := m.git(ctx, m.repoDir, "worktree", "add", "-b", branch, wtPath, base); err != nil {
		return "", fmt.Errorf("git worktree add: %s: %w", strings.TrimSpace(string(out)), err)
	}

	m.log.Infow("worktree created", "path", wtPath, "branch", branch, "base", base)
	return wtPath, nil
}

// Remove removes the task's worktree if its directory exists
func (m *WorktreeManager) Remove(ctx context.Context, taskID string) error {
	return m.RemovePath(ctx, m.WorktreePath(taskID))
}

// RemovePath force-removes the worktree at wtPath if the directory exists
func (m *WorktreeManager) RemovePath(ctx context.Context, wtPath string) error {
	if _, err := os.Stat(wtPath); os.IsNotExist(err) {
		return nil
	}

	if out, err := m.git(ctx, m.repoDir, "worktree", "remove", wtPath, "--force"); err != nil {
		return fmt.Errorf("git worktree remove: %s: %w", strings.TrimSpace(string(out)), err)
	}

	m.log.Infow("worktree removed", "path", wtPath)
	return nil
}

// Commit stages every change in the worktree and commits it
func (m *WorktreeManager) Commit(ctx context.Context, wtPath, message string) error {
	if out, err := m.git(ctx, wtPath, "add", "-A"); err != nil {
		return fmt.Errorf("git add: %s: %w", strings.TrimSpace(string(out)), err)
	}
	if out, err := m.git(ctx, wtPath, "commit", "-m", message); err != nil {
		return fmt.Errorf("git commit: %s: %w", strings.TrimSpace(string(out)), err)
	}
	return nil
}

// Merge checks out base in the main checkout, merges branch with --no-ff and
// deletes the branch. A worktree still holding the branch is removed first.
// Once the merge commit exists a failed branch delete is only logged.
func (m *WorktreeManager) Merge(ctx context.Context, branch, base string) error {
	if out, err := m.git(ctx, m.repoDir, "checkout", base); err != nil {
		return fmt.Errorf("git checkout %s: %s: %w", base, strings.TrimSpace(string(out)), err)
	}

	msg := fmt.Sprintf("Merge %s: AI-generated changes", branch)
	if out, err := m.git(ctx, m.repoDir, "merge", branch, "--no-ff", "-m", msg); err != nil {
		return fmt.Errorf("git merge: %s: %w", strings.TrimSpace(string(out)), err)
	}

	m.removeWorktreesForBranch(ctx, branch)

	if out, err := m.git(ctx, m.repoDir, "branch", "-d", branch); err != nil {
		m.log.Warnw("deleting merged branch failed", "branch", branch, "output", strings.TrimSpace(string(out)), "error", err)
	}

	m.log.Infow("branch merged", "branch", branch, "base", base)
	return nil
}

// DiffStats returns `git diff base...branch --stat`
func (m *WorktreeManager) DiffStats(ctx context.Context, base, branch string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", "diff", base+"..."+branch, "--stat")
	cmd.Dir = m.repoDir
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("git diff --stat: %w", err)
	}
	return string(out), nil
}

// WorkingDiffStat returns `git diff --stat` for uncommitted tracked changes in dir
func (m *WorktreeManager) WorkingDiffStat(ctx context.Context, dir string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", "diff", "--stat")
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("git diff --stat: %w", err)
	}
	return string(out), nil
}

// ChangedFiles lists modified, added, deleted and untracked files in dir
func (m *WorktreeManager) ChangedFiles(ctx context.Context, dir string) ([]string, error) {
	cmd := exec.CommandContext(ctx, "git", "status", "--porcelain", "-z", "--untracked-files=all")
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("git status: %w", err)
	}
	return parsePorcelain(string(out)), nil
}

// CurrentBranch returns the branch checked out in the main checkout.
// Detached HEAD yields an empty string and no error.
func (m *WorktreeManager) CurrentBranch(ctx context.Context) (string, error) {
	cmd := exec.CommandContext(ctx, "git", "branch", "--show-current")
	cmd.Dir = m.repoDir
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("git branch --show-current: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// DetectBaseBranch returns the current branch, or main plus a notice explaining the fallback
func (m *WorktreeManager) DetectBaseBranch(ctx context.Context) (string, string) {
	branch, err := m.CurrentBranch(ctx)
	if err != nil {
		return domain.DefaultBaseBranch, "could not determine the current branch, using main as base"
	}
	if branch == "" {
		return domain.DefaultBaseBranch, "detached HEAD, using main as base"
	}
	return branch, ""
}

// List returns all worktree paths inside the managed worktree directory
func (m *WorktreeManager) List(ctx context.Context) ([]string, error) {
	cmd := exec.CommandContext(ctx, "git", "worktree", "list", "--porcelain")
	cmd.Dir = m.repoDir
	out, err := cmd.Output()
	if err != nil {
		return nil, err
	}

	base := m.resolvedWorktreeDir()
	var paths []string
	for _, line := range strings.Split(string(out), "\n") {
		if strings.HasPrefix(line, "worktree ") {
			path := strings.TrimPrefix(line, "worktree ")
			if isWithin(base, evalPath(path)) {
				paths = append(paths, path)
			}
		}
	}

	return paths, nil
}

// CleanupAll force-removes every managed worktree and prunes stale entries.
// It returns the paths that were removed.
func (m *WorktreeManager) CleanupAll(ctx context.Context) ([]string, error) {
	paths, err := m.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing worktrees: %w", err)
	}

	var removed []string
	for _, p := range paths {
		if out, err := m.git(ctx, m.repoDir, "worktree", "remove", p, "--force"); err != nil {
			m.log.Warnw("worktree remove failed", "path", p, "output", string(out), "error", err)
			continue
		}
		removed = append(removed, p)
	}

	m.git(ctx, m.repoDir, "worktree", "prune")
	return removed, nil
}

// cleanupExistingBranch removes any worktree holding branch and deletes the branch
func (m *WorktreeManager) cleanupExistingBranch(ctx context.Context, branch string) {
	m.git(ctx, m.repoDir, "worktree", "prune")
	m.removeWorktreesForBranch(ctx, branch)

	// Ignore error - branch might not exist
	m.git(ctx, m.repoDir, "branch", "-D", branch)
}

func (m *WorktreeManager) removeWorktreesForBranch(ctx context.Context, branch string) {
	cmd := exec.CommandContext(ctx, "git", "worktree", "list", "--porcelain")
	cmd.Dir = m.repoDir
	out, _ := cmd.Output()

	var current string
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "worktree "):
			current = strings.TrimPrefix(line, "worktree ")
		case line == "branch refs/heads/"+branch && current != "":
			m.git(ctx, m.repoDir, "worktree", "remove", "--force", current)
		}
	}
}

// excludeWorktreeDir keeps a worktree dir nested in the repo out of `git add -A`
func (m *WorktreeManager) excludeWorktreeDir(ctx context.Context) {
	repo := evalPath(m.repoDir)
	rel, err := filepath.Rel(repo, m.resolvedWorktreeDir())
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return
	}

	cmd := exec.CommandContext(ctx, "git", "rev-parse", "--git-common-dir")
	cmd.Dir = m.repoDir
	out, err := cmd.Output()
	if err != nil {
		return
	}
	gitDir := strings.TrimSpace(string(out))
	if !filepath.IsAbs(gitDir) {
		gitDir = filepath.Join(m.repoDir, gitDir)
	}

	excludePath := filepath.Join(gitDir, "info", "exclude")
	entry := "/" + filepath.ToSlash(rel) + "/"
	existing, _ := os.ReadFile(excludePath)
	for _, line := range strings.Split(string(existing), "\n") {
		if strings.TrimSpace(line) == entry {
			return
		}
	}

	if err := os.MkdirAll(filepath.Dir(excludePath), 0755); err != nil {
		return
	}
	f, err := os.OpenFile(excludePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	defer f.Close()
	if len(existing) > 0 && !strings.HasSuffix(string(existing), "\n") {
		f.WriteString("\n")
	}
	f.WriteString(entry + "\n")
}

func (m *WorktreeManager) resolvedWorktreeDir() string {
	return evalPath(m.worktreeDir)
}

func (m *WorktreeManager) git(ctx context.Context, dir string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	m.log.Debugw("git", "dir", dir, "args", args, "error", err)
	return out, err
}

// parsePorcelain extracts file names from `git status --porcelain -z` output.
// Entries are NUL-terminated and paths are not quoted; a rename or copy entry
// is followed by an extra field holding the original path, which is skipped.
func parsePorcelain(out string) []string {
	var files []string
	fields := strings.Split(out, "\x00")
	for i := 0; i < len(fields); i++ {
		entry := fields[i]
		if len(entry) < 4 {
			continue
		}
		files = append(files, entry[3:])
		if entry[0] == 'R' || entry[0] == 'C' {
			i++
		}
	}
	return files
}

// evalPath resolves symlinks and makes p absolute, returning p unchanged on failure
func evalPath(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		return p
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	return abs
}

func isWithin(base, path string) bool {
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return false
	}
	return rel != "." && !strings.HasPrefix(rel, "..")
}
