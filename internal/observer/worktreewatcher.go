package observer

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ChangeCallback is called with worktree-relative paths of files that changed
type ChangeCallback func(changedFiles []string)

// WorktreeWatcher monitors a worktree for file writes while an agent works in it
type WorktreeWatcher struct {
	watcher  *fsnotify.Watcher
	root     string
	callback ChangeCallback
	debounce time.Duration
	log      *zap.SugaredLogger

	// Debounce state
	pending map[string]struct{}
	timer   *time.Timer
	mu      sync.Mutex
}

// NewWorktreeWatcher creates a watcher for every directory under root except .git
func NewWorktreeWatcher(root string, callback ChangeCallback) (*WorktreeWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	ww := &WorktreeWatcher{
		watcher:  watcher,
		root:     root,
		callback: callback,
		debounce: 500 * time.Millisecond, // Debounce rapid changes
		log:      zap.NewNop().Sugar(),
		pending:  make(map[string]struct{}),
	}

	if err := ww.addTree(root); err != nil {
		watcher.Close()
		return nil, err
	}
	return ww, nil
}

// WithLogger sets the logger used for watch errors
func (ww *WorktreeWatcher) WithLogger(log *zap.SugaredLogger) *WorktreeWatcher {
	ww.log = log
	return ww
}

// SetDebounce sets the debounce duration for batching file changes
func (ww *WorktreeWatcher) SetDebounce(d time.Duration) {
	ww.mu.Lock()
	defer ww.mu.Unlock()
	ww.debounce = d
}

func (ww *WorktreeWatcher) addTree(dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip errors
		}
		if !info.IsDir() {
			return nil
		}
		if info.Name() == ".git" {
			return filepath.SkipDir
		}
		return ww.watcher.Add(path)
	})
}

// Run processes events until ctx is done, then flushes pending changes and closes the watcher
func (ww *WorktreeWatcher) Run(ctx context.Context) error {
	defer ww.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			ww.stopTimer()
			ww.flush()
			return nil
		case event, ok := <-ww.watcher.Events:
			if !ok {
				return nil
			}
			ww.handleEvent(event)
		case err, ok := <-ww.watcher.Errors:
			if !ok {
				return nil
			}
			// Log error but continue watching
			ww.log.Warnw("worktree watch error", "root", ww.root, "error", err)
		}
	}
}

func (ww *WorktreeWatcher) handleEvent(event fsnotify.Event) {
	// Only care about writes and creates
	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return
	}

	rel, err := filepath.Rel(ww.root, event.Name)
	if err != nil || rel == ".git" || strings.HasPrefix(rel, ".git"+string(filepath.Separator)) {
		return
	}

	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			ww.addTree(event.Name)
			return
		}
	}

	ww.mu.Lock()
	defer ww.mu.Unlock()

	ww.pending[filepath.ToSlash(rel)] = struct{}{}

	// Reset or start debounce timer
	if ww.timer != nil {
		ww.timer.Stop()
	}
	ww.timer = time.AfterFunc(ww.debounce, ww.flush)
}

func (ww *WorktreeWatcher) stopTimer() {
	ww.mu.Lock()
	defer ww.mu.Unlock()
	if ww.timer != nil {
		ww.timer.Stop()
	}
}

func (ww *WorktreeWatcher) flush() {
	ww.mu.Lock()
	// Copy pending state and clear
	pending := ww.pending
	ww.pending = make(map[string]struct{})
	ww.mu.Unlock()

	if ww.callback == nil || len(pending) == 0 {
		return
	}

	files := make([]string, 0, len(pending))
	for f := range pending {
		files = append(files, f)
	}
	ww.callback(files)
}
