package observer

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"
)

type collector struct {
	mu    sync.Mutex
	files map[string]bool
	calls int
}

func (c *collector) callback(files []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	for _, f := range files {
		c.files[f] = true
	}
}

func (c *collector) snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for f := range c.files {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestWorktreeWatcher_ReportsChanges(t *testing.T) {
	root := t.TempDir()
	os.MkdirAll(filepath.Join(root, ".git"), 0755)
	os.MkdirAll(filepath.Join(root, "cmd"), 0755)

	c := &collector{files: make(map[string]bool)}
	ww, err := NewWorktreeWatcher(root, c.callback)
	if err != nil {
		t.Fatal(err)
	}
	ww.SetDebounce(50 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ww.Run(ctx) }()

	os.WriteFile(filepath.Join(root, "main.go"), []byte("package main\n"), 0644)
	os.WriteFile(filepath.Join(root, "cmd", "app.go"), []byte("package cmd\n"), 0644)
	os.WriteFile(filepath.Join(root, ".git", "index"), []byte("x"), 0644)

	waitFor(t, func() bool { return len(c.snapshot()) >= 2 })

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run returned %v", err)
	}

	got := c.snapshot()
	want := []string{"cmd/app.go", "main.go"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("files = %v, want %v", got, want)
	}
}

func TestWorktreeWatcher_NewDirectory(t *testing.T) {
	root := t.TempDir()

	c := &collector{files: make(map[string]bool)}
	ww, err := NewWorktreeWatcher(root, c.callback)
	if err != nil {
		t.Fatal(err)
	}
	ww.SetDebounce(50 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ww.Run(ctx)

	sub := filepath.Join(root, "internal")
	os.MkdirAll(sub, 0755)
	// Give the watcher a moment to register the new directory
	time.Sleep(200 * time.Millisecond)
	os.WriteFile(filepath.Join(sub, "x.go"), []byte("package internal\n"), 0644)

	waitFor(t, func() bool {
		for _, f := range c.snapshot() {
			if f == "internal/x.go" {
				return true
			}
		}
		return false
	})
}

func TestWorktreeWatcher_FlushOnCancel(t *testing.T) {
	root := t.TempDir()

	c := &collector{files: make(map[string]bool)}
	ww, err := NewWorktreeWatcher(root, c.callback)
	if err != nil {
		t.Fatal(err)
	}
	ww.SetDebounce(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ww.Run(ctx) }()

	os.WriteFile(filepath.Join(root, "a.txt"), []byte("a"), 0644)
	time.Sleep(200 * time.Millisecond)
	cancel()
	<-done

	if got := c.snapshot(); len(got) != 1 || got[0] != "a.txt" {
		t.Errorf("pending changes should flush on cancel, got %v", got)
	}
}
