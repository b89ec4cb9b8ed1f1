package taskstore

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/hochfrequenz/multi-engineer/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_SaveAndGetTask(t *testing.T) {
	store := newTestStore(t)

	task := domain.NewDevelopmentTaskWithID("abcd1234", "change Hey to Hello", "develop")
	task.WorktreePath = "/repo/worktrees/t-abcd1234"

	if err := store.SaveTask(task); err != nil {
		t.Fatal(err)
	}

	got, err := store.GetTask("abcd1234")
	if err != nil {
		t.Fatal(err)
	}

	if got.Prompt != task.Prompt {
		t.Errorf("Prompt = %q, want %q", got.Prompt, task.Prompt)
	}
	if got.BranchName != "feature/task-abcd1234" {
		t.Errorf("BranchName = %q", got.BranchName)
	}
	if got.WorktreePath != task.WorktreePath {
		t.Errorf("WorktreePath = %q, want %q", got.WorktreePath, task.WorktreePath)
	}
	if got.Status != domain.StatusPending {
		t.Errorf("Status = %q, want pending", got.Status)
	}
	if got.BaseBranch != "develop" {
		t.Errorf("BaseBranch = %q, want develop", got.BaseBranch)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt should round-trip")
	}
}

func TestStore_SaveTaskUpserts(t *testing.T) {
	store := newTestStore(t)

	task := domain.NewDevelopmentTaskWithID("t1", "prompt", "main")
	if err := store.SaveTask(task); err != nil {
		t.Fatal(err)
	}

	task.WorktreePath = "/wt"
	task.SetStatus(domain.StatusInProgress)
	if err := store.SaveTask(task); err != nil {
		t.Fatal(err)
	}

	all, err := store.ListTasks(ListOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Fatalf("task count = %d, want 1", len(all))
	}
	if all[0].Status != domain.StatusInProgress || all[0].WorktreePath != "/wt" {
		t.Errorf("upsert not applied: %+v", all[0])
	}
}

func TestStore_GetTaskNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetTask("missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestStore_ListTasks(t *testing.T) {
	store := newTestStore(t)

	base := time.Now().Add(-time.Hour)
	tasks := []struct {
		id     string
		status domain.TaskStatus
	}{
		{"a", domain.StatusMerged},
		{"b", domain.StatusFailed},
		{"c", domain.StatusMerged},
	}
	for i, tt := range tasks {
		task := domain.NewDevelopmentTaskWithID(tt.id, "p", "main")
		task.Status = tt.status
		task.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if err := store.SaveTask(task); err != nil {
			t.Fatal(err)
		}
	}

	// List all, newest first
	all, err := store.ListTasks(ListOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("All tasks count = %d, want 3", len(all))
	}
	if all[0].ID != "c" || all[2].ID != "a" {
		t.Errorf("order = %s,%s,%s, want c,b,a", all[0].ID, all[1].ID, all[2].ID)
	}

	// Filter by status
	merged, err := store.ListTasks(ListOptions{Status: domain.StatusMerged})
	if err != nil {
		t.Fatal(err)
	}
	if len(merged) != 2 {
		t.Errorf("merged count = %d, want 2", len(merged))
	}

	// Limit
	limited, err := store.ListTasks(ListOptions{Limit: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 1 || limited[0].ID != "c" {
		t.Errorf("limited = %v", limited)
	}
}

func TestStore_UpdateTaskStatus(t *testing.T) {
	store := newTestStore(t)

	task := domain.NewDevelopmentTaskWithID("t1", "p", "main")
	store.SaveTask(task)

	if err := store.UpdateTaskStatus("t1", domain.StatusCompleted); err != nil {
		t.Fatal(err)
	}

	got, _ := store.GetTask("t1")
	if got.Status != domain.StatusCompleted {
		t.Errorf("Status = %q, want completed", got.Status)
	}

	if err := store.UpdateTaskStatus("missing", domain.StatusFailed); !errors.Is(err, ErrNotFound) {
		t.Errorf("updating unknown task: err = %v, want ErrNotFound", err)
	}
}

func TestStore_Runs(t *testing.T) {
	store := newTestStore(t)

	start := time.Now().Add(-time.Minute)
	runs := []*Run{
		{SessionID: "s1", Agent: "po", Status: "success", Summary: "edit main.go", StartedAt: start, FinishedAt: start.Add(time.Second)},
		{SessionID: "s1", Agent: "engineer", Status: "timeout", StartedAt: start.Add(2 * time.Second), FinishedAt: start.Add(time.Minute)},
		{SessionID: "s2", Agent: "po", Status: "error", StartedAt: start, FinishedAt: start},
	}
	for _, r := range runs {
		if err := store.RecordRun(r); err != nil {
			t.Fatal(err)
		}
		if r.ID == 0 {
			t.Error("RecordRun should assign an ID")
		}
	}

	got, err := store.ListRuns("s1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("runs = %d, want 2", len(got))
	}
	if got[0].Agent != "po" || got[1].Agent != "engineer" {
		t.Errorf("order = %s,%s, want po,engineer", got[0].Agent, got[1].Agent)
	}
	if got[0].Summary != "edit main.go" || got[1].Summary != "" {
		t.Errorf("summaries = %q,%q", got[0].Summary, got[1].Summary)
	}
}

func TestStore_FileDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "tasks.db")

	store, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	task := domain.NewDevelopmentTaskWithID("persist", "p", "main")
	if err := store.SaveTask(task); err != nil {
		t.Fatal(err)
	}
	store.Close()

	reopened, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()

	if _, err := reopened.GetTask("persist"); err != nil {
		t.Errorf("task should survive reopening: %v", err)
	}
}
