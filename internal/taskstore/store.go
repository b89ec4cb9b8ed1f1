// Package taskstore persists development tasks and agent runs in SQLite.
package taskstore

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hochfrequenz/multi-engineer/internal/domain"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a task ID has no row
var ErrNotFound = errors.New("task not found")

// Store provides SQLite-backed task persistence
type Store struct {
	db *sql.DB
}

// New creates a new Store with the given database path
func New(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("creating database dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// A single connection keeps ":memory:" databases shared and serializes writers
	db.SetMaxOpenConns(1)

	// Run migrations
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveTask inserts or updates a task
func (s *Store) SaveTask(task *domain.DevelopmentTask) error {
	_, err := s.db.Exec(`
		INSERT INTO tasks (id, prompt, branch_name, worktree_path, status, base_branch, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			prompt = excluded.prompt,
			branch_name = excluded.branch_name,
			worktree_path = excluded.worktree_path,
			status = excluded.status,
			base_branch = excluded.base_branch,
			updated_at = excluded.updated_at
	`,
		task.ID,
		task.Prompt,
		task.BranchName,
		task.WorktreePath,
		string(task.Status),
		task.BaseBranch,
		task.CreatedAt,
		task.UpdatedAt,
	)
	return err
}

// GetTask retrieves a task by ID
func (s *Store) GetTask(id string) (*domain.DevelopmentTask, error) {
	row := s.db.QueryRow(`
		SELECT id, prompt, branch_name, worktree_path, status, base_branch, created_at, updated_at
		FROM tasks WHERE id = ?
	`, id)

	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return task, err
}

// ListOptions specifies filters for listing tasks
type ListOptions struct {
	Status domain.TaskStatus
	Limit  int
}

// ListTasks returns tasks matching the given options, newest first
func (s *Store) ListTasks(opts ListOptions) ([]*domain.DevelopmentTask, error) {
	query := `SELECT id, prompt, branch_name, worktree_path, status, base_branch, created_at, updated_at FROM tasks WHERE 1=1`
	var args []interface{}

	if opts.Status != "" {
		query += " AND status = ?"
		args = append(args, string(opts.Status))
	}

	query += " ORDER BY created_at DESC, id"

	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []*domain.DevelopmentTask
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}

	return tasks, rows.Err()
}

// UpdateTaskStatus updates a task's status
func (s *Store) UpdateTaskStatus(id string, status domain.TaskStatus) error {
	res, err := s.db.Exec(`UPDATE tasks SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now(), id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Run records one agent invocation within a session
type Run struct {
	ID         int64
	SessionID  string
	Agent      string
	Status     string
	Summary    string
	StartedAt  time.Time
	FinishedAt time.Time
}

// RecordRun stores a finished agent run
func (s *Store) RecordRun(run *Run) error {
	res, err := s.db.Exec(`
		INSERT INTO runs (session_id, agent, status, summary, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, run.SessionID, run.Agent, run.Status, run.Summary, run.StartedAt, run.FinishedAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	run.ID = id
	return nil
}

// ListRuns returns the runs of a session in start order
func (s *Store) ListRuns(sessionID string) ([]*Run, error) {
	rows, err := s.db.Query(`
		SELECT id, session_id, agent, status, summary, started_at, finished_at
		FROM runs WHERE session_id = ? ORDER BY started_at, id
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		var run Run
		var summary sql.NullString
		if err := rows.Scan(&run.ID, &run.SessionID, &run.Agent, &run.Status, &summary, &run.StartedAt, &run.FinishedAt); err != nil {
			return nil, err
		}
		run.Summary = summary.String
		runs = append(runs, &run)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTask(row scanner) (*domain.DevelopmentTask, error) {
	var task domain.DevelopmentTask
	var status string
	var worktreePath sql.NullString

	err := row.Scan(&task.ID, &task.Prompt, &task.BranchName, &worktreePath, &status, &task.BaseBranch, &task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		return nil, err
	}

	task.Status = domain.TaskStatus(status)
	if worktreePath.Valid {
		task.WorktreePath = worktreePath.String
	}

	return &task, nil
}
