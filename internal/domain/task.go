package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DefaultBaseBranch is used when no base branch is given or it cannot be detected
const DefaultBaseBranch = "main"

// taskIDLength is the number of characters kept from a random UUID
const taskIDLength = 8

// DevelopmentTask is a unit of work handed to the engineer agent
type DevelopmentTask struct {
	ID           string
	Prompt       string
	BranchName   string
	WorktreePath string
	Status       TaskStatus
	BaseBranch   string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewTaskID returns a short random token suitable for task and session IDs
func NewTaskID() string {
	return uuid.NewString()[:taskIDLength]
}

// NewDevelopmentTask creates a pending task with a freshly generated ID
func NewDevelopmentTask(prompt, baseBranch string) *DevelopmentTask {
	return NewDevelopmentTaskWithID(NewTaskID(), prompt, baseBranch)
}

// NewDevelopmentTaskWithID creates a pending task using the given ID
func NewDevelopmentTaskWithID(id, prompt, baseBranch string) *DevelopmentTask {
	if baseBranch == "" {
		baseBranch = DefaultBaseBranch
	}
	now := time.Now()
	return &DevelopmentTask{
		ID:         id,
		Prompt:     prompt,
		BranchName: BranchName(id),
		Status:     StatusPending,
		BaseBranch: baseBranch,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// BranchName returns the feature branch for a task ID
func BranchName(taskID string) string {
	return fmt.Sprintf("feature/task-%s", taskID)
}

// SetStatus moves the task to a new status and bumps UpdatedAt
func (t *DevelopmentTask) SetStatus(status TaskStatus) {
	t.Status = status
	t.UpdatedAt = time.Now()
}

// ShortID truncates an ID to the length used for worktree directory names
func ShortID(id string) string {
	if len(id) > taskIDLength {
		return id[:taskIDLength]
	}
	return id
}
