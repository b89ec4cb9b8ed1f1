package domain

import "fmt"

// TaskStatus represents the lifecycle state of a development task
type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusInProgress TaskStatus = "in_progress"
	StatusCompleted  TaskStatus = "completed"
	StatusFailed     TaskStatus = "failed"
	StatusMerged     TaskStatus = "merged"
)

// AllStatuses lists every valid task status in lifecycle order
var AllStatuses = []TaskStatus{
	StatusPending,
	StatusInProgress,
	StatusCompleted,
	StatusFailed,
	StatusMerged,
}

// Valid reports whether s is one of the known statuses
func (s TaskStatus) Valid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// ParseTaskStatus converts a string to a TaskStatus, rejecting unknown values
func ParseTaskStatus(s string) (TaskStatus, error) {
	status := TaskStatus(s)
	if !status.Valid() {
		return "", fmt.Errorf("invalid task status: %q", s)
	}
	return status, nil
}
