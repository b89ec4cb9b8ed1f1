package domain

// ExecutionResult is the outcome of one workflow step
type ExecutionResult struct {
	TaskID       string
	Success      bool
	Message      string
	ChangedFiles []string
	Err          error

	// Task is the task the step operated on, nil when the step failed before a task existed
	Task *DevelopmentTask
}

// Succeeded builds a successful result for a task
func Succeeded(task *DevelopmentTask, message string, changedFiles ...string) *ExecutionResult {
	return &ExecutionResult{
		TaskID:       taskID(task),
		Success:      true,
		Message:      message,
		ChangedFiles: changedFiles,
		Task:         task,
	}
}

// Failed builds an unsuccessful result for a task; task may be nil
func Failed(task *DevelopmentTask, message string, err error) *ExecutionResult {
	return &ExecutionResult{
		TaskID:  taskID(task),
		Success: false,
		Message: message,
		Err:     err,
		Task:    task,
	}
}

func taskID(task *DevelopmentTask) string {
	if task == nil {
		return ""
	}
	return task.ID
}
