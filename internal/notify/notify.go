// Package notify delivers task outcome notifications to the desktop and Slack.
package notify

import (
	"errors"
	"fmt"

	"github.com/hochfrequenz/multi-engineer/internal/config"
	"github.com/hochfrequenz/multi-engineer/internal/domain"
)

// NotificationType represents the type of notification
type NotificationType int

const (
	NotifyInfo NotificationType = iota
	NotifySuccess
	NotifyWarning
	NotifyError
)

// Notification represents a notification to be sent
type Notification struct {
	Title   string
	Message string
	Type    NotificationType
	TaskID  string   // Optional task reference
	Branch  string   // Optional feature branch
	Files   []string // Changed files of a completed task
}

// Notifier is the interface for sending notifications
type Notifier interface {
	Send(n Notification) error
}

// MultiNotifier sends to multiple notifiers
type MultiNotifier struct {
	notifiers []Notifier
}

// NewMultiNotifier creates a notifier that sends to all provided notifiers
func NewMultiNotifier(notifiers ...Notifier) *MultiNotifier {
	return &MultiNotifier{notifiers: notifiers}
}

// Send sends the notification to all notifiers and joins their errors
func (m *MultiNotifier) Send(n Notification) error {
	var errs []error
	for _, notifier := range m.notifiers {
		if err := notifier.Send(n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NoopNotifier does nothing (for testing or disabled notifications)
type NoopNotifier struct{}

func (NoopNotifier) Send(n Notification) error { return nil }

// FromConfig builds the notifier chain enabled in cfg
func FromConfig(cfg config.NotificationsConfig) Notifier {
	var notifiers []Notifier
	if cfg.Desktop {
		notifiers = append(notifiers, NewDesktopNotifier(true))
	}
	if cfg.SlackWebhook != "" {
		notifiers = append(notifiers, NewSlackNotifier(cfg.SlackWebhook))
	}
	if len(notifiers) == 0 {
		return NoopNotifier{}
	}
	return NewMultiNotifier(notifiers...)
}

// ForResult describes a terminal workflow outcome
func ForResult(result *domain.ExecutionResult) Notification {
	n := Notification{
		Message: result.Message,
		TaskID:  result.TaskID,
		Files:   result.ChangedFiles,
	}
	if result.Task != nil {
		n.Branch = result.Task.BranchName
	}

	switch {
	case !result.Success:
		n.Type = NotifyError
		n.Title = "Task failed"
		if result.Err != nil {
			n.Message = fmt.Sprintf("%s: %v", result.Message, result.Err)
		}
	case result.Task != nil && result.Task.Status == domain.StatusMerged:
		n.Type = NotifySuccess
		n.Title = "Task merged"
	case len(result.ChangedFiles) == 0:
		n.Type = NotifyWarning
		n.Title = "Task finished without changes"
	default:
		n.Type = NotifySuccess
		n.Title = fmt.Sprintf("Task completed (%d files changed)", len(result.ChangedFiles))
	}
	return n
}
