package notify

import (
	"os/exec"
	"runtime"
	"strings"
)

// DesktopNotifier shows outcomes through notify-send on Linux and osascript on macOS.
// Other platforms are silently skipped.
type DesktopNotifier struct {
	enabled bool
	goos    string
	run     func(name string, args ...string) error
}

func NewDesktopNotifier(enabled bool) *DesktopNotifier {
	return &DesktopNotifier{
		enabled: enabled,
		goos:    runtime.GOOS,
		run: func(name string, args ...string) error {
			return exec.Command(name, args...).Run()
		},
	}
}

// Send shows n
func (d *DesktopNotifier) Send(n Notification) error {
	if !d.enabled {
		return nil
	}
	name, args := desktopCommand(d.goos, n)
	if name == "" {
		return nil
	}
	return d.run(name, args...)
}

// desktopCommand returns the notifier invocation for goos, or "" when unsupported
func desktopCommand(goos string, n Notification) (string, []string) {
	body := n.Message
	if n.Branch != "" {
		body += "\n" + n.Branch
	}

	switch goos {
	case "linux":
		urgency := "normal"
		if n.Type == NotifyError {
			urgency = "critical"
		}
		return "notify-send", []string{"-a", "multi-engineer", "-u", urgency, "-i", IconForType(n.Type), n.Title, body}
	case "darwin":
		script := `display notification "` + escapeAppleScript(body) +
			`" with title "multi-engineer" subtitle "` + escapeAppleScript(n.Title) + `"`
		return "osascript", []string{"-e", script}
	}
	return "", nil
}

func escapeAppleScript(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", " ").Replace(s)
}

// IconForType returns the freedesktop icon name for t
func IconForType(t NotificationType) string {
	switch t {
	case NotifySuccess:
		return "dialog-positive"
	case NotifyWarning:
		return "dialog-warning"
	case NotifyError:
		return "dialog-error"
	default:
		return "dialog-information"
	}
}
