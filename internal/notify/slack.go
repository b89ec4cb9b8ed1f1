package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	slackTimeout    = 10 * time.Second
	slackMaxFiles   = 10
	slackErrorBytes = 256
)

// SlackNotifier posts outcomes to an incoming webhook
type SlackNotifier struct {
	webhookURL string
	client     *http.Client
}

// SlackMessage is the webhook payload
type SlackMessage struct {
	Text        string            `json:"text"`
	Attachments []SlackAttachment `json:"attachments,omitempty"`
}

// SlackAttachment is one colored block of a message
type SlackAttachment struct {
	Color    string       `json:"color"`
	Title    string       `json:"title,omitempty"`
	Text     string       `json:"text"`
	Fields   []SlackField `json:"fields,omitempty"`
	Footer   string       `json:"footer,omitempty"`
	Unix     int64        `json:"ts,omitempty"`
	Markdown []string     `json:"mrkdwn_in,omitempty"`
}

// SlackField is a short key/value pair under an attachment
type SlackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

func NewSlackNotifier(webhookURL string) *SlackNotifier {
	return &SlackNotifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: slackTimeout},
	}
}

// SlackColor maps a notification type to an attachment color
func SlackColor(t NotificationType) string {
	switch t {
	case NotifySuccess:
		return "good"
	case NotifyWarning:
		return "warning"
	case NotifyError:
		return "danger"
	default:
		return "#439FE0"
	}
}

// slackMessage renders n, listing task, branch and up to slackMaxFiles changed files
func slackMessage(n Notification, now time.Time) SlackMessage {
	att := SlackAttachment{
		Color:    SlackColor(n.Type),
		Text:     n.Message,
		Footer:   "multi-engineer",
		Unix:     now.Unix(),
		Markdown: []string{"fields"},
	}

	if n.TaskID != "" {
		att.Fields = append(att.Fields, SlackField{Title: "Task", Value: "`" + n.TaskID + "`", Short: true})
	}
	if n.Branch != "" {
		att.Fields = append(att.Fields, SlackField{Title: "Branch", Value: "`" + n.Branch + "`", Short: true})
	}
	if len(n.Files) > 0 {
		files := n.Files
		more := ""
		if len(files) > slackMaxFiles {
			more = fmt.Sprintf("\n…and %d more", len(files)-slackMaxFiles)
			files = files[:slackMaxFiles]
		}
		att.Fields = append(att.Fields, SlackField{Title: "Changed files", Value: strings.Join(files, "\n") + more})
	}

	return SlackMessage{Text: n.Title, Attachments: []SlackAttachment{att}}
}

// Send posts n; an empty webhook URL disables it
func (s *SlackNotifier) Send(n Notification) error {
	if s.webhookURL == "" {
		return nil
	}

	payload, err := json.Marshal(slackMessage(n, time.Now()))
	if err != nil {
		return fmt.Errorf("encoding slack message: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, s.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "multi-engineer")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting to slack: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, slackErrorBytes))
		return fmt.Errorf("slack returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
