// Package agent runs the external AI coding CLI as an isolated child process.
package agent

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/hochfrequenz/multi-engineer/internal/config"
	"go.uber.org/zap"
)

// ErrCLINotFound is reported when the configured binary cannot be executed
var ErrCLINotFound = errors.New("claude CLI not found, check the installation")

const (
	emptyOutputMessage = "claude CLI finished without output"
	timeoutMessage     = "claude CLI timed out"
	interruptedMessage = "claude CLI run interrupted"
	systemPromptNote   = "\n[system prompt truncated]"

	// waitDelay bounds how long Run waits for output pipes after the process is killed
	waitDelay = 2 * time.Second
)

// OutcomeStatus classifies a finished CLI call
type OutcomeStatus string

const (
	OutcomeSuccess OutcomeStatus = "success"
	OutcomeError   OutcomeStatus = "error"
	OutcomeTimeout OutcomeStatus = "timeout"
)

// Outcome is the single result of one CLI call
type Outcome struct {
	Status OutcomeStatus
	Text   string
}

// OK reports whether the call succeeded
func (o Outcome) OK() bool {
	return o.Status == OutcomeSuccess
}

// Request describes one CLI invocation
type Request struct {
	Prompt       string
	SystemPrompt string
	MaxTurns     int
	Dir          string   // empty runs in the current directory
	AllowedTools []string // nil uses the client defaults
}

// Client invokes the AI CLI
type Client struct {
	binary       string
	timeout      time.Duration
	promptBudget int
	systemBudget int
	allowedTools []string
	log          *zap.SugaredLogger
}

// NewClient creates a client from the claude config section
func NewClient(cfg config.ClaudeConfig) *Client {
	binary := cfg.Binary
	if binary == "" {
		binary = "claude"
	}
	return &Client{
		binary:       binary,
		timeout:      cfg.Timeout(),
		promptBudget: cfg.PromptBudget,
		systemBudget: cfg.SystemPromptBudget,
		allowedTools: cfg.AllowedTools,
		log:          zap.NewNop().Sugar(),
	}
}

// WithLogger sets the logger used for invocation tracing
func (c *Client) WithLogger(log *zap.SugaredLogger) *Client {
	c.log = log
	return c
}

// Binary returns the configured executable name
func (c *Client) Binary() string {
	return c.binary
}

// Available reports whether the binary can be found
func (c *Client) Available() bool {
	_, err := exec.LookPath(c.binary)
	return err == nil
}

// Run executes req and blocks until exactly one outcome is available.
// The child is killed when the timeout elapses or ctx is cancelled.
func (c *Client) Run(ctx context.Context, req Request) Outcome {
	prompt := TruncatePrompt(req.Prompt, c.promptBudget)
	if prompt != req.Prompt {
		c.log.Warnw("prompt truncated", "length", len([]rune(req.Prompt)), "budget", c.promptBudget)
	}
	system := TruncateSystemPrompt(req.SystemPrompt, c.systemBudget)
	if system != req.SystemPrompt {
		c.log.Warnw("system prompt truncated", "length", len([]rune(req.SystemPrompt)), "budget", c.systemBudget)
	}

	dir := req.Dir
	if dir != "" {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			c.log.Warnw("working directory does not exist, using current directory", "dir", dir)
			dir = ""
		}
	}

	tools := req.AllowedTools
	if tools == nil {
		tools = c.allowedTools
	}
	args := buildArgs(prompt, system, req.MaxTurns, tools)

	runCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	c.log.Debugw("running AI CLI", "binary", c.binary, "dir", dir, "args", args, "path", os.Getenv("PATH"))

	done := make(chan Outcome, 1)
	go func() {
		done <- c.execute(runCtx, ctx, dir, args)
	}()

	outcome := <-done
	c.log.Infow("AI CLI finished", "status", outcome.Status, "output_len", len(outcome.Text))
	return outcome
}

func (c *Client) execute(runCtx, parent context.Context, dir string, args []string) Outcome {
	cmd := exec.CommandContext(runCtx, c.binary, args...)
	cmd.Dir = dir
	cmd.Env = os.Environ()
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	switch {
	case err == nil:
		out := strings.TrimSpace(stdout.String())
		if out == "" {
			out = emptyOutputMessage
		}
		return Outcome{Status: OutcomeSuccess, Text: out}
	case errors.Is(err, exec.ErrNotFound), errors.Is(err, fs.ErrNotExist):
		return Outcome{Status: OutcomeError, Text: ErrCLINotFound.Error()}
	case parent.Err() != nil:
		return Outcome{Status: OutcomeError, Text: interruptedMessage}
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		return Outcome{Status: OutcomeTimeout, Text: timeoutMessage}
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return Outcome{Status: OutcomeError, Text: msg}
		}
		return Outcome{Status: OutcomeError, Text: fmt.Sprintf("claude CLI failed (exit code %d)", exitErr.ExitCode())}
	}
	return Outcome{Status: OutcomeError, Text: err.Error()}
}

// buildArgs assembles the print-mode argument list; the prompt goes last behind -p
func buildArgs(prompt, system string, maxTurns int, tools []string) []string {
	var args []string
	if maxTurns > 0 {
		args = append(args, "--max-turns", strconv.Itoa(maxTurns))
	}
	if system != "" {
		args = append(args, "--append-system-prompt", system)
	}
	if len(tools) > 0 {
		args = append(args, "--allowedTools", strings.Join(tools, ","))
	}
	return append(args, "-p", prompt)
}

// TruncatePrompt cuts s to budget runes and appends "..." when it was longer
func TruncatePrompt(s string, budget int) string {
	r := []rune(s)
	if budget <= 0 || len(r) <= budget {
		return s
	}
	return string(r[:budget]) + "..."
}

// TruncateSystemPrompt is TruncatePrompt plus a note telling the model the text was cut
func TruncateSystemPrompt(s string, budget int) string {
	t := TruncatePrompt(s, budget)
	if t == s {
		return s
	}
	return t + systemPromptNote
}
