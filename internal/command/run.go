package command

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hochfrequenz/multi-engineer/internal/domain"
	"github.com/hochfrequenz/multi-engineer/internal/workflow"
	"github.com/hochfrequenz/multi-engineer/tui"
	"github.com/spf13/cobra"
)

const (
	minMaxTurns = 1
	maxMaxTurns = 50
)

// RunOptions are the flags of the workflow command
type RunOptions struct {
	BaseBranch   string
	MaxTurns     int
	AutoMerge    bool
	NoWorktree   bool
	SystemPrompt string
}

// AddRunFlags registers the workflow flags on cmd
func AddRunFlags(cmd *cobra.Command, o *RunOptions) {
	cmd.Flags().StringVarP(&o.BaseBranch, "base-branch", "b", "", "base branch (default: current branch)")
	cmd.Flags().IntVarP(&o.MaxTurns, "max-turns", "m", workflow.DefaultMaxTurns, "maximum engineer turns (1-50)")
	cmd.Flags().BoolVar(&o.AutoMerge, "auto-merge", false, "merge the result without asking")
	cmd.Flags().BoolVar(&o.NoWorktree, "no-worktree", false, "work directly in the current checkout")
	cmd.Flags().StringVar(&o.SystemPrompt, "system-prompt", "", "system prompt for the engineer")
}

// Validate checks flag ranges
func (o RunOptions) Validate() error {
	if o.MaxTurns < minMaxTurns || o.MaxTurns > maxMaxTurns {
		return fmt.Errorf("invalid value for --max-turns: %d is not in the range %d-%d", o.MaxTurns, minMaxTurns, maxMaxTurns)
	}
	return nil
}

// NewRunCmd builds a command running the workflow for its PROMPT argument
func NewRunCmd(use, short string, configPath *string) *cobra.Command {
	var opts RunOptions
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return RunWorkflow(cmd, *configPath, args[0], opts)
		},
	}
	AddRunFlags(cmd, &opts)
	return cmd
}

// RunWorkflow executes the product owner → engineer workflow and handles merging
func RunWorkflow(cmd *cobra.Command, configPath, prompt string, opts RunOptions) error {
	if err := opts.Validate(); err != nil {
		return err
	}

	app, err := Open(cmd, configPath)
	if err != nil {
		return err
	}
	defer app.Close()

	if f := cmd.Flags().Lookup("max-turns"); f != nil && !f.Changed && app.Config.Claude.MaxTurns > 0 {
		opts.MaxTurns = app.Config.Claude.MaxTurns
		if err := opts.Validate(); err != nil {
			return fmt.Errorf("config claude.max_turns: %w", err)
		}
	}

	con := app.Console
	if !app.Agent.Available() {
		con.Error(fmt.Sprintf("%s not found. Install the claude CLI and make sure it is on PATH.", app.Agent.Binary()))
		return errExit
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	con.Panel("🤖 AI parallel development", "Task: "+con.Cyan(prompt), tui.ColorBlue)

	base := opts.BaseBranch
	if base == "" {
		base = app.Config.General.DefaultBaseBranch
	}
	if base == "" {
		var notice string
		base, notice = app.Worktrees.DetectBaseBranch(ctx)
		if notice != "" {
			con.Warn(notice)
		}
	}

	if opts.NoWorktree {
		con.Info("\n📂 Direct mode (no worktree)")
	} else {
		con.Info("\n🌿 Git worktree mode")
	}
	con.Printf("🎯 Base branch: %s\n", con.Bold(base))

	svc := app.Workflow()
	result := svc.Execute(ctx, workflow.Options{
		Prompt:       prompt,
		BaseBranch:   base,
		MaxTurns:     opts.MaxTurns,
		SystemPrompt: opts.SystemPrompt,
		NoWorktree:   opts.NoWorktree,
	})

	if ctx.Err() != nil {
		interrupted(con, result.TaskID)
		return errExit
	}

	con.Println()
	con.Rule()
	con.Title("🎯 All steps finished")
	con.Rule()

	if !result.Success {
		reportFailure(con, result, opts.NoWorktree)
		return errExit
	}

	task := result.Task
	reportSuccess(con, result)

	if opts.NoWorktree {
		if len(result.ChangedFiles) > 0 {
			con.Success("Changes committed on " + task.BranchName)
		}
		return nil
	}

	merge := opts.AutoMerge
	if merge {
		con.Info("\n🔄 Auto-merge mode")
	} else {
		con.Info("\n🤔 Next action")
		con.Dim(fmt.Sprintf("Manual merge: git checkout %s && git merge %s", task.BaseBranch, task.BranchName))
		con.Println()

		ok, err := con.Confirm(ctx, fmt.Sprintf("Merge the changes into %s?", task.BaseBranch))
		if err != nil {
			interrupted(con, task.ID)
			return errExit
		}
		merge = ok
	}

	if !merge {
		leftover(con, task)
		return nil
	}

	mergeResult := svc.ReviewAndMerge(ctx, task)
	if !mergeResult.Success {
		body := con.Bold("❌ Merge failed") + "\n" + mergeResult.Message
		if mergeResult.Err != nil {
			body += ": " + mergeResult.Err.Error()
		}
		con.Panel("Error", body, tui.ColorRed)
		return errExit
	}

	con.Panel("Done", con.Bold(fmt.Sprintf("✅ Changes merged into %s", task.BaseBranch)), tui.ColorGreen)
	return nil
}

func reportSuccess(con *tui.Console, result *domain.ExecutionResult) {
	task := result.Task
	lines := []string{
		con.Bold("📊 Work report"),
		"👔 Product Owner AI: request analyzed, instructions written",
		"👩‍💻 AI Engineer: implementation finished",
		"Branch: " + con.Cyan(task.BranchName),
		"Worktree: " + con.Green(task.WorktreePath),
	}
	if len(result.ChangedFiles) > 0 {
		lines = append(lines, fmt.Sprintf("Changed files: %s", strings.Join(result.ChangedFiles, ", ")))
	} else {
		lines = append(lines, "Changed files: none")
	}
	con.Panel("🎯 Result", strings.Join(lines, "\n"), tui.ColorYellow)
}

func reportFailure(con *tui.Console, result *domain.ExecutionResult, noWorktree bool) {
	lines := []string{con.Bold("❌ Task execution failed")}
	if task := result.Task; task != nil {
		lines = append(lines,
			"📋 Task ID: "+con.Cyan(task.ID),
			"🌿 Branch: "+con.Cyan(task.BranchName),
			"📁 Worktree: "+con.Green(task.WorktreePath),
			"⚠️  Status: "+string(task.Status),
		)
	}
	lines = append(lines, "", con.Bold("Error details:"), result.Message)
	if result.Err != nil && !strings.Contains(result.Message, result.Err.Error()) {
		lines = append(lines, result.Err.Error())
	}
	con.Panel("❌ Execution failed", strings.Join(lines, "\n"), tui.ColorRed)

	if task := result.Task; task != nil && task.WorktreePath != "" && !noWorktree {
		con.Panel("⚠️  Cleanup", strings.Join([]string{
			con.Bold("🧹 Manual cleanup required"),
			"Worktree left behind: " + con.Green(task.WorktreePath),
			"",
			con.Bold("Cleanup commands:"),
			"• Remove worktree: " + con.Cyan(fmt.Sprintf("git worktree remove %s --force", task.WorktreePath)),
			"• Delete branch: " + con.Cyan(fmt.Sprintf("git branch -D %s", task.BranchName)),
		}, "\n"), tui.ColorYellow)
	}
}

func leftover(con *tui.Console, task *domain.DevelopmentTask) {
	con.Panel("Manual action required", strings.Join([]string{
		con.Bold("⚠️  The worktree was kept"),
		"Branch: " + con.Cyan(task.BranchName),
		"Worktree: " + con.Green(task.WorktreePath),
		"Manual merge: " + con.Cyan(fmt.Sprintf("git checkout %s && git merge %s", task.BaseBranch, task.BranchName)),
		"Remove: " + con.Cyan(fmt.Sprintf("git worktree remove %s", task.WorktreePath)),
	}, "\n"), tui.ColorYellow)
}

func interrupted(con *tui.Console, taskID string) {
	body := con.Bold("⚠️  Processing was interrupted")
	if taskID != "" {
		body += "\nTask ID: " + con.Cyan(taskID)
	}
	con.Panel("Interrupted", body, tui.ColorYellow)
}

// IsExit reports whether err carries an exit code, returning it
func IsExit(err error) (int, bool) {
	var exit *ExitError
	if errors.As(err, &exit) {
		return exit.Code, true
	}
	return 0, false
}
