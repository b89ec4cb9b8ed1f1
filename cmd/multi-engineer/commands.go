package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hochfrequenz/multi-engineer/internal/command"
	"github.com/hochfrequenz/multi-engineer/internal/config"
	"github.com/hochfrequenz/multi-engineer/internal/domain"
	"github.com/hochfrequenz/multi-engineer/internal/taskstore"
	"github.com/spf13/cobra"
)

var (
	listStatus string
	listLimit  int
	forceInit  bool
)

func init() {
	// run command
	rootCmd.AddCommand(command.NewRunCmd("run PROMPT", "Run the product owner → engineer workflow", &configPath))

	// tasks command
	tasksCmd := &cobra.Command{
		Use:   "tasks",
		Short: "List tasks",
		Args:  cobra.NoArgs,
		RunE:  runTasks,
	}
	tasksCmd.Flags().StringVar(&listStatus, "status", "", "filter by status")
	tasksCmd.Flags().IntVar(&listLimit, "limit", 20, "maximum number of tasks to show (0 = all)")

	showCmd := &cobra.Command{
		Use:   "show TASK",
		Short: "Show a task and its agent runs",
		Args:  cobra.ExactArgs(1),
		RunE:  runTaskShow,
	}
	tasksCmd.AddCommand(showCmd)
	rootCmd.AddCommand(tasksCmd)

	// sessions command
	sessionsCmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect saved agent sessions",
	}
	sessionShowCmd := &cobra.Command{
		Use:   "show SESSION AGENT",
		Short: "Print a saved session (AGENT is po or engineer)",
		Args:  cobra.ExactArgs(2),
		RunE:  runSessionShow,
	}
	sessionsCmd.AddCommand(sessionShowCmd)
	rootCmd.AddCommand(sessionsCmd)

	// cleanup-worktrees command
	rootCmd.AddCommand(command.NewCleanupWorktreesCmd(&configPath))

	// config command
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}
	configInitCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration",
		Args:  cobra.NoArgs,
		RunE:  runConfigInit,
	}
	configInitCmd.Flags().BoolVar(&forceInit, "force", false, "overwrite an existing file")
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configPath
	if path == "" {
		path = config.DefaultConfigPath()
	}
	if _, err := os.Stat(path); err == nil && !forceInit {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	cfg := config.Default()
	if wd, err := os.Getwd(); err == nil {
		cfg.General.RepoRoot = wd
	}
	if err := cfg.Save(path); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return nil
}

func runTasks(cmd *cobra.Command, args []string) error {
	opts := taskstore.ListOptions{Limit: listLimit}
	if listStatus != "" {
		status, err := domain.ParseTaskStatus(listStatus)
		if err != nil {
			return err
		}
		opts.Status = status
	}

	app, err := command.Open(cmd, configPath)
	if err != nil {
		return err
	}
	defer app.Close()

	store, err := app.Store()
	if err != nil {
		return err
	}

	tasks, err := store.ListTasks(opts)
	if err != nil {
		return err
	}

	if len(tasks) == 0 {
		app.Console.Dim("No tasks recorded yet")
		return nil
	}

	rows := make([][]string, 0, len(tasks))
	leftover := 0
	for _, t := range tasks {
		wt := openWorktree(t)
		if wt != "" {
			leftover++
		}
		rows = append(rows, []string{
			t.ID,
			string(t.Status),
			t.BranchName,
			valueOrDash(wt),
			humanize.Time(t.CreatedAt),
			summarize(t.Prompt, 50),
		})
	}
	app.Console.Table("Tasks", []string{"ID", "STATUS", "BRANCH", "WORKTREE", "CREATED", "INSTRUCTIONS"}, rows)
	if leftover > 0 {
		app.Console.Dim(fmt.Sprintf("%d task(s) may still have a worktree; run cleanup-worktrees to remove them", leftover))
	}
	return nil
}

func runTaskShow(cmd *cobra.Command, args []string) error {
	app, err := command.Open(cmd, configPath)
	if err != nil {
		return err
	}
	defer app.Close()

	store, err := app.Store()
	if err != nil {
		return err
	}

	task, err := store.GetTask(args[0])
	if err != nil {
		return err
	}

	con := app.Console
	con.Table("Task "+task.ID, []string{"Property", "Value"}, [][]string{
		{"Status", string(task.Status)},
		{"Branch", task.BranchName},
		{"Base", task.BaseBranch},
		{"Worktree", valueOrDash(task.WorktreePath)},
		{"Created", fmt.Sprintf("%s (%s)", task.CreatedAt.Format("2006-01-02 15:04:05"), humanize.Time(task.CreatedAt))},
		{"Updated", humanize.Time(task.UpdatedAt)},
		{"Instructions", task.Prompt},
	})

	runs, err := store.ListRuns(task.ID)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		return nil
	}

	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, []string{
			r.Agent,
			r.Status,
			r.FinishedAt.Sub(r.StartedAt).Round(100 * time.Millisecond).String(),
			summarize(r.Summary, 60),
		})
	}
	con.Println()
	con.Table("Agent runs", []string{"AGENT", "STATUS", "DURATION", "OUTPUT"}, rows)
	return nil
}

func runSessionShow(cmd *cobra.Command, args []string) error {
	app, err := command.Open(cmd, configPath)
	if err != nil {
		return err
	}
	defer app.Close()

	sess, err := app.Sessions.Load(args[0], args[1])
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("no session %s for agent %s in %s", args[0], args[1], app.Sessions.Dir())
	}
	if err != nil {
		return err
	}

	app.Console.Table("Session "+sess.SessionID, []string{"Property", "Value"}, [][]string{
		{"Agent", sess.AgentType},
		{"Status", sess.Status},
		{"File", app.Sessions.Path(args[0], args[1])},
	})
	app.Console.Println()
	app.Console.Println(sess.Result)
	return nil
}

// openWorktree returns the worktree a task may have left on disk.
// Merging removes it; failed, declined and interrupted runs keep theirs.
func openWorktree(t *domain.DevelopmentTask) string {
	if t.Status == domain.StatusMerged {
		return ""
	}
	return t.WorktreePath
}

func summarize(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) > max {
		return string(r[:max-1]) + "…"
	}
	return s
}

func valueOrDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
