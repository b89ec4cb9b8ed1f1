// Package command holds the cobra commands shared by hello-cli and multi-engineer.
package command

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/hochfrequenz/multi-engineer/internal/agent"
	"github.com/hochfrequenz/multi-engineer/internal/config"
	"github.com/hochfrequenz/multi-engineer/internal/executor"
	"github.com/hochfrequenz/multi-engineer/internal/logging"
	"github.com/hochfrequenz/multi-engineer/internal/notify"
	"github.com/hochfrequenz/multi-engineer/internal/prompts"
	"github.com/hochfrequenz/multi-engineer/internal/taskstore"
	"github.com/hochfrequenz/multi-engineer/internal/workflow"
	"github.com/hochfrequenz/multi-engineer/tui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// App is the wiring shared by every command invocation
type App struct {
	Config    *config.Config
	Log       *zap.SugaredLogger
	Console   *tui.Console
	Worktrees *executor.WorktreeManager
	Agent     *agent.Client
	Sessions  *agent.SessionStore
	Prompts   *prompts.Loader

	store *taskstore.Store
}

// Open loads configuration and builds the collaborators.
// The task database is opened lazily by Store.
func Open(cmd *cobra.Command, configPath string) (*App, error) {
	cfg, err := config.LoadWithLocalFallback(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	repo, err := filepath.Abs(cfg.General.RepoRoot)
	if err != nil {
		return nil, fmt.Errorf("resolving repo root: %w", err)
	}
	cfg.General.RepoRoot = repo

	log, err := logging.New(cfg.Log)
	if err != nil {
		// Logging is diagnostic only; keep going without it
		log = logging.Nop()
	}

	return &App{
		Config:    cfg,
		Log:       log,
		Console:   tui.New(cmd.OutOrStdout(), cmd.InOrStdin()),
		Worktrees: executor.NewWorktreeManager(repo, cfg.General.WorktreeBase()).WithLogger(log),
		Agent:     agent.NewClient(cfg.Claude).WithLogger(log),
		Sessions:  agent.NewSessionStore(cfg.General.SessionDir),
		Prompts:   prompts.DefaultLoader(repo),
	}, nil
}

// Store opens the task database on first use
func (a *App) Store() (*taskstore.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	store, err := taskstore.New(a.Config.General.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("opening task database: %w", err)
	}
	a.store = store
	return store, nil
}

// Workflow builds the workflow service. A task database that cannot be opened
// only disables persistence.
func (a *App) Workflow() *workflow.Service {
	deps := workflow.Deps{
		Worktrees: a.Worktrees,
		Agent:     a.Agent,
		Sessions:  a.Sessions,
		Prompts:   a.Prompts,
		Notifier:  notify.FromConfig(a.Config.Notifications),
		Reporter:  a.Console,
		Log:       a.Log,
	}
	if store, err := a.Store(); err != nil {
		a.Log.Warnw("task persistence disabled", "error", err)
		a.Console.Warn("Task history disabled: " + err.Error())
	} else {
		deps.Tasks = store
	}
	return workflow.New(deps)
}

// Close releases the database and flushes the log
func (a *App) Close() {
	if a.store != nil {
		a.store.Close()
	}
	a.Log.Sync()
}

// ExitError ends the process with Code after its message has already been shown
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// errExit is the generic failure exit
var errExit = &ExitError{Code: 1}

// PrintError writes err unless it is an ExitError whose output was already shown
func PrintError(w io.Writer, err error) {
	if _, ok := IsExit(err); ok {
		return
	}
	fmt.Fprintln(w, "Error:", err)
}
