// Package workflow runs the product owner → engineer pipeline for one request.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hochfrequenz/multi-engineer/internal/agent"
	"github.com/hochfrequenz/multi-engineer/internal/domain"
	"github.com/hochfrequenz/multi-engineer/internal/notify"
	"github.com/hochfrequenz/multi-engineer/internal/observer"
	"github.com/hochfrequenz/multi-engineer/internal/prompts"
	"github.com/hochfrequenz/multi-engineer/internal/taskstore"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultMaxTurns is the engineer turn limit when none is given
	DefaultMaxTurns = 5

	productOwnerMaxTurns = 3
	commitSubjectLength  = 50
	defaultStuckAfter    = 30 * time.Second
)

// Worktrees is the git surface the workflow needs
type Worktrees interface {
	RepoDir() string
	Create(ctx context.Context, taskID, branch, base string) (string, error)
	RemovePath(ctx context.Context, wtPath string) error
	Commit(ctx context.Context, wtPath, message string) error
	Merge(ctx context.Context, branch, base string) error
	DiffStats(ctx context.Context, base, branch string) (string, error)
	WorkingDiffStat(ctx context.Context, dir string) (string, error)
	ChangedFiles(ctx context.Context, dir string) ([]string, error)
}

// AgentRunner executes one AI CLI call
type AgentRunner interface {
	Run(ctx context.Context, req agent.Request) agent.Outcome
}

// TaskRepository persists tasks and agent runs
type TaskRepository interface {
	SaveTask(task *domain.DevelopmentTask) error
	UpdateTaskStatus(id string, status domain.TaskStatus) error
	RecordRun(run *taskstore.Run) error
}

// SessionRecorder writes the per-agent session artifact
type SessionRecorder interface {
	Save(sessionID, agentType, result string) (string, error)
}

// Reporter receives progress output
type Reporter interface {
	Rule()
	AgentHeader(agent domain.AIAgent, action string)
	AgentMessage(agent domain.AIAgent, text string)
	Info(msg string)
	Success(msg string)
	Warn(msg string)
	Error(msg string)
	Dim(msg string)
	Status(ctx context.Context, title string, fn func(ctx context.Context, update func(string)) error) error
}

// Deps bundles the collaborators of a Service
type Deps struct {
	Worktrees  Worktrees
	Agent      AgentRunner
	Tasks      TaskRepository
	Sessions   SessionRecorder
	Prompts    *prompts.Loader
	Notifier   notify.Notifier
	Reporter   Reporter
	Log        *zap.SugaredLogger
	StuckAfter time.Duration // idle time before the engineer is reported as inactive
}

// Options controls a single Execute call
type Options struct {
	Prompt       string
	BaseBranch   string
	MaxTurns     int
	SystemPrompt string // replaces the engineer template's system prompt when set
	NoWorktree   bool   // run in the main checkout and commit on the current branch
}

// Service orchestrates agents, worktrees and persistence
type Service struct {
	worktrees Worktrees
	agent     AgentRunner
	tasks     TaskRepository
	sessions  SessionRecorder
	prompts   *prompts.Loader
	notifier  notify.Notifier
	report    Reporter
	log       *zap.SugaredLogger
	obs       *observer.Observer
}

// New creates a Service; nil Notifier, Log and Prompts get defaults
func New(d Deps) *Service {
	if d.Notifier == nil {
		d.Notifier = notify.NoopNotifier{}
	}
	if d.Log == nil {
		d.Log = zap.NewNop().Sugar()
	}
	if d.Prompts == nil {
		d.Prompts = prompts.NewLoader()
	}
	if d.StuckAfter == 0 {
		d.StuckAfter = defaultStuckAfter
	}
	return &Service{
		worktrees: d.Worktrees,
		agent:     d.Agent,
		tasks:     d.Tasks,
		sessions:  d.Sessions,
		prompts:   d.Prompts,
		notifier:  d.Notifier,
		report:    d.Reporter,
		log:       d.Log,
		obs:       observer.New(d.StuckAfter),
	}
}

// Metrics returns timing data for the agent runs of this service
func (s *Service) Metrics() observer.Metrics {
	return s.obs.GetMetrics()
}

// Execute asks the product owner for instructions, lets the engineer implement them
// in a fresh worktree and commits the result. The returned result always carries the
// task once one was created.
func (s *Service) Execute(ctx context.Context, opts Options) *domain.ExecutionResult {
	sessionID := domain.NewTaskID()
	po := domain.ProductOwner()

	base := opts.BaseBranch
	if base == "" {
		base = domain.DefaultBaseBranch
	}
	maxTurns := opts.MaxTurns
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}

	s.report.Rule()
	s.report.AgentHeader(po, "analyzing the request")
	s.report.Dim("Session ID: " + sessionID)
	s.report.Rule()

	instructions, err := s.askProductOwner(ctx, sessionID, opts.Prompt)
	if err != nil {
		return s.finish(domain.Failed(nil, "product owner failed", err))
	}
	if strings.TrimSpace(instructions) == "" {
		result := domain.Failed(nil, "no instructions received from the product owner", nil)
		result.TaskID = sessionID
		return s.finish(result)
	}
	s.report.Success(fmt.Sprintf("%s %s finished the analysis", po.Emoji, po.Name))

	task := domain.NewDevelopmentTaskWithID(sessionID, instructions, base)
	s.save(task)

	return s.implement(ctx, task, opts, maxTurns)
}

func (s *Service) askProductOwner(ctx context.Context, sessionID, request string) (string, error) {
	po := domain.ProductOwner()

	p, err := s.prompts.BuildProductOwnerPrompt(prompts.ProductOwnerData{Request: request})
	if err != nil {
		return "", fmt.Errorf("building product owner prompt: %w", err)
	}
	s.log.Debugw("product owner prompt", "source", p.Source)
	maxTurns := p.MaxTurns
	if maxTurns <= 0 {
		maxTurns = productOwnerMaxTurns
	}

	outcome := s.runAgent(ctx, sessionID, po, "Product owner is thinking", agent.Request{
		Prompt:       p.Text,
		SystemPrompt: p.SystemPrompt,
		MaxTurns:     maxTurns,
	}, "")
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.report.AgentMessage(po, outcome.Text)

	instructions := strings.TrimSpace(outcome.Text)
	if !outcome.OK() {
		instructions = FallbackInstructions(request)
		s.report.Warn("Using fallback instructions: " + instructions)
	}

	s.saveSession(sessionID, po, instructions)
	return instructions, nil
}

func (s *Service) implement(ctx context.Context, task *domain.DevelopmentTask, opts Options, maxTurns int) *domain.ExecutionResult {
	eng := domain.Engineer()

	s.report.Rule()
	s.report.AgentHeader(eng, "starting the implementation")
	s.report.Rule()
	s.report.Info("📋 Task ID: " + task.ID)

	dir := s.worktrees.RepoDir()
	if opts.NoWorktree {
		task.BranchName = task.BaseBranch
	} else {
		wtPath, err := s.worktrees.Create(ctx, task.ID, task.BranchName, task.BaseBranch)
		if err != nil {
			s.transition(task, domain.StatusFailed)
			return s.finish(domain.Failed(task, "creating worktree failed", err))
		}
		dir = wtPath
	}
	task.WorktreePath = dir
	task.SetStatus(domain.StatusInProgress)
	s.save(task)

	s.report.Info("📁 Working directory: " + dir)
	s.report.Info("🌿 Branch: " + task.BranchName)
	s.report.Dim("Engineer instructions: " + task.Prompt)

	p, err := s.prompts.BuildEngineerPrompt(prompts.EngineerData{Instructions: task.Prompt, WorkingDir: dir})
	if err != nil {
		s.transition(task, domain.StatusFailed)
		return s.finish(domain.Failed(task, "building engineer prompt failed", err))
	}
	s.log.Debugw("engineer prompt", "source", p.Source)
	system := p.SystemPrompt
	if opts.SystemPrompt != "" {
		system = opts.SystemPrompt
	}

	outcome := s.runAgent(ctx, task.ID, eng, "Engineer is implementing", agent.Request{
		Prompt:       p.Text,
		SystemPrompt: system,
		MaxTurns:     maxTurns,
		Dir:          dir,
	}, dir)
	if err := ctx.Err(); err != nil {
		s.transition(task, domain.StatusFailed)
		return s.finish(domain.Failed(task, "interrupted", err))
	}

	s.report.AgentMessage(eng, outcome.Text)
	if touched := s.obs.Touched(); len(touched) > 0 {
		s.report.Dim("Files touched: " + strings.Join(touched, ", "))
	}

	if !outcome.OK() {
		s.report.Error(fmt.Sprintf("%s %s failed", eng.Emoji, eng.Name))
		s.transition(task, domain.StatusFailed)
		return s.finish(domain.Failed(task, "engineer failed: "+outcome.Text, errors.New(outcome.Text)))
	}

	s.report.Success(fmt.Sprintf("%s %s finished the implementation", eng.Emoji, eng.Name))
	s.saveSession(task.ID, eng, strings.TrimSpace(outcome.Text))

	return s.commit(ctx, task, opts.Prompt)
}

func (s *Service) commit(ctx context.Context, task *domain.DevelopmentTask, request string) *domain.ExecutionResult {
	s.report.Info("📝 Checking changes...")

	files, err := s.worktrees.ChangedFiles(ctx, task.WorktreePath)
	if err != nil {
		s.transition(task, domain.StatusFailed)
		return s.finish(domain.Failed(task, "inspecting changes failed", err))
	}

	if len(files) == 0 {
		s.report.Warn("No changes were made")
		s.transition(task, domain.StatusCompleted)
		return s.finish(domain.Succeeded(task, "completed with no changes"))
	}

	if stat, err := s.worktrees.WorkingDiffStat(ctx, task.WorktreePath); err == nil && strings.TrimSpace(stat) != "" {
		s.report.Dim(strings.TrimRight(stat, "\n"))
	}

	if err := s.worktrees.Commit(ctx, task.WorktreePath, CommitMessage(request)); err != nil {
		s.transition(task, domain.StatusFailed)
		return s.finish(domain.Failed(task, "commit failed", err))
	}

	s.report.Success("Changes committed")
	s.transition(task, domain.StatusCompleted)
	return s.finish(domain.Succeeded(task, "workflow completed successfully", files...))
}

// ReviewAndMerge shows the branch diff, merges it into the task's base branch
// and removes the worktree.
func (s *Service) ReviewAndMerge(ctx context.Context, task *domain.DevelopmentTask) *domain.ExecutionResult {
	s.report.Info("🔍 Reviewing changes...")

	stats, err := s.worktrees.DiffStats(ctx, task.BaseBranch, task.BranchName)
	switch {
	case err != nil:
		s.log.Warnw("diff stats failed", "branch", task.BranchName, "error", err)
		s.report.Warn("Could not compute the diff")
	case strings.TrimSpace(stats) != "":
		s.report.Dim("Changed files:")
		s.report.Dim(strings.TrimRight(stats, "\n"))
	default:
		s.report.Warn("No changes found")
	}

	if err := s.worktrees.Merge(ctx, task.BranchName, task.BaseBranch); err != nil {
		return s.finish(domain.Failed(task, "merge failed", err))
	}

	if err := s.worktrees.RemovePath(ctx, task.WorktreePath); err != nil {
		s.log.Warnw("removing worktree after merge failed", "path", task.WorktreePath, "error", err)
	}

	s.transition(task, domain.StatusMerged)
	return s.finish(domain.Succeeded(task, "merged successfully"))
}

// runAgent runs one agent call behind a status display. When watchDir is set,
// file activity there is reported while the call is in flight.
func (s *Service) runAgent(ctx context.Context, sessionID string, a domain.AIAgent, title string, req agent.Request, watchDir string) agent.Outcome {
	var outcome agent.Outcome
	started := time.Now()
	s.obs.Begin(a.SessionKey())

	s.report.Status(ctx, title, func(ctx context.Context, update func(string)) error {
		if watchDir == "" {
			outcome = s.agent.Run(ctx, req)
			return nil
		}

		g, gctx := errgroup.WithContext(ctx)
		watchCtx, stopWatching := context.WithCancel(gctx)
		defer stopWatching()

		w, err := observer.NewWorktreeWatcher(watchDir, func(files []string) {
			sort.Strings(files)
			s.obs.Touch(files)
			update("changed: " + strings.Join(files, ", "))
		})
		if err != nil {
			s.log.Warnw("worktree watcher unavailable", "dir", watchDir, "error", err)
		} else {
			w.WithLogger(s.log)
			g.Go(func() error { return w.Run(watchCtx) })
		}

		g.Go(func() error {
			s.reportIdle(watchCtx, update)
			return nil
		})

		g.Go(func() error {
			defer stopWatching()
			outcome = s.agent.Run(ctx, req)
			return nil
		})

		return g.Wait()
	})

	elapsed := s.obs.End(outcome.OK())
	s.log.Infow("agent finished", "session", sessionID, "agent", a.SessionKey(), "status", outcome.Status, "elapsed", elapsed)

	if s.tasks != nil {
		run := &taskstore.Run{
			SessionID:  sessionID,
			Agent:      a.SessionKey(),
			Status:     string(outcome.Status),
			Summary:    agent.TruncatePrompt(outcome.Text, 200),
			StartedAt:  started,
			FinishedAt: time.Now(),
		}
		if err := s.tasks.RecordRun(run); err != nil {
			s.log.Warnw("recording run failed", "session", sessionID, "error", err)
		}
	}
	return outcome
}

func (s *Service) reportIdle(ctx context.Context, update func(string)) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	warned := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.obs.IsStuck() {
				if !warned {
					update(fmt.Sprintf("no file activity for %s", s.obs.IdleFor().Round(time.Second)))
				}
				warned = true
			} else {
				warned = false
			}
		}
	}
}

func (s *Service) saveSession(sessionID string, a domain.AIAgent, result string) {
	if s.sessions == nil {
		return
	}
	path, err := s.sessions.Save(sessionID, a.SessionKey(), result)
	if err != nil {
		s.log.Warnw("saving session failed", "session", sessionID, "agent", a.SessionKey(), "error", err)
		s.report.Warn("Could not save session state: " + err.Error())
		return
	}
	s.report.Dim(fmt.Sprintf("💾 Session saved: %s (ID: %s)", a.SessionKey(), sessionID))
	s.log.Debugw("session saved", "path", path)
}

func (s *Service) save(task *domain.DevelopmentTask) {
	if s.tasks == nil {
		return
	}
	if err := s.tasks.SaveTask(task); err != nil {
		s.log.Warnw("persisting task failed", "task", task.ID, "status", task.Status, "error", err)
	}
}

// transition moves task to status and persists only the status change.
// A task whose row was never written is saved in full.
func (s *Service) transition(task *domain.DevelopmentTask, status domain.TaskStatus) {
	task.SetStatus(status)
	if s.tasks == nil {
		return
	}
	err := s.tasks.UpdateTaskStatus(task.ID, status)
	if errors.Is(err, taskstore.ErrNotFound) {
		err = s.tasks.SaveTask(task)
	}
	if err != nil {
		s.log.Warnw("persisting task status failed", "task", task.ID, "status", status, "error", err)
	}
}

// finish notifies about result and returns it
func (s *Service) finish(result *domain.ExecutionResult) *domain.ExecutionResult {
	if err := s.notifier.Send(notify.ForResult(result)); err != nil {
		s.log.Warnw("notification failed", "task", result.TaskID, "error", err)
	}
	s.log.Infow("workflow step finished", "task", result.TaskID, "success", result.Success, "message", result.Message)
	return result
}

// CommitMessage builds the commit subject from the user request
func CommitMessage(request string) string {
	r := []rune(request)
	if len(r) > commitSubjectLength {
		return "feat: " + string(r[:commitSubjectLength]) + "..."
	}
	return "feat: " + request
}

// FallbackInstructions is what the engineer receives when the product owner call fails
func FallbackInstructions(request string) string {
	return "Implement the following request: " + request
}
