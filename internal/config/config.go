package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// LocalConfigName is the per-repository config file searched for from the working directory upwards
const LocalConfigName = ".multi-engineer.toml"

// Config holds all application configuration
type Config struct {
	General       GeneralConfig       `toml:"general"`
	Claude        ClaudeConfig        `toml:"claude"`
	Log           LogConfig           `toml:"log"`
	Notifications NotificationsConfig `toml:"notifications"`
}

// GeneralConfig holds repository and storage settings
type GeneralConfig struct {
	RepoRoot          string `toml:"repo_root"`
	WorktreeDir       string `toml:"worktree_dir"`
	DatabasePath      string `toml:"database_path"`
	SessionDir        string `toml:"session_dir"`
	DefaultBaseBranch string `toml:"default_base_branch"`
}

// ClaudeConfig holds settings for the external AI CLI
type ClaudeConfig struct {
	Binary             string   `toml:"binary"`
	TimeoutSeconds     int      `toml:"timeout_seconds"`
	MaxTurns           int      `toml:"max_turns"`
	PromptBudget       int      `toml:"prompt_budget"`
	SystemPromptBudget int      `toml:"system_prompt_budget"`
	AllowedTools       []string `toml:"allowed_tools"`
}

// LogConfig holds structured logging settings
type LogConfig struct {
	Level string `toml:"level"`
	Path  string `toml:"path"`
}

// NotificationsConfig holds notification settings
type NotificationsConfig struct {
	Desktop      bool   `toml:"desktop"`
	SlackWebhook string `toml:"slack_webhook"`
}

// Default returns a Config with sensible defaults
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		General: GeneralConfig{
			RepoRoot:          ".",
			WorktreeDir:       "",
			DatabasePath:      filepath.Join(home, ".multi-engineer", "tasks.db"),
			SessionDir:        filepath.Join(os.TempDir(), "multi_engineer_sessions"),
			DefaultBaseBranch: "",
		},
		Claude: ClaudeConfig{
			Binary:             "claude",
			TimeoutSeconds:     60,
			MaxTurns:           5,
			PromptBudget:       2000,
			SystemPromptBudget: 800,
			AllowedTools:       []string{"Read", "Write", "Bash", "Glob", "Grep", "Edit", "MultiEdit"},
		},
		Log: LogConfig{
			Level: "info",
			Path:  filepath.Join(home, ".multi-engineer", "multi-engineer.log"),
		},
		Notifications: NotificationsConfig{
			Desktop: false,
		},
	}
}

// Load reads configuration from a TOML file, falling back to defaults
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	// Expand paths
	cfg.General.RepoRoot = ExpandPath(cfg.General.RepoRoot)
	cfg.General.WorktreeDir = ExpandPath(cfg.General.WorktreeDir)
	cfg.General.DatabasePath = ExpandPath(cfg.General.DatabasePath)
	cfg.General.SessionDir = ExpandPath(cfg.General.SessionDir)
	cfg.Log.Path = ExpandPath(cfg.Log.Path)

	return cfg, nil
}

// LoadWithLocalFallback loads the explicit path if given, otherwise a local
// config found above the working directory, otherwise the default path
func LoadWithLocalFallback(explicitPath string) (*Config, error) {
	if explicitPath != "" {
		return Load(explicitPath)
	}
	if local := FindLocalConfig(); local != "" {
		return Load(local)
	}
	return Load(DefaultConfigPath())
}

// FindLocalConfig walks up from the working directory looking for LocalConfigName
func FindLocalConfig() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		candidate := filepath.Join(dir, LocalConfigName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// ExpandPath expands ~ to the user's home directory
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// DefaultConfigPath returns the default config file location
func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "multi-engineer", "config.toml")
}

// Timeout returns the hard limit for a single AI CLI invocation
func (c ClaudeConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// WorktreeBase returns the directory worktrees are created in, defaulting to <repo>/worktrees
func (g GeneralConfig) WorktreeBase() string {
	if g.WorktreeDir != "" {
		return g.WorktreeDir
	}
	return filepath.Join(g.RepoRoot, "worktrees")
}

// Save writes the configuration to path as TOML
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := toml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
