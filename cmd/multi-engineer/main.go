package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/hochfrequenz/multi-engineer/internal/command"
	"github.com/spf13/cobra"
)

var (
	configPath string
	runOpts    command.RunOptions
	rootCmd    = &cobra.Command{
		Use:   "multi-engineer PROMPT",
		Short: "Multi Engineer - AI product owner and engineer working in git worktrees",
		Long: `Multi Engineer hands a development request to a product owner agent,
which turns it into concrete instructions for an engineer agent. The engineer
works in an isolated git worktree; the result is committed and can be merged.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return command.RunWorkflow(cmd, configPath, args[0], runOpts)
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path")
	command.AddRunFlags(rootCmd, &runOpts)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		command.PrintError(os.Stderr, err)
		os.Exit(1)
	}
}
