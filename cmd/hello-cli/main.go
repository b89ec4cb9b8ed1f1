package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/hochfrequenz/multi-engineer/internal/command"
	"github.com/spf13/cobra"
)

const version = "0.1.0"

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "hello-cli",
		Short:         "Hello CLI - a greeting demo built on Cobra and Lip Gloss",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetVersionTemplate("hello-cli version: {{.Version}}\n")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path")

	rootCmd.AddCommand(
		newHelloCmd(),
		newInfoCmd(),
		command.NewCleanupWorktreesCmd(&configPath),
		command.NewRunCmd("claude PROMPT", "Run the product owner → engineer workflow", &configPath),
	)
	return rootCmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()

	if err != nil {
		command.PrintError(os.Stderr, err)
		os.Exit(1)
	}
}
