package command

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewCleanupWorktreesCmd builds the command removing every managed worktree
func NewCleanupWorktreesCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup-worktrees",
		Short: "Remove all worktrees created for tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := Open(cmd, *configPath)
			if err != nil {
				return err
			}
			defer app.Close()

			con := app.Console
			con.Info("🧹 Cleaning up worktrees...")

			removed, err := app.Worktrees.CleanupAll(cmd.Context())
			if err != nil {
				con.Error(err.Error())
				return errExit
			}
			if len(removed) == 0 {
				con.Dim("No worktrees to clean up")
				return nil
			}
			for _, p := range removed {
				con.Printf("  removed %s\n", p)
			}
			con.Success(fmt.Sprintf("Removed %d worktree(s)", len(removed)))
			return nil
		},
	}
}
