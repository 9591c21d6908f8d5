package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
)

var worktreeCmd = &cobra.Command{
	Use:   "worktree",
	Short: "Manage per-execution git worktrees",
}

var worktreeAddCmd = &cobra.Command{
	Use:   "add <execution-id> <branch>",
	Short: "Create a worktree under <baseDir>/worktrees/<execution-id>",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		path := filepath.Join(current.cfg.BaseDir, "worktrees", args[0])
		if err := current.repo.WorktreeAdd(rootCtx, path, args[1], force); err != nil {
			return fmt.Errorf("scd worktree add: %w", err)
		}
		fmt.Printf("worktree %s -> %s\n", path, args[1])
		return nil
	},
}

var worktreeRemoveCmd = &cobra.Command{
	Use:   "remove <execution-id>",
	Short: "Remove an execution's worktree",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		path := filepath.Join(current.cfg.BaseDir, "worktrees", args[0])
		if err := current.repo.WorktreeRemove(rootCtx, path, force); err != nil {
			return fmt.Errorf("scd worktree remove: %w", err)
		}
		fmt.Printf("removed %s\n", path)
		return nil
	},
}

var worktreeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered worktrees",
	RunE: func(cmd *cobra.Command, args []string) error {
		records, err := current.repo.WorktreeList(rootCtx)
		if err != nil {
			return fmt.Errorf("scd worktree list: %w", err)
		}
		for _, r := range records {
			fmt.Printf("%-50s  %-20s  %s\n", r.Path, r.Branch, r.Commit)
		}
		return nil
	},
}

func init() {
	worktreeAddCmd.Flags().Bool("force", false, "replace an existing worktree at the same path")
	worktreeRemoveCmd.Flags().Bool("force", false, "remove even with uncommitted changes")

	worktreeCmd.AddCommand(worktreeAddCmd, worktreeRemoveCmd, worktreeListCmd)
	rootCmd.AddCommand(worktreeCmd)
}
