package main

import (
	"fmt"
	"strconv"

	"github.com/scdev/scd/internal/checkpoint"
	"github.com/spf13/cobra"
)

var mergeQueueCmd = &cobra.Command{
	Use:     "merge-queue",
	Short:   "Inspect and reorder the checkpoint merge queue",
	Aliases: []string{"mergequeue"},
}

var mergeQueueListCmd = &cobra.Command{
	Use:   "list <target-branch>",
	Short: "List a branch's merge queue in position order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, e := range current.queue.List(args[0]) {
			fmt.Printf("%d  %-10s  %s  (execution %s)\n", e.Position, e.Status, e.ID, e.ExecutionID)
		}
		return nil
	},
}

var mergeQueueReorderCmd = &cobra.Command{
	Use:   "reorder <entry-id> <new-position>",
	Short: "Move a queue entry to a new position, renumbering the rest",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		pos, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("scd merge-queue reorder: new-position must be an integer: %w", err)
		}
		if err := current.queue.Reorder(args[0], pos); err != nil {
			return fmt.Errorf("scd merge-queue reorder: %w", err)
		}
		return nil
	},
}

var mergeQueueNextCmd = &cobra.Command{
	Use:   "next <target-branch>",
	Short: "Show the next ready entry for a branch",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		entry, ok := current.queue.NextReady(args[0])
		if !ok {
			fmt.Println("no ready entries")
			return nil
		}
		fmt.Printf("%s  execution %s  position %d\n", entry.ID, entry.ExecutionID, entry.Position)
		return nil
	},
}

var mergeQueueCancelCmd = &cobra.Command{
	Use:   "cancel <entry-id>",
	Short: "Cancel a queue entry without removing or renumbering it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := current.queue.Cancel(args[0]); err != nil {
			return fmt.Errorf("scd merge-queue cancel: %w", err)
		}
		return nil
	},
}

var mergeQueueMergeCmd = &cobra.Command{
	Use:   "mark-merged <entry-id> <merge-commit>",
	Short: "Mark a queue entry merged, recording its merge commit",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := current.queue.UpdateStatus(args[0], checkpoint.QueueMerged, args[1], ""); err != nil {
			return fmt.Errorf("scd merge-queue mark-merged: %w", err)
		}
		return nil
	},
}

func init() {
	mergeQueueCmd.AddCommand(mergeQueueListCmd, mergeQueueReorderCmd, mergeQueueNextCmd, mergeQueueCancelCmd, mergeQueueMergeCmd)
	rootCmd.AddCommand(mergeQueueCmd)
}
