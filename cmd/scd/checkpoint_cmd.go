package main

import (
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/scdev/scd/internal/checkpoint"
	"github.com/spf13/cobra"
)

var checkpointCmd = &cobra.Command{
	Use:   "checkpoint",
	Short: "Create and inspect execution checkpoints",
}

var checkpointCreateCmd = &cobra.Command{
	Use:   "create <execution-id> <issue-uuid> <stream-id> <stream-branch> <execution-branch> <before-commit> <after-commit>",
	Short: "Integrate an execution's commits into its stream and record a checkpoint",
	Args:  cobra.ExactArgs(7),
	RunE: func(cmd *cobra.Command, args []string) error {
		message, _ := cmd.Flags().GetString("message")
		enqueue, _ := cmd.Flags().GetBool("enqueue")

		issueUUID, err := uuid.Parse(args[1])
		if err != nil {
			return fmt.Errorf("scd checkpoint create: issue uuid: %w", err)
		}

		_, conflicts, err := checkpoint.DetectConflicts(rootCtx, current.repo, args[4], args[3])
		if err != nil {
			return fmt.Errorf("scd checkpoint create: detect conflicts: %w", err)
		}
		for _, c := range conflicts {
			if c.Kind == checkpoint.ConflictKindCode {
				fmt.Printf("conflict: %s (%s, needs manual resolution)\n", c.Path, c.Kind)
			}
		}
		if checkpoint.HasUnresolvedConflicts(conflicts) {
			return fmt.Errorf("scd checkpoint create: %s has unresolved code conflicts with %s, resolve manually before checkpointing", args[4], args[3])
		}

		input := checkpoint.ExecutionInput{
			ID:              args[0],
			IssueUUID:       issueUUID,
			StreamID:        args[2],
			StreamBranch:    args[3],
			ExecutionBranch: args[4],
			BeforeCommit:    args[5],
			AfterCommit:     args[6],
		}

		beforeIssues, afterIssues, err := readBeforeAfter(filepath.Join(current.cfg.BaseDir, "issues.jsonl"), input.BeforeCommit, input.AfterCommit)
		if err != nil {
			return fmt.Errorf("scd checkpoint create: %w", err)
		}
		beforeSpecs, afterSpecs, err := readBeforeAfter(filepath.Join(current.cfg.BaseDir, "specs.jsonl"), input.BeforeCommit, input.AfterCommit)
		if err != nil {
			return fmt.Errorf("scd checkpoint create: %w", err)
		}

		cp, err := current.cp.CreateCheckpoint(rootCtx, input, beforeIssues, afterIssues, beforeSpecs, afterSpecs, message, enqueue)
		if err != nil {
			return fmt.Errorf("scd checkpoint create: %w", err)
		}
		fmt.Printf("checkpoint %s: %s..%s (%d issue changes, %d spec changes)\n",
			cp.ID, cp.ParentCommit, cp.CommitSHA, len(cp.IssueSnapshot), len(cp.SpecSnapshot))
		return nil
	},
}

// readBeforeAfter materializes both sides of a JSONL snapshot at two
// commits via `git show`. A missing path at either commit (e.g. the
// file didn't exist yet) is not an error, just an empty snapshot.
func readBeforeAfter(path, before, after string) (beforeBytes, afterBytes []byte, err error) {
	rel, err := filepath.Rel(current.cfg.BaseDir, path)
	if err != nil {
		return nil, nil, err
	}
	beforeOut, _ := current.repo.Run(rootCtx, "show", before+":"+rel)
	afterOut, _ := current.repo.Run(rootCtx, "show", after+":"+rel)
	return []byte(beforeOut), []byte(afterOut), nil
}

func init() {
	checkpointCreateCmd.Flags().String("message", "", "checkpoint message")
	checkpointCreateCmd.Flags().Bool("enqueue", true, "enqueue the checkpoint in the merge queue")

	checkpointCmd.AddCommand(checkpointCreateCmd)
	rootCmd.AddCommand(checkpointCmd)
}
