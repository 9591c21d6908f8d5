package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/scdev/scd/internal/engine"
	"github.com/spf13/cobra"
)

var execCmd = &cobra.Command{
	Use:   "exec",
	Short: "Submit and inspect agent execution tasks",
}

var execSubmitCmd = &cobra.Command{
	Use:   "submit <issue-id> -- <argv...>",
	Short: "Submit an agent execution task for an issue",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		priority, _ := cmd.Flags().GetInt("priority")
		workDir, _ := cmd.Flags().GetString("work-dir")
		timeout, _ := cmd.Flags().GetDuration("timeout")
		wait, _ := cmd.Flags().GetBool("wait")

		task := &engine.Task{
			ID:       uuid.NewString(),
			Kind:     engine.TaskKindIssue,
			EntityID: args[0],
			WorkDir:  workDir,
			Priority: priority,
			Argv:     args[1:],
			Config:   engine.TaskConfig{Timeout: timeout},
		}
		id := current.engine.Submit(task)
		fmt.Printf("submitted execution %s for issue %s\n", id, args[0])

		if !wait {
			return nil
		}
		result, err := current.engine.Await(rootCtx, id)
		if err != nil {
			return fmt.Errorf("scd exec submit: await: %w", err)
		}
		printResult(result)
		if !result.Success {
			return fmt.Errorf("execution %s failed", id)
		}
		return nil
	},
}

var execStatusCmd = &cobra.Command{
	Use:   "status <execution-id>",
	Short: "Show a completed execution's result",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		result, ok := current.engine.Status(args[0])
		if !ok {
			return fmt.Errorf("scd exec status: %s: not completed (or unknown)", args[0])
		}
		printResult(result)
		return nil
	},
}

var execCancelCmd = &cobra.Command{
	Use:   "cancel <execution-id>",
	Short: "Cancel a queued or running execution",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := current.engine.Cancel(args[0]); err != nil {
			return fmt.Errorf("scd exec cancel: %w", err)
		}
		fmt.Printf("cancelled %s\n", args[0])
		return nil
	},
}

var execPsCmd = &cobra.Command{
	Use:   "ps",
	Short: "Show the engine's concurrency metrics",
	RunE: func(cmd *cobra.Command, args []string) error {
		m := current.engine.Metrics()
		fmt.Printf("running:    %d/%d (%d slots free)\n", m.CurrentlyRunning, m.MaxConcurrent, m.AvailableSlots)
		fmt.Printf("queued:     %d\n", m.Queued)
		fmt.Printf("completed:  %d\n", m.Completed)
		fmt.Printf("failed:     %d\n", m.Failed)
		fmt.Printf("avg time:   %s\n", strings.TrimSpace(humanize.RelTime(time.Time{}, time.Time{}.Add(m.AvgDuration), "", "")))
		fmt.Printf("success:    %.1f%%\n", m.SuccessRate*100)
		fmt.Printf("throughput: %.2f/min\n", m.Throughput)
		return nil
	},
}

func printResult(r engine.Result) {
	fmt.Printf("task:       %s\n", r.TaskID)
	fmt.Printf("success:    %v\n", r.Success)
	fmt.Printf("exit code:  %d\n", r.ExitCode)
	fmt.Printf("attempt:    %d\n", r.Attempt)
	if !r.StartedAt.IsZero() && !r.CompletedAt.IsZero() {
		fmt.Printf("duration:   %s\n", strings.TrimSpace(humanize.RelTime(r.StartedAt, r.CompletedAt, "", "")))
	}
	if r.Err != nil {
		fmt.Printf("error:      %v\n", r.Err)
	}
	if out := strings.TrimSpace(r.Output); out != "" {
		fmt.Printf("\n%s\n", out)
	}
}

func init() {
	execSubmitCmd.Flags().Int("priority", 0, "priority (0 = highest)")
	execSubmitCmd.Flags().String("work-dir", "", "subprocess working directory")
	execSubmitCmd.Flags().Duration("timeout", 0, "subprocess timeout (0 = none)")
	execSubmitCmd.Flags().Bool("wait", false, "block until the execution completes")

	execCmd.AddCommand(execSubmitCmd, execStatusCmd, execCancelCmd, execPsCmd)
	rootCmd.AddCommand(execCmd)
}
