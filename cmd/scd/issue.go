package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/scdev/scd/internal/types"
	"github.com/spf13/cobra"
)

var issueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Create, inspect, and update issues",
}

var issueCreateCmd = &cobra.Command{
	Use:   "create <title>",
	Short: "Create a new issue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		priority, _ := cmd.Flags().GetInt("priority")
		assignee, _ := cmd.Flags().GetString("assignee")

		issue := &types.Issue{
			ID:       uuid.NewString(),
			UUID:     uuid.New(),
			Title:    args[0],
			Status:   types.StatusOpen,
			Priority: priority,
			Assignee: assignee,
		}
		if err := current.store.CreateIssue(rootCtx, issue); err != nil {
			return fmt.Errorf("scd issue create: %w", err)
		}

		filePath, err := writeEntityMarkdown("issues", issue.ID, issue.UUID.String(), issue.Title, string(issue.Status), priority)
		if err != nil {
			return fmt.Errorf("scd issue create: %w", err)
		}
		if err := current.store.SetIssueFilePath(rootCtx, issue.ID, filePath); err != nil {
			return fmt.Errorf("scd issue create: %w", err)
		}

		fmt.Printf("created issue %s (%s)\n", issue.ID, issue.UUID)
		return nil
	},
}

var issueShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show an issue by id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		issue, err := current.store.GetIssueByID(rootCtx, args[0])
		if err != nil {
			return fmt.Errorf("scd issue show: %w", err)
		}
		printIssue(issue)
		return nil
	},
}

var issueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List issues",
	RunE: func(cmd *cobra.Command, args []string) error {
		statusFlag, _ := cmd.Flags().GetString("status")
		includeArchived, _ := cmd.Flags().GetBool("archived")

		filter := types.IssueFilter{IncludeArchived: includeArchived}
		if statusFlag != "" {
			filter.Status = []types.IssueStatus{types.IssueStatus(statusFlag)}
		}

		issues, err := current.store.ListIssues(rootCtx, filter)
		if err != nil {
			return fmt.Errorf("scd issue list: %w", err)
		}
		for _, i := range issues {
			fmt.Printf("%-12s  %-12s  p%d  %s\n", i.ID, i.Status, i.Priority, i.Title)
		}
		return nil
	},
}

var issueStatusCmd = &cobra.Command{
	Use:   "status <id> <status>",
	Short: "Transition an issue's status",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		status := types.IssueStatus(args[1])
		patch := types.IssuePatch{Status: &status}
		updated, err := current.store.UpdateIssue(rootCtx, args[0], patch)
		if err != nil {
			return fmt.Errorf("scd issue status: %w", err)
		}
		current.bus.Publish(rootCtx, types.Event{
			EntityUUID: updated.UUID,
			EntityType: types.EntityTypeIssue,
			Action:     "issue:status_changed",
			Source:     "cli",
		})
		fmt.Printf("%s -> %s\n", updated.ID, updated.Status)
		return nil
	},
}

func printIssue(i *types.Issue) {
	fmt.Printf("id:       %s\n", i.ID)
	fmt.Printf("uuid:     %s\n", i.UUID)
	fmt.Printf("title:    %s\n", i.Title)
	fmt.Printf("status:   %s\n", i.Status)
	fmt.Printf("priority: %d\n", i.Priority)
	fmt.Printf("assignee: %s\n", i.Assignee)
	fmt.Printf("tags:     %v\n", i.Tags)
	fmt.Printf("updated:  %s\n", i.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"))
	if len(i.Content) > 0 {
		fmt.Printf("\n%s\n", i.Content)
	}
}

func init() {
	issueCreateCmd.Flags().Int("priority", 0, "priority (0 = highest)")
	issueCreateCmd.Flags().String("assignee", "", "assignee")
	issueListCmd.Flags().String("status", "", "filter by status")
	issueListCmd.Flags().Bool("archived", false, "include archived issues")

	issueCmd.AddCommand(issueCreateCmd, issueShowCmd, issueListCmd, issueStatusCmd)
	rootCmd.AddCommand(issueCmd)
}
