package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/scdev/scd/internal/types"
	"github.com/spf13/cobra"
)

var specCmd = &cobra.Command{
	Use:   "spec",
	Short: "Create, inspect, and update specification documents",
}

var specCreateCmd = &cobra.Command{
	Use:   "create <title>",
	Short: "Create a new spec",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		priority, _ := cmd.Flags().GetInt("priority")

		id := uuid.NewString()
		specUUID := uuid.New()
		filePath, err := writeEntityMarkdown("specs", id, specUUID.String(), args[0], "", priority)
		if err != nil {
			return fmt.Errorf("scd spec create: %w", err)
		}

		spec := &types.Spec{
			ID:       id,
			UUID:     specUUID,
			Title:    args[0],
			FilePath: filePath,
			Priority: priority,
		}
		if err := current.store.CreateSpec(rootCtx, spec); err != nil {
			return fmt.Errorf("scd spec create: %w", err)
		}
		fmt.Printf("created spec %s (%s)\n", spec.ID, spec.UUID)
		return nil
	},
}

var specShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a spec by id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		spec, err := current.store.GetSpecByID(rootCtx, args[0])
		if err != nil {
			return fmt.Errorf("scd spec show: %w", err)
		}
		printSpec(spec)
		return nil
	},
}

var specListCmd = &cobra.Command{
	Use:   "list",
	Short: "List specs",
	RunE: func(cmd *cobra.Command, args []string) error {
		includeArchived, _ := cmd.Flags().GetBool("archived")
		specs, err := current.store.ListSpecs(rootCtx, types.SpecFilter{IncludeArchived: includeArchived})
		if err != nil {
			return fmt.Errorf("scd spec list: %w", err)
		}
		for _, s := range specs {
			fmt.Printf("%-12s  p%d  %s\n", s.ID, s.Priority, s.Title)
		}
		return nil
	},
}

func printSpec(s *types.Spec) {
	fmt.Printf("id:       %s\n", s.ID)
	fmt.Printf("uuid:     %s\n", s.UUID)
	fmt.Printf("title:    %s\n", s.Title)
	fmt.Printf("priority: %d\n", s.Priority)
	fmt.Printf("tags:     %v\n", s.Tags)
	fmt.Printf("updated:  %s\n", s.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"))
	if len(s.Content) > 0 {
		fmt.Printf("\n%s\n", s.Content)
	}
}

func init() {
	specCreateCmd.Flags().Int("priority", 0, "priority (0 = highest)")
	specListCmd.Flags().Bool("archived", false, "include archived specs")

	specCmd.AddCommand(specCreateCmd, specShowCmd, specListCmd)
	rootCmd.AddCommand(specCmd)
}
