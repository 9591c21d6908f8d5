package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/scdev/scd/internal/metafile"
	scdsync "github.com/scdev/scd/internal/sync"
	"github.com/scdev/scd/internal/types"
	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile the entity store against the JSONL snapshots",
}

var syncExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write specs.jsonl and issues.jsonl from the store",
	RunE: func(cmd *cobra.Command, args []string) error {
		includeArchived, _ := cmd.Flags().GetBool("archived")

		issuesPath := filepath.Join(current.cfg.BaseDir, "issues.jsonl")
		wroteIssues, err := scdsync.ExportIssues(rootCtx, current.store, issuesPath, includeArchived)
		if err != nil {
			return fmt.Errorf("scd sync export: %w", err)
		}

		specsPath := filepath.Join(current.cfg.BaseDir, "specs.jsonl")
		wroteSpecs, err := scdsync.ExportSpecs(rootCtx, current.store, specsPath, includeArchived)
		if err != nil {
			return fmt.Errorf("scd sync export: %w", err)
		}

		fmt.Printf("issues.jsonl: %s\n", writeStatus(wroteIssues))
		fmt.Printf("specs.jsonl:  %s\n", writeStatus(wroteSpecs))
		return nil
	},
}

var syncImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Reconcile the store from specs.jsonl and issues.jsonl",
	RunE: func(cmd *cobra.Command, args []string) error {
		issues, err := current.store.ListIssues(rootCtx, types.IssueFilter{IncludeArchived: true})
		if err != nil {
			return fmt.Errorf("scd sync import: list issues: %w", err)
		}
		issuesPath := filepath.Join(current.cfg.BaseDir, "issues.jsonl")
		issueResult, _, err := scdsync.ReconcileIssuesJSONL(rootCtx, current.store, issues, issuesPath, scdsync.EntityHashCache{})
		if err != nil {
			return fmt.Errorf("scd sync import: %w", err)
		}

		specs, err := current.store.ListSpecs(rootCtx, types.SpecFilter{IncludeArchived: true})
		if err != nil {
			return fmt.Errorf("scd sync import: list specs: %w", err)
		}
		specsPath := filepath.Join(current.cfg.BaseDir, "specs.jsonl")
		specResult, _, err := scdsync.ReconcileSpecsJSONL(rootCtx, current.store, specs, specsPath, scdsync.EntityHashCache{})
		if err != nil {
			return fmt.Errorf("scd sync import: %w", err)
		}

		printImportResult("issues", issueResult)
		printImportResult("specs", specResult)

		now := time.Now()
		if err := metafile.RecordCollisions(current.cfg.BaseDir, issueResult.Collisions, now); err != nil {
			return fmt.Errorf("scd sync import: record collision log: %w", err)
		}
		if err := metafile.RecordCollisions(current.cfg.BaseDir, specResult.Collisions, now); err != nil {
			return fmt.Errorf("scd sync import: record collision log: %w", err)
		}
		return nil
	},
}

func printImportResult(kind string, r *scdsync.ImportResult) {
	if r == nil {
		return
	}
	fmt.Printf("%s: %d created, %d updated, %d unchanged\n", kind, r.Created, r.Updated, r.Unchanged)
	for _, w := range r.Warnings {
		fmt.Printf("  warning: %s\n", w.String())
	}
}

func writeStatus(wrote bool) string {
	if wrote {
		return "written"
	}
	return "unchanged"
}

func init() {
	syncExportCmd.Flags().Bool("archived", false, "include archived entities")
	syncCmd.AddCommand(syncExportCmd, syncImportCmd)
	rootCmd.AddCommand(syncCmd)
}
