package main

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/scdev/scd/internal/metafile"
	"github.com/scdev/scd/internal/types"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "One-off repairs that don't belong in the regular sync loop",
}

var migrateRewriteRefsCmd = &cobra.Command{
	Use:   "rewrite-refs",
	Short: "Rewrite stale textual id references left behind by id renumbering",
	Long: `When an incoming issue or spec collides on id with an existing one, the
importer renumbers the incoming entity and moves on (spec 4.D) - it never
goes looking for other entities whose markdown body mentions the id that
just changed. rewrite-refs is that follow-up pass: it replays meta.json's
collision log into an old-id -> new-id map and rewrites every literal
mention it finds in issue and spec content.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		m, err := metafile.Load(current.cfg.BaseDir)
		if err != nil {
			return fmt.Errorf("scd migrate rewrite-refs: %w", err)
		}
		refs := metafile.RewriteMap(m)
		if len(refs) == 0 {
			fmt.Println("no renumbered ids in the collision log")
			return nil
		}

		pattern, err := compileRefPattern(refs)
		if err != nil {
			return fmt.Errorf("scd migrate rewrite-refs: %w", err)
		}

		issues, err := current.store.ListIssues(rootCtx, types.IssueFilter{IncludeArchived: true})
		if err != nil {
			return fmt.Errorf("scd migrate rewrite-refs: list issues: %w", err)
		}
		for _, issue := range issues {
			rewritten, changed := rewriteRefs(issue.Content, pattern, refs)
			if !changed {
				continue
			}
			fmt.Printf("issue %s: rewrites stale reference(s)\n", issue.ID)
			if dryRun {
				continue
			}
			content := rewritten
			if _, err := current.store.UpdateIssue(rootCtx, issue.ID, types.IssuePatch{Content: &content}); err != nil {
				return fmt.Errorf("scd migrate rewrite-refs: update issue %s: %w", issue.ID, err)
			}
		}

		specs, err := current.store.ListSpecs(rootCtx, types.SpecFilter{IncludeArchived: true})
		if err != nil {
			return fmt.Errorf("scd migrate rewrite-refs: list specs: %w", err)
		}
		for _, spec := range specs {
			rewritten, changed := rewriteRefs(spec.Content, pattern, refs)
			if !changed {
				continue
			}
			fmt.Printf("spec %s: rewrites stale reference(s)\n", spec.ID)
			if dryRun {
				continue
			}
			content := rewritten
			if _, err := current.store.UpdateSpec(rootCtx, spec.ID, types.SpecPatch{Content: &content}); err != nil {
				return fmt.Errorf("scd migrate rewrite-refs: update spec %s: %w", spec.ID, err)
			}
		}

		if dryRun {
			fmt.Println("dry run: no changes written")
		}
		return nil
	},
}

// compileRefPattern builds a single alternation regexp matching any old
// id in refs as a whole word, longest-first so "bd-1" doesn't shadow a
// match of "bd-10" that happens to share the same prefix.
func compileRefPattern(refs map[string]string) (*regexp.Regexp, error) {
	olds := make([]string, 0, len(refs))
	for old := range refs {
		olds = append(olds, old)
	}
	sort.Slice(olds, func(i, j int) bool { return len(olds[i]) > len(olds[j]) })

	alts := make([]string, len(olds))
	for i, old := range olds {
		alts[i] = regexp.QuoteMeta(old)
	}
	return regexp.Compile(`\b(` + joinAlts(alts) + `)\b`)
}

func joinAlts(alts []string) string {
	out := alts[0]
	for _, a := range alts[1:] {
		out += "|" + a
	}
	return out
}

// rewriteRefs replaces every old id the pattern finds in content with its
// mapped new id, reporting whether anything changed.
func rewriteRefs(content string, pattern *regexp.Regexp, refs map[string]string) (string, bool) {
	changed := false
	out := pattern.ReplaceAllStringFunc(content, func(match string) string {
		if newID, ok := refs[match]; ok {
			changed = true
			return newID
		}
		return match
	})
	return out, changed
}

func init() {
	migrateRewriteRefsCmd.Flags().Bool("dry-run", false, "show what would be rewritten without writing it")
	migrateCmd.AddCommand(migrateRewriteRefsCmd)
	rootCmd.AddCommand(migrateCmd)
}
