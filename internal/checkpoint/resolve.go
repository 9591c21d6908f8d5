package checkpoint

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/scdev/scd/internal/worktree"
)

const (
	conflictStart  = "<<<<<<<"
	conflictMiddle = "======="
	conflictEnd    = ">>>>>>>"
)

// updatedAtPattern extracts an "updated_at" value from a JSONL line,
// tolerating single-quoted, double-quoted, or bare values (spec 4.J).
var updatedAtPattern = regexp.MustCompile(`"?updated_at"?\s*:\s*(?:"([^"]*)"|'([^']*)'|([^,}\s]+))`)

// ResolveJSONLConflict materializes the three sides of a JSONL
// conflict via `git cat-file -p`, runs `git merge-file --diff3 -p` to
// produce textual output with standard conflict markers, then applies
// the timestamp-based auto-resolution described in spec 4.J.
func ResolveJSONLConflict(ctx context.Context, repo *worktree.Manager, cf ConflictedFile) ([]byte, error) {
	base, hasBase := cf.stages[1]
	ours, hasOurs := cf.stages[2]
	theirs, hasTheirs := cf.stages[3]
	if !hasOurs || !hasTheirs {
		return nil, fmt.Errorf("checkpoint: %s: conflict missing ours/theirs stage", cf.Path)
	}

	dir, err := os.MkdirTemp("", "scd-jsonl-merge-*")
	if err != nil {
		return nil, fmt.Errorf("checkpoint: %w", err)
	}
	defer os.RemoveAll(dir)

	baseFile := filepath.Join(dir, "base")
	oursFile := filepath.Join(dir, "ours")
	theirsFile := filepath.Join(dir, "theirs")

	if hasBase {
		if err := writeBlob(ctx, repo, base.Object, baseFile); err != nil {
			return nil, err
		}
	} else {
		if err := os.WriteFile(baseFile, nil, 0o600); err != nil {
			return nil, fmt.Errorf("checkpoint: %w", err)
		}
	}
	if err := writeBlob(ctx, repo, ours.Object, oursFile); err != nil {
		return nil, err
	}
	if err := writeBlob(ctx, repo, theirs.Object, theirsFile); err != nil {
		return nil, err
	}

	merged, mergeErr := repo.Run(ctx, "merge-file", "--diff3", "-p", oursFile, baseFile, theirsFile)
	if mergeErr != nil {
		// merge-file exits non-zero when conflicts remain but still writes
		// the diff3-marked content to stdout; a failure that produced no
		// stdout is treated as a real error.
		var gitErr *worktree.GitError
		if isGitError(mergeErr, &gitErr) && strings.TrimSpace(gitErr.Stdout) != "" {
			merged = gitErr.Stdout
		} else {
			return nil, fmt.Errorf("checkpoint: merge-file %s: %w", cf.Path, mergeErr)
		}
	}

	return ResolveJSONLMarkers([]byte(merged))
}

func writeBlob(ctx context.Context, repo *worktree.Manager, object, path string) error {
	content, err := repo.Run(ctx, "cat-file", "-p", object)
	if err != nil {
		return fmt.Errorf("checkpoint: cat-file %s: %w", object, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}
	return nil
}

// ResolveJSONLMarkers replaces every diff3-style conflict region in
// content with the side whose hunk carries the later "updated_at"
// value. Ties or missing timestamps prefer "ours" for stability (spec
// 4.J). Conflicts are resolved in reverse line order so that an
// earlier conflict's resolution never shifts the line numbers of one
// still to be processed.
func ResolveJSONLMarkers(content []byte) ([]byte, error) {
	lines := strings.Split(string(content), "\n")

	type region struct {
		startLine, sepLine, midLine, endLine int
	}
	var regions []region

	for i := 0; i < len(lines); i++ {
		if !strings.HasPrefix(lines[i], conflictStart) {
			continue
		}
		start := i
		mid, sep, end := -1, -1, -1
		for j := i + 1; j < len(lines); j++ {
			switch {
			case strings.HasPrefix(lines[j], conflictMiddle) && mid == -1:
				mid = j
			case strings.HasPrefix(lines[j], "|||||||") && sep == -1 && mid == -1:
				// diff3 "base" divider; ours runs from start+1 to here
				sep = j
			case strings.HasPrefix(lines[j], conflictEnd):
				end = j
			}
			if end != -1 {
				break
			}
		}
		if mid == -1 || end == -1 {
			continue // malformed/unterminated region, leave as-is
		}
		regions = append(regions, region{startLine: start, sepLine: sep, midLine: mid, endLine: end})
		i = end
	}

	for r := len(regions) - 1; r >= 0; r-- {
		reg := regions[r]
		oursEnd := reg.midLine
		if reg.sepLine != -1 {
			oursEnd = reg.sepLine
		}
		ours := lines[reg.startLine+1 : oursEnd]
		theirs := lines[reg.midLine+1 : reg.endLine]

		winner := pickByUpdatedAt(ours, theirs)

		merged := make([]string, 0, len(lines)-(reg.endLine-reg.startLine)+len(winner))
		merged = append(merged, lines[:reg.startLine]...)
		merged = append(merged, winner...)
		merged = append(merged, lines[reg.endLine+1:]...)
		lines = merged
	}

	return []byte(strings.Join(lines, "\n")), nil
}

func pickByUpdatedAt(ours, theirs []string) []string {
	oursTime, oursOK := latestUpdatedAt(ours)
	theirsTime, theirsOK := latestUpdatedAt(theirs)

	if theirsOK && (!oursOK || theirsTime.After(oursTime)) {
		return theirs
	}
	return ours
}

func latestUpdatedAt(hunk []string) (time.Time, bool) {
	var best time.Time
	found := false
	for _, line := range hunk {
		m := updatedAtPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		raw := firstNonEmpty(m[1], m[2], m[3])
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			continue
		}
		if !found || ts.After(best) {
			best = ts
			found = true
		}
	}
	return best, found
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
