package checkpoint

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/scdev/scd/internal/worktree"
)

// ConflictKind classifies how a conflicted file should be handled.
type ConflictKind string

const (
	// ConflictKindJSONLAuto is one of the two tracked JSONL snapshot
	// files (spec 6's "<baseDir>/specs.jsonl, <baseDir>/issues.jsonl"),
	// which the timestamp resolver in resolve.go can merge without a
	// human.
	ConflictKindJSONLAuto ConflictKind = "jsonl_auto"

	// ConflictKindCode is any other file, requiring manual resolution.
	ConflictKindCode ConflictKind = "code"
)

// stage is one blob's identity for one side of a three-way merge, per
// git's index stage numbering (1=base, 2=ours, 3=theirs).
type stage struct {
	Mode   string
	Object string
	Stage  int
}

// ConflictedFile is one path that a dry-run merge could not resolve on
// its own.
type ConflictedFile struct {
	Path   string
	Kind   ConflictKind
	stages map[int]stage
}

// DetectConflicts performs a dry-run three-way merge of source into
// target using `git merge-tree`, which writes a candidate merge tree
// without touching the working directory or HEAD (spec 4.J: "does not
// mutate the working tree"). On a clean merge it returns the resulting
// tree's OID and no conflicts.
func DetectConflicts(ctx context.Context, repo *worktree.Manager, source, target string) (treeOID string, conflicts []ConflictedFile, err error) {
	out, runErr := repo.Run(ctx, "merge-tree", "--write-tree", "-z", target, source)
	if runErr == nil {
		return strings.TrimSpace(firstNULField(out)), nil, nil
	}

	var gitErr *worktree.GitError
	if !isGitError(runErr, &gitErr) {
		return "", nil, fmt.Errorf("checkpoint: merge-tree: %w", runErr)
	}
	// Exit status 1 from merge-tree means "conflicts present"; its
	// stdout is still the structured report, just on the error path
	// since git's exit code reflects merge cleanliness, not a failure.
	if exitErr, ok := gitErr.Err.(*exec.ExitError); !ok || exitErr.ExitCode() != 1 {
		return "", nil, fmt.Errorf("checkpoint: merge-tree: %w", runErr)
	}

	treeOID, conflicts = parseMergeTreeConflicts(gitErr.Stdout)
	for i := range conflicts {
		conflicts[i].Kind = classifyConflict(conflicts[i].Path)
	}
	return treeOID, conflicts, nil
}

// HasUnresolvedConflicts reports whether conflicts contains any file that
// needs a human (ErrConflictUnresolved in spec 7's terms), as opposed to
// the jsonl_auto kind resolve.go can merge on its own.
func HasUnresolvedConflicts(conflicts []ConflictedFile) bool {
	for _, c := range conflicts {
		if c.Kind == ConflictKindCode {
			return true
		}
	}
	return false
}

func isGitError(err error, target **worktree.GitError) bool {
	gitErr, ok := err.(*worktree.GitError)
	if ok {
		*target = gitErr
	}
	return ok
}

// firstNULField returns the text up to the first NUL byte (the -z
// flag NUL-terminates each field of merge-tree's output).
func firstNULField(s string) string {
	if i := strings.IndexByte(s, 0); i >= 0 {
		return s[:i]
	}
	return s
}

// parseMergeTreeConflicts parses `git merge-tree --write-tree -z`'s
// NUL-separated output: tree OID, then one NUL-terminated conflict
// info blob per conflicted path (each blob holding up to three
// "<mode> <object> <stage>\t<path>" lines, one per present ancestor/
// ours/theirs stage), then informational messages.
func parseMergeTreeConflicts(out string) (string, []ConflictedFile) {
	fields := strings.Split(out, "\x00")
	if len(fields) == 0 {
		return "", nil
	}
	treeOID := strings.TrimSpace(fields[0])

	byPath := map[string]*ConflictedFile{}
	var order []string

	for _, field := range fields[1:] {
		block := strings.TrimSpace(field)
		if block == "" {
			continue
		}
		for _, line := range strings.Split(block, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			parts := strings.SplitN(line, "\t", 2)
			if len(parts) != 2 {
				continue // informational message line, not a conflict stage
			}
			meta := strings.Fields(parts[0])
			path := parts[1]
			if len(meta) != 3 {
				continue
			}
			stageNum, convErr := strconv.Atoi(meta[2])
			if convErr != nil {
				continue
			}

			cf, ok := byPath[path]
			if !ok {
				cf = &ConflictedFile{Path: path, stages: map[int]stage{}}
				byPath[path] = cf
				order = append(order, path)
			}
			cf.stages[stageNum] = stage{Mode: meta[0], Object: meta[1], Stage: stageNum}
		}
	}

	conflicts := make([]ConflictedFile, 0, len(order))
	for _, path := range order {
		conflicts = append(conflicts, *byPath[path])
	}
	return treeOID, conflicts
}

// jsonlAutoResolveFiles are the two tracked snapshot files that live at
// <baseDir>/specs.jsonl and <baseDir>/issues.jsonl (spec 6's persisted
// state layout). Anything else is treated as ordinary code.
var jsonlAutoResolveFiles = map[string]bool{
	"issues.jsonl": true,
	"specs.jsonl":  true,
}

func classifyConflict(path string) ConflictKind {
	if jsonlAutoResolveFiles[filepath.Base(path)] {
		return ConflictKindJSONLAuto
	}
	return ConflictKindCode
}
