package worktree

import (
	"context"
	"strings"
)

// Record is one entry from `git worktree list`, parsed from its
// porcelain output (spec 4.I).
type Record struct {
	Path     string
	Branch   string
	Commit   string
	IsMain   bool
	IsLocked bool
}

// WorktreeAdd creates a new worktree at path checked out onto branch.
// When force is true, an existing worktree at path is first removed.
func (m *Manager) WorktreeAdd(ctx context.Context, path, branch string, force bool) error {
	path = absPath(path)
	if force {
		// Best-effort cleanup of a stale worktree at path; WorktreeAdd
		// still proceeds regardless of whether one existed.
		_, _ = m.run(ctx, m.repoRoot, "worktree", "remove", "--force", path)
	}
	args := []string{"worktree", "add"}
	if force {
		args = append(args, "--force")
	}
	args = append(args, path, branch)
	_, err := m.run(ctx, m.repoRoot, args...)
	return err
}

// WorktreeRemove removes the worktree at path. force discards local
// modifications and untracked files in the worktree.
func (m *Manager) WorktreeRemove(ctx context.Context, path string, force bool) error {
	args := []string{"worktree", "remove"}
	if force {
		args = append(args, "--force")
	}
	args = append(args, absPath(path))
	_, err := m.run(ctx, m.repoRoot, args...)
	return err
}

// WorktreePrune removes administrative metadata for worktrees whose
// directory has been deleted out-of-band.
func (m *Manager) WorktreePrune(ctx context.Context) error {
	_, err := m.run(ctx, m.repoRoot, "worktree", "prune")
	return err
}

// WorktreeList parses `git worktree list --porcelain` into Records.
// The first record is always the main (non-linked) worktree.
func (m *Manager) WorktreeList(ctx context.Context) ([]Record, error) {
	out, err := m.run(ctx, m.repoRoot, "worktree", "list", "--porcelain")
	if err != nil {
		return nil, err
	}
	return parseWorktreePorcelain(out), nil
}

func parseWorktreePorcelain(out string) []Record {
	var records []Record
	var cur *Record

	flush := func() {
		if cur != nil {
			records = append(records, *cur)
			cur = nil
		}
	}

	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			flush()
			continue
		}
		switch {
		case strings.HasPrefix(line, "worktree "):
			flush()
			cur = &Record{Path: strings.TrimPrefix(line, "worktree ")}
		case cur == nil:
			continue
		case strings.HasPrefix(line, "HEAD "):
			cur.Commit = strings.TrimPrefix(line, "HEAD ")
		case strings.HasPrefix(line, "branch "):
			cur.Branch = strings.TrimPrefix(strings.TrimPrefix(line, "branch "), "refs/heads/")
		case line == "detached":
			// no branch to record
		case line == "locked" || strings.HasPrefix(line, "locked "):
			cur.IsLocked = true
		case strings.HasPrefix(line, "prunable"):
			// pruned worktrees are still listed; no dedicated field needed
		}
	}
	flush()

	if len(records) > 0 {
		records[0].IsMain = true
	}
	return records
}

// ConfigureSparseCheckout enables cone-mode sparse-checkout in the
// worktree at worktreePath, restricted to patterns.
func (m *Manager) ConfigureSparseCheckout(ctx context.Context, worktreePath string, patterns []string) error {
	if _, err := m.run(ctx, worktreePath, "sparse-checkout", "init", "--cone"); err != nil {
		return err
	}
	args := append([]string{"sparse-checkout", "set"}, patterns...)
	_, err := m.run(ctx, worktreePath, args...)
	return err
}
