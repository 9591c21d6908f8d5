package checkpoint

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/scdev/scd/internal/types"
	"github.com/scdev/scd/internal/worktree"
)

// ExecutionInput is the subset of types.Execution a checkpoint is
// built from, kept separate so callers don't need a full store lookup
// just to build one.
type ExecutionInput struct {
	ID              string
	IssueUUID       uuid.UUID
	StreamID        string
	StreamBranch    string
	ExecutionBranch string
	BeforeCommit    string
	AfterCommit     string
}

// Manager creates Checkpoints from completed executions and tracks
// their position in the merge queue (spec 4.J).
type Manager struct {
	repo  *worktree.Manager
	queue *Queue
	now   func() time.Time
}

// NewManager builds a checkpoint Manager rooted at repo's repository,
// sharing the given merge queue.
func NewManager(repo *worktree.Manager, queue *Queue) *Manager {
	return &Manager{repo: repo, queue: queue, now: time.Now}
}

// CreateCheckpoint implements spec 4.J's checkpoint creation steps:
// integrate the execution's commits into its stream branch, diff the
// JSONL snapshots, and build the resulting record. The record is only
// returned to the caller; this function does not store it, and it
// leaves ChangedFiles, Additions and Deletions at zero. enqueue controls
// step 4 (optionally enqueuing in the merge queue for review/merge).
func (m *Manager) CreateCheckpoint(
	ctx context.Context,
	exec ExecutionInput,
	beforeIssuesJSONL, afterIssuesJSONL []byte,
	beforeSpecsJSONL, afterSpecsJSONL []byte,
	message string,
	enqueue bool,
) (*types.Checkpoint, error) {
	if exec.BeforeCommit == exec.AfterCommit {
		return nil, fmt.Errorf("%s: %w", exec.ID, ErrNoChanges)
	}

	if err := m.integrateIntoStream(ctx, exec); err != nil {
		return nil, fmt.Errorf("checkpoint: integrate %s into %s: %w", exec.ExecutionBranch, exec.StreamBranch, err)
	}

	issueSnapshot, err := DiffJSONL(beforeIssuesJSONL, afterIssuesJSONL)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: issues.jsonl: %w", err)
	}
	specSnapshot, err := DiffJSONL(beforeSpecsJSONL, afterSpecsJSONL)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: specs.jsonl: %w", err)
	}

	cp := &types.Checkpoint{
		ID:             uuid.New().String(),
		IssueUUID:      exec.IssueUUID,
		ExecutionID:    exec.ID,
		StreamID:       exec.StreamID,
		CommitSHA:      exec.AfterCommit,
		ParentCommit:   exec.BeforeCommit,
		Message:        message,
		CheckpointedAt: m.now(),
		ReviewStatus:   types.ReviewPending,
		IssueSnapshot:  issueSnapshot,
		SpecSnapshot:   specSnapshot,
	}

	if enqueue {
		m.queue.Enqueue(&QueueEntry{
			ID:           cp.ID,
			ExecutionID:  exec.ID,
			StreamID:     exec.StreamID,
			TargetBranch: exec.StreamBranch,
			Status:       QueuePending,
		})
	}

	return cp, nil
}

// integrateIntoStream implements step 1: if the stream branch already
// has after_commit, there's nothing to do; otherwise fast-forward the
// stream branch when possible, or squash-merge the execution branch
// onto it when the histories have diverged.
func (m *Manager) integrateIntoStream(ctx context.Context, exec ExecutionInput) error {
	if _, err := m.repo.Run(ctx, "merge-base", "--is-ancestor", exec.AfterCommit, exec.StreamBranch); err == nil {
		return nil
	}

	if _, err := m.repo.Run(ctx, "merge-base", "--is-ancestor", exec.StreamBranch, exec.AfterCommit); err == nil {
		_, err := m.repo.Run(ctx, "update-ref", "refs/heads/"+exec.StreamBranch, exec.AfterCommit)
		return err
	}

	currentBranch, err := m.repo.Run(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return err
	}
	if _, err := m.repo.Run(ctx, "checkout", exec.StreamBranch); err != nil {
		return err
	}
	defer func() { _, _ = m.repo.Run(ctx, "checkout", trimTrailingNewline(currentBranch)) }()

	if _, err := m.repo.Run(ctx, "merge", "--squash", exec.ExecutionBranch); err != nil {
		return err
	}
	_, err = m.repo.Run(ctx, "commit", "-m", fmt.Sprintf("checkpoint: squash %s..%s", exec.BeforeCommit, exec.AfterCommit))
	return err
}

func trimTrailingNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}
