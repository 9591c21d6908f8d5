package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/scdev/scd/internal/jsonl"
	"github.com/scdev/scd/internal/types"
)

// writeRetryPolicy makes up to 3 attempts (2 retries) at a JSONL write with a short
// exponential backoff, for the transient filesystem errors (e.g. a
// concurrent watcher-triggered rename, or a network filesystem's
// momentary EAGAIN) that a bare write has no way to tell apart from a
// permanent one. It never retries a successful write's absence of
// error, only an actual failure.
func writeRetryPolicy() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 20 * time.Millisecond
	b.MaxInterval = 200 * time.Millisecond
	return backoff.WithMaxRetries(b, 2)
}

func writeFileWithRetry[T jsonl.Timestamped](path string, entities []T) (wrote bool, err error) {
	opErr := backoff.Retry(func() error {
		wrote, err = jsonl.WriteFile(path, entities)
		return err
	}, writeRetryPolicy())
	if opErr != nil {
		return wrote, opErr
	}
	return wrote, nil
}

// ExportStore is the subset of *store.Store the JSONL exporter needs:
// list the entities, then load each one's relationships and feedback.
type ExportStore interface {
	ListIssues(ctx context.Context, filter types.IssueFilter) ([]*types.Issue, error)
	ListSpecs(ctx context.Context, filter types.SpecFilter) ([]*types.Spec, error)
	RelationshipsFrom(ctx context.Context, from uuid.UUID) ([]types.Relationship, error)
	ListFeedback(ctx context.Context, toUUID uuid.UUID) ([]types.Feedback, error)
}

// ExportIssues loads every issue plus its relationships and feedback and
// writes them to path per spec 4.D: "Export to JSONL: load all entities,
// assemble their tags/relationships/feedback, write atomically using
// 4.B." Tags are already part of types.Issue as loaded from the store.
func ExportIssues(ctx context.Context, st ExportStore, path string, includeArchived bool) (bool, error) {
	issues, err := st.ListIssues(ctx, types.IssueFilter{IncludeArchived: includeArchived})
	if err != nil {
		return false, fmt.Errorf("list issues for export: %w", err)
	}

	for _, issue := range issues {
		rels, err := st.RelationshipsFrom(ctx, issue.UUID)
		if err != nil {
			return false, fmt.Errorf("load relationships for %s: %w", issue.ID, err)
		}
		issue.Relationships = rels

		fb, err := st.ListFeedback(ctx, issue.UUID)
		if err != nil {
			return false, fmt.Errorf("load feedback for %s: %w", issue.ID, err)
		}
		issue.Feedback = fb
	}

	return writeFileWithRetry(path, issues)
}

// ExportSpecs is the Spec analogue of ExportIssues. Specs carry no
// feedback field in the entity model, so only relationships are loaded.
func ExportSpecs(ctx context.Context, st ExportStore, path string, includeArchived bool) (bool, error) {
	specs, err := st.ListSpecs(ctx, types.SpecFilter{IncludeArchived: includeArchived})
	if err != nil {
		return false, fmt.Errorf("list specs for export: %w", err)
	}

	for _, spec := range specs {
		rels, err := st.RelationshipsFrom(ctx, spec.UUID)
		if err != nil {
			return false, fmt.Errorf("load relationships for %s: %w", spec.ID, err)
		}
		spec.Relationships = rels
	}

	return writeFileWithRetry(path, specs)
}
