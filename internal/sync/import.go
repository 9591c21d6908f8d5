package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/scdev/scd/internal/types"
)

// IssueStore is the subset of *store.Store the import pipeline needs for
// issues. Declared locally (rather than imported from internal/store) so
// this package stays free to be driven by a fake in tests.
type IssueStore interface {
	CreateIssue(ctx context.Context, issue *types.Issue) error
	UpdateIssue(ctx context.Context, id string, patch types.IssuePatch) (*types.Issue, error)
	RelationshipsFrom(ctx context.Context, from uuid.UUID) ([]types.Relationship, error)
	RemoveRelationship(ctx context.Context, rel types.Relationship) error
	AddRelationship(ctx context.Context, rel types.Relationship) error
	DeleteFeedbackForEntity(ctx context.Context, toUUID uuid.UUID) error
	AddFeedback(ctx context.Context, fb *types.Feedback) error
}

// ImportWarning is a recoverable problem surfaced during import — a
// relationship the store refuses to add, for instance — that does
// not abort the import (spec 4.D: "produces a warning, not a failure").
type ImportWarning struct {
	EntityID string
	Message string
}

func (w ImportWarning) String() string { return fmt.Sprintf("%s: %s", w.EntityID, w.Message) }

// ImportResult summarizes one JSONL import pass.
type ImportResult struct {
	Created    int
	Updated    int
	Unchanged  int
	Deleted    int
	Collisions []string
	Warnings   []ImportWarning
}

// ImportIssues runs the two-pass JSONL import described in spec 4.D:
// resolve id collisions against current store state, detect changes,
// then create/update in an order that lets forward parent references
// resolve on the second pass. existing is the current store contents for
// this entity type (used both for collision detection and as the "A"
// side of the change-detection diff); incoming is mutated in place by
// the collision resolver.
func ImportIssues(ctx context.Context, st IssueStore, existing, incoming []*types.Issue, force map[uuid.UUID]bool, now func() time.Time) (*ImportResult, error) {
	result := &ImportResult{}

	idOwner := make(map[string]uuid.UUID, len(existing))
	for _, e := range existing {
		idOwner[e.ID] = e.UUID
	}

	resolver := NewResolver(func(id string) (uuid.UUID, bool) {
		owner, used := idOwner[id]
		return owner, used
	}, now)

	ordered := make([]Ordered, len(incoming))
	originalID := make(map[uuid.UUID]string, len(incoming))
	for i, e := range incoming {
		ordered[i] = e
		originalID[e.GetUUID()] = e.GetID()
	}
	resolver.ResolveBatch(ordered)
	for u, newID := range resolver.memo {
		result.Collisions = append(result.Collisions, fmt.Sprintf("%s: %s -> %s", u, originalID[u], newID))
	}

	diff := ComputeDiff(existing, incoming, force)

	// Pass 1: create added entities without parent_uuid, remembering it
	// for a second pass so a child doesn't reference a parent that
	// hasn't been created yet within this same batch.
	pendingParents := make(map[uuid.UUID]*uuid.UUID, len(diff.Added))
	for _, e := range diff.Added {
		parent := e.ParentUUID
		e.ParentUUID = nil
		if err := st.CreateIssue(ctx, e); err != nil {
			return result, fmt.Errorf("create issue %s: %w", e.ID, err)
		}
		result.Created++
		pendingParents[e.UUID] = parent
	}

	// Pass 2: set parent_uuid now that every added entity exists,
	// preserving updated_at (the patch's explicit UpdatedAt override pins
	// it back to the incoming value rather than letting the store bump it
	// to the moment of this structural fixup).
	for _, e := range diff.Added {
		parent := pendingParents[e.UUID]
		if parent == nil {
			continue
		}
		patched := parent
		updatedAt := e.UpdatedAt
		if _, err := st.UpdateIssue(ctx, e.ID, types.IssuePatch{ParentUUID: &patched, UpdatedAt: &updatedAt}); err != nil {
			return result, fmt.Errorf("set parent for issue %s: %w", e.ID, err)
		}
	}

	for _, e := range diff.Updated {
		title, content, priority := e.Title, e.Content, e.Priority
		status := e.Status
		updatedAt := e.UpdatedAt
		patch := types.IssuePatch{
			Title:     &title,
			Status:    &status,
			Content:   &content,
			Priority:  &priority,
			UpdatedAt: &updatedAt,
		}
		if e.ParentUUID != nil {
			p := e.ParentUUID
			patch.ParentUUID = &p
		}
		if _, err := st.UpdateIssue(ctx, e.ID, patch); err != nil {
			return result, fmt.Errorf("update issue %s: %w", e.ID, err)
		}
		result.Updated++

		if err := reconcileOutgoingRelationships(ctx, st, e, &result.Warnings); err != nil {
			return result, err
		}
		if err := reconcileFeedback(ctx, st, e); err != nil {
			return result, err
		}
	}

	result.Unchanged = len(diff.Unchanged)
	result.Deleted = len(diff.Deleted)

	// Added entities also get their outgoing relationships and feedback
	// applied now that every entity in the batch exists.
	for _, e := range diff.Added {
		if err := reconcileOutgoingRelationships(ctx, st, e, &result.Warnings); err != nil {
			return result, err
		}
		if err := reconcileFeedback(ctx, st, e); err != nil {
			return result, err
		}
	}

	return result, nil
}

// reconcileOutgoingRelationships removes every edge e currently owns as
// a source and re-adds the incoming set, leaving inbound edges (owned by
// other entities pointing at e) untouched. A relationship AddRelationship
// rejects is recorded as a warning rather than aborting. Whether the
// target endpoint exists is not checked, so an edge to a missing entity
// is added like any other.
func reconcileOutgoingRelationships(ctx context.Context, st IssueStore, e *types.Issue, warnings *[]ImportWarning) error {
	existingOut, err := st.RelationshipsFrom(ctx, e.UUID)
	if err != nil {
		return fmt.Errorf("list relationships for %s: %w", e.ID, err)
	}
	for _, rel := range existingOut {
		if err := st.RemoveRelationship(ctx, rel); err != nil {
			return fmt.Errorf("remove relationship for %s: %w", e.ID, err)
		}
	}
	for _, rel := range e.Relationships {
		rel.FromUUID = e.UUID
		if err := st.AddRelationship(ctx, rel); err != nil {
			*warnings = append(*warnings, ImportWarning{
				EntityID: e.ID,
				Message: fmt.Sprintf("relationship to %s skipped: %v", rel.ToUUID, err),
			})
		}
	}
	return nil
}

// reconcileFeedback deletes every feedback item attached to e and
// recreates it from the incoming list, per spec 4.D.
func reconcileFeedback(ctx context.Context, st IssueStore, e *types.Issue) error {
	if err := st.DeleteFeedbackForEntity(ctx, e.UUID); err != nil {
		return fmt.Errorf("clear feedback for %s: %w", e.ID, err)
	}
	for i := range e.Feedback {
		fb := e.Feedback[i]
		fb.ToUUID = e.UUID
		if err := st.AddFeedback(ctx, &fb); err != nil {
			return fmt.Errorf("add feedback for %s: %w", e.ID, err)
		}
	}
	return nil
}
