package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/scdev/scd/internal/types"
)

// SpecStore is the Spec analogue of IssueStore. Specs carry no feedback
// in the entity model, so the pipeline only reconciles relationships.
type SpecStore interface {
	CreateSpec(ctx context.Context, spec *types.Spec) error
	UpdateSpec(ctx context.Context, id string, patch types.SpecPatch) (*types.Spec, error)
	RelationshipsFrom(ctx context.Context, from uuid.UUID) ([]types.Relationship, error)
	RemoveRelationship(ctx context.Context, rel types.Relationship) error
	AddRelationship(ctx context.Context, rel types.Relationship) error
}

// ImportSpecs is the Spec analogue of ImportIssues.
func ImportSpecs(ctx context.Context, st SpecStore, existing, incoming []*types.Spec, force map[uuid.UUID]bool, now func() time.Time) (*ImportResult, error) {
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

	pendingParents := make(map[uuid.UUID]*uuid.UUID, len(diff.Added))
	for _, e := range diff.Added {
		parent := e.ParentUUID
		e.ParentUUID = nil
		if err := st.CreateSpec(ctx, e); err != nil {
			return result, fmt.Errorf("create spec %s: %w", e.ID, err)
		}
		result.Created++
		pendingParents[e.UUID] = parent
	}

	for _, e := range diff.Added {
		parent := pendingParents[e.UUID]
		if parent == nil {
			continue
		}
		patched := parent
		updatedAt := e.UpdatedAt
		if _, err := st.UpdateSpec(ctx, e.ID, types.SpecPatch{ParentUUID: &patched, UpdatedAt: &updatedAt}); err != nil {
			return result, fmt.Errorf("set parent for spec %s: %w", e.ID, err)
		}
	}

	for _, e := range diff.Updated {
		title, content, priority := e.Title, e.Content, e.Priority
		updatedAt := e.UpdatedAt
		patch := types.SpecPatch{
			Title:     &title,
			Content:   &content,
			Priority:  &priority,
			UpdatedAt: &updatedAt,
		}
		if e.ParentUUID != nil {
			p := e.ParentUUID
			patch.ParentUUID = &p
		}
		if _, err := st.UpdateSpec(ctx, e.ID, patch); err != nil {
			return result, fmt.Errorf("update spec %s: %w", e.ID, err)
		}
		result.Updated++

		if err := reconcileSpecRelationships(ctx, st, e, &result.Warnings); err != nil {
			return result, err
		}
	}

	result.Unchanged = len(diff.Unchanged)
	result.Deleted = len(diff.Deleted)

	for _, e := range diff.Added {
		if err := reconcileSpecRelationships(ctx, st, e, &result.Warnings); err != nil {
			return result, err
		}
	}

	return result, nil
}

func reconcileSpecRelationships(ctx context.Context, st SpecStore, e *types.Spec, warnings *[]ImportWarning) error {
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
