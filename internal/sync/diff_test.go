package sync

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/scdev/scd/internal/types"
	"github.com/stretchr/testify/assert"
)

func mkDiffIssue(u uuid.UUID, updated time.Time) *types.Issue {
	return &types.Issue{UUID: u, UpdatedAt: updated}
}

func TestComputeDiffClassifiesAddedDeletedUpdatedUnchanged(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)

	unchanged := uuid.New()
	updated := uuid.New()
	deleted := uuid.New()
	added := uuid.New()

	a := []*types.Issue{
		mkDiffIssue(unchanged, t0),
		mkDiffIssue(updated, t0),
		mkDiffIssue(deleted, t0),
	}
	b := []*types.Issue{
		mkDiffIssue(unchanged, t0),
		mkDiffIssue(updated, t1),
		mkDiffIssue(added, t0),
	}

	diff := ComputeDiff(a, b, nil)

	require := func(list []*types.Issue, want uuid.UUID) bool {
		for _, e := range list {
			if e.UUID == want {
				return true
			}
		}
		return false
	}

	assert.True(t, require(diff.Added, added))
	assert.True(t, require(diff.Deleted, deleted))
	assert.True(t, require(diff.Updated, updated))
	assert.True(t, require(diff.Unchanged, unchanged))
	assert.Len(t, diff.Added, 1)
	assert.Len(t, diff.Deleted, 1)
	assert.Len(t, diff.Updated, 1)
	assert.Len(t, diff.Unchanged, 1)
}

func TestComputeDiffForceUpdateOverridesUnchangedTimestamp(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	id := uuid.New()
	a := []*types.Issue{mkDiffIssue(id, t0)}
	b := []*types.Issue{mkDiffIssue(id, t0)}

	diff := ComputeDiff(a, b, map[uuid.UUID]bool{id: true})
	assert.Len(t, diff.Updated, 1)
	assert.Empty(t, diff.Unchanged)
}
