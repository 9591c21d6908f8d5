package sync

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/scdev/scd/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeIssuesJSONL(t *testing.T, path string, issues ...*types.Issue) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	enc := json.NewEncoder(f)
	for _, issue := range issues {
		require.NoError(t, enc.Encode(issue))
	}
}

func TestReconcileIssuesJSONLForcesUpdateOnHashChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "issues.jsonl")
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	u := uuid.New()

	issue := mkImportIssue("ISS-1", u, t0)
	issue.Title = "original title"
	writeIssuesJSONL(t, path, issue)

	st := newFakeIssueStore()
	st.byID["ISS-1"] = issue
	existing := []*types.Issue{issue}

	// An id absent from the cache is forced, so the seeding pass counts
	// the entity as updated even though its timestamp is unchanged.
	result, cache, err := ReconcileIssuesJSONL(context.Background(), st, existing, path, EntityHashCache{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, 0, result.Unchanged)
	assert.NotEmpty(t, cache[u])

	edited := mkImportIssue("ISS-1", u, t0)
	edited.Title = "edited by hand"
	writeIssuesJSONL(t, path, edited)

	result2, _, err := ReconcileIssuesJSONL(context.Background(), st, existing, path, cache)
	require.NoError(t, err)
	assert.Equal(t, 1, result2.Updated)
	assert.Equal(t, "edited by hand", st.byID["ISS-1"].Title)
}

func TestReconcileIssuesJSONLSkipsUnchangedHash(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "issues.jsonl")
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	u := uuid.New()

	issue := mkImportIssue("ISS-1", u, t0)
	writeIssuesJSONL(t, path, issue)

	st := newFakeIssueStore()
	st.byID["ISS-1"] = issue
	existing := []*types.Issue{issue}

	_, cache, err := ReconcileIssuesJSONL(context.Background(), st, existing, path, EntityHashCache{})
	require.NoError(t, err)

	result, _, err := ReconcileIssuesJSONL(context.Background(), st, existing, path, cache)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Updated)
	assert.Equal(t, 1, result.Unchanged)
}
