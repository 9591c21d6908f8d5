package sync

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/scdev/scd/internal/store"
	"github.com/scdev/scd/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMapCache map[string]string

func (c fakeMapCache) Get(path string) (string, bool) { v, ok := c[path]; return v, ok }
func (c fakeMapCache) Set(path, hash string)          { c[path] = hash }

type fakeIssueFileStore struct {
	byID map[string]*types.Issue
}

func (f *fakeIssueFileStore) GetIssueByID(ctx context.Context, id string) (*types.Issue, error) {
	issue, ok := f.byID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return issue, nil
}

func (f *fakeIssueFileStore) UpdateIssue(ctx context.Context, id string, patch types.IssuePatch) (*types.Issue, error) {
	issue := f.byID[id]
	if patch.Title != nil {
		issue.Title = *patch.Title
	}
	if patch.Content != nil {
		issue.Content = *patch.Content
	}
	if patch.Status != nil {
		issue.Status = *patch.Status
	}
	if patch.Priority != nil {
		issue.Priority = *patch.Priority
	}
	if patch.UpdatedAt != nil {
		issue.UpdatedAt = *patch.UpdatedAt
	}
	return issue, nil
}

func writeRaw(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestSyncIssueFileDeletesOrphanWithoutFrontmatter(t *testing.T) {
	dir := t.TempDir()
	path := writeRaw(t, dir, "orphan.md", "no frontmatter here")

	st := &fakeIssueFileStore{byID: map[string]*types.Issue{}}
	cache := fakeMapCache{}

	result, err := SyncIssueFile(context.Background(), st, cache, path, []byte("no frontmatter here"), time.Now())
	require.NoError(t, err)
	assert.Equal(t, MarkdownSyncOrphaned, result)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestSyncIssueFileDeletesOrphanWithUnknownID(t *testing.T) {
	dir := t.TempDir()
	raw := "---\nid: ISS-9\nuuid: 00000000-0000-0000-0000-000000000000\ntitle: Ghost\n---\n\nbody\n"
	path := writeRaw(t, dir, "ghost.md", raw)

	st := &fakeIssueFileStore{byID: map[string]*types.Issue{}}
	cache := fakeMapCache{}

	result, err := SyncIssueFile(context.Background(), st, cache, path, []byte(raw), time.Now())
	require.NoError(t, err)
	assert.Equal(t, MarkdownSyncOrphaned, result)
}

func TestSyncIssueFileNoopWhenContentMatches(t *testing.T) {
	dir := t.TempDir()
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	priority := 2
	raw := "---\nid: ISS-1\nuuid: 00000000-0000-0000-0000-000000000000\ntitle: Fix bug\nstatus: open\npriority: 2\n---\n\nBody text\n"
	path := writeRaw(t, dir, "iss1.md", raw)

	st := &fakeIssueFileStore{byID: map[string]*types.Issue{
		"ISS-1": {ID: "ISS-1", Title: "Fix bug", Status: types.StatusOpen, Priority: priority, Content: "Body text", UpdatedAt: t0},
	}}
	cache := fakeMapCache{}

	result, err := SyncIssueFile(context.Background(), st, cache, path, []byte(raw), t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, MarkdownSyncNoop, result)
}

func TestSyncIssueFileNewerFileUpdatesStore(t *testing.T) {
	dir := t.TempDir()
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mtime := t0.Add(time.Hour)
	priority := 2
	raw := "---\nid: ISS-1\nuuid: 00000000-0000-0000-0000-000000000000\ntitle: Fix bug v2\nstatus: open\npriority: 2\n---\n\nUpdated body\n"
	path := writeRaw(t, dir, "iss1.md", raw)

	st := &fakeIssueFileStore{byID: map[string]*types.Issue{
		"ISS-1": {ID: "ISS-1", Title: "Fix bug", Status: types.StatusOpen, Priority: priority, Content: "Old body", UpdatedAt: t0},
	}}
	cache := fakeMapCache{}

	result, err := SyncIssueFile(context.Background(), st, cache, path, []byte(raw), mtime)
	require.NoError(t, err)
	assert.Equal(t, MarkdownSyncWroteDB, result)
	assert.Equal(t, "Fix bug v2", st.byID["ISS-1"].Title)
	assert.Equal(t, "Updated body", st.byID["ISS-1"].Content)
	assert.True(t, st.byID["ISS-1"].UpdatedAt.Equal(mtime))
}

func TestSyncIssueFileNewerStoreWritesFile(t *testing.T) {
	dir := t.TempDir()
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	staleMtime := t0.Add(-time.Hour)
	priority := 1
	raw := "---\nid: ISS-1\nuuid: 00000000-0000-0000-0000-000000000000\ntitle: Old title\nstatus: open\npriority: 1\n---\n\nOld body\n"
	path := writeRaw(t, dir, "iss1.md", raw)

	st := &fakeIssueFileStore{byID: map[string]*types.Issue{
		"ISS-1": {ID: "ISS-1", UUID: [16]byte{}, Title: "New title", Status: types.StatusOpen, Priority: priority, Content: "New body", UpdatedAt: t0},
	}}
	cache := fakeMapCache{}

	result, err := SyncIssueFile(context.Background(), st, cache, path, []byte(raw), staleMtime)
	require.NoError(t, err)
	assert.Equal(t, MarkdownSyncWroteFile, result)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "New title")
	assert.Contains(t, string(data), "New body")
}
