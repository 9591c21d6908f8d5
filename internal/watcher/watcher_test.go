package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/scdev/scd/internal/eventbus"
	"github.com/scdev/scd/internal/store"
	"github.com/scdev/scd/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore is a minimal in-memory stand-in for *store.Store, enough to
// satisfy watcher.Store for exercising the handler dispatch logic.
type fakeStore struct {
	issues        map[string]*types.Issue
	specs         map[string]*types.Spec
	relationships []types.Relationship
	feedback      map[uuid.UUID][]types.Feedback
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		issues:   map[string]*types.Issue{},
		specs:    map[string]*types.Spec{},
		feedback: map[uuid.UUID][]types.Feedback{},
	}
}

func (f *fakeStore) CreateIssue(ctx context.Context, issue *types.Issue) error {
	cp := *issue
	f.issues[issue.ID] = &cp
	return nil
}

func (f *fakeStore) UpdateIssue(ctx context.Context, id string, patch types.IssuePatch) (*types.Issue, error) {
	issue, ok := f.issues[id]
	if !ok {
		return nil, store.ErrNotFound
	}
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

func (f *fakeStore) GetIssueByID(ctx context.Context, id string) (*types.Issue, error) {
	issue, ok := f.issues[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return issue, nil
}

func (f *fakeStore) ListIssues(ctx context.Context, filter types.IssueFilter) ([]*types.Issue, error) {
	var out []*types.Issue
	for _, i := range f.issues {
		out = append(out, i)
	}
	return out, nil
}

func (f *fakeStore) CreateSpec(ctx context.Context, spec *types.Spec) error {
	cp := *spec
	f.specs[spec.ID] = &cp
	return nil
}

func (f *fakeStore) UpdateSpec(ctx context.Context, id string, patch types.SpecPatch) (*types.Spec, error) {
	spec, ok := f.specs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if patch.Title != nil {
		spec.Title = *patch.Title
	}
	if patch.Content != nil {
		spec.Content = *patch.Content
	}
	if patch.Priority != nil {
		spec.Priority = *patch.Priority
	}
	if patch.UpdatedAt != nil {
		spec.UpdatedAt = *patch.UpdatedAt
	}
	return spec, nil
}

func (f *fakeStore) GetSpecByID(ctx context.Context, id string) (*types.Spec, error) {
	spec, ok := f.specs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return spec, nil
}

func (f *fakeStore) ListSpecs(ctx context.Context, filter types.SpecFilter) ([]*types.Spec, error) {
	var out []*types.Spec
	for _, s := range f.specs {
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeStore) RelationshipsFrom(ctx context.Context, from uuid.UUID) ([]types.Relationship, error) {
	var out []types.Relationship
	for _, r := range f.relationships {
		if r.FromUUID == from {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) RemoveRelationship(ctx context.Context, rel types.Relationship) error {
	var kept []types.Relationship
	for _, r := range f.relationships {
		if r != rel {
			kept = append(kept, r)
		}
	}
	f.relationships = kept
	return nil
}

func (f *fakeStore) AddRelationship(ctx context.Context, rel types.Relationship) error {
	f.relationships = append(f.relationships, rel)
	return nil
}

func (f *fakeStore) DeleteFeedbackForEntity(ctx context.Context, toUUID uuid.UUID) error {
	delete(f.feedback, toUUID)
	return nil
}

func (f *fakeStore) AddFeedback(ctx context.Context, fb *types.Feedback) error {
	f.feedback[fb.ToUUID] = append(f.feedback[fb.ToUUID], *fb)
	return nil
}

func TestClaimPreventsReentrantHandling(t *testing.T) {
	w := &Watcher{inFlight: map[string]bool{}}
	assert.True(t, w.claim("/a/b.md"))
	assert.False(t, w.claim("/a/b.md"))
	w.release("/a/b.md")
	assert.True(t, w.claim("/a/b.md"))
}

func TestWaitForStableReturnsOnceSizeSettles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.md")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	start := time.Now()
	require.NoError(t, waitForStable(path))
	assert.GreaterOrEqual(t, time.Since(start), stableWindow)
}

func TestWaitForStablePropagatesNotExist(t *testing.T) {
	err := waitForStable(filepath.Join(t.TempDir(), "missing.md"))
	assert.True(t, os.IsNotExist(err))
}

func TestHandleIssueMarkdownPublishesEntitySyncEvent(t *testing.T) {
	dir := t.TempDir()
	u := uuid.New()
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	st := newFakeStore()
	st.issues["ISS-1"] = &types.Issue{
		ID: "ISS-1", UUID: u, Title: "Old", Status: types.StatusOpen,
		Priority: 1, Content: "old body", CreatedAt: t0, UpdatedAt: t0,
	}

	raw := "---\nid: ISS-1\nuuid: " + u.String() + "\ntitle: New title\nstatus: open\npriority: 1\n---\n\nnew body\n"
	path := filepath.Join(dir, "iss1.md")
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))
	require.NoError(t, os.Chtimes(path, t0.Add(time.Hour), t0.Add(time.Hour)))

	bus := eventbus.New()
	var captured []types.Event
	bus.Register(eventbus.NewHandlerFunc("test-recorder", 0, nil, func(ctx context.Context, e types.Event) error {
		captured = append(captured, e)
		return nil
	}))

	w := &Watcher{
		cfg:      Config{BaseDir: dir},
		store:    st,
		bus:      bus,
		mdCache:  NewHashCache(),
		inFlight: map[string]bool{},
		now:      time.Now,
	}

	w.handleIssueMarkdown(context.Background(), path)

	assert.Equal(t, "New title", st.issues["ISS-1"].Title)
	require.Len(t, captured, 1)
	assert.Equal(t, "entity_sync", captured[0].Action)
	assert.Equal(t, SourceMarkdown, captured[0].Source)
	assert.Equal(t, types.EntityTypeIssue, captured[0].EntityType)
}
