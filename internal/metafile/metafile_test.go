package metafile

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadReturnsEmptyMetaWhenFileMissing(t *testing.T) {
	m, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, m.CollisionLog)
	assert.NotNil(t, m.NextIDs)
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	u := uuid.New()
	m := Meta{
		NextIDs:    map[string]int{"iss": 42},
		IDPrefixes: []string{"iss", "spc"},
		CollisionLog: []CollisionEntry{
			{UUID: u, OldID: "iss-3", NewID: "iss-1003", At: time.Unix(100, 0).UTC()},
		},
	}
	require.NoError(t, Save(dir, m))

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 42, loaded.NextIDs["iss"])
	require.Len(t, loaded.CollisionLog, 1)
	assert.Equal(t, "iss-3", loaded.CollisionLog[0].OldID)
	assert.Equal(t, "iss-1003", loaded.CollisionLog[0].NewID)
	assert.Equal(t, u, loaded.CollisionLog[0].UUID)
}

func TestRecordCollisionsAppendsParsedEntries(t *testing.T) {
	dir := t.TempDir()
	u := uuid.New()
	collisions := []string{u.String() + ": iss-3 -> iss-1003"}

	require.NoError(t, RecordCollisions(dir, collisions, time.Unix(200, 0).UTC()))

	m, err := Load(dir)
	require.NoError(t, err)
	require.Len(t, m.CollisionLog, 1)
	assert.Equal(t, u, m.CollisionLog[0].UUID)
	assert.Equal(t, "iss-3", m.CollisionLog[0].OldID)
	assert.Equal(t, "iss-1003", m.CollisionLog[0].NewID)
}

func TestRecordCollisionsIgnoresMalformedLines(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, RecordCollisions(dir, []string{"not a collision line"}, time.Unix(0, 0)))

	m, err := Load(dir)
	require.NoError(t, err)
	assert.Empty(t, m.CollisionLog)
}

func TestRewriteMapResolvesRenumberChains(t *testing.T) {
	m := Meta{CollisionLog: []CollisionEntry{
		{OldID: "iss-3", NewID: "iss-1003"},
		{OldID: "iss-1003", NewID: "iss-1004"},
		{OldID: "iss-9", NewID: "iss-1009"},
	}}

	refs := RewriteMap(m)
	assert.Equal(t, "iss-1004", refs["iss-3"], "a twice-renumbered id resolves to its final id, not the intermediate one")
	assert.Equal(t, "iss-1004", refs["iss-1003"], "the intermediate id is itself stale and rewrites to the final id too")
	assert.Equal(t, "iss-1009", refs["iss-9"])
}
