package jsonl

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/scdev/scd/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkIssue(id string, created time.Time) *types.Issue {
	return &types.Issue{
		ID:        id,
		UUID:      uuid.New(),
		Title:     "issue " + id,
		Status:    types.StatusOpen,
		Priority:  2,
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func TestWriteFileOrdersByCreatedThenID(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "issues.jsonl")

	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	issues := []*types.Issue{
		mkIssue("ISSUE-002", t0),
		mkIssue("ISSUE-001", t0), // same millisecond as ISSUE-002: tiebreak by id
		mkIssue("ISSUE-003", t0.Add(time.Hour)),
	}

	wrote, err := WriteFile(path, issues)
	require.NoError(t, err)
	assert.True(t, wrote)

	got, errs, err := ReadFile[types.Issue](path, ReadOptions{})
	require.NoError(t, err)
	assert.Empty(t, errs)
	require.Len(t, got, 3)
	assert.Equal(t, "ISSUE-001", got[0].ID)
	assert.Equal(t, "ISSUE-002", got[1].ID)
	assert.Equal(t, "ISSUE-003", got[2].ID)
}

func TestWriteFileIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "issues.jsonl")

	issues := []*types.Issue{mkIssue("ISSUE-001", time.Now())}

	wrote, err := WriteFile(path, issues)
	require.NoError(t, err)
	assert.True(t, wrote)

	info1, err := os.Stat(path)
	require.NoError(t, err)

	wrote, err = WriteFile(path, issues)
	require.NoError(t, err)
	assert.False(t, wrote, "second identical write must be a no-op")

	info2, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, info1.ModTime(), info2.ModTime())
}

func TestWriteFileForcesMtimeToMaxUpdatedAt(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "issues.jsonl")

	older := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	issues := []*types.Issue{mkIssue("ISSUE-001", older), mkIssue("ISSUE-002", newer)}

	_, err := WriteFile(path, issues)
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.WithinDuration(t, newer, info.ModTime().UTC(), time.Second)
}

func TestReadFileLenientSkipsMalformedLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "issues.jsonl")

	content := `{"id":"ISSUE-001","title":"ok","status":"open","priority":1}
not valid json
{"id":"ISSUE-002","title":"also ok","status":"open","priority":1}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	got, errs, err := ReadFile[types.Issue](path, ReadOptions{Lenient: true})
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, 2, errs[0].Line)
	assert.Len(t, got, 2)
}

func TestReadFileStrictAbortsOnMalformedLine(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "issues.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("not json\n"), 0o600))

	_, _, err := ReadFile[types.Issue](path, ReadOptions{})
	assert.Error(t, err)
}

func TestLargeLineRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "issues.jsonl")

	big := make([]byte, 1500*1024)
	for i := range big {
		big[i] = 'x'
	}
	issue := mkIssue("ISSUE-BIG", time.Now())
	issue.Content = string(big)

	_, err := WriteFile(path, []*types.Issue{issue})
	require.NoError(t, err)

	got, _, err := ReadFile[types.Issue](path, ReadOptions{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, issue.Content, got[0].Content)
}
