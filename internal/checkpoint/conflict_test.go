package checkpoint

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/scdev/scd/internal/worktree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initConflictTestRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	run := func(args ...string) string {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		out, err := cmd.CombinedOutput()
		require.NoErrorf(t, err, "git %v: %s", args, out)
		return string(out)
	}
	run("init", "-b", "main")
	run("config", "user.email", "test@example.com")
	run("config", "user.name", "Test")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "issues.jsonl"),
		[]byte(`{"id":"a","title":"Alpha","updated_at":"2026-01-01T00:00:00Z"}`+"\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("hello"), 0o644))
	run("add", ".")
	run("commit", "-m", "initial commit")
	return dir
}

func TestDetectConflictsCleanMergeReturnsNoConflicts(t *testing.T) {
	dir := initConflictTestRepo(t)
	gitRun := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		out, err := cmd.CombinedOutput()
		require.NoErrorf(t, err, "git %v: %s", args, out)
	}
	gitRun("checkout", "-b", "feature")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.md"), []byte("new file"), 0o644))
	gitRun("add", ".")
	gitRun("commit", "-m", "unrelated change")
	gitRun("checkout", "main")

	m := worktree.New(dir)
	treeOID, conflicts, err := DetectConflicts(context.Background(), m, "feature", "main")
	require.NoError(t, err)
	assert.Empty(t, conflicts)
	assert.NotEmpty(t, treeOID)
}

func TestDetectConflictsClassifiesJSONLAutoVsCode(t *testing.T) {
	dir := initConflictTestRepo(t)
	gitRun := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		out, err := cmd.CombinedOutput()
		require.NoErrorf(t, err, "git %v: %s", args, out)
	}

	gitRun("checkout", "-b", "feature")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "issues.jsonl"),
		[]byte(`{"id":"a","title":"Alpha from feature","updated_at":"2026-02-01T00:00:00Z"}`+"\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("from feature"), 0o644))
	gitRun("add", ".")
	gitRun("commit", "-m", "feature edits")

	gitRun("checkout", "main")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "issues.jsonl"),
		[]byte(`{"id":"a","title":"Alpha from main","updated_at":"2026-01-15T00:00:00Z"}`+"\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("from main"), 0o644))
	gitRun("add", ".")
	gitRun("commit", "-m", "main edits")

	m := worktree.New(dir)
	_, conflicts, err := DetectConflicts(context.Background(), m, "feature", "main")
	require.NoError(t, err)
	require.Len(t, conflicts, 2)

	byPath := map[string]ConflictedFile{}
	for _, c := range conflicts {
		byPath[c.Path] = c
	}
	require.Contains(t, byPath, "issues.jsonl")
	require.Contains(t, byPath, "README.md")
	assert.Equal(t, ConflictKindJSONLAuto, byPath["issues.jsonl"].Kind)
	assert.Equal(t, ConflictKindCode, byPath["README.md"].Kind)

	jsonlConflict := byPath["issues.jsonl"]
	require.Contains(t, jsonlConflict.stages, 2)
	require.Contains(t, jsonlConflict.stages, 3)

	merged, err := ResolveJSONLConflict(context.Background(), m, jsonlConflict)
	require.NoError(t, err)
	assert.Contains(t, string(merged), "Alpha from feature", "later updated_at should win regardless of side")
}

func TestClassifyConflict(t *testing.T) {
	assert.Equal(t, ConflictKindJSONLAuto, classifyConflict("issues.jsonl"))
	assert.Equal(t, ConflictKindJSONLAuto, classifyConflict("specs.jsonl"))
	assert.Equal(t, ConflictKindCode, classifyConflict("README.md"))
	assert.Equal(t, ConflictKindCode, classifyConflict("internal/foo/bar.go"))
}

func TestHasUnresolvedConflicts(t *testing.T) {
	assert.False(t, HasUnresolvedConflicts(nil))
	assert.False(t, HasUnresolvedConflicts([]ConflictedFile{{Path: "issues.jsonl", Kind: ConflictKindJSONLAuto}}))
	assert.True(t, HasUnresolvedConflicts([]ConflictedFile{
		{Path: "issues.jsonl", Kind: ConflictKindJSONLAuto},
		{Path: "README.md", Kind: ConflictKindCode},
	}))
}

func TestParseMergeTreeConflictsGroupsStagesByPath(t *testing.T) {
	out := "deadbeefdeadbeefdeadbeefdeadbeefdeadbeef\x00" +
		"100644 aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa 1\tfile.txt\n" +
		"100644 bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb 2\tfile.txt\n" +
		"100644 cccccccccccccccccccccccccccccccccccccccc 3\tfile.txt\x00" +
		"info: merge conflict in file.txt"

	treeOID, conflicts := parseMergeTreeConflicts(out)
	assert.Equal(t, "deadbeefdeadbeefdeadbeefdeadbeefdeadbeef", treeOID)
	require.Len(t, conflicts, 1)
	assert.Equal(t, "file.txt", conflicts[0].Path)
	assert.Len(t, conflicts[0].stages, 3)
	assert.Equal(t, "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb", conflicts[0].stages[2].Object)
}
