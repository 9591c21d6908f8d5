package markdown

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlugifyBasic(t *testing.T) {
	assert.Equal(t, "fix_the_login_bug", Slugify("Fix the Login Bug!", "ISSUE-001"))
	assert.Equal(t, "a_b_c", Slugify("  a --- b_c  ", "ISSUE-002"))
}

func TestSlugifyTruncatesToMaxLen(t *testing.T) {
	long := ""
	for i := 0; i < 80; i++ {
		long += "a"
	}
	slug := Slugify(long, "ISSUE-003")
	assert.LessOrEqual(t, len(slug), maxSlugLen)
}

func TestSlugifyFallsBackToIDWhenTitleHasNoAlnum(t *testing.T) {
	slug := Slugify("!!!###***", "ISSUE-004")
	assert.Equal(t, "issue-004", slug)
	assert.NotEmpty(t, slug)
}

func TestResolveFilenamePrefersExistingIDFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ISSUE-001.md"), []byte("x"), 0o600))

	name, err := ResolveFilename(dir, "fix_login", "ISSUE-001")
	require.NoError(t, err)
	assert.Equal(t, "ISSUE-001.md", name)
}

func TestResolveFilenamePrefersExistingSlugFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fix_login.md"), []byte("x"), 0o600))

	name, err := ResolveFilename(dir, "fix_login", "ISSUE-001")
	require.NoError(t, err)
	assert.Equal(t, "fix_login.md", name)
}

func TestResolveFilenamePrefersExistingSlugIDFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fix_login_ISSUE-001.md"), []byte("x"), 0o600))

	name, err := ResolveFilename(dir, "fix_login", "ISSUE-001")
	require.NoError(t, err)
	assert.Equal(t, "fix_login_ISSUE-001.md", name)
}

func TestResolveFilenameGeneratesBareSlugWhenNothingExists(t *testing.T) {
	dir := t.TempDir()

	name, err := ResolveFilename(dir, "fix_login", "ISSUE-001")
	require.NoError(t, err)
	assert.Equal(t, "fix_login.md", name)
}
