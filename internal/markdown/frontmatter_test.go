package markdown

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBasic(t *testing.T) {
	raw := []byte(`---
id: ISSUE-001
uuid: 11111111-1111-1111-1111-111111111111
title: Fix the thing
status: open
priority: 2
tags:
  - bug
  - urgent
---

Body text here.
`)

	doc, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "ISSUE-001", doc.Frontmatter.ID)
	assert.Equal(t, "Fix the thing", doc.Frontmatter.Title)
	assert.Equal(t, "open", doc.Frontmatter.Status)
	require.NotNil(t, doc.Frontmatter.Priority)
	assert.Equal(t, 2, *doc.Frontmatter.Priority)
	assert.Equal(t, []string{"bug", "urgent"}, doc.Frontmatter.Tags)
	assert.Equal(t, "Body text here.\n", doc.Body)
}

func TestParseMissingDelimiters(t *testing.T) {
	_, err := Parse([]byte("no frontmatter here"))
	assert.Error(t, err)

	_, err = Parse([]byte("---\nid: x\ntitle: y\n"))
	assert.Error(t, err)
}

func TestParseMissingRequiredFields(t *testing.T) {
	_, err := Parse([]byte("---\nuuid: x\n---\nbody\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("---\nid: ISSUE-001\n---\nbody\n"))
	assert.Error(t, err)
}

func TestParseUnknownKeysRoundTripViaExtra(t *testing.T) {
	raw := []byte(`---
id: ISSUE-001
title: Something
assignee: alice
---

body
`)
	doc, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "alice", doc.Frontmatter.Extra["assignee"])

	rendered, err := Render(doc)
	require.NoError(t, err)
	assert.Contains(t, string(rendered), "assignee: alice")
}

func TestRenderRoundTrip(t *testing.T) {
	priority := 3
	doc := &Document{
		Frontmatter: Frontmatter{
			ID:       "ISSUE-042",
			UUID:     "22222222-2222-2222-2222-222222222222",
			Title:    "Round trip me",
			Status:   "in_progress",
			Priority: &priority,
			Tags:     []string{"a", "b"},
		},
		Body: "Some content.\n",
	}

	rendered, err := Render(doc)
	require.NoError(t, err)

	reparsed, err := Parse(rendered)
	require.NoError(t, err)

	assert.Equal(t, doc.Frontmatter.ID, reparsed.Frontmatter.ID)
	assert.Equal(t, doc.Frontmatter.UUID, reparsed.Frontmatter.UUID)
	assert.Equal(t, doc.Frontmatter.Title, reparsed.Frontmatter.Title)
	assert.Equal(t, doc.Frontmatter.Status, reparsed.Frontmatter.Status)
	assert.Equal(t, *doc.Frontmatter.Priority, *reparsed.Frontmatter.Priority)
	assert.Equal(t, doc.Frontmatter.Tags, reparsed.Frontmatter.Tags)
	assert.Equal(t, doc.Body, reparsed.Body)
}

func TestRenderIsTextuallyStableAcrossRepeatedWrites(t *testing.T) {
	doc := &Document{
		Frontmatter: Frontmatter{
			ID:    "ISSUE-001",
			UUID:  "33333333-3333-3333-3333-333333333333",
			Title: "Stable output",
		},
		Body: "content\n",
	}

	first, err := Render(doc)
	require.NoError(t, err)
	second, err := Render(doc)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRenderKeyOrderIsCanonical(t *testing.T) {
	doc := &Document{
		Frontmatter: Frontmatter{
			ID:    "ISSUE-001",
			UUID:  "44444444-4444-4444-4444-444444444444",
			Title: "Ordered",
			Tags:  []string{"x"},
			Extra: map[string]interface{}{"zeta": "last", "alpha": "first"},
		},
	}

	rendered, err := Render(doc)
	require.NoError(t, err)
	text := string(rendered)

	idIdx := indexOf(text, "id:")
	uuidIdx := indexOf(text, "uuid:")
	titleIdx := indexOf(text, "title:")
	tagsIdx := indexOf(text, "tags:")
	alphaIdx := indexOf(text, "alpha:")
	zetaIdx := indexOf(text, "zeta:")

	assert.True(t, idIdx < uuidIdx)
	assert.True(t, uuidIdx < titleIdx)
	assert.True(t, titleIdx < tagsIdx)
	assert.True(t, tagsIdx < alphaIdx)
	assert.True(t, alphaIdx < zetaIdx)
}

func TestRenderOmitsEmptyOptionalFields(t *testing.T) {
	doc := &Document{
		Frontmatter: Frontmatter{
			ID:    "ISSUE-001",
			UUID:  "55555555-5555-5555-5555-555555555555",
			Title: "No extras",
		},
	}

	rendered, err := Render(doc)
	require.NoError(t, err)
	text := string(rendered)
	assert.NotContains(t, text, "status:")
	assert.NotContains(t, text, "priority:")
	assert.NotContains(t, text, "tags:")
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
