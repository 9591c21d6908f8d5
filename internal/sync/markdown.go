package sync

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/scdev/scd/internal/markdown"
	"github.com/scdev/scd/internal/store"
	"github.com/scdev/scd/internal/types"
)

// HashCache records the last-seen content hash for a path, gating out
// writes that did not actually change content (spec 4.D's "oscillation
// guard"). Keyed by absolute path; internal/watcher owns the concrete
// instance and its lifetime.
type HashCache interface {
	Get(path string) (hash string, ok bool)
	Set(path, hash string)
}

// IssueFileStore is the subset of *store.Store a single markdown file
// sync needs for issues.
type IssueFileStore interface {
	GetIssueByID(ctx context.Context, id string) (*types.Issue, error)
	UpdateIssue(ctx context.Context, id string, patch types.IssuePatch) (*types.Issue, error)
}

// MarkdownSyncResult reports what a single-file reconciliation did.
type MarkdownSyncResult string

const (
	MarkdownSyncNoop      MarkdownSyncResult = "noop"
	MarkdownSyncOrphaned  MarkdownSyncResult = "orphaned"
	MarkdownSyncWroteFile MarkdownSyncResult = "db_to_md"
	MarkdownSyncWroteDB   MarkdownSyncResult = "md_to_db"
)

// SyncIssueFile reconciles one markdown file against the store, per spec
// 4.D. path must be the absolute path to the file; its content has
// already been read by the caller (the watcher owns file I/O so it can
// apply its stable-write gate first).
func SyncIssueFile(ctx context.Context, st IssueFileStore, cache HashCache, path string, raw []byte, mtime time.Time) (MarkdownSyncResult, error) {
	doc, err := markdown.Parse(raw)
	if err != nil {
		if removeErr := os.Remove(path); removeErr != nil && !os.IsNotExist(removeErr) {
			return "", fmt.Errorf("remove orphaned markdown file %s: %w", path, removeErr)
		}
		return MarkdownSyncOrphaned, nil
	}

	issue, err := st.GetIssueByID(ctx, doc.Frontmatter.ID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return "", fmt.Errorf("look up issue %s: %w", doc.Frontmatter.ID, err)
		}
		if removeErr := os.Remove(path); removeErr != nil && !os.IsNotExist(removeErr) {
			return "", fmt.Errorf("remove orphaned markdown file %s: %w", path, removeErr)
		}
		return MarkdownSyncOrphaned, nil
	}

	if issueMatchesDocument(issue, doc) {
		return MarkdownSyncNoop, nil
	}

	hash := contentHash(raw)
	if cached, ok := cache.Get(path); ok && cached == hash {
		return MarkdownSyncNoop, nil
	}

	if mtime.UTC().After(issue.UpdatedAt.UTC()) {
		if err := applyDocumentToIssue(ctx, st, issue, doc, mtime); err != nil {
			return "", err
		}
		cache.Set(path, hash)
		return MarkdownSyncWroteDB, nil
	}

	rendered, err := renderIssueDocument(issue, doc)
	if err != nil {
		return "", fmt.Errorf("render issue %s: %w", issue.ID, err)
	}
	if err := os.WriteFile(path, rendered, 0o644); err != nil { // #nosec G306 - markdown tree is user-editable
		return "", fmt.Errorf("write markdown file %s: %w", path, err)
	}
	if err := os.Chtimes(path, issue.UpdatedAt, issue.UpdatedAt); err != nil {
		return "", fmt.Errorf("set markdown mtime for %s: %w", path, err)
	}
	cache.Set(path, contentHash(rendered))
	return MarkdownSyncWroteFile, nil
}

// issueMatchesDocument implements spec 4.D's comparison rule: title,
// trimmed body, status, and priority must all agree for the file and
// the store entity to be considered in sync.
func issueMatchesDocument(issue *types.Issue, doc *markdown.Document) bool {
	if issue.Title != doc.Frontmatter.Title {
		return false
	}
	if strings.TrimSpace(issue.Content) != strings.TrimSpace(doc.Body) {
		return false
	}
	if string(issue.Status) != doc.Frontmatter.Status {
		return false
	}
	if doc.Frontmatter.Priority == nil || *doc.Frontmatter.Priority != issue.Priority {
		return false
	}
	return true
}

func applyDocumentToIssue(ctx context.Context, st IssueFileStore, issue *types.Issue, doc *markdown.Document, mtime time.Time) error {
	title := doc.Frontmatter.Title
	content := strings.TrimSpace(doc.Body)
	status := types.IssueStatus(doc.Frontmatter.Status)
	if status == "" {
		status = issue.Status
	}
	patch := types.IssuePatch{
		Title:     &title,
		Content:   &content,
		Status:    &status,
		UpdatedAt: &mtime,
	}
	if doc.Frontmatter.Priority != nil {
		patch.Priority = doc.Frontmatter.Priority
	}
	_, err := st.UpdateIssue(ctx, issue.ID, patch)
	return err
}

func renderIssueDocument(issue *types.Issue, doc *markdown.Document) ([]byte, error) {
	priority := issue.Priority
	fm := markdown.Frontmatter{
		ID:       issue.ID,
		UUID:     issue.UUID.String(),
		Title:    issue.Title,
		Status:   string(issue.Status),
		Priority: &priority,
		Tags:     issue.Tags,
		Extra:    doc.Frontmatter.Extra,
	}
	return markdown.Render(&markdown.Document{Frontmatter: fm, Body: issue.Content})
}

// contentHash is the cheap per-write hash used by the oscillation guard.
// Unlike internal/hash's canonical entity hash (order-invariant JSON over
// structured fields), this hashes the literal file bytes, since the
// cache's job is purely "did this file's bytes change since we last
// touched it", not "is this semantically the same entity".
func contentHash(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
