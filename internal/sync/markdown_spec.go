package sync

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/scdev/scd/internal/markdown"
	"github.com/scdev/scd/internal/store"
	"github.com/scdev/scd/internal/types"
)

// SpecFileStore is the SyncSpecFile analogue of IssueFileStore.
type SpecFileStore interface {
	GetSpecByID(ctx context.Context, id string) (*types.Spec, error)
	UpdateSpec(ctx context.Context, id string, patch types.SpecPatch) (*types.Spec, error)
}

// SyncSpecFile is the Spec analogue of SyncIssueFile: specs carry no
// status field, so the comparison rule drops that one check.
func SyncSpecFile(ctx context.Context, st SpecFileStore, cache HashCache, path string, raw []byte, mtime time.Time) (MarkdownSyncResult, error) {
	doc, err := markdown.Parse(raw)
	if err != nil {
		if removeErr := os.Remove(path); removeErr != nil && !os.IsNotExist(removeErr) {
			return "", fmt.Errorf("remove orphaned markdown file %s: %w", path, removeErr)
		}
		return MarkdownSyncOrphaned, nil
	}

	spec, err := st.GetSpecByID(ctx, doc.Frontmatter.ID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return "", fmt.Errorf("look up spec %s: %w", doc.Frontmatter.ID, err)
		}
		if removeErr := os.Remove(path); removeErr != nil && !os.IsNotExist(removeErr) {
			return "", fmt.Errorf("remove orphaned markdown file %s: %w", path, removeErr)
		}
		return MarkdownSyncOrphaned, nil
	}

	if specMatchesDocument(spec, doc) {
		return MarkdownSyncNoop, nil
	}

	hash := contentHash(raw)
	if cached, ok := cache.Get(path); ok && cached == hash {
		return MarkdownSyncNoop, nil
	}

	if mtime.UTC().After(spec.UpdatedAt.UTC()) {
		if err := applyDocumentToSpec(ctx, st, spec, doc, mtime); err != nil {
			return "", err
		}
		cache.Set(path, hash)
		return MarkdownSyncWroteDB, nil
	}

	rendered, err := renderSpecDocument(spec, doc)
	if err != nil {
		return "", fmt.Errorf("render spec %s: %w", spec.ID, err)
	}
	if err := os.WriteFile(path, rendered, 0o644); err != nil { // #nosec G306 - markdown tree is user-editable
		return "", fmt.Errorf("write markdown file %s: %w", path, err)
	}
	if err := os.Chtimes(path, spec.UpdatedAt, spec.UpdatedAt); err != nil {
		return "", fmt.Errorf("set markdown mtime for %s: %w", path, err)
	}
	cache.Set(path, contentHash(rendered))
	return MarkdownSyncWroteFile, nil
}

func specMatchesDocument(spec *types.Spec, doc *markdown.Document) bool {
	if spec.Title != doc.Frontmatter.Title {
		return false
	}
	if strings.TrimSpace(spec.Content) != strings.TrimSpace(doc.Body) {
		return false
	}
	if doc.Frontmatter.Priority == nil || *doc.Frontmatter.Priority != spec.Priority {
		return false
	}
	return true
}

func applyDocumentToSpec(ctx context.Context, st SpecFileStore, spec *types.Spec, doc *markdown.Document, mtime time.Time) error {
	title := doc.Frontmatter.Title
	content := strings.TrimSpace(doc.Body)
	patch := types.SpecPatch{
		Title:     &title,
		Content:   &content,
		UpdatedAt: &mtime,
	}
	if doc.Frontmatter.Priority != nil {
		patch.Priority = doc.Frontmatter.Priority
	}
	_, err := st.UpdateSpec(ctx, spec.ID, patch)
	return err
}

func renderSpecDocument(spec *types.Spec, doc *markdown.Document) ([]byte, error) {
	priority := spec.Priority
	fm := markdown.Frontmatter{
		ID:       spec.ID,
		UUID:     spec.UUID.String(),
		Title:    spec.Title,
		Priority: &priority,
		Tags:     spec.Tags,
		Extra:    doc.Frontmatter.Extra,
	}
	return markdown.Render(&markdown.Document{Frontmatter: fm, Body: spec.Content})
}
