package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/scdev/scd/internal/markdown"
)

// writeEntityMarkdown creates the on-disk markdown file for a newly
// created spec or issue, per spec 6's layout
// (`<baseDir>/specs|issues/<slug>[_<id>].md`): it slugifies the title,
// resolves the filename (an existing <id>.md, <slug>.md or <slug>_<id>.md
// is reused and overwritten; which entity such a file belongs to is not
// checked), and writes the canonical frontmatter+body
// form. It returns the file's path relative to baseDir, the value
// CreateSpec/SetIssueFilePath persist as file_path.
func writeEntityMarkdown(subdir, id, uuid, title string, status string, priority int) (string, error) {
	dir := filepath.Join(current.cfg.BaseDir, subdir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}

	slug := markdown.Slugify(title, id)
	filename, err := markdown.ResolveFilename(dir, slug, id)
	if err != nil {
		return "", fmt.Errorf("resolve filename: %w", err)
	}

	p := priority
	doc := &markdown.Document{
		Frontmatter: markdown.Frontmatter{
			ID:       id,
			UUID:     uuid,
			Title:    title,
			Status:   status,
			Priority: &p,
		},
	}
	data, err := markdown.Render(doc)
	if err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}

	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, data, 0o644); err != nil { // #nosec G306 - markdown tree is user-editable
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return filepath.Join(subdir, filename), nil
}
