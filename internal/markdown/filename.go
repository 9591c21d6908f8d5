package markdown

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

const maxSlugLen = 50

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify derives a filename-safe slug from a title: lowercased,
// non-alphanumeric runs collapsed to a single underscore, trimmed of
// leading/trailing underscores, and truncated to 50 characters. A title
// with no alphanumeric characters falls back to the lowercased id so the slug is never
// empty (spec 8 boundary case).
func Slugify(title, id string) string {
	slug := nonAlnum.ReplaceAllString(strings.ToLower(title), "_")
	slug = strings.Trim(slug, "_")
	if len(slug) > maxSlugLen {
		slug = strings.Trim(slug[:maxSlugLen], "_")
	}
	if slug == "" {
		return strings.ToLower(id)
	}
	return slug
}

// ResolveFilename picks the on-disk filename for an entity. It first
// searches dir for a file matching any legacy naming convention (id-only,
// slug-only, slug+id) and keeps it; only when none exists does it fall
// back to the bare "<slug>.md" form for a newly created entity.
func ResolveFilename(dir, slug, id string) (string, error) {
	candidates := []string{
		id + ".md",
		slug + ".md",
		slug + "_" + id + ".md",
	}
	for _, c := range candidates {
		if _, err := os.Stat(filepath.Join(dir, c)); err == nil {
			return c, nil
		}
	}

	// No existing file under any legacy convention: the bare slug name is
	// free by construction (we just confirmed slug.md doesn't exist), so a
	// brand-new entity always gets the short form.
	return slug + ".md", nil
}
