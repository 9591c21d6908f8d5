// Package metafile persists the bookkeeping spec 6 calls out as
// <baseDir>/meta.json: next-id counters, id prefixes in use, and the
// collision log left behind by internal/sync's collision resolver. It is
// the small sibling of internal/config's config.json — hand-rolled JSON
// rather than viper-bound, since nothing here is meant to be hand-edited.
package metafile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CollisionEntry records one id renumbering performed by sync.Resolver:
// the incoming entity with this uuid arrived carrying OldID, which was
// held by a different uuid, and was renumbered to NewID at At.
type CollisionEntry struct {
	UUID  uuid.UUID `json:"uuid"`
	OldID string    `json:"old_id"`
	NewID string    `json:"new_id"`
	At    time.Time `json:"at"`
}

// Meta is the full contents of meta.json.
type Meta struct {
	NextIDs      map[string]int   `json:"next_ids"`
	IDPrefixes   []string         `json:"id_prefixes"`
	CollisionLog []CollisionEntry `json:"collision_log"`
}

func empty() Meta {
	return Meta{NextIDs: map[string]int{}}
}

// Load reads <baseDir>/meta.json, returning an empty Meta if the file
// does not exist yet (a fresh project has never renumbered anything).
func Load(baseDir string) (Meta, error) {
	path := filepath.Join(baseDir, "meta.json")
	data, err := os.ReadFile(path) // #nosec G304 - path built from caller-supplied baseDir
	if err != nil {
		if os.IsNotExist(err) {
			return empty(), nil
		}
		return Meta{}, fmt.Errorf("metafile: read %s: %w", path, err)
	}

	m := empty()
	if err := json.Unmarshal(data, &m); err != nil {
		return Meta{}, fmt.Errorf("metafile: parse %s: %w", path, err)
	}
	if m.NextIDs == nil {
		m.NextIDs = map[string]int{}
	}
	return m, nil
}

// Save writes m to <baseDir>/meta.json, sorting the collision log by
// time so the file reads chronologically under version control.
func Save(baseDir string, m Meta) error {
	sort.SliceStable(m.CollisionLog, func(i, j int) bool {
		return m.CollisionLog[i].At.Before(m.CollisionLog[j].At)
	})

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("metafile: marshal: %w", err)
	}
	path := filepath.Join(baseDir, "meta.json")
	if err := os.WriteFile(path, data, 0o644); err != nil { // #nosec G306 - tracked alongside issues.jsonl/specs.jsonl
		return fmt.Errorf("metafile: write %s: %w", path, err)
	}
	return nil
}

// RecordCollisions parses sync.ImportResult.Collisions entries ("uuid:
// old_id -> new_id", the format ImportIssues/ImportSpecs append to) and
// appends one CollisionEntry per line to the on-disk log, loading and
// saving around the caller's batch of collisions in one round trip.
func RecordCollisions(baseDir string, collisions []string, now time.Time) error {
	if len(collisions) == 0 {
		return nil
	}

	m, err := Load(baseDir)
	if err != nil {
		return err
	}

	for _, c := range collisions {
		head, newID, ok := strings.Cut(c, " -> ")
		if !ok {
			continue
		}
		idStr, oldID, ok := strings.Cut(head, ": ")
		if !ok {
			continue
		}
		u, err := uuid.Parse(idStr)
		if err != nil {
			continue
		}
		m.CollisionLog = append(m.CollisionLog, CollisionEntry{
			UUID:  u,
			OldID: oldID,
			NewID: newID,
			At:    now,
		})
	}

	return Save(baseDir, m)
}

// RewriteMap resolves the collision log into a single old-id -> new-id
// map suitable for rewriting stale textual references, following chains
// where an id was renumbered more than once (bd-1 -> bd-1000 -> bd-1001)
// down to its final id.
func RewriteMap(m Meta) map[string]string {
	final := map[string]string{}
	for _, e := range m.CollisionLog {
		if e.OldID != "" {
			final[e.OldID] = e.NewID
		}
	}

	resolved := make(map[string]string, len(final))
	for old := range final {
		seen := map[string]bool{old: true}
		cur := old
		for {
			next, ok := final[cur]
			if !ok || seen[next] {
				break
			}
			cur = next
			seen[cur] = true
		}
		if cur != old {
			resolved[old] = cur
		}
	}
	return resolved
}
