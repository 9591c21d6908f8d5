package jsonl

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Timestamped is implemented by any entity that exposes the two fields
// the writer needs to order lines and to pick the mtime to force.
type Timestamped interface {
	SortKey() (createdAt time.Time, id string)
	UpdatedAtUTC() time.Time
}

// WriteFile serializes entities to path: one JSON object per line, sorted
// by (created_at asc, id asc), atomically replacing the previous file via
// a .tmp sibling + rename. If the freshly rendered content is byte
// identical to what's already on disk, the write (and the mtime bump) is
// skipped entirely — this is the idempotence property spec 8 requires.
//
// After an actual write, the file's mtime is forced to the
// maximum UpdatedAtUTC() among entities, so JSONL mtime always reflects
// entity content rather than wall-clock write time.
func WriteFile[T Timestamped](path string, entities []T) (wrote bool, err error) {
	sorted := make([]T, len(entities))
	copy(sorted, entities)
	sortByCreatedThenID(sorted)

	var buf bytes.Buffer
	for _, e := range sorted {
		line, err := json.Marshal(e)
		if err != nil {
			return false, fmt.Errorf("marshal entity: %w", err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}

	existing, readErr := os.ReadFile(path) // #nosec G304 - caller-controlled path
	if readErr == nil && bytes.Equal(existing, buf.Bytes()) {
		return false, nil
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return false, fmt.Errorf("create temp jsonl file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath) // best effort: no-op once renamed
	}()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		return false, fmt.Errorf("write temp jsonl file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return false, fmt.Errorf("close temp jsonl file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return false, fmt.Errorf("rename temp jsonl file: %w", err)
	}

	if maxUpdated := maxUpdatedAt(sorted); !maxUpdated.IsZero() {
		if err := os.Chtimes(path, maxUpdated, maxUpdated); err != nil {
			return true, fmt.Errorf("force jsonl mtime: %w", err)
		}
	}

	return true, nil
}

func sortByCreatedThenID[T Timestamped](entities []T) {
	// insertion sort is fine here: files are entity-count-bounded and this
	// keeps the comparison logic (and its tie-break) in one obvious place.
	for i := 1; i < len(entities); i++ {
		for j := i; j > 0 && less(entities[j], entities[j-1]); j-- {
			entities[j], entities[j-1] = entities[j-1], entities[j]
		}
	}
}

func less[T Timestamped](a, b T) bool {
	at, aid := a.SortKey()
	bt, bid := b.SortKey()
	if !at.Equal(bt) {
		return at.Before(bt)
	}
	return aid < bid
}

func maxUpdatedAt[T Timestamped](entities []T) time.Time {
	var max time.Time
	for _, e := range entities {
		if u := e.UpdatedAtUTC(); u.After(max) {
			max = u
		}
	}
	return max
}
