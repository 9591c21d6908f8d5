// Package sync reconciles the three representations of the entity
// graph — the SQL store, the markdown tree, and the JSONL snapshots —
// per the direction-specific rules each reconciliation path follows.
package sync

import (
	"time"

	"github.com/google/uuid"
)

// Snapshot is the identity an entity brings to a diff: a stable UUID
// plus the timestamp used to detect real changes.
type Snapshot interface {
	GetUUID() uuid.UUID
	GetUpdatedAt() time.Time
}

// Diff classifies how collection B differs from collection A.
type Diff[T Snapshot] struct {
	Added     []T
	Deleted   []T
	Updated   []T
	Unchanged []T
}

// ComputeDiff compares two snapshots of a collection, each entity keyed
// by its UUID. force is an optional set of UUIDs to treat as updated
// regardless of their updated_at (spec 4.D: "force_update set").
func ComputeDiff[T Snapshot](a, b []T, force map[uuid.UUID]bool) Diff[T] {
	byUUID := make(map[uuid.UUID]T, len(a))
	for _, e := range a {
		byUUID[e.GetUUID()] = e
	}

	var diff Diff[T]
	seen := make(map[uuid.UUID]bool, len(b))

	for _, eb := range b {
		id := eb.GetUUID()
		seen[id] = true
		ea, existed := byUUID[id]
		switch {
		case !existed:
			diff.Added = append(diff.Added, eb)
		case force[id] || !ea.GetUpdatedAt().Equal(eb.GetUpdatedAt()):
			diff.Updated = append(diff.Updated, eb)
		default:
			diff.Unchanged = append(diff.Unchanged, eb)
		}
	}

	for _, ea := range a {
		if !seen[ea.GetUUID()] {
			diff.Deleted = append(diff.Deleted, ea)
		}
	}

	return diff
}
