// Package checkpoint implements the Checkpoint & Conflict Layer (spec
// 4.J): JSONL-diff snapshot building, dry-run merge conflict
// classification, timestamp-based JSONL conflict auto-resolution, and
// an ordered merge queue.
package checkpoint

import (
	"errors"
	"fmt"
	"reflect"
	"sort"

	"github.com/scdev/scd/internal/jsonl"
	"github.com/scdev/scd/internal/types"
)

// ErrNoChanges is returned when a checkpoint is requested for an
// execution whose before/after commits are identical (spec 4.J's
// no-change guard).
var ErrNoChanges = errors.New("checkpoint: no changes")

// fieldsExcludedFromDiff are present on nearly every entity and don't
// themselves constitute a meaningful content change — "id" identifies
// the row rather than describing it, and "updated_at" is bumped by
// every edit, so including it would make ChangedFields redundant with
// ChangeType == "modified" itself (spec 4.J's example lists only
// ["title"] for a title-only edit, not ["title", "updated_at"]).
var fieldsExcludedFromDiff = map[string]bool{
	"id":         true,
	"updated_at": true,
}

// DiffJSONL compares the before and after contents of one JSONL file
// keyed by each line's "id" field, returning one types.EntityChange
// per created, modified, or deleted entity. Returns nil (not an empty
// slice) when there is no difference, matching spec 4.J step 2's "if
// no JSONL changes, both are null".
func DiffJSONL(before, after []byte) ([]types.EntityChange, error) {
	beforeByID, err := decodeByID(before)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: decode before snapshot: %w", err)
	}
	afterByID, err := decodeByID(after)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: decode after snapshot: %w", err)
	}

	var changes []types.EntityChange
	for id, afterEntity := range afterByID {
		beforeEntity, existed := beforeByID[id]
		if !existed {
			changes = append(changes, types.EntityChange{ID: id, ChangeType: "created"})
			continue
		}
		fields := diffFields(beforeEntity, afterEntity)
		if len(fields) > 0 {
			changes = append(changes, types.EntityChange{ID: id, ChangeType: "modified", ChangedFields: fields})
		}
	}
	for id := range beforeByID {
		if _, stillPresent := afterByID[id]; !stillPresent {
			changes = append(changes, types.EntityChange{ID: id, ChangeType: "deleted"})
		}
	}

	if len(changes) == 0 {
		return nil, nil
	}
	sort.Slice(changes, func(i, j int) bool { return changes[i].ID < changes[j].ID })
	return changes, nil
}

func decodeByID(data []byte) (map[string]map[string]interface{}, error) {
	entities, parseErrs, err := jsonl.ReadData[map[string]interface{}](data, jsonl.ReadOptions{Lenient: false})
	if err != nil {
		return nil, err
	}
	if len(parseErrs) > 0 {
		return nil, parseErrs[0]
	}

	out := make(map[string]map[string]interface{}, len(entities))
	for _, entity := range entities {
		id, _ := (*entity)["id"].(string)
		if id == "" {
			continue
		}
		out[id] = *entity
	}
	return out, nil
}

func diffFields(before, after map[string]interface{}) []string {
	seen := map[string]bool{}
	for k := range before {
		seen[k] = true
	}
	for k := range after {
		seen[k] = true
	}

	var changed []string
	for k := range seen {
		if fieldsExcludedFromDiff[k] {
			continue
		}
		if !reflect.DeepEqual(before[k], after[k]) {
			changed = append(changed, k)
		}
	}
	sort.Strings(changed)
	return changed
}
