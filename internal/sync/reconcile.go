package sync

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/scdev/scd/internal/hash"
	"github.com/scdev/scd/internal/jsonl"
	"github.com/scdev/scd/internal/types"
)

// EntityHashCache is the per-JSONL-file cache of each entity's canonical
// content hash as of the last reconciliation pass, keyed by uuid. The
// watcher seeds one of these per file at startup (spec 4.E) so the first
// change event after launch doesn't look like every entity changed.
type EntityHashCache map[uuid.UUID]string

// ReconcileIssuesJSONL implements spec 4.D's "JSONL → Store reconciliation
// on file change": parse the file, compute each entity's canonical hash,
// and forward anything whose hash differs (or is new) to the import
// pipeline with force_update set, since a manual edit may not have bumped
// updated_at.
func ReconcileIssuesJSONL(ctx context.Context, st IssueStore, existing []*types.Issue, path string, cache EntityHashCache) (*ImportResult, EntityHashCache, error) {
	incoming, parseErrs, err := jsonl.ReadFile[types.Issue](path, jsonl.ReadOptions{})
	if err != nil {
		return nil, cache, fmt.Errorf("read %s: %w", path, err)
	}
	if len(parseErrs) > 0 {
		return nil, cache, fmt.Errorf("parse %s: %d malformed line(s), first: %w", path, len(parseErrs), parseErrs[0])
	}

	next := make(EntityHashCache, len(incoming))
	force := make(map[uuid.UUID]bool)
	for _, e := range incoming {
		h, err := hash.Issue(e)
		if err != nil {
			return nil, cache, fmt.Errorf("hash issue %s: %w", e.ID, err)
		}
		next[e.UUID] = h
		if prior, ok := cache[e.UUID]; !ok || prior != h {
			force[e.UUID] = true
		}
	}

	result, err := ImportIssues(ctx, st, existing, incoming, force, nil)
	return result, next, err
}

// ReconcileSpecsJSONL is the Spec analogue of ReconcileIssuesJSONL.
func ReconcileSpecsJSONL(ctx context.Context, st SpecStore, existing []*types.Spec, path string, cache EntityHashCache) (*ImportResult, EntityHashCache, error) {
	incoming, parseErrs, err := jsonl.ReadFile[types.Spec](path, jsonl.ReadOptions{})
	if err != nil {
		return nil, cache, fmt.Errorf("read %s: %w", path, err)
	}
	if len(parseErrs) > 0 {
		return nil, cache, fmt.Errorf("parse %s: %d malformed line(s), first: %w", path, len(parseErrs), parseErrs[0])
	}

	next := make(EntityHashCache, len(incoming))
	force := make(map[uuid.UUID]bool)
	for _, e := range incoming {
		h, err := hash.Spec(e)
		if err != nil {
			return nil, cache, fmt.Errorf("hash spec %s: %w", e.ID, err)
		}
		next[e.UUID] = h
		if prior, ok := cache[e.UUID]; !ok || prior != h {
			force[e.UUID] = true
		}
	}

	result, err := ImportSpecs(ctx, st, existing, incoming, force, nil)
	return result, next, err
}
