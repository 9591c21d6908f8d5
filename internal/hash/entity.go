package hash

import "github.com/scdev/scd/internal/types"

// Issue computes the canonical content hash of an issue, excluding
// timestamps, suitable for change detection across the SQL/Markdown/JSONL
// representations.
func Issue(issue *types.Issue) (string, error) {
	return Canonical(issue, nil)
}

// Spec computes the canonical content hash of a spec.
func Spec(spec *types.Spec) (string, error) {
	return Canonical(spec, nil)
}
