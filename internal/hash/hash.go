// Package hash computes the canonical content hash used throughout the
// sync engine and watcher to decide whether an entity's content actually
// changed, independent of field ordering, array ordering, or timestamps.
package hash

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
)

// DefaultExcluded fields are always elided before hashing, in addition to
// the caller-supplied exclusion set.
var DefaultExcluded = map[string]bool{
	"created_at": true,
	"updated_at": true,
}

// Canonical computes a SHA-256 hex digest over v's canonical JSON
// rendering: object keys sorted lexicographically (recursively), array
// elements sorted by the lexicographic order of their own JSON encoding,
// and any field named in excluded (plus DefaultExcluded) elided from the
// top-level object only; nested objects keep every field.
//
// v is first round-tripped through encoding/json so struct values, maps,
// and already-decoded interface{} trees all canonicalize identically.
func Canonical(v interface{}, excluded map[string]bool) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}

	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return "", err
	}

	merged := mergeExclusions(excluded)
	canon := canonicalizeTop(generic, merged)

	out, err := json.Marshal(canon)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(out)
	return hex.EncodeToString(sum[:]), nil
}

func mergeExclusions(extra map[string]bool) map[string]bool {
	merged := make(map[string]bool, len(DefaultExcluded)+len(extra))
	for k := range DefaultExcluded {
		merged[k] = true
	}
	for k := range extra {
		merged[k] = true
	}
	return merged
}

// canonicalizeTop elides the excluded fields only at the top level, per
// spec: "Top-level updated_at, created_at, and any field in a configured
// exclusion set are elided before hashing." Nested objects (e.g. a
// feedback entry's own timestamps) are hashed as-is.
func canonicalizeTop(v interface{}, excluded map[string]bool) interface{} {
	m, ok := v.(map[string]interface{})
	if !ok {
		return canonicalize(v)
	}
	out := make(map[string]interface{}, len(m))
	for k, val := range m {
		if excluded[k] {
			continue
		}
		out[k] = canonicalize(val)
	}
	return out
}

// canonicalize returns a structure that, when passed back through
// json.Marshal, is a deterministic encoding of v: object keys are
// inserted in sorted order (Go's encoding/json sorts map[string]any keys
// natively, so a map is sufficient), and arrays are re-ordered by the
// lexicographic order of each element's own canonical JSON encoding.
func canonicalize(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, v := range val {
			out[k] = canonicalize(v)
		}
		return out
	case []interface{}:
		elems := make([]interface{}, len(val))
		encoded := make([]string, len(val))
		for i, e := range val {
			elems[i] = canonicalize(e)
			b, _ := json.Marshal(elems[i])
			encoded[i] = string(b)
		}
		idx := make([]int, len(val))
		for i := range idx {
			idx[i] = i
		}
		sort.Slice(idx, func(a, b int) bool { return encoded[idx[a]] < encoded[idx[b]] })
		sorted := make([]interface{}, len(val))
		for i, j := range idx {
			sorted[i] = elems[j]
		}
		return sorted
	default:
		return val
	}
}
