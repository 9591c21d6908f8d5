package hash

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalInvariantUnderKeyReorder(t *testing.T) {
	a := map[string]interface{}{"b": 1, "a": 2, "created_at": "2020-01-01"}
	b := map[string]interface{}{"a": 2, "b": 1, "created_at": "2099-12-31"}

	ha, err := Canonical(a, nil)
	require.NoError(t, err)
	hb, err := Canonical(b, nil)
	require.NoError(t, err)

	assert.Equal(t, ha, hb, "hash must ignore created_at and key order")
}

func TestCanonicalInvariantUnderArrayReorder(t *testing.T) {
	a := map[string]interface{}{"tags": []interface{}{"x", "y", "z"}}
	b := map[string]interface{}{"tags": []interface{}{"z", "x", "y"}}

	ha, err := Canonical(a, nil)
	require.NoError(t, err)
	hb, err := Canonical(b, nil)
	require.NoError(t, err)

	assert.Equal(t, ha, hb)
}

func TestCanonicalDetectsRealChange(t *testing.T) {
	a := map[string]interface{}{"title": "foo"}
	b := map[string]interface{}{"title": "bar"}

	ha, _ := Canonical(a, nil)
	hb, _ := Canonical(b, nil)

	assert.NotEqual(t, ha, hb)
}

func TestCanonicalCustomExclusion(t *testing.T) {
	a := map[string]interface{}{"title": "foo", "noise": 1}
	b := map[string]interface{}{"title": "foo", "noise": 2}

	ha, _ := Canonical(a, map[string]bool{"noise": true})
	hb, _ := Canonical(b, map[string]bool{"noise": true})

	assert.Equal(t, ha, hb)
}
