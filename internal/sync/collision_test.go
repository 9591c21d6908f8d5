package sync

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/scdev/scd/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveLeavesNonCollidingIDUntouched(t *testing.T) {
	owners := map[string]uuid.UUID{}
	r := NewResolver(func(id string) (uuid.UUID, bool) {
		o, ok := owners[id]
		return o, ok
	}, nil)

	issue := &types.Issue{ID: "ISS-1", UUID: uuid.New()}
	got := r.Resolve(issue)
	assert.Equal(t, "ISS-1", got)
	assert.Equal(t, "ISS-1", issue.ID)
}

func TestResolveIsNotACollisionWhenSameUUIDReimports(t *testing.T) {
	self := uuid.New()
	owners := map[string]uuid.UUID{"ISS-1": self}
	r := NewResolver(func(id string) (uuid.UUID, bool) {
		o, ok := owners[id]
		return o, ok
	}, nil)

	issue := &types.Issue{ID: "ISS-1", UUID: self}
	got := r.Resolve(issue)
	assert.Equal(t, "ISS-1", got)
}

func TestResolveRenumbersOnCollisionWithDifferentUUID(t *testing.T) {
	other := uuid.New()
	owners := map[string]uuid.UUID{"ISS-3": other}
	r := NewResolver(func(id string) (uuid.UUID, bool) {
		o, ok := owners[id]
		return o, ok
	}, nil)

	issue := &types.Issue{ID: "ISS-3", UUID: uuid.New()}
	got := r.Resolve(issue)
	assert.Equal(t, "ISS-1003", got)
	assert.Equal(t, "ISS-1003", issue.ID)
}

func TestResolveMemoizesRenumberedIDAcrossCallsForSameUUID(t *testing.T) {
	other := uuid.New()
	owners := map[string]uuid.UUID{"ISS-3": other}
	r := NewResolver(func(id string) (uuid.UUID, bool) {
		o, ok := owners[id]
		return o, ok
	}, nil)

	incomingUUID := uuid.New()
	first := &types.Issue{ID: "ISS-3", UUID: incomingUUID}
	second := &types.Issue{ID: "ISS-3", UUID: incomingUUID}

	got1 := r.Resolve(first)
	got2 := r.Resolve(second)
	assert.Equal(t, got1, got2)
}

func TestResolveFallsBackToTimestampAfter1000FailedProbes(t *testing.T) {
	owners := map[string]uuid.UUID{}
	owners["ISS-3"] = uuid.New()
	for i := 0; i < 1000; i++ {
		owners["ISS-"+itoa(1003+i)] = uuid.New()
	}
	fixedNow := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r := NewResolver(func(id string) (uuid.UUID, bool) {
		o, ok := owners[id]
		return o, ok
	}, func() time.Time { return fixedNow })

	issue := &types.Issue{ID: "ISS-3", UUID: uuid.New()}
	got := r.Resolve(issue)
	require.Contains(t, got, "ISS-")
	assert.NotContains(t, got, "ISS-1003")
}

func TestResolveBatchAppliesCreatedAtTiebreakOnMutualCollision(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)

	owners := map[string]uuid.UUID{}
	r := NewResolver(func(id string) (uuid.UUID, bool) {
		o, ok := owners[id]
		return o, ok
	}, nil)

	earlier := &types.Issue{ID: "ISS-9", UUID: uuid.New(), CreatedAt: t0}
	later := &types.Issue{ID: "ISS-9", UUID: uuid.New(), CreatedAt: t1}

	r.ResolveBatch([]Ordered{later, earlier})

	assert.Equal(t, "ISS-9", earlier.ID)
	assert.Equal(t, "ISS-1009", later.ID)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
