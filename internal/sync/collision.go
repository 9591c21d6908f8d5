package sync

import (
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Identified is the subset of an entity the collision resolver needs:
// its human id (mutable, since the resolver renumbers on collision) and
// its stable uuid (immutable identity used to memoize the id it was
// renumbered to).
type Identified interface {
	GetID() string
	GetUUID() uuid.UUID
	SetID(string)
}

// Ordered additionally exposes creation time, used to deterministically
// rank entities that collide with each other within a single incoming
// batch (as opposed to colliding with already-existing store state).
type Ordered interface {
	Identified
	GetCreatedAt() time.Time
}

var trailingDigits = regexp.MustCompile(`(\d+)$`)

// Resolver renumbers incoming entities whose id collides with an entity
// of a different uuid, per spec 4.D: the incoming entity is always
// renumbered (the existing entity is never renamed in place). now is
// injected so tests can pin the timestamp-fallback id.
type Resolver struct {
	// OwnerOf reports the uuid currently holding id, and whether anyone
	// holds it at all. A reimport of the same logical entity (same id,
	// same uuid) is not a collision, so Resolve only renumbers when
	// ownerOf returns a *different* uuid than the entity being resolved.
	OwnerOf func(id string) (owner uuid.UUID, ok bool)
	Now     func() time.Time

	memo map[uuid.UUID]string
}

// NewResolver builds a Resolver. now defaults to time.Now if nil.
func NewResolver(ownerOf func(id string) (uuid.UUID, bool), now func() time.Time) *Resolver {
	if now == nil {
		now = time.Now
	}
	return &Resolver{OwnerOf: ownerOf, Now: now, memo: map[uuid.UUID]string{}}
}

// Resolve renumbers e in place if its current id is held by a different
// uuid than e's own, returning the (possibly unchanged) id. Once a uuid
// has been assigned a new id during this pass, every subsequent call for
// the same uuid returns the memoized id instead of renumbering again.
func (r *Resolver) Resolve(e Identified) string {
	if newID, ok := r.memo[e.GetUUID()]; ok {
		e.SetID(newID)
		return newID
	}

	id := e.GetID()
	if owner, used := r.OwnerOf(id); !used || owner == e.GetUUID() {
		return id
	}

	newID := r.renumber(id)
	r.memo[e.GetUUID()] = newID
	e.SetID(newID)
	return newID
}

// ResolveBatch resolves collisions across a single incoming batch, not
// just against pre-existing store state. Entities are processed in
// ascending (created_at, uuid) order so the earliest-created entity
// claims a contested id and later ones are renumbered; on an identical
// created_at the tie-break is the corrected `incoming.uuid > local.uuid`
// comparison (the source's `uuid > localContent` comparison, a uuid
// against a title, was a copy-paste bug — see DESIGN.md).
func (r *Resolver) ResolveBatch(entities []Ordered) {
	ordered := make([]Ordered, len(entities))
	copy(ordered, entities)
	sort.SliceStable(ordered, func(i, j int) bool {
		ti, tj := ordered[i].GetCreatedAt(), ordered[j].GetCreatedAt()
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return ordered[i].GetUUID().String() < ordered[j].GetUUID().String()
	})

	claimed := map[string]uuid.UUID{}
	ownerOf := r.OwnerOf
	r.OwnerOf = func(id string) (uuid.UUID, bool) {
		if owner, ok := claimed[id]; ok {
			return owner, true
		}
		return ownerOf(id)
	}
	defer func() { r.OwnerOf = ownerOf }()

	for _, e := range ordered {
		id := r.Resolve(e)
		claimed[id] = e.GetUUID()
	}
}

// renumber strips id's trailing numeric suffix, adds 1000, and probes
// upward until an unused id is found. After 1000 failed probes it falls
// back to a timestamp-based id, per spec 4.D.
func (r *Resolver) renumber(id string) string {
	prefix := id
	base := 0
	if m := trailingDigits.FindStringSubmatchIndex(id); m != nil {
		prefix = id[:m[0]]
		fmt.Sscanf(id[m[0]:m[1]], "%d", &base)
	}

	candidate := base + 1000
	for attempt := 0; attempt < 1000; attempt++ {
		next := fmt.Sprintf("%s%d", prefix, candidate+attempt)
		if _, used := r.OwnerOf(next); !used {
			return next
		}
	}

	return fmt.Sprintf("%s%d", prefix, r.Now().UnixNano())
}
