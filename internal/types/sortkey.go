package types

import (
	"time"

	"github.com/google/uuid"
)

// SortKey and UpdatedAtUTC implement jsonl.Timestamped: JSONL lines sort
// by created_at ascending, tiebreak by id, and the file's mtime is forced
// to the max updated_at (UTC) among its entities.

func (i *Issue) SortKey() (time.Time, string) { return i.CreatedAt, i.ID }
func (i *Issue) UpdatedAtUTC() time.Time       { return i.UpdatedAt.UTC() }

func (s *Spec) SortKey() (time.Time, string) { return s.CreatedAt, s.ID }
func (s *Spec) UpdatedAtUTC() time.Time       { return s.UpdatedAt.UTC() }

// GetUUID and GetUpdatedAt implement sync.Snapshot, the identity the sync
// engine diffs two collections of entities over: uuid is the entity's
// stable identity, updated_at drives the added/deleted/updated/unchanged
// classification.

func (i *Issue) GetUUID() uuid.UUID      { return i.UUID }
func (i *Issue) GetUpdatedAt() time.Time { return i.UpdatedAt }

func (s *Spec) GetUUID() uuid.UUID      { return s.UUID }
func (s *Spec) GetUpdatedAt() time.Time { return s.UpdatedAt }

// GetID and SetID let the sync engine's id-collision resolver renumber
// an entity generically across both Issue and Spec.

func (i *Issue) GetID() string   { return i.ID }
func (i *Issue) SetID(id string) { i.ID = id }

func (s *Spec) GetID() string   { return s.ID }
func (s *Spec) SetID(id string) { s.ID = id }

// GetCreatedAt orders entities for deterministic collision resolution
// within a single incoming batch: the earliest-created entity claims a
// contested id, later ones are renumbered.

func (i *Issue) GetCreatedAt() time.Time { return i.CreatedAt }
func (s *Spec) GetCreatedAt() time.Time  { return s.CreatedAt }
