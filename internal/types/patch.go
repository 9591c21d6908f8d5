package types

import (
	"time"

	"github.com/google/uuid"
)

// Patch carries partial updates to an Issue or Spec. Every field is a
// pointer (or pointer-to-pointer for fields that are themselves optional)
// so the store can distinguish three states per spec 4.A:
//
//   - field is nil                -> "undefined": leave the stored value alone
//   - field is non-nil, *field is zero/nil -> "null": clear the stored value
//   - field is non-nil, *field has content  -> set the stored value
//
// ExternalLinks needs the extra indirection because the field is itself
// optional in JSON (absent, explicit null, or a non-empty array).
type IssuePatch struct {
	Title         *string
	Status        *IssueStatus
	Content       *string
	Priority      *int
	Assignee      *string
	ParentUUID    **uuid.UUID
	Archived      *bool
	ExternalLinks **[]string
	Tags          **[]string
	ClosedAt      **int64 // unix seconds, nil pointer clears

	// UpdatedAt overrides the store's usual "bump to now" behavior, used
	// by JSONL import to preserve the incoming entity's own updated_at
	// rather than stamping the moment of the sync pass.
	UpdatedAt *time.Time
}

// SpecPatch is the Spec analogue of IssuePatch.
type SpecPatch struct {
	Title         *string
	FilePath      *string
	Content       *string
	Priority      *int
	ParentUUID    **uuid.UUID
	Archived      *bool
	ExternalLinks **[]string
	Tags          **[]string

	// UpdatedAt overrides the store's usual "bump to now" behavior, used
	// by JSONL import to preserve the incoming entity's own updated_at.
	UpdatedAt *time.Time
}
