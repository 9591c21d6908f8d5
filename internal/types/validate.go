package types

import (
	"errors"
	"fmt"
)

const maxTitleLen = 500

var (
	ErrTitleRequired = errors.New("title is required")
	ErrTitleTooLong  = fmt.Errorf("title must be %d characters or less", maxTitleLen)
	ErrBadPriority     = errors.New("priority must be between 0 and 4")
	ErrBadStatus       = errors.New("invalid status")
	ErrBadRelationship = errors.New("invalid relationship type")
)

func validTitle(title string) error {
	if title == "" {
		return ErrTitleRequired
	}
	if len(title) > maxTitleLen {
		return ErrTitleTooLong
	}
	return nil
}

func validPriority(p int) error {
	if p < 0 || p > 4 {
		return ErrBadPriority
	}
	return nil
}

// Validate checks an Issue's required fields and value ranges.
func (i *Issue) Validate() error {
	if err := validTitle(i.Title); err != nil {
		return err
	}
	if err := validPriority(i.Priority); err != nil {
		return err
	}
	switch i.Status {
	case StatusOpen, StatusInProgress, StatusBlocked, StatusNeedsReview, StatusClosed:
	default:
		return ErrBadStatus
	}
	return nil
}

// Validate checks a Spec's required fields and value ranges.
func (s *Spec) Validate() error {
	if err := validTitle(s.Title); err != nil {
		return err
	}
	if err := validPriority(s.Priority); err != nil {
		return err
	}
	if s.FilePath == "" {
		return errors.New("file_path is required")
	}
	return nil
}

// ValidRelationshipType reports whether rt is one of the six allowed kinds.
func ValidRelationshipType(rt RelationshipType) bool {
	switch rt {
	case RelBlocks, RelRelated, RelDiscoveredFrom, RelImplements, RelReferences, RelDependsOn:
		return true
	}
	return false
}
