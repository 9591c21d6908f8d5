package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIssueValidate(t *testing.T) {
	tests := []struct {
		name    string
		issue   Issue
		wantErr error
	}{
		{
			name:  "valid issue",
			issue: Issue{Title: "Valid issue", Status: StatusOpen, Priority: 2},
		},
		{
			name:    "missing title",
			issue:   Issue{Status: StatusOpen, Priority: 2},
			wantErr: ErrTitleRequired,
		},
		{
			name:    "title too long",
			issue:   Issue{Title: string(make([]byte, 501)), Status: StatusOpen, Priority: 2},
			wantErr: ErrTitleTooLong,
		},
		{
			name:    "priority too low",
			issue:   Issue{Title: "t", Status: StatusOpen, Priority: -1},
			wantErr: ErrBadPriority,
		},
		{
			name:    "priority too high",
			issue:   Issue{Title: "t", Status: StatusOpen, Priority: 5},
			wantErr: ErrBadPriority,
		},
		{
			name:    "invalid status",
			issue:   Issue{Title: "t", Status: IssueStatus("bogus"), Priority: 2},
			wantErr: ErrBadStatus,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.issue.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestValidRelationshipType(t *testing.T) {
	assert.True(t, ValidRelationshipType(RelBlocks))
	assert.True(t, ValidRelationshipType(RelDependsOn))
	assert.False(t, ValidRelationshipType(RelationshipType("bogus")))
}
