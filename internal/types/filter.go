package types

// IssueFilter narrows a List(filter) call over issues. Zero-value fields
// are treated as "no constraint", matching the teacher's WorkFilter idiom.
type IssueFilter struct {
	Status        []IssueStatus
	Assignee      string
	Tag           string
	ParentUUID    string
	IncludeArchived bool
	Limit         int
}

// SpecFilter narrows a List(filter) call over specs.
type SpecFilter struct {
	Tag             string
	ParentUUID      string
	IncludeArchived bool
	Limit           int
}
