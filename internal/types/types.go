// Package types defines the entity model shared by the store, the
// serialization codecs, and the sync engine: specs, issues, relationships,
// tags, feedback, events, executions, checkpoints, and streams.
package types

import (
	"time"

	"github.com/google/uuid"
)

// EntityType discriminates the two node kinds in the graph.
type EntityType string

const (
	EntityTypeSpec  EntityType = "spec"
	EntityTypeIssue EntityType = "issue"
)

// IssueStatus is the lifecycle state of an Issue.
type IssueStatus string

const (
	StatusOpen        IssueStatus = "open"
	StatusInProgress  IssueStatus = "in_progress"
	StatusBlocked     IssueStatus = "blocked"
	StatusNeedsReview IssueStatus = "needs_review"
	StatusClosed      IssueStatus = "closed"
)

// RelationshipType enumerates the allowed edge kinds between entities.
type RelationshipType string

const (
	RelBlocks         RelationshipType = "blocks"
	RelRelated        RelationshipType = "related"
	RelDiscoveredFrom RelationshipType = "discovered-from"
	RelImplements     RelationshipType = "implements"
	RelReferences     RelationshipType = "references"
	RelDependsOn      RelationshipType = "depends-on"
)

// FeedbackType enumerates the kinds of feedback attachable to an entity.
type FeedbackType string

const (
	FeedbackComment    FeedbackType = "comment"
	FeedbackSuggestion FeedbackType = "suggestion"
	FeedbackRequest    FeedbackType = "request"
)

// ExecutionStatus is the lifecycle state of an Execution.
type ExecutionStatus string

const (
	ExecPreparing  ExecutionStatus = "preparing"
	ExecPending    ExecutionStatus = "pending"
	ExecRunning    ExecutionStatus = "running"
	ExecPaused     ExecutionStatus = "paused"
	ExecWaiting    ExecutionStatus = "waiting"
	ExecCompleted  ExecutionStatus = "completed"
	ExecFailed     ExecutionStatus = "failed"
	ExecCancelled  ExecutionStatus = "cancelled"
	ExecStopped    ExecutionStatus = "stopped"
	ExecConflicted ExecutionStatus = "conflicted"
)

// ReviewStatus tracks human review state of a Checkpoint.
type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "pending"
	ReviewApproved ReviewStatus = "approved"
	ReviewRejected ReviewStatus = "rejected"
)

// Anchor locates a piece of Feedback within an entity's body, with fuzzy
// relocation fields so the anchor can survive minor edits.
type Anchor struct {
	Line           int    `json:"line,omitempty"`
	Heading        string `json:"heading,omitempty"`
	ContextBefore  string `json:"context_before,omitempty"`
	ContextAfter   string `json:"context_after,omitempty"`
	OriginalOffset int    `json:"original_offset,omitempty"`
}

// Feedback is a comment, suggestion, or request attached to an entity.
type Feedback struct {
	ID           string       `json:"id"`
	FromUUID     *uuid.UUID   `json:"from_uuid,omitempty"`
	ToUUID       uuid.UUID    `json:"to_uuid"`
	FeedbackType FeedbackType `json:"feedback_type"`
	Content      string       `json:"content"`
	Anchor       *Anchor      `json:"anchor,omitempty"`
	Dismissed    bool         `json:"dismissed"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// Relationship is a directed, typed edge between two entities.
type Relationship struct {
	FromUUID uuid.UUID        `json:"from"`
	FromType EntityType       `json:"from_type"`
	ToUUID   uuid.UUID        `json:"to"`
	ToType   EntityType       `json:"to_type"`
	Type     RelationshipType `json:"type"`
}

// Spec is a specification document tracked alongside its source file.
type Spec struct {
	ID            string       `json:"id"`
	UUID          uuid.UUID    `json:"uuid"`
	Title         string       `json:"title"`
	FilePath      string       `json:"file_path"`
	Content       string       `json:"content"`
	Priority      int          `json:"priority"`
	ParentUUID    *uuid.UUID   `json:"parent_uuid,omitempty"`
	Archived      bool         `json:"archived,omitempty"`
	ArchivedAt    *time.Time   `json:"archived_at,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
	ExternalLinks []string     `json:"external_links,omitempty"`
	Tags          []string     `json:"tags,omitempty"`
	Relationships []Relationship `json:"relationships,omitempty"`
}

// Issue is a unit of work tracked against the project.
type Issue struct {
	ID            string       `json:"id"`
	UUID          uuid.UUID    `json:"uuid"`
	Title         string       `json:"title"`
	Status        IssueStatus  `json:"status"`
	Content       string       `json:"content"`
	Priority      int          `json:"priority"`
	Assignee      string       `json:"assignee,omitempty"`
	ParentUUID    *uuid.UUID   `json:"parent_uuid,omitempty"`
	Archived      bool         `json:"archived,omitempty"`
	ArchivedAt    *time.Time   `json:"archived_at,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
	ClosedAt      *time.Time   `json:"closed_at,omitempty"`
	ExternalLinks []string     `json:"external_links,omitempty"`
	Tags          []string     `json:"tags,omitempty"`
	Relationships []Relationship `json:"relationships,omitempty"`
	Feedback      []Feedback   `json:"feedback,omitempty"`
}

// Event is an append-only audit record of an entity mutation.
type Event struct {
	ID         int64      `json:"id"`
	EntityUUID uuid.UUID  `json:"entity_uuid"`
	EntityType EntityType `json:"entity_type"`
	Action     string     `json:"action"`
	Source     string     `json:"source"`
	Detail     string     `json:"detail,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Execution is one run of a coding agent against an issue.
type Execution struct {
	ID                  string          `json:"id"`
	IssueUUID           uuid.UUID       `json:"issue_uuid"`
	AgentType           string          `json:"agent_type"`
	Status              ExecutionStatus `json:"status"`
	TargetBranch        string          `json:"target_branch"`
	BranchName          string          `json:"branch_name"`
	WorktreePath        string          `json:"worktree_path"`
	BeforeCommit        string          `json:"before_commit,omitempty"`
	AfterCommit         string          `json:"after_commit,omitempty"`
	StreamID            string          `json:"stream_id"`
	ParentExecutionID   *string         `json:"parent_execution_id,omitempty"`
	WorkflowExecutionID *string         `json:"workflow_execution_id,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
	StartedAt           *time.Time      `json:"started_at,omitempty"`
	FinishedAt          *time.Time      `json:"finished_at,omitempty"`
}

// EntityChange classifies how one entity differs between two JSONL
// snapshots, for inclusion in a Checkpoint's issue/spec snapshot.
type EntityChange struct {
	ID            string   `json:"id"`
	ChangeType    string   `json:"changeType"` // created | modified | deleted
	ChangedFields []string `json:"changedFields,omitempty"`
}

// Checkpoint is a reviewable commit on an issue stream carrying a
// JSONL-diff snapshot of what the execution changed.
type Checkpoint struct {
	ID             string         `json:"id"`
	IssueUUID      uuid.UUID      `json:"issue_uuid"`
	ExecutionID    string         `json:"execution_id"`
	StreamID       string         `json:"stream_id"`
	CommitSHA      string         `json:"commit_sha"`
	ParentCommit   string         `json:"parent_commit,omitempty"`
	ChangedFiles   int            `json:"changed_files"`
	Additions      int            `json:"additions"`
	Deletions      int            `json:"deletions"`
	Message        string         `json:"message"`
	CheckpointedAt time.Time      `json:"checkpointed_at"`
	ReviewStatus   ReviewStatus   `json:"review_status"`
	IssueSnapshot  []EntityChange `json:"issue_snapshot,omitempty"`
	SpecSnapshot   []EntityChange `json:"spec_snapshot,omitempty"`
}

// StreamScope distinguishes a stream tied to an issue from one tied to a
// single execution.
type StreamScope string

const (
	StreamScopeIssue     StreamScope = "issue"
	StreamScopeExecution StreamScope = "execution"
)

// Stream is a persistent git-branch identity accumulating checkpoints.
type Stream struct {
	ID              string      `json:"id"`
	Scope           StreamScope `json:"scope"`
	IssueUUID       *uuid.UUID  `json:"issue_uuid,omitempty"`
	ExecutionID     *string     `json:"execution_id,omitempty"`
	BranchName      string      `json:"branch_name"`
	CheckpointCount int         `json:"checkpoint_count"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}
