package coalesce

import (
	"encoding/json"
	"time"
)

// RecordKind identifies the shape of a completed record.
type RecordKind string

const (
	RecordMessage       RecordKind = "message"
	RecordToolCall      RecordKind = "tool_call_complete"
	RecordNotification  RecordKind = "session_notification"
	RecordPlan          RecordKind = "plan"
)

// Record is one complete, durable-storage-ready unit produced by the
// Coalescer.
type Record struct {
	Kind RecordKind

	// Message fields (Kind == RecordMessage).
	MessageKind RawKind
	Content     string
	StartedAt   time.Time
	CompletedAt time.Time

	// Tool-call fields (Kind == RecordToolCall).
	ToolCallID string
	Title      string
	Status     string
	RawInput   json.RawMessage
	RawOutput  json.RawMessage
	ToolOutput string

	// Plan fields (Kind == RecordPlan).
	Plan []PlanEntry

	// Notification fields (Kind == RecordNotification).
	NotificationKind RawKind
	Payload          map[string]interface{}
}
