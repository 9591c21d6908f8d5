// Package coalesce folds a stream of tagged session-update events from
// an agent subprocess into complete records suitable for durable
// storage, per spec 4.F. The raw stream itself is retained only as
// optional debug logs; storage and transport consume the coalesced
// output.
package coalesce

import "encoding/json"

// RawKind identifies one line of the agent's NDJSON stream (spec 6's
// "Recognized sessionUpdate kinds").
type RawKind string

const (
	KindAgentMessageChunk       RawKind = "agent_message_chunk"
	KindAgentThoughtChunk       RawKind = "agent_thought_chunk"
	KindUserMessageChunk        RawKind = "user_message_chunk"
	KindToolCall                RawKind = "tool_call"
	KindToolCallUpdate          RawKind = "tool_call_update"
	KindPlan                    RawKind = "plan"
	KindAvailableCommandsUpdate RawKind = "available_commands_update"
	KindCurrentModeUpdate       RawKind = "current_mode_update"
	KindCompactionStarted       RawKind = "compaction_started"
	KindCompactionCompleted     RawKind = "compaction_completed"
)

// textKinds is the set of chunk kinds that feed the single in-flight
// text accumulation (spec 4.F: "agent_message, agent_thought,
// user_message").
var textKinds = map[RawKind]bool{
	KindAgentMessageChunk: true,
	KindAgentThoughtChunk: true,
	KindUserMessageChunk:  true,
}

// notificationKinds flush pending text and pass through as-is minus
// metadata keys.
var notificationKinds = map[RawKind]bool{
	KindAvailableCommandsUpdate: true,
	KindCurrentModeUpdate:       true,
	KindCompactionStarted:       true,
	KindCompactionCompleted:     true,
}

// toolCallStatus mirrors the subset of tool-call lifecycle values the
// coalescer cares about; anything else is passed through untouched and
// only {completed, failed} are treated as terminal.
const (
	ToolCallStatusCompleted = "completed"
	ToolCallStatusFailed    = "failed"
)

// PlanEntry is one row of a plan event, per spec 4.F.
type PlanEntry struct {
	Content  string `json:"content"`
	Status   string `json:"status"`
	Priority int    `json:"priority"`
}

// RawEvent is one parsed line of the agent's NDJSON stream. Only the
// fields relevant to Kind are populated by the caller.
type RawEvent struct {
	Kind RawKind

	// Text-chunk fields (agent_message_chunk, agent_thought_chunk,
	// user_message_chunk).
	Content string

	// Tool-call fields (tool_call, tool_call_update).
	ToolCallID string
	Title      string
	Status     string
	RawInput   json.RawMessage
	RawOutput  json.RawMessage
	ToolOutput string

	// Plan fields.
	Plan []PlanEntry

	// Notification passthrough payload (available_commands_update,
	// current_mode_update, compaction_started, compaction_completed).
	// Payload is the full decoded event minus metadataKeys.
	Payload map[string]interface{}
}

// metadataKeys are stripped from a notification's payload before
// passthrough, since they describe the transport envelope rather than
// the notification's own content (spec 4.F: "minus its metadata keys").
var metadataKeys = map[string]bool{
	"sessionUpdate": true,
	"session_id":    true,
	"timestamp":     true,
}

func stripMetadata(payload map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(payload))
	for k, v := range payload {
		if metadataKeys[k] {
			continue
		}
		out[k] = v
	}
	return out
}
