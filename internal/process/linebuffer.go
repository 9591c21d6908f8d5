package process

import (
	"encoding/json"
	"strings"

	"github.com/scdev/scd/internal/coalesce"
)

// lineBuffer accumulates stdout bytes and splits them into lines, per
// spec 4.G's hybrid-output mode: a cheap `^{ … }$` heuristic decides
// whether a line is a structured sessionUpdate or free-form terminal
// text.
type lineBuffer struct {
	pending string
	onEvent func(coalesce.RawEvent)
	onText  func(string)
}

func newLineBuffer(onEvent func(coalesce.RawEvent), onText func(string)) *lineBuffer {
	return &lineBuffer{onEvent: onEvent, onText: onText}
}

// write feeds newly-read bytes into the buffer, emitting one callback
// per complete line.
func (b *lineBuffer) write(chunk string) {
	b.pending += chunk
	for {
		idx := strings.IndexByte(b.pending, '\n')
		if idx < 0 {
			return
		}
		line := b.pending[:idx]
		b.pending = b.pending[idx+1:]
		b.handleLine(line)
	}
}

// flush drains any trailing partial line (one with no trailing newline)
// through the same JSON-or-terminal-text classification as a complete
// line.
func (b *lineBuffer) flush() {
	if b.pending == "" {
		return
	}
	line := b.pending
	b.pending = ""
	b.handleLine(line)
}

func (b *lineBuffer) handleLine(line string) {
	trimmed := strings.TrimSpace(line)
	if looksLikeJSON(trimmed) {
		if event, ok := decodeSessionUpdate(trimmed); ok {
			if b.onEvent != nil {
				b.onEvent(event)
			}
			return
		}
	}
	if b.onText != nil {
		b.onText(line)
	}
}

// looksLikeJSON is the cheap `^{ … }$` heuristic spec 4.G calls for:
// a line is a structured candidate only if it starts and ends with
// braces. Anything else (prompts, progress bars, plain prose) is
// routed straight to the terminal viewer without attempting a parse.
func looksLikeJSON(s string) bool {
	return len(s) >= 2 && s[0] == '{' && s[len(s)-1] == '}'
}

// sessionUpdateEnvelope captures the superset of fields any recognized
// sessionUpdate kind may carry (spec 6).
type sessionUpdateEnvelope struct {
	SessionUpdate string `json:"sessionUpdate"`

	Content json.RawMessage `json:"content"`

	ToolCallID string          `json:"tool_call_id"`
	Title      string          `json:"title"`
	Status     string          `json:"status"`
	RawInput   json.RawMessage `json:"raw_input"`
	RawOutput  json.RawMessage `json:"raw_output"`

	Entries []coalesce.PlanEntry `json:"entries"`
}

// decodeSessionUpdate parses a candidate JSON line into a
// coalesce.RawEvent. A line that parses as JSON but carries an
// unrecognized or missing sessionUpdate kind is still treated as
// terminal text (ok=false), per spec 4.G: "failing lines are ignored"
// from the coalescer's perspective, even if they happen to be valid
// JSON emitted by something other than the agent's wire protocol.
func decodeSessionUpdate(line string) (coalesce.RawEvent, bool) {
	var env sessionUpdateEnvelope
	if err := json.Unmarshal([]byte(line), &env); err != nil {
		return coalesce.RawEvent{}, false
	}

	kind := coalesce.RawKind(env.SessionUpdate)
	switch kind {
	case coalesce.KindAgentMessageChunk, coalesce.KindAgentThoughtChunk, coalesce.KindUserMessageChunk:
		var content string
		_ = json.Unmarshal(env.Content, &content)
		return coalesce.RawEvent{Kind: kind, Content: content}, true

	case coalesce.KindToolCall, coalesce.KindToolCallUpdate:
		return coalesce.RawEvent{
			Kind:       kind,
			ToolCallID: env.ToolCallID,
			Title:      env.Title,
			Status:     env.Status,
			RawInput:   env.RawInput,
			RawOutput:  env.RawOutput,
		}, true

	case coalesce.KindPlan:
		return coalesce.RawEvent{Kind: kind, Plan: env.Entries}, true

	case coalesce.KindAvailableCommandsUpdate, coalesce.KindCurrentModeUpdate,
		coalesce.KindCompactionStarted, coalesce.KindCompactionCompleted:
		var payload map[string]interface{}
		if err := json.Unmarshal([]byte(line), &payload); err != nil {
			return coalesce.RawEvent{}, false
		}
		return coalesce.RawEvent{Kind: kind, Payload: payload}, true

	default:
		return coalesce.RawEvent{}, false
	}
}
