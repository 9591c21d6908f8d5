package coalesce

import "time"

// textAccumulation is the single in-flight text record spec 4.F allows:
// at most one of {agent_message, agent_thought, user_message} open at a
// time.
type textAccumulation struct {
	kind      RawKind
	chunks    []string
	startedAt time.Time
}

// toolCallState is one in-flight tool call, keyed by ToolCallID.
type toolCallState struct {
	title      string
	status     string
	rawInput   []byte
	rawOutput  []byte
	toolOutput string
	startedAt  time.Time
}

// Coalescer folds a stream of RawEvents into Records. It is not
// goroutine-safe; callers that pump stdout/stderr from multiple
// goroutines must serialize calls to Feed themselves (the Process
// Manager's single reader loop does this naturally).
type Coalescer struct {
	acc       *textAccumulation
	toolCalls map[string]*toolCallState
	now       func() time.Time
}

// New returns an empty Coalescer.
func New() *Coalescer {
	return &Coalescer{
		toolCalls: map[string]*toolCallState{},
		now:       time.Now,
	}
}

// Feed applies one raw event and returns zero or more completed
// records. Most events produce at most one record; a kind switch inside
// a text accumulation produces a flushed message record plus whatever
// the new event itself produces.
func (c *Coalescer) Feed(event RawEvent) []Record {
	switch {
	case textKinds[event.Kind]:
		return c.feedText(event)
	case event.Kind == KindToolCall:
		return c.feedToolCallOpen(event)
	case event.Kind == KindToolCallUpdate:
		return c.feedToolCallUpdate(event)
	case event.Kind == KindPlan:
		return c.feedPlan(event)
	case notificationKinds[event.Kind]:
		return c.feedNotification(event)
	default:
		// Unknown kinds are ignored without error (spec 6).
		return nil
	}
}

func (c *Coalescer) feedText(event RawEvent) []Record {
	var out []Record
	if c.acc != nil && c.acc.kind != event.Kind {
		out = append(out, c.flushText())
	}
	if c.acc == nil {
		c.acc = &textAccumulation{kind: event.Kind, startedAt: c.now()}
	}
	c.acc.chunks = append(c.acc.chunks, event.Content)
	return out
}

func (c *Coalescer) flushText() Record {
	acc := c.acc
	c.acc = nil
	content := ""
	for _, chunk := range acc.chunks {
		content += chunk
	}
	return Record{
		Kind:        RecordMessage,
		MessageKind: acc.kind,
		Content:     content,
		StartedAt:   acc.startedAt,
		CompletedAt: c.now(),
	}
}

func (c *Coalescer) feedToolCallOpen(event RawEvent) []Record {
	var out []Record
	if c.acc != nil {
		out = append(out, c.flushText())
	}
	c.toolCalls[event.ToolCallID] = &toolCallState{
		title:      event.Title,
		status:     event.Status,
		rawInput:   event.RawInput,
		rawOutput:  event.RawOutput,
		toolOutput: event.ToolOutput,
		startedAt:  c.now(),
	}
	return out
}

func (c *Coalescer) feedToolCallUpdate(event RawEvent) []Record {
	state, ok := c.toolCalls[event.ToolCallID]
	if !ok {
		// An update with no matching open call: treat it as opening one,
		// so a dropped tool_call line doesn't silently lose the update.
		state = &toolCallState{startedAt: c.now()}
		c.toolCalls[event.ToolCallID] = state
	}
	if event.Title != "" {
		state.title = event.Title
	}
	if event.Status != "" {
		state.status = event.Status
	}
	if event.RawInput != nil {
		state.rawInput = event.RawInput
	}
	if event.RawOutput != nil {
		state.rawOutput = event.RawOutput
	}
	if event.ToolOutput != "" {
		state.toolOutput = event.ToolOutput
	}

	if state.status != ToolCallStatusCompleted && state.status != ToolCallStatusFailed {
		return nil
	}
	delete(c.toolCalls, event.ToolCallID)
	return []Record{toolCallRecord(event.ToolCallID, state, c.now())}
}

func toolCallRecord(id string, state *toolCallState, completedAt time.Time) Record {
	return Record{
		Kind:        RecordToolCall,
		ToolCallID:  id,
		Title:       state.title,
		Status:      state.status,
		RawInput:    state.rawInput,
		RawOutput:   state.rawOutput,
		ToolOutput:  state.toolOutput,
		StartedAt:   state.startedAt,
		CompletedAt: completedAt,
	}
}

func (c *Coalescer) feedPlan(event RawEvent) []Record {
	var out []Record
	if c.acc != nil {
		out = append(out, c.flushText())
	}
	out = append(out, Record{Kind: RecordPlan, Plan: event.Plan, CompletedAt: c.now()})
	return out
}

func (c *Coalescer) feedNotification(event RawEvent) []Record {
	var out []Record
	if c.acc != nil {
		out = append(out, c.flushText())
	}
	out = append(out, Record{
		Kind:             RecordNotification,
		NotificationKind: event.Kind,
		Payload:          stripMetadata(event.Payload),
		CompletedAt:      c.now(),
	})
	return out
}

// Flush drains any pending text accumulation and any still-open tool
// calls (the latter is abnormal — a process that exits mid-call — but
// not fatal) at the end of a prompt.
func (c *Coalescer) Flush() []Record {
	var out []Record
	if c.acc != nil {
		out = append(out, c.flushText())
	}
	now := c.now()
	for id, state := range c.toolCalls {
		out = append(out, toolCallRecord(id, state, now))
		delete(c.toolCalls, id)
	}
	return out
}

// Reset clears all in-flight state without producing records.
func (c *Coalescer) Reset() {
	c.acc = nil
	c.toolCalls = map[string]*toolCallState{}
}
