package process

import (
	"testing"

	"github.com/scdev/scd/internal/coalesce"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineBufferSplitsAcrossWrites(t *testing.T) {
	var events []coalesce.RawEvent
	var lines []string
	lb := newLineBuffer(
		func(e coalesce.RawEvent) { events = append(events, e) },
		func(l string) { lines = append(lines, l) },
	)

	lb.write(`{"sessionUpdate":"agent_mess`)
	lb.write("age_chunk\",\"content\":\"partial write\"}\nplain line\n")

	require.Len(t, events, 1)
	assert.Equal(t, "partial write", events[0].Content)
	require.Len(t, lines, 1)
	assert.Equal(t, "plain line", lines[0])
}

func TestLineBufferFlushDrainsTrailingPartialLineAsText(t *testing.T) {
	var lines []string
	lb := newLineBuffer(nil, func(l string) { lines = append(lines, l) })

	lb.write("no trailing newline")
	lb.flush()

	require.Len(t, lines, 1)
	assert.Equal(t, "no trailing newline", lines[0])
}

func TestLineBufferToolCallRoundTrip(t *testing.T) {
	var events []coalesce.RawEvent
	lb := newLineBuffer(func(e coalesce.RawEvent) { events = append(events, e) }, nil)

	lb.write(`{"sessionUpdate":"tool_call","tool_call_id":"t1","title":"read file","status":"running"}` + "\n")
	lb.write(`{"sessionUpdate":"tool_call_update","tool_call_id":"t1","status":"completed","raw_output":{"ok":true}}` + "\n")

	require.Len(t, events, 2)
	assert.Equal(t, coalesce.KindToolCall, events[0].Kind)
	assert.Equal(t, "read file", events[0].Title)
	assert.Equal(t, coalesce.KindToolCallUpdate, events[1].Kind)
	assert.Equal(t, coalesce.ToolCallStatusCompleted, events[1].Status)
	assert.JSONEq(t, `{"ok":true}`, string(events[1].RawOutput))
}

func TestLineBufferPlanEvent(t *testing.T) {
	var events []coalesce.RawEvent
	lb := newLineBuffer(func(e coalesce.RawEvent) { events = append(events, e) }, nil)

	lb.write(`{"sessionUpdate":"plan","entries":[{"content":"step one","status":"pending","priority":1}]}` + "\n")

	require.Len(t, events, 1)
	assert.Equal(t, coalesce.KindPlan, events[0].Kind)
	require.Len(t, events[0].Plan, 1)
	assert.Equal(t, "step one", events[0].Plan[0].Content)
}

func TestLineBufferNotificationStripsNothingAtDecodeTime(t *testing.T) {
	var events []coalesce.RawEvent
	lb := newLineBuffer(func(e coalesce.RawEvent) { events = append(events, e) }, nil)

	lb.write(`{"sessionUpdate":"current_mode_update","mode":"edit"}` + "\n")

	require.Len(t, events, 1)
	assert.Equal(t, coalesce.KindCurrentModeUpdate, events[0].Kind)
	assert.Equal(t, "edit", events[0].Payload["mode"])
}

func TestLineBufferRoutesNonJSONAndUnrecognizedKindToText(t *testing.T) {
	var events []coalesce.RawEvent
	var lines []string
	lb := newLineBuffer(
		func(e coalesce.RawEvent) { events = append(events, e) },
		func(l string) { lines = append(lines, l) },
	)

	lb.write("Compiling project...\n")
	lb.write(`{"sessionUpdate":"something_unrecognized"}` + "\n")
	lb.write(`{not even valid json` + "\n")

	assert.Empty(t, events)
	require.Len(t, lines, 3)
}

func TestLooksLikeJSONHeuristic(t *testing.T) {
	assert.True(t, looksLikeJSON(`{"a":1}`))
	assert.False(t, looksLikeJSON(`not json`))
	assert.False(t, looksLikeJSON(`{"a":1}  trailing text`))
	assert.False(t, looksLikeJSON(`{`))
}
