package pipeline

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adalundhe/architect/core/orchestrator"
	"github.com/adalundhe/architect/core/request"
)

func TestConversation_RecordIsValueSemantics(t *testing.T) {
	start := NewConversation("st.write(totl)")
	in := start.Input("it crashes", "NameError")

	assert.Equal(t, request.KindFix, in.Kind)
	assert.Equal(t, "st.write(totl)", in.PriorCode)

	next := start.Record(in, orchestrator.GenerationResult{
		Succeeded:   true,
		Content:     "st.write(total)",
		Explanation: "Fixed the name.",
	})

	assert.Equal(t, 0, start.Len())
	assert.Equal(t, "st.write(totl)", start.Code)
	require.Equal(t, 2, next.Len())
	assert.Equal(t, "st.write(total)", next.Code)
	assert.Equal(t, RoleUser, next.Turns[0].Role)
	assert.Equal(t, "NameError", next.Turns[0].ErrorContext)
	assert.Equal(t, RoleAssistant, next.Turns[1].Role)
	assert.Equal(t, "st.write(total)", next.Turns[1].Code)
}

func TestConversation_FailureKeepsCode(t *testing.T) {
	c := NewConversation("x = 1")
	in := c.Input("still broken", "")

	next := c.Record(in, orchestrator.Failure(request.ModeSimple, request.KindFix, orchestrator.FailureUpstreamUnavailable, nil))

	assert.Equal(t, "x = 1", next.Code)
	assert.Equal(t, orchestrator.FailureUpstreamUnavailable.UserMessage(), next.Turns[1].Text)
}

func TestConversation_FeedsLatestCodeIntoPipeline(t *testing.T) {
	fc := &fakeCompleter{reply: "Fixed.\n\n" + fence + "python\nst.write(total)\n" + fence}
	h := newHarness(t, fc)

	conv := NewConversation("st.write(totl)")
	in := conv.Input("it crashes", "NameError")
	conv = conv.Record(in, h.pipeline.Run(context.Background(), in))

	in = conv.Input("now add a title", "")
	h.pipeline.Run(context.Background(), in)

	calls := fc.calls()
	require.Len(t, calls, 2)
	assert.Contains(t, calls[1].User, "st.write(total)")
	assert.NotContains(t, calls[1].User, "st.write(totl)")
}

func TestConversation_StartsWithBuild(t *testing.T) {
	c := NewConversation("")
	assert.Equal(t, request.KindBuild, c.Input("a todo list", "").Kind)

	c = c.Record(c.Input("a todo list", ""), orchestrator.GenerationResult{Succeeded: true, Content: "import streamlit as st"})
	assert.Equal(t, request.KindFix, c.Input("add a title", "").Kind)
}

func TestConversation_FixKeepsArchitectedMode(t *testing.T) {
	fc := &fakeCompleter{reply: "Done.\n\n" + fence + "python\nimport streamlit as st\n" + fence}
	h := newHarness(t, fc)

	conv := NewConversation("")
	in := conv.Input("multi-page app with user login and a database", "")
	first := h.pipeline.Run(context.Background(), in)
	require.True(t, first.Succeeded)
	require.Equal(t, request.ModeArchitected, first.Mode)
	conv = conv.Record(in, first)
	assert.Equal(t, request.ModeArchitected, conv.Mode)

	in = conv.Input("the page crashes with a KeyError", "KeyError: 'user'")
	assert.Equal(t, request.KindFix, in.Kind)
	assert.Equal(t, request.ModeArchitected, in.Mode)

	second := h.pipeline.Run(context.Background(), in)
	require.True(t, second.Succeeded)
	assert.Equal(t, request.ModeArchitected, second.Mode)

	calls := fc.calls()
	require.Len(t, calls, 2)
	assert.Contains(t, calls[1].System, "ARCHITECTURE RULES")
	assert.Contains(t, calls[1].User, "Keep its existing layers and integrations.")
	assert.NotContains(t, calls[1].User, "Keep it a single self-contained script.")
}

func TestConversation_LoadedCodeIsClassified(t *testing.T) {
	in := NewConversation("import streamlit as st").Input("the title is wrong", "")

	assert.Equal(t, request.KindFix, in.Kind)
	assert.Empty(t, in.Mode)
}

func TestConversation_SendsRecentTurns(t *testing.T) {
	fc := &fakeCompleter{reply: "Renamed the variable.\n\n" + fence + "python\nst.write(total)\n" + fence}
	h := newHarness(t, fc)

	conv := NewConversation("st.write(totl)")
	in := conv.Input("it crashes", "NameError: name 'totl' is not defined\nTraceback")
	conv = conv.Record(in, h.pipeline.Run(context.Background(), in))

	in = conv.Input("that didn't work, still fails", "")
	h.pipeline.Run(context.Background(), in)

	calls := fc.calls()
	require.Len(t, calls, 2)
	assert.NotContains(t, calls[0].User, "=== HISTORY ===")
	assert.Contains(t, calls[1].User, "=== HISTORY ===\n"+
		"user: it crashes\n"+
		"  error: NameError: name 'totl' is not defined\n"+
		"assistant: Renamed the variable.\n"+
		"=== END HISTORY ===")
}

func TestConversation_HistoryIsBounded(t *testing.T) {
	conv := NewConversation("x = 0")
	for i := 0; i < 5; i++ {
		in := conv.Input(fmt.Sprintf("change %d", i), "")
		conv = conv.Record(in, orchestrator.GenerationResult{
			Succeeded:   true,
			Content:     fmt.Sprintf("x = %d", i+1),
			Explanation: fmt.Sprintf("reply %d", i),
		})
	}
	require.Equal(t, 10, conv.Len())

	h := conv.History(HistoryTurns)
	lines := strings.Split(h, "\n")
	require.Len(t, lines, HistoryTurns)
	assert.Equal(t, "user: change 2", lines[0])
	assert.Equal(t, "assistant: reply 4", lines[len(lines)-1])
	assert.NotContains(t, h, "x = ")
}
