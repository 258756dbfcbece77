package pipeline

import (
	"strings"
	"time"

	"github.com/adalundhe/architect/core/orchestrator"
	"github.com/adalundhe/architect/core/request"
)

// Role identifies who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// HistoryTurns bounds how many recent turns are sent back with a request.
const HistoryTurns = 6

// Turn is one message in a fixer conversation.
type Turn struct {
	Role         Role      `json:"role"`
	Text         string    `json:"text"`
	ErrorContext string    `json:"error_context,omitempty"`
	Code         string    `json:"code,omitempty"`
	At           time.Time `json:"at"`
}

// Conversation is the chat fixer's state. It is a value: Record returns an
// updated copy and leaves the receiver untouched.
type Conversation struct {
	Turns []Turn `json:"turns"`
	// Code is the latest working code, fed back as prior code.
	Code string `json:"code"`
	// Mode is the mode of the result that produced Code. Empty when the code
	// was loaded rather than generated.
	Mode request.Mode `json:"mode,omitempty"`
}

// NewConversation starts a conversation around existing code.
func NewConversation(code string) Conversation {
	return Conversation{Code: code}
}

// Input builds a fix request against the conversation's latest code, or a
// build request while there is no code yet. Fix requests keep the mode of the
// code they revise and carry the recent turns as history.
func (c Conversation) Input(text, errorContext string) Input {
	in := Input{
		Text:         text,
		PriorCode:    c.Code,
		ErrorContext: errorContext,
		History:      c.History(HistoryTurns),
		Kind:         request.KindFix,
		Mode:         c.Mode,
	}
	if c.Code == "" {
		in.Kind = request.KindBuild
		in.Mode = ""
	}
	return in
}

// History renders the last limit turns as a plain transcript. Generated code
// is left out; the latest code travels separately as prior code.
func (c Conversation) History(limit int) string {
	turns := c.Turns
	if limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	var b strings.Builder
	for i, t := range turns {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(string(t.Role))
		b.WriteString(": ")
		b.WriteString(t.Text)
		if t.ErrorContext != "" {
			b.WriteString("\n  error: ")
			b.WriteString(firstLine(t.ErrorContext))
		}
	}
	return b.String()
}

// Record appends the user turn and the reply. A successful reply replaces
// the latest code.
func (c Conversation) Record(in Input, result orchestrator.GenerationResult) Conversation {
	now := time.Now().UTC()
	next := Conversation{
		Turns: append(append(make([]Turn, 0, len(c.Turns)+2), c.Turns...), Turn{
			Role:         RoleUser,
			Text:         in.Text,
			ErrorContext: in.ErrorContext,
			At:           now,
		}),
		Code: c.Code,
		Mode: c.Mode,
	}

	reply := Turn{Role: RoleAssistant, At: now}
	if result.Succeeded {
		reply.Text = result.Explanation
		reply.Code = result.Content
		next.Code = result.Content
		next.Mode = result.Mode
	} else {
		reply.Text = result.FailureReason.UserMessage()
	}
	next.Turns = append(next.Turns, reply)
	return next
}

// Len returns the number of turns.
func (c Conversation) Len() int {
	return len(c.Turns)
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
