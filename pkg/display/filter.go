package display

import (
	"github.com/go-go-golems/multichat/pkg/conversation"
	"github.com/go-go-golems/multichat/pkg/inference/engine"
)

// StreamOnly passes deltas and errors through and drops full renders. It
// suits one-shot output where the history is already known to the reader.
type StreamOnly struct {
	Sink Sink
}

func (s StreamOnly) RenderFull(conversation.Conversation) {}

func (s StreamOnly) AppendDelta(delta string) {
	s.Sink.AppendDelta(delta)
}

func (s StreamOnly) NotifyError(err *engine.Error) {
	s.Sink.NotifyError(err)
}

// AnswerOnly drops deltas and reduces full renders to the assistant turn the
// history ends with. Renders that end with a user turn are dropped.
type AnswerOnly struct {
	Sink Sink
}

func (a AnswerOnly) RenderFull(turns conversation.Conversation) {
	last, ok := turns.Last()
	if !ok || last.Role != conversation.RoleAssistant {
		return
	}
	a.Sink.RenderFull(conversation.Conversation{last})
}

func (a AnswerOnly) AppendDelta(string) {}

func (a AnswerOnly) NotifyError(err *engine.Error) {
	a.Sink.NotifyError(err)
}

var (
	_ Sink = StreamOnly{}
	_ Sink = AnswerOnly{}
)
