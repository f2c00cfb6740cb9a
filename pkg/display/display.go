// Package display defines where a chat session sends what it wants shown:
// full history replays, streamed deltas and error notices.
package display

import (
	"github.com/go-go-golems/multichat/pkg/conversation"
	"github.com/go-go-golems/multichat/pkg/inference/engine"
)

// Sink receives render commands from a session. Implementations must be safe
// to call from the goroutine that drives a request.
type Sink interface {
	// RenderFull replaces whatever is displayed with turns.
	RenderFull(turns conversation.Conversation)
	// AppendDelta is called once per streamed fragment of the in-progress
	// assistant turn, in emission order. The end of the turn is signaled by
	// the next RenderFull or NotifyError.
	AppendDelta(delta string)
	// NotifyError shows a failure in place of the assistant turn.
	NotifyError(err *engine.Error)
}

// Nop discards everything.
type Nop struct{}

func (Nop) RenderFull(conversation.Conversation) {}
func (Nop) AppendDelta(string)                   {}
func (Nop) NotifyError(*engine.Error)            {}

var _ Sink = Nop{}

// Multi fans out every command to all sinks in order.
type Multi []Sink

func (m Multi) RenderFull(turns conversation.Conversation) {
	for _, s := range m {
		s.RenderFull(turns)
	}
}

func (m Multi) AppendDelta(delta string) {
	for _, s := range m {
		s.AppendDelta(delta)
	}
}

func (m Multi) NotifyError(err *engine.Error) {
	for _, s := range m {
		s.NotifyError(err)
	}
}

var _ Sink = Multi{}
