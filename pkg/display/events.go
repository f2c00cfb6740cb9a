package display

import (
	"strings"
	"sync"

	"github.com/go-go-golems/multichat/pkg/conversation"
	"github.com/go-go-golems/multichat/pkg/events"
	"github.com/go-go-golems/multichat/pkg/inference/engine"
	"github.com/google/uuid"
)

// EventSink bridges display commands onto an events.EventSink, typically a
// watermill sink, so that a remote or decoupled UI can subscribe to them.
type EventSink struct {
	mu         sync.Mutex
	sink       events.EventSink
	sessionID  string
	provider   string
	completion strings.Builder
}

func NewEventSink(sink events.EventSink, sessionID, provider string) *EventSink {
	return &EventSink{sink: sink, sessionID: sessionID, provider: provider}
}

func (e *EventSink) metadata() events.EventMetadata {
	return events.EventMetadata{
		ID:        uuid.New(),
		SessionID: e.sessionID,
		Provider:  e.provider,
	}
}

func (e *EventSink) RenderFull(turns conversation.Conversation) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.completion.Reset()
	_ = e.sink.PublishEvent(events.NewRenderFullEvent(e.metadata(), turns.Clone()))
}

func (e *EventSink) AppendDelta(delta string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.completion.WriteString(delta)
	_ = e.sink.PublishEvent(events.NewPartialCompletionEvent(e.metadata(), delta, e.completion.String()))
}

func (e *EventSink) NotifyError(err *engine.Error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.completion.Reset()
	_ = e.sink.PublishEvent(events.NewKindErrorEvent(e.metadata(), string(err.Kind), err))
}

var _ Sink = (*EventSink)(nil)
