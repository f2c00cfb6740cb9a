package events

import (
	"encoding/json"
	"fmt"

	"github.com/go-go-golems/multichat/pkg/conversation"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type EventType string

const (
	// EventTypeStart to EventTypeFinal are for text completion
	EventTypeStart             EventType = "start"
	EventTypeFinal             EventType = "final"
	EventTypePartialCompletion EventType = "partial"
	EventTypeError             EventType = "error"
	EventTypeInterrupt         EventType = "interrupt"

	// Image generation is request/response, there are no partial events
	EventTypeImageGenerated EventType = "image-generated"

	// Display commands, published when a display is bridged onto the bus
	EventTypeRenderFull EventType = "render-full"
)

type Event interface {
	Type() EventType
	Metadata() EventMetadata
	Payload() []byte
}

type EventImpl struct {
	Type_     EventType     `json:"type"`
	Metadata_ EventMetadata `json:"meta,omitempty"`

	// store payload if the event was deserialized from JSON (see NewEventFromJson), not further used
	payload []byte
}

func (e *EventImpl) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("type", string(e.Type_))
	ev.Object("meta", e.Metadata_)
}

func (e *EventImpl) Type() EventType {
	return e.Type_
}

func (e *EventImpl) Metadata() EventMetadata {
	return e.Metadata_
}

func (e *EventImpl) Payload() []byte {
	return e.payload
}

var _ Event = &EventImpl{}

type EventPartialCompletionStart struct {
	EventImpl
}

func NewStartEvent(metadata EventMetadata) *EventPartialCompletionStart {
	return &EventPartialCompletionStart{
		EventImpl: EventImpl{
			Type_:     EventTypeStart,
			Metadata_: metadata,
		},
	}
}

var _ Event = &EventPartialCompletionStart{}

// EventInterrupt is published when a stream is cancelled. Text is the partial
// completion received so far.
type EventInterrupt struct {
	EventImpl
	Text string `json:"text"`
}

func NewInterruptEvent(metadata EventMetadata, text string) *EventInterrupt {
	return &EventInterrupt{
		EventImpl: EventImpl{
			Type_:     EventTypeInterrupt,
			Metadata_: metadata,
		},
		Text: text,
	}
}

var _ Event = &EventInterrupt{}

type EventFinal struct {
	EventImpl
	Text string `json:"text"`
}

func NewFinalEvent(metadata EventMetadata, text string) *EventFinal {
	return &EventFinal{
		EventImpl: EventImpl{
			Type_:     EventTypeFinal,
			Metadata_: metadata,
		},
		Text: text,
	}
}

var _ Event = &EventFinal{}

type EventError struct {
	EventImpl
	ErrorString string `json:"error_string"`
	// Kind is the error taxonomy name (blocked, transport, timeout, canceled, unknown).
	Kind string `json:"kind,omitempty"`
}

func NewErrorEvent(metadata EventMetadata, err error) *EventError {
	return &EventError{
		EventImpl: EventImpl{
			Type_:     EventTypeError,
			Metadata_: metadata,
		},
		ErrorString: err.Error(),
	}
}

// NewKindErrorEvent is NewErrorEvent with the error kind filled in.
func NewKindErrorEvent(metadata EventMetadata, kind string, err error) *EventError {
	ret := NewErrorEvent(metadata, err)
	ret.Kind = kind
	return ret
}

var _ Event = &EventError{}

// EventPartialCompletion is the event type for textual partial completion.
type EventPartialCompletion struct {
	EventImpl
	Delta string `json:"delta"`
	// This is the complete completion string so far
	Completion string `json:"completion"`
}

func NewPartialCompletionEvent(metadata EventMetadata, delta string, completion string) *EventPartialCompletion {
	return &EventPartialCompletion{
		EventImpl: EventImpl{
			Type_:     EventTypePartialCompletion,
			Metadata_: metadata,
		},
		Delta:      delta,
		Completion: completion,
	}
}

var _ Event = &EventPartialCompletion{}

type EventImageGenerated struct {
	EventImpl
	Image conversation.ImageRecord `json:"image"`
}

func NewImageGeneratedEvent(metadata EventMetadata, image conversation.ImageRecord) *EventImageGenerated {
	return &EventImageGenerated{
		EventImpl: EventImpl{
			Type_:     EventTypeImageGenerated,
			Metadata_: metadata,
		},
		Image: image,
	}
}

var _ Event = &EventImageGenerated{}

type EventRenderFull struct {
	EventImpl
	Turns conversation.Conversation `json:"turns"`
}

func NewRenderFullEvent(metadata EventMetadata, turns conversation.Conversation) *EventRenderFull {
	return &EventRenderFull{
		EventImpl: EventImpl{
			Type_:     EventTypeRenderFull,
			Metadata_: metadata,
		},
		Turns: turns,
	}
}

var _ Event = &EventRenderFull{}

// EventMetadata contains all the information that is passed along with watermill message,
// specific to chat sessions.
type EventMetadata struct {
	LLMInferenceData
	ID uuid.UUID `json:"message_id" yaml:"message_id" mapstructure:"message_id"`
	// Correlation identifiers
	SessionID   string `json:"session_id,omitempty" yaml:"session_id,omitempty" mapstructure:"session_id"`
	InferenceID string `json:"inference_id,omitempty" yaml:"inference_id,omitempty" mapstructure:"inference_id"`
	Provider    string `json:"provider,omitempty" yaml:"provider,omitempty" mapstructure:"provider"`
	// Extra carries provider-specific/context values
	Extra map[string]interface{} `json:"extra,omitempty" yaml:"extra,omitempty" mapstructure:"extra"`
}

func (em EventMetadata) MarshalZerologObject(e *zerolog.Event) {
	e.Str("message_id", em.ID.String())
	if em.SessionID != "" {
		e.Str("session_id", em.SessionID)
	}
	if em.InferenceID != "" {
		e.Str("inference_id", em.InferenceID)
	}
	if em.Provider != "" {
		e.Str("provider", em.Provider)
	}
	if em.Model != "" {
		e.Str("model", em.Model)
	}
	if em.StopReason != nil && *em.StopReason != "" {
		e.Str("stop_reason", *em.StopReason)
	}
	if em.Usage != nil {
		e.Int("input_tokens", em.Usage.InputTokens)
		e.Int("output_tokens", em.Usage.OutputTokens)
	}
	if em.DurationMs != nil {
		e.Int64("duration_ms", *em.DurationMs)
	}
	if len(em.Extra) > 0 {
		e.Dict("extra", zerolog.Dict().Fields(em.Extra))
	}
}

func NewEventFromJson(b []byte) (Event, error) {
	var e *EventImpl
	err := json.Unmarshal(b, &e)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, fmt.Errorf("empty event payload")
	}

	e.payload = b

	switch e.Type_ {
	case EventTypeStart:
		return decodeTyped[EventPartialCompletionStart](e)
	case EventTypePartialCompletion:
		return decodeTyped[EventPartialCompletion](e)
	case EventTypeFinal:
		return decodeTyped[EventFinal](e)
	case EventTypeError:
		return decodeTyped[EventError](e)
	case EventTypeInterrupt:
		return decodeTyped[EventInterrupt](e)
	case EventTypeImageGenerated:
		return decodeTyped[EventImageGenerated](e)
	case EventTypeRenderFull:
		return decodeTyped[EventRenderFull](e)
	}

	return e, nil
}

// decodeTyped unmarshals the payload of e into T and keeps the raw payload on
// the embedded EventImpl.
func decodeTyped[T any, PT interface {
	*T
	Event
	setPayload([]byte)
}](e *EventImpl) (Event, error) {
	ret, ok := ToTypedEvent[T](e)
	if !ok || ret == nil {
		return nil, fmt.Errorf("could not cast event to %s", e.Type_)
	}
	PT(ret).setPayload(e.payload)
	return PT(ret), nil
}

func (e *EventImpl) setPayload(b []byte) {
	e.payload = b
}

func ToTypedEvent[T any](e Event) (*T, bool) {
	var ret *T
	err := json.Unmarshal(e.Payload(), &ret)
	if err != nil {
		return nil, false
	}

	return ret, true
}

func (e EventPartialCompletionStart) MarshalZerologObject(ev *zerolog.Event) {
	e.EventImpl.MarshalZerologObject(ev)
}

func (e EventInterrupt) MarshalZerologObject(ev *zerolog.Event) {
	e.EventImpl.MarshalZerologObject(ev)
	ev.Str("text", e.Text)
}

func (e EventFinal) MarshalZerologObject(ev *zerolog.Event) {
	e.EventImpl.MarshalZerologObject(ev)
	ev.Int("text_len", len(e.Text))
}

func (e EventError) MarshalZerologObject(ev *zerolog.Event) {
	e.EventImpl.MarshalZerologObject(ev)
	ev.Str("error", e.ErrorString)
	if e.Kind != "" {
		ev.Str("kind", e.Kind)
	}
}

func (e EventPartialCompletion) MarshalZerologObject(ev *zerolog.Event) {
	e.EventImpl.MarshalZerologObject(ev)
	ev.Str("delta", e.Delta)
	ev.Int("completion_len", len(e.Completion))
}

func (e EventImageGenerated) MarshalZerologObject(ev *zerolog.Event) {
	e.EventImpl.MarshalZerologObject(ev)
	ev.Str("prompt", e.Image.Prompt)
	ev.Str("ref", truncate(e.Image.Ref, 120))
}

func (e EventRenderFull) MarshalZerologObject(ev *zerolog.Event) {
	e.EventImpl.MarshalZerologObject(ev)
	ev.Int("turns", len(e.Turns))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
