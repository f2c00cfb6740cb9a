package events

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/go-go-golems/multichat/pkg/conversation"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestNewEventFromJson_DecodesTypedEvents(t *testing.T) {
	meta := EventMetadata{ID: uuid.New(), SessionID: "s1", Provider: "openai"}

	b, err := json.Marshal(NewPartialCompletionEvent(meta, "lo", "hello"))
	require.NoError(t, err)
	ev, err := NewEventFromJson(b)
	require.NoError(t, err)
	partial, ok := ev.(*EventPartialCompletion)
	require.True(t, ok)
	require.Equal(t, "lo", partial.Delta)
	require.Equal(t, "hello", partial.Completion)
	require.Equal(t, meta.ID, partial.Metadata().ID)
	require.Equal(t, "openai", partial.Metadata().Provider)
	require.Equal(t, b, partial.Payload())

	b, err = json.Marshal(NewKindErrorEvent(meta, "blocked", errors.New("nope")))
	require.NoError(t, err)
	ev, err = NewEventFromJson(b)
	require.NoError(t, err)
	errEv, ok := ev.(*EventError)
	require.True(t, ok)
	require.Equal(t, "blocked", errEv.Kind)
	require.Equal(t, "nope", errEv.ErrorString)
}

func TestNewEventFromJson_UnknownTypeFallsBackToImpl(t *testing.T) {
	ev, err := NewEventFromJson([]byte(`{"type":"something-else"}`))
	require.NoError(t, err)
	_, ok := ev.(*EventImpl)
	require.True(t, ok)
	require.Equal(t, EventType("something-else"), ev.Type())
}

func TestNewEventFromJson_Invalid(t *testing.T) {
	_, err := NewEventFromJson([]byte(`{`))
	require.Error(t, err)
	_, err = NewEventFromJson([]byte(`null`))
	require.Error(t, err)
}

type collectingSink struct {
	events []Event
}

func (c *collectingSink) PublishEvent(event Event) error {
	c.events = append(c.events, event)
	return nil
}

func TestPublishEventToContext(t *testing.T) {
	a, b := &collectingSink{}, &collectingSink{}
	ctx := WithEventSinks(context.Background(), a)
	ctx = WithEventSinks(ctx, b)
	require.Len(t, GetEventSinks(ctx), 2)

	PublishEventToContext(ctx, NewFinalEvent(EventMetadata{}, "done"))
	require.Len(t, a.events, 1)
	require.Len(t, b.events, 1)

	// no sinks: no-op
	PublishEventToContext(context.Background(), NewFinalEvent(EventMetadata{}, "done"))
}

func TestStepPrinterFunc(t *testing.T) {
	var buf bytes.Buffer
	printer := StepPrinterFunc("assistant", &buf)
	meta := EventMetadata{ID: uuid.New()}

	send := func(e Event) {
		b, err := json.Marshal(e)
		require.NoError(t, err)
		require.NoError(t, printer(message.NewMessage(watermill.NewUUID(), b)))
	}

	send(NewStartEvent(meta))
	send(NewPartialCompletionEvent(meta, "Hi", "Hi"))
	send(NewPartialCompletionEvent(meta, " there", "Hi there"))
	send(NewFinalEvent(meta, "Hi there"))
	send(NewImageGeneratedEvent(meta, conversation.ImageRecord{Prompt: "cat", Ref: "https://x/cat.png"}))

	out := buf.String()
	require.Contains(t, out, "assistant: \nHi there\n")
	require.Contains(t, out, "prompt: cat")
}
