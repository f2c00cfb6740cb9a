package inference

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/go-go-golems/multichat/pkg/events"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestWatermillSinkPublishesDecodableEvents(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer func() { _ = pubSub.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	msgs, err := pubSub.Subscribe(ctx, "chat")
	require.NoError(t, err)

	sink := NewWatermillSink(pubSub, "chat")
	meta := events.EventMetadata{ID: uuid.New(), SessionID: "sess-1"}
	require.NoError(t, sink.PublishEvent(events.NewPartialCompletionEvent(meta, "Hi", "Hi")))

	select {
	case msg := <-msgs:
		msg.Ack()
		require.Equal(t, "sess-1", msg.Metadata.Get("session_id"))
		ev, err := events.NewEventFromJson(msg.Payload)
		require.NoError(t, err)
		p, ok := ev.(*events.EventPartialCompletion)
		require.True(t, ok)
		require.Equal(t, "Hi", p.Delta)
	case <-ctx.Done():
		t.Fatal("no message received")
	}
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogSink(zerolog.New(&buf).Level(zerolog.DebugLevel))

	require.NoError(t, sink.PublishEvent(events.NewFinalEvent(events.EventMetadata{Provider: "echo"}, "done")))
	require.NoError(t, sink.PublishEvent(events.NewPartialCompletionEvent(events.EventMetadata{}, "d", "d")))

	out := buf.String()
	require.Contains(t, out, `"type":"final"`)
	require.Contains(t, out, `"provider":"echo"`)
	require.NotContains(t, out, `"delta"`)
}
