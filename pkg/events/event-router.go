package events

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/multichat/pkg/helpers"
)

// ChatEventHandler defines an interface for handling different chat events.
type ChatEventHandler interface {
	HandlePartialCompletion(ctx context.Context, e *EventPartialCompletion) error
	HandleFinal(ctx context.Context, e *EventFinal) error
	HandleError(ctx context.Context, e *EventError) error
	HandleInterrupt(ctx context.Context, e *EventInterrupt) error
	HandleImageGenerated(ctx context.Context, e *EventImageGenerated) error
}

type EventRouter struct {
	logger     watermill.LoggerAdapter
	Publisher  message.Publisher
	Subscriber message.Subscriber
	router     *message.Router
	verbose    bool
}

type EventRouterOption func(*EventRouter)

func WithLogger(logger watermill.LoggerAdapter) EventRouterOption {
	return func(r *EventRouter) {
		r.logger = logger
	}
}

func WithVerbose(verbose bool) EventRouterOption {
	return func(r *EventRouter) {
		r.verbose = verbose
		r.logger = helpers.NewWatermill(log.Logger)
	}
}

func NewEventRouter(options ...EventRouterOption) (*EventRouter, error) {
	ret := &EventRouter{
		logger: watermill.NopLogger{},
	}

	for _, o := range options {
		o(ret)
	}

	goPubSub := gochannel.NewGoChannel(gochannel.Config{
		BlockPublishUntilSubscriberAck: true,
	}, ret.logger)
	ret.Publisher = goPubSub
	ret.Subscriber = goPubSub

	router, err := message.NewRouter(message.RouterConfig{}, ret.logger)
	if err != nil {
		return nil, err
	}

	ret.router = router

	return ret, nil
}

func (e *EventRouter) Close() error {
	log.Debug().Msg("Closing publisher")
	if err := e.Publisher.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close pubsub")
		// keep going, the router still needs closing
	}

	log.Debug().Msg("Closing router")
	if err := e.router.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close router")
	}
	log.Debug().Msg("Router closed")

	return nil
}

// NewChatDispatchHandler creates a Watermill handler function that parses chat events
// and dispatches them to the appropriate method of the provided ChatEventHandler.
func NewChatDispatchHandler(handler ChatEventHandler) message.NoPublishHandlerFunc {
	return func(msg *message.Message) error {
		e, err := NewEventFromJson(msg.Payload)
		if err != nil {
			log.Error().Err(err).Str("message_id", msg.UUID).Str("payload", string(msg.Payload)).
				Msg("Failed to parse chat event from message payload")
			// one bad message must not kill the handler
			return nil
		}

		msgCtx := msg.Context()
		var handlerErr error
		switch ev := e.(type) {
		case *EventPartialCompletion:
			handlerErr = handler.HandlePartialCompletion(msgCtx, ev)
		case *EventFinal:
			handlerErr = handler.HandleFinal(msgCtx, ev)
		case *EventError:
			handlerErr = handler.HandleError(msgCtx, ev)
		case *EventInterrupt:
			handlerErr = handler.HandleInterrupt(msgCtx, ev)
		case *EventImageGenerated:
			handlerErr = handler.HandleImageGenerated(msgCtx, ev)
		default:
			log.Trace().Str("message_id", msg.UUID).Str("event_type", string(e.Type())).Msg("Unhandled chat event type")
		}

		if handlerErr != nil {
			log.Error().Err(handlerErr).Str("message_id", msg.UUID).Str("event_type", string(e.Type())).
				Msg("Error processing chat event")
			return handlerErr
		}

		return nil
	}
}

func (e *EventRouter) AddHandler(name string, topic string, f func(msg *message.Message) error) {
	e.router.AddNoPublisherHandler(name, topic, e.Subscriber, f)
}

// DumpRawEvents returns a handler that pretty prints every event payload to w.
func (e *EventRouter) DumpRawEvents(w io.Writer) func(msg *message.Message) error {
	return func(msg *message.Message) error {
		defer msg.Ack()

		var s map[string]interface{}
		err := json.Unmarshal(msg.Payload, &s)
		if err != nil {
			return err
		}
		if !e.verbose {
			if meta, ok := s["meta"].(map[string]interface{}); ok {
				s["id"] = meta["message_id"]
			}
			delete(s, "meta")
		}
		s_, err := json.MarshalIndent(s, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(s_))
		return err
	}
}

// LogEvents returns a handler that writes every event to the global zerolog logger at debug level.
func (e *EventRouter) LogEvents(msg *message.Message) error {
	defer msg.Ack()

	ev, err := NewEventFromJson(msg.Payload)
	if err != nil {
		log.Warn().Err(err).Str("message_id", msg.UUID).Msg("could not decode event")
		return nil
	}
	if m, ok := ev.(zerolog.LogObjectMarshaler); ok {
		log.Debug().EmbedObject(m).Msg("event")
		return nil
	}
	log.Debug().Str("type", string(ev.Type())).Msg("event")
	return nil
}

func (e *EventRouter) Running() chan struct{} {
	return e.router.Running()
}

func (e *EventRouter) IsRunning() bool {
	return e.router.IsRunning()
}

func (e *EventRouter) Run(ctx context.Context) error {
	return e.router.Run(ctx)
}

func (e *EventRouter) RunHandlers(ctx context.Context) error {
	return e.router.RunHandlers(ctx)
}
