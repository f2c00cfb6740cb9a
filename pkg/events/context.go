package events

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ctxKey is an unexported type for keys defined in this package.
// This prevents collisions with keys defined in other packages.
type ctxKey int

const (
	ctxKeyEventSinks ctxKey = iota
)

// WithEventSinks attaches one or more EventSink instances to the context.
// Downstream code can retrieve the sinks and publish events without
// requiring access to engine configuration.
func WithEventSinks(ctx context.Context, sinks ...EventSink) context.Context {
	if len(sinks) == 0 {
		return ctx
	}
	existing := GetEventSinks(ctx)
	combined := append([]EventSink{}, existing...)
	combined = append(combined, sinks...)
	return context.WithValue(ctx, ctxKeyEventSinks, combined)
}

// GetEventSinks returns the list of EventSinks attached to the context.
func GetEventSinks(ctx context.Context) []EventSink {
	if v := ctx.Value(ctxKeyEventSinks); v != nil {
		if sinks, ok := v.([]EventSink); ok {
			return sinks
		}
	}
	return nil
}

// PublishEventToContext publishes the provided event to all EventSinks stored in the context.
// If no sinks are present, this is a no-op.
func PublishEventToContext(ctx context.Context, event Event) {
	sinks := GetEventSinks(ctx)
	if len(sinks) == 0 {
		return
	}
	log.Trace().Str("component", "events.context").Str("event_type", string(event.Type())).Int("sink_count", len(sinks)).Msg("publishing to context sinks")
	for _, sink := range sinks {
		// sink errors never abort the stream
		if err := sink.PublishEvent(event); err != nil {
			log.Debug().Err(err).Str("event_type", string(event.Type())).Msg("context sink rejected event")
		}
	}
}

type sessionMetaContextKey string

const (
	sessionIDContextKey   sessionMetaContextKey = "session_id"
	inferenceIDContextKey sessionMetaContextKey = "inference_id"
	providerContextKey    sessionMetaContextKey = "provider"
)

// WithSessionMeta stores session and inference identifiers in context so
// engines can correlate the events they publish for a single run.
func WithSessionMeta(ctx context.Context, sessionID, inferenceID, provider string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if sessionID != "" {
		ctx = context.WithValue(ctx, sessionIDContextKey, sessionID)
	}
	if inferenceID != "" {
		ctx = context.WithValue(ctx, inferenceIDContextKey, inferenceID)
	}
	if provider != "" {
		ctx = context.WithValue(ctx, providerContextKey, provider)
	}
	return ctx
}

// SessionIDFromContext returns the session identifier attached with
// WithSessionMeta, or "" when unavailable.
func SessionIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	sessionID, _ := ctx.Value(sessionIDContextKey).(string)
	return sessionID
}

// InferenceIDFromContext returns the inference identifier attached with
// WithSessionMeta, or "" when unavailable.
func InferenceIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	inferenceID, _ := ctx.Value(inferenceIDContextKey).(string)
	return inferenceID
}

// NewMetadataFromContext builds event metadata with a fresh message ID and
// the correlation identifiers carried by ctx.
func NewMetadataFromContext(ctx context.Context, model string) EventMetadata {
	ret := EventMetadata{
		ID:          uuid.New(),
		SessionID:   SessionIDFromContext(ctx),
		InferenceID: InferenceIDFromContext(ctx),
		LLMInferenceData: LLMInferenceData{
			Model: model,
		},
	}
	if ctx != nil {
		ret.Provider, _ = ctx.Value(providerContextKey).(string)
	}
	return ret
}
