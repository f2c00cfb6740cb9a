package openai

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/go-go-golems/multichat/pkg/conversation"
	"github.com/go-go-golems/multichat/pkg/events"
	"github.com/go-go-golems/multichat/pkg/inference/engine"
	"github.com/go-go-golems/multichat/pkg/steps/ai/settings"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	go_openai "github.com/sashabaranov/go-openai"
)

// ErrContentFiltered is wrapped into the Blocked error returned when the
// stream finishes with the content_filter reason.
var ErrContentFiltered = errors.New("completion stopped by the content filter")

// OpenAIEngine streams chat completions from the OpenAI API.
type OpenAIEngine struct {
	settings *settings.Settings
	client   *go_openai.Client
	config   *engine.Config
}

var _ engine.Engine = (*OpenAIEngine)(nil)

func NewOpenAIEngine(s *settings.Settings, options ...engine.Option) (*OpenAIEngine, error) {
	client, err := MakeClient(s)
	if err != nil {
		return nil, err
	}
	cfg := engine.NewConfig()
	if err := engine.ApplyOptions(cfg, options...); err != nil {
		return nil, err
	}
	return &OpenAIEngine{settings: s, client: client, config: cfg}, nil
}

func (e *OpenAIEngine) RunInference(ctx context.Context, history conversation.Conversation, onDelta engine.DeltaFunc) (string, error) {
	req, err := MakeCompletionRequest(e.settings, history)
	if err != nil {
		return "", engine.NewError(engine.ErrorKindUnknown, err)
	}

	startTime := time.Now()
	metadata := events.NewMetadataFromContext(ctx, req.Model)
	log.Debug().Str("event_id", metadata.ID.String()).Msg("OpenAI publishing start event")
	e.config.PublishEvent(ctx, events.NewStartEvent(metadata))

	stream, err := e.client.CreateChatCompletionStream(ctx, *req)
	if err != nil {
		kerr := classifyError(err)
		log.Warn().Err(err).Str("kind", string(kerr.Kind)).Msg("OpenAI streaming request failed")
		e.config.PublishEvent(ctx, events.NewKindErrorEvent(metadata, string(kerr.Kind), kerr))
		return "", kerr
	}
	defer func() {
		if err := stream.Close(); err != nil {
			log.Debug().Err(err).Msg("failed to close openai stream")
		}
	}()

	var message strings.Builder
	chunkCount := 0
	for {
		select {
		case <-ctx.Done():
			log.Debug().Msg("OpenAI streaming cancelled by context")
			setDuration(&metadata, startTime)
			e.config.PublishEvent(ctx, events.NewInterruptEvent(metadata, message.String()))
			return message.String(), ctx.Err()

		default:
		}

		response, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			log.Debug().Int("chunks_received", chunkCount).Msg("OpenAI stream completed")
			break
		}
		if err != nil {
			setDuration(&metadata, startTime)
			if ctx.Err() != nil {
				e.config.PublishEvent(ctx, events.NewInterruptEvent(metadata, message.String()))
				return message.String(), ctx.Err()
			}
			kerr := classifyError(err)
			log.Warn().Err(err).Int("chunks_received", chunkCount).Msg("OpenAI stream receive failed")
			e.config.PublishEvent(ctx, events.NewKindErrorEvent(metadata, string(kerr.Kind), kerr))
			return message.String(), kerr
		}
		chunkCount++

		if u := usageOf(response.Usage); u != nil {
			metadata.Usage = u
		}
		if len(response.Choices) == 0 {
			continue
		}
		choice := response.Choices[0]
		if delta := choice.Delta.Content; delta != "" {
			message.WriteString(delta)
			onDelta(delta)
			e.config.PublishEvent(ctx, events.NewPartialCompletionEvent(metadata, delta, message.String()))
		}
		if choice.FinishReason != "" {
			reason := string(choice.FinishReason)
			metadata.StopReason = &reason
		}
		if choice.FinishReason == go_openai.FinishReasonContentFilter {
			setDuration(&metadata, startTime)
			kerr := &engine.Error{Kind: engine.ErrorKindBlocked, Provider: providerName, Err: ErrContentFiltered}
			e.config.PublishEvent(ctx, events.NewKindErrorEvent(metadata, string(kerr.Kind), kerr))
			return message.String(), kerr
		}
	}

	setDuration(&metadata, startTime)
	e.config.PublishEvent(ctx, events.NewFinalEvent(metadata, message.String()))
	log.Debug().Int("final_text_length", message.Len()).Msg("OpenAI RunInference completed (streaming)")
	return message.String(), nil
}

func setDuration(m *events.EventMetadata, start time.Time) {
	d := time.Since(start).Milliseconds()
	m.DurationMs = &d
}
