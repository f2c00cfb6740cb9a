package gemini

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/go-go-golems/multichat/pkg/conversation"
	"github.com/go-go-golems/multichat/pkg/events"
	"github.com/go-go-golems/multichat/pkg/inference/engine"
	"github.com/go-go-golems/multichat/pkg/steps/ai/settings"
	genai "github.com/google/generative-ai-go/genai"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GeminiEngine implements the Engine interface for Google's Gemini API
type GeminiEngine struct {
	settings      *settings.Settings
	config        *engine.Config
	clientOptions []option.ClientOption
}

var _ engine.Engine = (*GeminiEngine)(nil)

// NewGeminiEngine creates a new Gemini inference engine with the given settings and options.
func NewGeminiEngine(s *settings.Settings, options ...engine.Option) (*GeminiEngine, error) {
	if s == nil || s.Gemini == nil {
		return nil, errors.New("no gemini settings")
	}
	if s.Gemini.APIKey == "" {
		return nil, errors.New("missing gemini API key")
	}
	cfg := engine.NewConfig()
	if err := engine.ApplyOptions(cfg, options...); err != nil {
		return nil, err
	}
	clientOptions := []option.ClientOption{option.WithAPIKey(s.Gemini.APIKey)}
	if s.Gemini.BaseURL != "" {
		clientOptions = append(clientOptions, option.WithEndpoint(s.Gemini.BaseURL))
	}
	return &GeminiEngine{
		settings:      s,
		config:        cfg,
		clientOptions: clientOptions,
	}, nil
}

func (e *GeminiEngine) configureModel(model *genai.GenerativeModel) {
	chat := e.settings.Chat
	if chat == nil {
		return
	}
	if chat.Temperature != nil {
		model.SetTemperature(float32(*chat.Temperature))
	}
	if chat.TopP != nil {
		model.SetTopP(float32(*chat.TopP))
	}
	if chat.MaxResponseTokens != nil {
		model.SetMaxOutputTokens(clampInt32(*chat.MaxResponseTokens))
	}
	if len(chat.Stop) > 0 {
		model.StopSequences = chat.Stop
	}
}

// RunInference sends the last user turn of history as a chat message, with
// the preceding turns as chat history, and streams the answer.
func (e *GeminiEngine) RunInference(ctx context.Context, history conversation.Conversation, onDelta engine.DeltaFunc) (string, error) {
	prior, parts, err := splitHistory(history)
	if err != nil {
		return "", engine.NewError(engine.ErrorKindUnknown, err)
	}

	client, err := genai.NewClient(ctx, e.clientOptions...)
	if err != nil {
		return "", classifyError(errors.Wrap(err, "failed to create gemini client"))
	}
	defer func() {
		if err := client.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close gemini client")
		}
	}()

	modelName := e.settings.Gemini.Model
	model := client.GenerativeModel(modelName)
	e.configureModel(model)

	cs := model.StartChat()
	cs.History = prior

	startTime := time.Now()
	metadata := events.NewMetadataFromContext(ctx, modelName)
	e.config.PublishEvent(ctx, events.NewStartEvent(metadata))

	log.Debug().Int("history_len", len(prior)).Str("model", modelName).Msg("Gemini RunInference started (streaming)")
	iter := cs.SendMessageStream(ctx, parts...)

	var message strings.Builder
	chunkCount := 0
	for {
		resp, err := iter.Next()
		if err == iterator.Done || errors.Is(err, io.EOF) {
			log.Debug().Int("chunks_received", chunkCount).Msg("Gemini stream completed")
			break
		}
		if err != nil {
			setDuration(&metadata, startTime)
			if ctx.Err() != nil {
				e.config.PublishEvent(ctx, events.NewInterruptEvent(metadata, message.String()))
				return message.String(), ctx.Err()
			}
			kerr := classifyError(err)
			log.Warn().Err(err).Str("kind", string(kerr.Kind)).Int("chunks_received", chunkCount).Msg("Gemini stream receive failed")
			e.config.PublishEvent(ctx, events.NewKindErrorEvent(metadata, string(kerr.Kind), kerr))
			return message.String(), kerr
		}
		chunkCount++

		if u := usageOf(resp); u != nil {
			metadata.Usage = u
		}
		if fr, ok := finishReasonOf(resp); ok {
			s := fr.String()
			metadata.StopReason = &s
		}
		if delta := textOf(resp); delta != "" {
			message.WriteString(delta)
			onDelta(delta)
			e.config.PublishEvent(ctx, events.NewPartialCompletionEvent(metadata, delta, message.String()))
		}
	}

	setDuration(&metadata, startTime)
	e.config.PublishEvent(ctx, events.NewFinalEvent(metadata, message.String()))

	log.Debug().Int("final_text_len", message.Len()).Msg("Gemini RunInference completed (streaming)")
	return message.String(), nil
}

func setDuration(m *events.EventMetadata, start time.Time) {
	d := time.Since(start).Milliseconds()
	m.DurationMs = &d
}
