package ollama

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/go-go-golems/multichat/pkg/conversation"
	"github.com/go-go-golems/multichat/pkg/events"
	"github.com/go-go-golems/multichat/pkg/inference/engine"
	"github.com/go-go-golems/multichat/pkg/steps/ai/settings"
	"github.com/ollama/ollama/api"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const providerName = "ollama"

// OllamaEngine streams chat completions from a local ollama server.
type OllamaEngine struct {
	settings *settings.Settings
	client   *api.Client
	config   *engine.Config
}

var _ engine.Engine = (*OllamaEngine)(nil)

func NewOllamaEngine(s *settings.Settings, options ...engine.Option) (*OllamaEngine, error) {
	if s == nil || s.Ollama == nil {
		return nil, errors.New("no ollama settings")
	}
	base, err := url.Parse(s.Ollama.BaseURL)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid ollama base url %q", s.Ollama.BaseURL)
	}
	cfg := engine.NewConfig()
	if err := engine.ApplyOptions(cfg, options...); err != nil {
		return nil, err
	}
	return &OllamaEngine{
		settings: s,
		client:   api.NewClient(base, s.Client.GetHTTPClient()),
		config:   cfg,
	}, nil
}

func messagesFromHistory(history conversation.Conversation) []api.Message {
	ret := make([]api.Message, 0, len(history))
	for _, t := range history {
		ret = append(ret, api.Message{Role: string(t.Role), Content: t.Content})
	}
	return ret
}

func (e *OllamaEngine) makeRequest(history conversation.Conversation) *api.ChatRequest {
	stream := true
	options := e.settings.Ollama.Options()
	if chat := e.settings.Chat; chat != nil {
		if chat.Temperature != nil {
			if _, ok := options["temperature"]; !ok {
				options["temperature"] = *chat.Temperature
			}
		}
		if chat.TopP != nil {
			options["top_p"] = *chat.TopP
		}
		if chat.MaxResponseTokens != nil {
			options["num_predict"] = *chat.MaxResponseTokens
		}
		if len(chat.Stop) > 0 {
			options["stop"] = chat.Stop
		}
	}
	return &api.ChatRequest{
		Model:    e.settings.Ollama.Model,
		Messages: messagesFromHistory(history),
		Stream:   &stream,
		Options:  options,
	}
}

func (e *OllamaEngine) RunInference(ctx context.Context, history conversation.Conversation, onDelta engine.DeltaFunc) (string, error) {
	req := e.makeRequest(history)

	startTime := time.Now()
	metadata := events.NewMetadataFromContext(ctx, req.Model)
	e.config.PublishEvent(ctx, events.NewStartEvent(metadata))

	var message strings.Builder
	err := e.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		if delta := resp.Message.Content; delta != "" {
			message.WriteString(delta)
			onDelta(delta)
			e.config.PublishEvent(ctx, events.NewPartialCompletionEvent(metadata, delta, message.String()))
		}
		if resp.Done {
			if resp.DoneReason != "" {
				reason := resp.DoneReason
				metadata.StopReason = &reason
			}
			if resp.PromptEvalCount > 0 || resp.EvalCount > 0 {
				metadata.Usage = &events.Usage{InputTokens: resp.PromptEvalCount, OutputTokens: resp.EvalCount}
			}
		}
		return nil
	})
	d := time.Since(startTime).Milliseconds()
	metadata.DurationMs = &d

	if err != nil {
		if ctx.Err() != nil {
			e.config.PublishEvent(ctx, events.NewInterruptEvent(metadata, message.String()))
			return message.String(), ctx.Err()
		}
		kerr := classifyError(err)
		log.Warn().Err(err).Str("kind", string(kerr.Kind)).Msg("Ollama chat failed")
		e.config.PublishEvent(ctx, events.NewKindErrorEvent(metadata, string(kerr.Kind), kerr))
		return message.String(), kerr
	}

	e.config.PublishEvent(ctx, events.NewFinalEvent(metadata, message.String()))
	log.Debug().Int("final_text_length", message.Len()).Msg("Ollama RunInference completed (streaming)")
	return message.String(), nil
}

func classifyError(err error) *engine.Error {
	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		return &engine.Error{Kind: engine.ErrorKindTransport, Provider: providerName, Err: err}
	}
	ret := engine.Classify(err)
	ret.Provider = providerName
	return ret
}
