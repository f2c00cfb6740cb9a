// Package echo provides a provider that needs no network: it answers every
// prompt by streaming it back word by word. It is used for offline demos and
// tests of the display path.
package echo

import (
	"context"
	"encoding/base64"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/go-go-golems/multichat/pkg/conversation"
	"github.com/go-go-golems/multichat/pkg/events"
	"github.com/go-go-golems/multichat/pkg/inference/engine"
	"github.com/pkg/errors"
)

var ErrScriptedFailure = errors.New("scripted failure")

type EchoEngine struct {
	TimePerChunk time.Duration
	// Prefix is streamed before the echoed prompt.
	Prefix string
	// FailAfter makes the engine fail with FailKind after that many chunks.
	// Negative disables failures.
	FailAfter int
	FailKind  engine.ErrorKind

	config *engine.Config
}

var _ engine.Engine = (*EchoEngine)(nil)

type Option func(*EchoEngine)

func WithTimePerChunk(d time.Duration) Option {
	return func(e *EchoEngine) {
		e.TimePerChunk = d
	}
}

func WithPrefix(p string) Option {
	return func(e *EchoEngine) {
		e.Prefix = p
	}
}

func WithFailure(afterChunks int, kind engine.ErrorKind) Option {
	return func(e *EchoEngine) {
		e.FailAfter = afterChunks
		e.FailKind = kind
	}
}

func WithEngineOptions(options ...engine.Option) Option {
	return func(e *EchoEngine) {
		_ = engine.ApplyOptions(e.config, options...)
	}
}

func NewEchoEngine(options ...Option) *EchoEngine {
	ret := &EchoEngine{
		TimePerChunk: 50 * time.Millisecond,
		Prefix:       "You said: ",
		FailAfter:    -1,
		config:       engine.NewConfig(),
	}
	for _, o := range options {
		o(ret)
	}
	return ret
}

// chunks splits s after every space, so that joining them yields s again.
func chunks(s string) []string {
	if s == "" {
		return nil
	}
	return strings.SplitAfter(s, " ")
}

func (e *EchoEngine) RunInference(ctx context.Context, history conversation.Conversation, onDelta engine.DeltaFunc) (string, error) {
	last, ok := history.Last()
	if !ok || last.Role != conversation.RoleUser {
		return "", engine.NewError(engine.ErrorKindUnknown, errors.New("no user prompt to echo"))
	}

	metadata := events.NewMetadataFromContext(ctx, "echo")
	e.config.PublishEvent(ctx, events.NewStartEvent(metadata))

	var message strings.Builder
	for idx, c := range chunks(e.Prefix + last.Content) {
		if e.FailAfter >= 0 && idx >= e.FailAfter {
			kerr := &engine.Error{Kind: e.FailKind, Provider: "echo", Err: ErrScriptedFailure}
			e.config.PublishEvent(ctx, events.NewKindErrorEvent(metadata, string(kerr.Kind), kerr))
			return message.String(), kerr
		}
		select {
		case <-ctx.Done():
			e.config.PublishEvent(ctx, events.NewInterruptEvent(metadata, message.String()))
			return message.String(), ctx.Err()
		case <-time.After(e.TimePerChunk):
		}
		message.WriteString(c)
		onDelta(c)
		e.config.PublishEvent(ctx, events.NewPartialCompletionEvent(metadata, c, message.String()))
	}

	e.config.PublishEvent(ctx, events.NewFinalEvent(metadata, message.String()))
	return message.String(), nil
}

// ImageGenerator renders the prompt into a small SVG data URI.
type ImageGenerator struct {
	Delay  time.Duration
	config *engine.Config
}

var _ engine.ImageGenerator = (*ImageGenerator)(nil)

func NewImageGenerator(options ...engine.Option) (*ImageGenerator, error) {
	cfg := engine.NewConfig()
	if err := engine.ApplyOptions(cfg, options...); err != nil {
		return nil, err
	}
	return &ImageGenerator{Delay: 200 * time.Millisecond, config: cfg}, nil
}

const svgTemplate = `<svg xmlns="http://www.w3.org/2000/svg" width="512" height="128">` +
	`<rect width="100%%" height="100%%" fill="#222"/>` +
	`<text x="16" y="72" fill="#eee" font-family="monospace" font-size="20">%s</text></svg>`

func (g *ImageGenerator) GenerateImage(ctx context.Context, prompt string) (*conversation.ImageRecord, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(g.Delay):
	}
	svg := fmt.Sprintf(svgTemplate, html.EscapeString(prompt))
	record := &conversation.ImageRecord{
		Prompt:    prompt,
		Ref:       "data:image/svg+xml;base64," + base64.StdEncoding.EncodeToString([]byte(svg)),
		CreatedAt: time.Now(),
	}
	g.config.PublishEvent(ctx, events.NewImageGeneratedEvent(events.NewMetadataFromContext(ctx, "echo"), *record))
	return record, nil
}
