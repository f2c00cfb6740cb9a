package openai

import (
	"context"
	"time"

	"github.com/go-go-golems/multichat/pkg/conversation"
	"github.com/go-go-golems/multichat/pkg/events"
	"github.com/go-go-golems/multichat/pkg/inference/engine"
	"github.com/go-go-golems/multichat/pkg/steps/ai/settings"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	go_openai "github.com/sashabaranov/go-openai"
)

var ErrNoImageData = errors.New("image response contained no data")

// ImageGenerator generates one image per prompt with the images API.
type ImageGenerator struct {
	settings *settings.Settings
	client   *go_openai.Client
	config   *engine.Config
}

var _ engine.ImageGenerator = (*ImageGenerator)(nil)

func NewImageGenerator(s *settings.Settings, options ...engine.Option) (*ImageGenerator, error) {
	client, err := MakeClient(s)
	if err != nil {
		return nil, err
	}
	cfg := engine.NewConfig()
	if err := engine.ApplyOptions(cfg, options...); err != nil {
		return nil, err
	}
	return &ImageGenerator{settings: s, client: client, config: cfg}, nil
}

func (g *ImageGenerator) GenerateImage(ctx context.Context, prompt string) (*conversation.ImageRecord, error) {
	req := go_openai.ImageRequest{
		Prompt:         prompt,
		Model:          g.settings.OpenAI.ImageModel,
		Size:           g.settings.OpenAI.ImageSize,
		N:              1,
		ResponseFormat: go_openai.CreateImageResponseFormatURL,
	}
	metadata := events.NewMetadataFromContext(ctx, req.Model)

	log.Debug().Str("model", req.Model).Str("size", req.Size).Msg("OpenAI generating image")
	resp, err := g.client.CreateImage(ctx, req)
	if err != nil {
		kerr := classifyError(err)
		g.config.PublishEvent(ctx, events.NewKindErrorEvent(metadata, string(kerr.Kind), kerr))
		return nil, kerr
	}
	if len(resp.Data) == 0 {
		kerr := &engine.Error{Kind: engine.ErrorKindUnknown, Provider: providerName, Err: ErrNoImageData}
		g.config.PublishEvent(ctx, events.NewKindErrorEvent(metadata, string(kerr.Kind), kerr))
		return nil, kerr
	}

	data := resp.Data[0]
	ref := data.URL
	if ref == "" && data.B64JSON != "" {
		ref = "data:image/png;base64," + data.B64JSON
	}
	created := time.Now()
	if resp.Created > 0 {
		created = time.Unix(resp.Created, 0)
	}
	record := &conversation.ImageRecord{
		Prompt:        prompt,
		Ref:           ref,
		RevisedPrompt: data.RevisedPrompt,
		CreatedAt:     created,
	}
	g.config.PublishEvent(ctx, events.NewImageGeneratedEvent(metadata, *record))
	return record, nil
}
