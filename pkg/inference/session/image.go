package session

import (
	"context"
	"strings"
	"sync"

	"github.com/go-go-golems/multichat/pkg/conversation"
	"github.com/go-go-golems/multichat/pkg/display"
	"github.com/go-go-golems/multichat/pkg/events"
	"github.com/go-go-golems/multichat/pkg/inference/engine"
	"github.com/go-go-golems/multichat/pkg/steps/ai/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ImageSession keeps a log of generated images instead of a turn history.
// Requests are single-shot: there is no streaming and no context is sent to
// the generator besides the prompt.
type ImageSession struct {
	SessionID string

	generator engine.ImageGenerator
	opts      *options

	dmu     sync.Mutex
	display display.Sink

	mu         sync.Mutex
	records    []conversation.ImageRecord
	state      State
	generation uint64
	active     *ExecutionHandle
}

func NewImageSession(g engine.ImageGenerator, opts ...Option) *ImageSession {
	o := newOptions(opts...)
	return &ImageSession{
		SessionID: o.sessionID,
		generator: g,
		opts:      o,
		display:   o.display,
	}
}

func (s *ImageSession) Provider() types.ProviderID {
	return types.ProviderImage
}

func (s *ImageSession) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active != nil && s.active.IsRunning()
}

func (s *ImageSession) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Records returns a copy of the image log.
func (s *ImageSession) Records() []conversation.ImageRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]conversation.ImageRecord(nil), s.records...)
}

// Replay renders the image log as user/assistant turns.
func (s *ImageSession) Replay() conversation.Conversation {
	return conversation.AsTurns(s.Records())
}

// InProgress never has partial text, image generation does not stream.
func (s *ImageSession) InProgress() (string, bool) {
	return "", false
}

func (s *ImageSession) Attach(d display.Sink) {
	s.dmu.Lock()
	defer s.dmu.Unlock()
	s.display = d
	if d != nil {
		d.RenderFull(s.Replay())
	}
}

func (s *ImageSession) Detach() {
	s.dmu.Lock()
	defer s.dmu.Unlock()
	s.display = nil
}

func (s *ImageSession) Clear() {
	s.dmu.Lock()
	defer s.dmu.Unlock()

	s.mu.Lock()
	s.records = nil
	s.generation++
	active := s.active
	s.mu.Unlock()

	if active != nil {
		active.Cancel()
	}
	if s.display != nil {
		s.display.RenderFull(nil)
	}
}

func (s *ImageSession) CancelActive() error {
	s.mu.Lock()
	h := s.active
	s.mu.Unlock()
	if h == nil || !h.IsRunning() {
		return ErrSessionNoActive
	}
	h.Cancel()
	return nil
}

// SubmitPrompt generates one image for text. On success the record is
// appended to the log and the handle yields the assistant turn that shows it.
func (s *ImageSession) SubmitPrompt(ctx context.Context, text string) (*ExecutionHandle, error) {
	if s.generator == nil {
		return nil, ErrSessionEngineNil
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyPrompt
	}
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	if s.active != nil && s.active.IsRunning() {
		s.mu.Unlock()
		return nil, ErrSessionAlreadyActive
	}
	generation := s.generation
	s.state = StateAwaitingFirstDelta
	runCtx, cancel := context.WithCancelCause(ctx)
	handle := newExecutionHandle(s.SessionID, uuid.NewString(), text, cancel)
	s.active = handle
	s.mu.Unlock()

	go s.run(runCtx, cancel, handle, text, generation)

	return handle, nil
}

func (s *ImageSession) run(
	ctx context.Context,
	cancel context.CancelCauseFunc,
	handle *ExecutionHandle,
	prompt string,
	generation uint64,
) {
	defer cancel(nil)
	if s.opts.timeout > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeoutCause(ctx, s.opts.timeout, engine.ErrTimeout)
		defer cancelTimeout()
	}
	ctx = events.WithSessionMeta(ctx, s.SessionID, handle.InferenceID, types.ProviderImage.String())
	ctx = events.WithEventSinks(ctx, s.opts.sinks...)

	record, err := s.generator.GenerateImage(ctx, prompt)
	var kerr *engine.Error
	if err != nil {
		kerr = engine.ClassifyContext(ctx, err)
		if kerr.Provider == "" {
			kerr.Provider = types.ProviderImage.String()
		}
	} else if record == nil {
		kerr = engine.NewError(engine.ErrorKindUnknown, ErrNoImage)
		kerr.Provider = types.ProviderImage.String()
	}

	s.dmu.Lock()
	s.mu.Lock()
	current := generation == s.generation
	s.state = StateIdle
	if s.active == handle {
		s.active = nil
	}
	if kerr == nil && current {
		s.records = append(s.records, *record)
	}
	records := append([]conversation.ImageRecord(nil), s.records...)
	s.mu.Unlock()

	if current && s.display != nil {
		if kerr != nil {
			s.display.NotifyError(kerr)
		} else {
			s.display.RenderFull(conversation.AsTurns(records))
		}
	}
	s.dmu.Unlock()

	if kerr != nil {
		log.Warn().Err(kerr).Str("session_id", s.SessionID).Str("kind", string(kerr.Kind)).Msg("image generation failed")
		handle.setResult(nil, kerr)
		return
	}

	turn := conversation.NewAssistantTurn(record.Markdown())
	handle.setResult(&turn, nil)
}
