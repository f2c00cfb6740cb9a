package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/go-go-golems/multichat/pkg/conversation"
	"github.com/go-go-golems/multichat/pkg/display"
	"github.com/go-go-golems/multichat/pkg/events"
	"github.com/go-go-golems/multichat/pkg/inference/engine"
	"github.com/go-go-golems/multichat/pkg/steps/ai/types"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

var (
	ErrSessionNil           = errors.New("session is nil")
	ErrSessionEngineNil     = errors.New("session has no engine")
	ErrSessionAlreadyActive = errors.New("session already has an active inference")
	ErrSessionNoActive      = errors.New("session has no active inference")
	ErrEmptyPrompt          = errors.New("prompt is empty")
	ErrNoImage              = errors.New("image generator returned no image")
	ErrSessionCleared       = errors.New("session was cleared while the request was running")
)

// Option configures a Session or an ImageSession.
type Option func(*options)

type options struct {
	sessionID   string
	display     display.Sink
	timeout     time.Duration
	idleTimeout time.Duration
	policy      FailurePolicy
	sinks       []events.EventSink
}

func WithSessionID(id string) Option {
	return func(o *options) {
		o.sessionID = id
	}
}

// WithDisplay attaches a display sink at construction time.
func WithDisplay(d display.Sink) Option {
	return func(o *options) {
		o.display = d
	}
}

// WithTimeout bounds a whole request. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// WithIdleTimeout bounds the time between two deltas (and before the first
// one). Zero disables the bound.
func WithIdleTimeout(d time.Duration) Option {
	return func(o *options) {
		o.idleTimeout = d
	}
}

func WithFailurePolicy(p FailurePolicy) Option {
	return func(o *options) {
		o.policy = p
	}
}

// WithEventSinks attaches sinks to the context of every request, so that
// engines publish their streaming events to them.
func WithEventSinks(sinks ...events.EventSink) Option {
	return func(o *options) {
		o.sinks = append(o.sinks, sinks...)
	}
}

func newOptions(opts ...Option) *options {
	ret := &options{}
	for _, o := range opts {
		o(ret)
	}
	if ret.sessionID == "" {
		ret.sessionID = uuid.NewString()
	}
	return ret
}

// Session binds one provider to one conversation history and one engine.
//
// It owns:
// - a stable SessionID
// - the committed history (User and Assistant turns, in order)
// - the accumulator of the in-flight assistant turn
// - the invariant that only one request is active at a time
type Session struct {
	SessionID string

	provider types.ProviderID
	engine   engine.Engine
	opts     *options

	// dmu serializes everything sent to the display, so that attaching a
	// display and relaying a delta never interleave.
	dmu     sync.Mutex
	display display.Sink

	mu          sync.Mutex
	history     conversation.Conversation
	accumulator strings.Builder
	state       State
	// generation is bumped by Clear; results of requests started in an older
	// generation are dropped.
	generation uint64
	active     *ExecutionHandle
}

// NewSession constructs a Session for provider backed by e.
func NewSession(provider types.ProviderID, e engine.Engine, opts ...Option) *Session {
	o := newOptions(opts...)
	return &Session{
		SessionID: o.sessionID,
		provider:  provider,
		engine:    e,
		opts:      o,
		display:   o.display,
	}
}

func (s *Session) Provider() types.ProviderID {
	return s.provider
}

// IsRunning reports whether the session currently has an active request.
func (s *Session) IsRunning() bool {
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active != nil && s.active.IsRunning()
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Replay returns a copy of the committed history.
func (s *Session) Replay() conversation.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Clone()
}

// InProgress returns the partial assistant text of the in-flight request.
func (s *Session) InProgress() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateIdle {
		return "", false
	}
	return s.accumulator.String(), true
}

// Attach makes d the display of the session and renders the committed
// history followed by any partial text onto it.
func (s *Session) Attach(d display.Sink) {
	s.dmu.Lock()
	defer s.dmu.Unlock()
	s.display = d
	if d == nil {
		return
	}
	history := s.Replay()
	partial, ok := s.InProgress()
	d.RenderFull(history)
	if ok && partial != "" {
		d.AppendDelta(partial)
	}
}

// Detach stops sending output to the display. The session keeps running and
// accumulating.
func (s *Session) Detach() {
	s.dmu.Lock()
	defer s.dmu.Unlock()
	s.display = nil
}

// Clear empties the history. A request in flight is cancelled and its result
// is discarded. Other sessions are not affected.
func (s *Session) Clear() {
	s.dmu.Lock()
	defer s.dmu.Unlock()

	s.mu.Lock()
	s.history = nil
	s.generation++
	s.accumulator.Reset()
	active := s.active
	s.mu.Unlock()

	if active != nil {
		active.Cancel()
	}
	if s.display != nil {
		s.display.RenderFull(nil)
	}
	log.Debug().Str("session_id", s.SessionID).Str("provider", s.provider.String()).Msg("session cleared")
}

// CancelActive cancels the current active request, if any. The request fails
// with ErrorKindCanceled.
func (s *Session) CancelActive() error {
	if s == nil {
		return ErrSessionNil
	}
	s.mu.Lock()
	h := s.active
	s.mu.Unlock()
	if h == nil || !h.IsRunning() {
		return ErrSessionNoActive
	}
	h.Cancel()
	return nil
}

// SubmitPrompt commits text as a User turn and starts streaming the answer
// asynchronously. The returned handle completes when the Assistant turn is
// committed or the request has failed.
func (s *Session) SubmitPrompt(ctx context.Context, text string) (*ExecutionHandle, error) {
	if s == nil {
		return nil, ErrSessionNil
	}
	if s.engine == nil {
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
	userTurn := conversation.NewUserTurn(text)
	s.history = append(s.history, userTurn)
	history := s.history.Clone()
	generation := s.generation
	s.accumulator.Reset()
	s.state = StateAwaitingFirstDelta

	inferenceID := uuid.NewString()
	runCtx, cancel := context.WithCancelCause(ctx)
	handle := newExecutionHandle(s.SessionID, inferenceID, text, cancel)
	s.active = handle
	s.mu.Unlock()

	s.dmu.Lock()
	if s.display != nil {
		s.display.RenderFull(history)
	}
	s.dmu.Unlock()

	log.Debug().
		Str("session_id", s.SessionID).
		Str("inference_id", inferenceID).
		Str("provider", s.provider.String()).
		Int("history_len", len(history)).
		Msg("starting inference")

	go s.run(runCtx, cancel, handle, history, userTurn.ID, generation)

	return handle, nil
}

func (s *Session) run(
	ctx context.Context,
	cancel context.CancelCauseFunc,
	handle *ExecutionHandle,
	history conversation.Conversation,
	userTurnID uuid.UUID,
	generation uint64,
) {
	defer cancel(nil)

	if s.opts.timeout > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeoutCause(ctx, s.opts.timeout, engine.ErrTimeout)
		defer cancelTimeout()
	}
	var idle *time.Timer
	if s.opts.idleTimeout > 0 {
		idle = time.AfterFunc(s.opts.idleTimeout, func() {
			cancel(engine.ErrTimeout)
		})
		defer idle.Stop()
	}

	ctx = events.WithSessionMeta(ctx, s.SessionID, handle.InferenceID, s.provider.String())
	ctx = events.WithEventSinks(ctx, s.opts.sinks...)

	sawDelta := false
	onDelta := func(delta string) {
		if delta == "" {
			return
		}
		if idle != nil {
			idle.Reset(s.opts.idleTimeout)
		}
		sawDelta = true
		s.relayDelta(generation, delta)
	}

	text, err := s.engine.RunInference(ctx, history, onDelta)
	var kerr *engine.Error
	if err != nil {
		kerr = engine.ClassifyContext(ctx, err)
		if kerr.Provider == "" {
			kerr.Provider = s.provider.String()
		}
	} else if !sawDelta && text != "" {
		// non-streaming engines only report the final text
		s.relayDelta(generation, text)
	}

	turn, kerr := s.finish(handle, generation, userTurnID, text, kerr)
	if kerr != nil {
		handle.setResult(nil, kerr)
		return
	}
	handle.setResult(turn, nil)
}

func (s *Session) relayDelta(generation uint64, delta string) {
	s.dmu.Lock()
	defer s.dmu.Unlock()

	s.mu.Lock()
	if generation != s.generation {
		s.mu.Unlock()
		return
	}
	s.accumulator.WriteString(delta)
	s.state = StateStreaming
	s.mu.Unlock()

	if s.display != nil {
		s.display.AppendDelta(delta)
	}
}

// finish applies the terminal event of a request to the history and the display.
// A request outlived by a Clear fails with ErrorKindCanceled even when the
// engine succeeded, since its answer is not part of the history.
func (s *Session) finish(
	handle *ExecutionHandle,
	generation uint64,
	userTurnID uuid.UUID,
	engineText string,
	kerr *engine.Error,
) (*conversation.Turn, *engine.Error) {
	s.dmu.Lock()
	defer s.dmu.Unlock()

	s.mu.Lock()
	current := generation == s.generation
	content := s.accumulator.String()
	if current {
		s.accumulator.Reset()
	}
	s.state = StateIdle
	if s.active == handle {
		s.active = nil
	}

	var turn *conversation.Turn
	var history conversation.Conversation
	rolledBack := false
	if kerr == nil {
		if content != engineText {
			log.Warn().
				Str("session_id", s.SessionID).
				Str("provider", s.provider.String()).
				Int("streamed_len", len(content)).
				Int("final_len", len(engineText)).
				Msg("final text differs from streamed deltas, committing streamed text")
		}
		t := conversation.NewAssistantTurn(content)
		turn = &t
		if current {
			s.history = append(s.history, t)
		}
	} else if current && s.opts.policy == FailurePolicyRollback {
		if last, ok := s.history.Last(); ok && last.ID == userTurnID {
			s.history = s.history[:len(s.history)-1]
			rolledBack = true
		}
	}
	history = s.history.Clone()
	s.mu.Unlock()

	logger := log.With().
		Str("session_id", s.SessionID).
		Str("inference_id", handle.InferenceID).
		Str("provider", s.provider.String()).
		Logger()
	if !current {
		logger.Debug().Msg("discarding result of a request started before the session was cleared")
		if kerr == nil {
			kerr = engine.NewError(engine.ErrorKindCanceled, ErrSessionCleared)
			kerr.Provider = s.provider.String()
		}
		return nil, kerr
	}
	if kerr != nil {
		logger.Warn().Err(kerr).Str("kind", string(kerr.Kind)).Msg("inference failed")
		if s.display != nil {
			if rolledBack {
				s.display.RenderFull(history)
			}
			s.display.NotifyError(kerr)
		}
		return nil, kerr
	}
	logger.Debug().Int("content_len", len(turn.Content)).Msg("inference completed")
	if s.display != nil {
		s.display.RenderFull(history)
	}
	return turn, nil
}
