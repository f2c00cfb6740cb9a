package session

import (
	"context"
	"sync"

	"github.com/go-go-golems/multichat/pkg/conversation"
	"github.com/go-go-golems/multichat/pkg/display"
	"github.com/go-go-golems/multichat/pkg/steps/ai/types"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Chat is what the registry needs from a session. Both Session and
// ImageSession implement it.
type Chat interface {
	Provider() types.ProviderID
	SubmitPrompt(ctx context.Context, text string) (*ExecutionHandle, error)
	Replay() conversation.Conversation
	InProgress() (string, bool)
	State() State
	IsRunning() bool
	Clear()
	CancelActive() error
	Attach(d display.Sink)
	Detach()
}

var (
	_ Chat = (*Session)(nil)
	_ Chat = (*ImageSession)(nil)
)

var (
	ErrUnknownProvider  = errors.New("provider is not registered")
	ErrNoActiveProvider = errors.New("no provider is registered")
)

// Registry holds one session per provider and tracks which one is active.
// Only the active session is attached to the display; the others keep
// running and accumulating in the background.
type Registry struct {
	mu       sync.Mutex
	display  display.Sink
	order    []types.ProviderID
	sessions map[types.ProviderID]Chat
	active   types.ProviderID
}

// NewRegistry registers sessions in the order given. The first one becomes active.
func NewRegistry(d display.Sink, sessions ...Chat) (*Registry, error) {
	if d == nil {
		d = display.Nop{}
	}
	r := &Registry{
		display:  d,
		sessions: map[types.ProviderID]Chat{},
	}
	for _, s := range sessions {
		id := s.Provider()
		if _, ok := r.sessions[id]; ok {
			return nil, errors.Errorf("provider %s registered twice", id)
		}
		r.sessions[id] = s
		r.order = append(r.order, id)
		s.Detach()
	}
	if len(r.order) == 0 {
		return nil, ErrNoActiveProvider
	}
	r.active = r.order[0]
	r.sessions[r.active].Attach(r.display)
	return r, nil
}

// Providers returns the registered providers in registration order.
func (r *Registry) Providers() []types.ProviderID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.ProviderID(nil), r.order...)
}

func (r *Registry) Get(id types.ProviderID) (Chat, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

func (r *Registry) ActiveID() types.ProviderID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

func (r *Registry) Active() Chat {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[r.active]
}

// SwitchActive makes id the active provider and re-renders its history, plus
// any partial answer it is streaming, on the display. It never clears or
// cancels anything.
func (r *Registry) SwitchActive(id types.ProviderID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	next, ok := r.sessions[id]
	if !ok {
		return errors.Wrap(ErrUnknownProvider, id.String())
	}
	if id == r.active {
		next.Attach(r.display)
		return nil
	}
	r.sessions[r.active].Detach()
	next.Attach(r.display)
	log.Debug().Str("from", r.active.String()).Str("to", id.String()).Msg("switched active provider")
	r.active = id
	return nil
}

// Next switches to the provider registered after the active one, wrapping around.
func (r *Registry) Next() (types.ProviderID, error) {
	r.mu.Lock()
	idx := 0
	for i, id := range r.order {
		if id == r.active {
			idx = i
			break
		}
	}
	next := r.order[(idx+1)%len(r.order)]
	r.mu.Unlock()
	return next, r.SwitchActive(next)
}

// Submit sends text to the active session.
func (r *Registry) Submit(ctx context.Context, text string) (*ExecutionHandle, error) {
	return r.Active().SubmitPrompt(ctx, text)
}

func (r *Registry) ClearActive() {
	r.Active().Clear()
}

// ClearAll clears every registered session.
func (r *Registry) ClearAll() {
	r.mu.Lock()
	sessions := make([]Chat, 0, len(r.order))
	for _, id := range r.order {
		sessions = append(sessions, r.sessions[id])
	}
	r.mu.Unlock()
	for _, s := range sessions {
		s.Clear()
	}
}

// CancelAll cancels every in-flight request, for use on shutdown.
func (r *Registry) CancelAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		_ = s.CancelActive()
	}
}
