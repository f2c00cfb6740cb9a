package display

import (
	"strings"
	"sync"

	"github.com/go-go-golems/multichat/pkg/conversation"
	"github.com/go-go-golems/multichat/pkg/inference/engine"
)

// Recorder is a Sink that remembers every call. It is meant for tests and for
// headless callers that only inspect results.
type Recorder struct {
	mu      sync.Mutex
	renders []conversation.Conversation
	deltas  []string
	errors  []*engine.Error
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) RenderFull(turns conversation.Conversation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.renders = append(r.renders, turns.Clone())
}

func (r *Recorder) AppendDelta(delta string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deltas = append(r.deltas, delta)
}

func (r *Recorder) NotifyError(err *engine.Error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, err)
}

func (r *Recorder) Deltas() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.deltas...)
}

// Text is the concatenation of all deltas received so far.
func (r *Recorder) Text() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return strings.Join(r.deltas, "")
}

func (r *Recorder) Errors() []*engine.Error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*engine.Error(nil), r.errors...)
}

func (r *Recorder) Renders() []conversation.Conversation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]conversation.Conversation(nil), r.renders...)
}

// LastRender returns the most recent full render.
func (r *Recorder) LastRender() (conversation.Conversation, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.renders) == 0 {
		return nil, false
	}
	return r.renders[len(r.renders)-1], true
}

// Reset forgets everything recorded so far.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.renders = nil
	r.deltas = nil
	r.errors = nil
}

var _ Sink = (*Recorder)(nil)
