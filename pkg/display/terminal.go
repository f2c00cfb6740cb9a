package display

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/go-go-golems/multichat/pkg/conversation"
	"github.com/go-go-golems/multichat/pkg/inference/engine"
	"github.com/rs/zerolog/log"
)

// TerminalSink writes to a plain terminal. Deltas are written as they arrive;
// full renders go through glamour when markdown rendering is enabled.
type TerminalSink struct {
	mu       sync.Mutex
	w        io.Writer
	renderer *glamour.TermRenderer
	// midLine is true when the last write did not end with a newline
	midLine bool
}

type TerminalOption func(*TerminalSink) error

// WithMarkdown renders full histories as markdown wrapped at width columns.
func WithMarkdown(width int) TerminalOption {
	return func(t *TerminalSink) error {
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			return err
		}
		t.renderer = r
		return nil
	}
}

func NewTerminalSink(w io.Writer, options ...TerminalOption) (*TerminalSink, error) {
	ret := &TerminalSink{w: w}
	for _, o := range options {
		if err := o(ret); err != nil {
			return nil, err
		}
	}
	return ret, nil
}

func (t *TerminalSink) RenderFull(turns conversation.Conversation) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.endLine()
	for _, turn := range turns {
		t.write(t.renderTurn(turn))
	}
}

func (t *TerminalSink) renderTurn(turn conversation.Turn) string {
	header := fmt.Sprintf("── %s ──\n", turn.Role)
	if t.renderer == nil {
		return header + strings.TrimRight(turn.Content, "\n") + "\n"
	}
	out, err := t.renderer.Render(turn.Content)
	if err != nil {
		log.Debug().Err(err).Msg("markdown rendering failed, falling back to plain text")
		return header + strings.TrimRight(turn.Content, "\n") + "\n"
	}
	return header + out
}

func (t *TerminalSink) AppendDelta(delta string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.write(delta)
}

func (t *TerminalSink) NotifyError(err *engine.Error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.endLine()
	t.write(fmt.Sprintf("[%s] %s\n", err.Kind, err.Message()))
}

// Finish terminates a streamed line. Callers use it after a request completes
// when they do not want a full re-render.
func (t *TerminalSink) Finish() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.endLine()
}

func (t *TerminalSink) endLine() {
	if t.midLine {
		t.write("\n")
	}
}

func (t *TerminalSink) write(s string) {
	if s == "" {
		return
	}
	if _, err := io.WriteString(t.w, s); err != nil {
		log.Debug().Err(err).Msg("terminal write failed")
		return
	}
	t.midLine = !strings.HasSuffix(s, "\n")
}

var _ Sink = (*TerminalSink)(nil)
