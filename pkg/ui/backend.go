package ui

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-go-golems/multichat/pkg/conversation"
	"github.com/go-go-golems/multichat/pkg/display"
	"github.com/go-go-golems/multichat/pkg/events"
	"github.com/go-go-golems/multichat/pkg/inference/engine"
	"github.com/rs/zerolog/log"
)

// Sender is the part of *tea.Program used to deliver messages.
type Sender interface {
	Send(msg tea.Msg)
}

// RenderFullMsg replaces the displayed conversation.
type RenderFullMsg struct {
	Turns conversation.Conversation
}

// DeltaMsg appends to the in-progress assistant answer.
type DeltaMsg struct {
	Delta string
}

// ErrorMsg replaces the in-progress answer with an error notice.
type ErrorMsg struct {
	Err *engine.Error
}

// StatusMsg sets the status line.
type StatusMsg struct {
	Text string
}

// ProgramSink turns display commands into tea messages. Commands sent before
// a program is set are dropped, the model re-attaches the active session
// once it is running.
type ProgramSink struct {
	mu     sync.Mutex
	sender Sender
}

var _ display.Sink = (*ProgramSink)(nil)

func NewProgramSink() *ProgramSink {
	return &ProgramSink{}
}

func (s *ProgramSink) SetProgram(p Sender) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sender = p
}

func (s *ProgramSink) send(msg tea.Msg) {
	s.mu.Lock()
	p := s.sender
	s.mu.Unlock()
	if p == nil {
		return
	}
	p.Send(msg)
}

func (s *ProgramSink) RenderFull(turns conversation.Conversation) {
	s.send(RenderFullMsg{Turns: turns.Clone()})
}

func (s *ProgramSink) AppendDelta(delta string) {
	s.send(DeltaMsg{Delta: delta})
}

func (s *ProgramSink) NotifyError(err *engine.Error) {
	s.send(ErrorMsg{Err: err})
}

// StatusForwardFunc returns a watermill handler that summarizes finished
// requests on the status line: model, token usage and duration.
func StatusForwardFunc(p Sender) func(msg *message.Message) error {
	return func(msg *message.Message) error {
		msg.Ack()

		e, err := events.NewEventFromJson(msg.Payload)
		if err != nil {
			log.Warn().Err(err).Str("message_id", msg.UUID).Msg("could not decode event")
			return nil
		}

		switch e_ := e.(type) {
		case *events.EventFinal:
			p.Send(StatusMsg{Text: summarize(e_.Metadata(), "done")})
		case *events.EventInterrupt:
			p.Send(StatusMsg{Text: summarize(e_.Metadata(), "interrupted")})
		case *events.EventError:
			p.Send(StatusMsg{Text: summarize(e_.Metadata(), "failed: "+e_.Kind)})
		case *events.EventImageGenerated:
			p.Send(StatusMsg{Text: summarize(e_.Metadata(), "image ready")})
		}

		return nil
	}
}

func summarize(m events.EventMetadata, what string) string {
	parts := []string{}
	if m.Provider != "" {
		parts = append(parts, m.Provider)
	}
	if m.Model != "" {
		parts = append(parts, m.Model)
	}
	parts = append(parts, what)
	if m.Usage != nil {
		parts = append(parts, fmt.Sprintf("%d in / %d out tokens", m.Usage.InputTokens, m.Usage.OutputTokens))
	}
	if m.DurationMs != nil {
		parts = append(parts, fmt.Sprintf("%dms", *m.DurationMs))
	}
	return strings.Join(parts, " · ")
}
