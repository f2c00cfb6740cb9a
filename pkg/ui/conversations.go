package ui

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-go-golems/multichat/pkg/conversation"
	"github.com/rs/zerolog/log"
)

// conversationRenderer turns committed turns into the text shown in the
// viewport. Assistant turns are rendered as markdown, user turns verbatim.
type conversationRenderer struct {
	style    *Style
	width    int
	markdown *glamour.TermRenderer
}

func newConversationRenderer(style *Style, width int) *conversationRenderer {
	ret := &conversationRenderer{style: style, width: width}
	if width <= 0 {
		return ret
	}
	frame, _ := style.AssistantMessage.GetFrameSize()
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(max(width-frame-2, 10)),
	)
	if err != nil {
		log.Warn().Err(err).Msg("could not create markdown renderer, falling back to plain text")
		return ret
	}
	ret.markdown = r
	return ret
}

func (c *conversationRenderer) boxWidth(s lipgloss.Style) int {
	if c.width <= 0 {
		return 0
	}
	frame, _ := s.GetFrameSize()
	return max(c.width-frame, 1)
}

func (c *conversationRenderer) renderTurn(turn conversation.Turn) string {
	if turn.Role == conversation.RoleUser {
		return c.box(c.style.UserMessage, "[user]: "+turn.Content)
	}

	body := turn.Content
	if c.markdown != nil {
		out, err := c.markdown.Render(turn.Content)
		if err == nil {
			body = strings.Trim(out, "\n")
		} else {
			log.Debug().Err(err).Msg("could not render markdown")
		}
	}
	return c.box(c.style.AssistantMessage, body)
}

func (c *conversationRenderer) box(s lipgloss.Style, text string) string {
	if w := c.boxWidth(s); w > 0 {
		s = s.Width(w)
	}
	return s.Render(text)
}

// Render renders the whole history, one box per turn.
func (c *conversationRenderer) Render(turns conversation.Conversation) string {
	var b strings.Builder
	for _, t := range turns {
		b.WriteString(c.renderTurn(t))
		b.WriteString("\n")
	}
	return b.String()
}

// RenderPartial renders the answer being streamed. It is kept as plain text
// since half a markdown document renders poorly.
func (c *conversationRenderer) RenderPartial(partial string) string {
	return c.box(c.style.StreamingMessage, partial)
}

func (c *conversationRenderer) RenderError(text string) string {
	return c.box(c.style.ErrorMessage, text)
}
