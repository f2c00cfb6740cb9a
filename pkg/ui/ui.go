package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-go-golems/multichat/pkg/conversation"
	"github.com/go-go-golems/multichat/pkg/inference/engine"
	"github.com/go-go-golems/multichat/pkg/inference/session"
	"github.com/go-go-golems/multichat/pkg/steps/ai/types"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Registry operations can block on the display, which sends to the program.
// They always run inside a tea.Cmd, never in Update itself.

type switchedMsg struct {
	Provider types.ProviderID
	Running  bool
	Err      error
}

type submittedMsg struct {
	Provider types.ProviderID
	Prompt   string
	Handle   *session.ExecutionHandle
	Err      error
}

type doneMsg struct {
	Provider types.ProviderID
	Err      error
}

type clearedMsg struct {
	All bool
}

type model struct {
	ctx      context.Context
	registry *session.Registry

	viewport viewport.Model
	textArea textarea.Model
	help     help.Model
	keyMap   KeyMap

	style    *Style
	renderer *conversationRenderer
	width    int
	height   int

	provider  types.ProviderID
	providers []types.ProviderID
	running   map[types.ProviderID]bool

	turns   conversation.Conversation
	partial string
	err     *engine.Error
	status  string
}

// InitialModel returns the chat model. The registry's display should be a
// ProgramSink pointing at the program that runs this model.
func InitialModel(ctx context.Context, registry *session.Registry) model {
	ret := model{
		ctx:       ctx,
		registry:  registry,
		style:     DefaultStyles(),
		keyMap:    DefaultKeyMap,
		viewport:  viewport.New(0, 0),
		help:      help.New(),
		provider:  registry.ActiveID(),
		providers: registry.Providers(),
		running:   map[types.ProviderID]bool{},
	}
	ret.renderer = newConversationRenderer(ret.style, 0)

	ret.textArea = textarea.New()
	ret.textArea.Placeholder = "Ask something..."
	ret.textArea.ShowLineNumbers = false
	ret.textArea.SetHeight(3)
	ret.textArea.KeyMap.InsertNewline.SetKeys("alt+enter", "ctrl+j")
	ret.textArea.Focus()

	return ret
}

func (m model) Init() tea.Cmd {
	r := m.registry
	return tea.Batch(textarea.Blink, func() tea.Msg {
		// re-attach now that the program receives messages
		id := r.ActiveID()
		err := r.SwitchActive(id)
		return switchedMsg{Provider: id, Running: r.Active().IsRunning(), Err: err}
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keyMap.Quit):
			return m, m.quit()

		case key.Matches(msg, m.keyMap.Help):
			m.help.ShowAll = !m.help.ShowAll
			m.recomputeSize()
			return m, nil

		case key.Matches(msg, m.keyMap.NextProvider):
			return m, m.next()

		case key.Matches(msg, m.keyMap.ClearActive):
			return m, m.clear(false)

		case key.Matches(msg, m.keyMap.ClearAll):
			return m, m.clear(true)

		case key.Matches(msg, m.keyMap.SubmitMessage):
			return m.submit()

		case key.Matches(msg, m.keyMap.ScrollUp, m.keyMap.ScrollDown):
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd

		default:
			m.textArea, cmd = m.textArea.Update(msg)
			return m, cmd
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.renderer = newConversationRenderer(m.style, m.width)
		m.recomputeSize()

	case RenderFullMsg:
		m.turns = msg.Turns
		m.partial = ""
		m.err = nil
		m.refresh()

	case DeltaMsg:
		m.partial += msg.Delta
		m.refresh()

	case ErrorMsg:
		m.partial = ""
		m.err = msg.Err
		m.refresh()

	case StatusMsg:
		m.status = msg.Text

	case switchedMsg:
		if msg.Err != nil {
			m.status = msg.Err.Error()
			break
		}
		m.provider = msg.Provider
		m.running[msg.Provider] = msg.Running
		m.status = ""

	case submittedMsg:
		if msg.Err != nil {
			if errors.Is(msg.Err, session.ErrSessionAlreadyActive) {
				m.running[msg.Provider] = true
			}
			m.status = msg.Err.Error()
			if m.textArea.Value() == "" {
				m.textArea.SetValue(msg.Prompt)
			}
			break
		}
		m.running[msg.Provider] = true
		cmds = append(cmds, wait(msg.Provider, msg.Handle))

	case doneMsg:
		m.running[msg.Provider] = false
		if msg.Err != nil {
			log.Debug().Err(msg.Err).Str("provider", msg.Provider.String()).Msg("request failed")
		}

	case clearedMsg:
		if msg.All {
			m.status = "all chats cleared"
		} else {
			m.status = "chat cleared"
		}
	}

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m model) submit() (tea.Model, tea.Cmd) {
	text := m.textArea.Value()
	if strings.TrimSpace(text) == "" {
		return m, nil
	}
	if m.running[m.provider] {
		m.status = fmt.Sprintf("%s is still answering", m.provider.Label())
		return m, nil
	}
	m.textArea.Reset()
	m.status = ""

	ctx, r := m.ctx, m.registry
	return m, func() tea.Msg {
		c := r.Active()
		h, err := c.SubmitPrompt(ctx, text)
		return submittedMsg{Provider: c.Provider(), Prompt: text, Handle: h, Err: err}
	}
}

func wait(provider types.ProviderID, h *session.ExecutionHandle) tea.Cmd {
	return func() tea.Msg {
		_, err := h.Wait()
		return doneMsg{Provider: provider, Err: err}
	}
}

func (m model) next() tea.Cmd {
	r := m.registry
	return func() tea.Msg {
		id, err := r.Next()
		if err != nil {
			return switchedMsg{Err: err}
		}
		return switchedMsg{Provider: id, Running: r.Active().IsRunning()}
	}
}

func (m model) clear(all bool) tea.Cmd {
	r := m.registry
	return func() tea.Msg {
		if all {
			r.ClearAll()
		} else {
			r.ClearActive()
		}
		return clearedMsg{All: all}
	}
}

func (m model) quit() tea.Cmd {
	r := m.registry
	return func() tea.Msg {
		r.CancelAll()
		return tea.Quit()
	}
}

func (m *model) refresh() {
	m.viewport.SetContent(m.messageView())
	m.viewport.GotoBottom()
}

func (m *model) recomputeSize() {
	headerHeight := lipgloss.Height(m.headerView())
	textAreaHeight := lipgloss.Height(m.textAreaView())
	helpViewHeight := lipgloss.Height(m.help.View(m.keyMap))
	statusHeight := lipgloss.Height(m.statusView())

	newHeight := m.height - textAreaHeight - headerHeight - helpViewHeight - statusHeight
	if newHeight < 0 {
		newHeight = 0
	}
	m.viewport.Width = m.width
	m.viewport.Height = newHeight
	m.viewport.YPosition = headerHeight + 1

	frame, _ := m.style.Input.GetFrameSize()
	m.textArea.SetWidth(max(m.width-frame, 1))
	m.help.Width = m.width

	m.refresh()
}

func (m model) headerView() string {
	tabs := make([]string, 0, len(m.providers))
	for _, id := range m.providers {
		label := id.Label()
		if m.running[id] {
			label += " ●"
		}
		if id == m.provider {
			tabs = append(tabs, m.style.ActiveTab.Render(label))
		} else {
			tabs = append(tabs, m.style.InactiveTab.Render(label))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m model) messageView() string {
	ret := m.renderer.Render(m.turns)
	if m.partial != "" {
		ret += m.renderer.RenderPartial(m.partial) + "\n"
	}
	if m.err != nil {
		ret += m.renderer.RenderError(fmt.Sprintf("[%s] %s", m.err.Kind, m.err.Message())) + "\n"
	}
	return ret
}

func (m model) textAreaView() string {
	return m.style.Input.Render(m.textArea.View())
}

func (m model) statusView() string {
	return m.style.Status.Render(m.status)
}

func (m model) View() string {
	return m.headerView() + "\n" +
		m.viewport.View() + "\n" +
		m.textAreaView() + "\n" +
		m.statusView() + "\n" +
		m.help.View(m.keyMap)
}
