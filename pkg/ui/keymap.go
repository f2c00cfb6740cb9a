package ui

import "github.com/charmbracelet/bubbles/key"

type KeyMap struct {
	SubmitMessage key.Binding
	NextProvider  key.Binding
	ClearActive   key.Binding
	ClearAll      key.Binding
	ScrollUp      key.Binding
	ScrollDown    key.Binding

	Help key.Binding
	Quit key.Binding
}

var DefaultKeyMap = KeyMap{
	SubmitMessage: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "send"),
	),
	NextProvider: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("tab", "next provider"),
	),
	ClearActive: key.NewBinding(
		key.WithKeys("ctrl+l"),
		key.WithHelp("ctrl+l", "clear chat"),
	),
	ClearAll: key.NewBinding(
		key.WithKeys("ctrl+x"),
		key.WithHelp("ctrl+x", "clear all chats"),
	),
	ScrollUp: key.NewBinding(
		key.WithKeys("pgup", "shift+up"),
		key.WithHelp("pgup", "scroll up"),
	),
	ScrollDown: key.NewBinding(
		key.WithKeys("pgdown", "shift+down"),
		key.WithHelp("pgdown", "scroll down"),
	),
	Help: key.NewBinding(
		key.WithKeys("ctrl+h"),
		key.WithHelp("ctrl+h", "help"),
	),
	Quit: key.NewBinding(
		key.WithKeys("ctrl+c", "esc"),
		key.WithHelp("esc", "quit"),
	),
}

func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.SubmitMessage, k.NextProvider, k.ClearActive, k.Help, k.Quit}
}

func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.SubmitMessage, k.NextProvider},
		{k.ClearActive, k.ClearAll},
		{k.ScrollUp, k.ScrollDown},
		{k.Help, k.Quit},
	}
}
