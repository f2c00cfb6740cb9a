package ui

import "github.com/charmbracelet/lipgloss"

type Style struct {
	UserMessage      lipgloss.Style
	AssistantMessage lipgloss.Style
	StreamingMessage lipgloss.Style
	ErrorMessage     lipgloss.Style
	Input            lipgloss.Style

	ActiveTab   lipgloss.Style
	InactiveTab lipgloss.Style
	Status      lipgloss.Style
}

type BorderColors struct {
	User      string
	Assistant string
	Streaming string
	Error     string
}

func DefaultStyles() *Style {
	lightModeColors := BorderColors{
		User:      "#CCCCCC",
		Assistant: "#FFB6C1", // Light pink
		Streaming: "#FFFF99", // Light yellow
		Error:     "#FF5F5F",
	}

	darkModeColors := BorderColors{
		User:      "#444444",
		Assistant: "#DD7090", // Desaturated pink for dark mode
		Streaming: "#DDDD77", // Desaturated yellow for dark mode
		Error:     "#D75F5F",
	}

	border := func(b lipgloss.Border, pick func(BorderColors) string) lipgloss.Style {
		return lipgloss.NewStyle().Border(b).
			Padding(0, 1).
			BorderForeground(lipgloss.AdaptiveColor{
				Light: pick(lightModeColors),
				Dark:  pick(darkModeColors),
			})
	}

	return &Style{
		UserMessage:      border(lipgloss.NormalBorder(), func(c BorderColors) string { return c.User }),
		AssistantMessage: border(lipgloss.RoundedBorder(), func(c BorderColors) string { return c.Assistant }),
		StreamingMessage: border(lipgloss.RoundedBorder(), func(c BorderColors) string { return c.Streaming }),
		ErrorMessage:     border(lipgloss.ThickBorder(), func(c BorderColors) string { return c.Error }),
		Input:            border(lipgloss.NormalBorder(), func(c BorderColors) string { return c.Streaming }),

		ActiveTab: lipgloss.NewStyle().Bold(true).Padding(0, 1).
			Foreground(lipgloss.AdaptiveColor{Light: "#000000", Dark: "#FFFFFF"}).
			Background(lipgloss.AdaptiveColor{Light: lightModeColors.Assistant, Dark: darkModeColors.Assistant}),
		InactiveTab: lipgloss.NewStyle().Padding(0, 1).
			Foreground(lipgloss.AdaptiveColor{Light: "#666666", Dark: "#999999"}),
		Status: lipgloss.NewStyle().Italic(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#666666", Dark: "#999999"}),
	}
}
