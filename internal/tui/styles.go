package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorAccent = lipgloss.Color("#008060")
	colorMuted  = lipgloss.Color("241")
	colorError  = lipgloss.Color("196")
	colorSelect = lipgloss.Color("#FFD866")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorAccent).
			MarginBottom(1)

	cursorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorAccent)

	selectedStyle = lipgloss.NewStyle().Foreground(colorSelect)

	mutedStyle = lipgloss.NewStyle().Foreground(colorMuted)

	errorStyle = lipgloss.NewStyle().Foreground(colorError)

	statusStyle = lipgloss.NewStyle().Italic(true).Foreground(colorMuted)

	helpStyle = lipgloss.NewStyle().Foreground(colorMuted).MarginTop(1)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorAccent).
			Padding(0, 1)
)
