package tui

import (
	"github.com/Sternrassler/catalog-picker/pkg/search"
	tea "github.com/charmbracelet/bubbletea"
)

// pageMsg delivers a search completion to the picker that issued it.
// session identifies the picker instance; completions for a closed picker
// are dropped.
type pageMsg struct {
	session int
	done    search.Completion
}

// runSearch wraps a search command as a tea.Cmd tagged with session.
func runSearch(session int, cmd search.Command) tea.Cmd {
	if cmd == nil {
		return nil
	}
	return func() tea.Msg {
		return pageMsg{session: session, done: cmd()}
	}
}
