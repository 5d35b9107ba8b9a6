// Package tui is the terminal front end: an ordered product list and a
// picker that searches the catalog.
package tui

import (
	"errors"
	"fmt"

	"github.com/Sternrassler/catalog-picker/pkg/catalog"
	"github.com/Sternrassler/catalog-picker/pkg/client"
	"github.com/Sternrassler/catalog-picker/pkg/productlist"
	"github.com/Sternrassler/catalog-picker/pkg/search"
	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type screen int

const (
	screenList screen = iota
	screenPicker
	screenDiscount
)

// Config configures the model.
type Config struct {
	// Fetcher serves the picker's searches.
	Fetcher search.Fetcher

	// Search configures each picker's controller.
	Search search.Config

	// Products seeds the list (optional).
	Products []catalog.Product
}

// Model is the root Bubble Tea model.
type Model struct {
	fetcher   search.Fetcher
	searchCfg search.Config
	logger    zerolog.Logger

	list   *productlist.List
	cursor int
	screen screen

	picker  *picker
	session int

	discountInput textinput.Model
	spinner       spinner.Model
	spinning      bool

	status string
	width  int
	height int
}

// New creates the root model.
func New(cfg Config) Model {
	di := textinput.New()
	di.Placeholder = "0"
	di.CharLimit = 12
	di.Width = 12
	di.Cursor.SetMode(cursor.CursorStatic)

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = cursorStyle

	return Model{
		fetcher:       cfg.Fetcher,
		searchCfg:     cfg.Search,
		logger:        log.With().Str("component", "tui").Logger(),
		list:          productlist.New(cfg.Products...),
		discountInput: di,
		spinner:       s,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.picker != nil {
			m.picker.clampOffset(m.pickerRows())
			return m, m.checkPager()
		}
		return m, nil

	case spinner.TickMsg:
		if m.picker == nil || !m.picker.ctrl.Loading() {
			m.spinning = false
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case pageMsg:
		return m.handlePage(msg)

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.closePicker()
			return m, tea.Quit
		}
		switch m.screen {
		case screenPicker:
			return m.handlePickerKey(msg)
		case screenDiscount:
			return m.handleDiscountKey(msg)
		default:
			return m.handleListKey(msg)
		}
	}

	return m, nil
}

// Items returns the current list items.
func (m Model) Items() []productlist.Item {
	return m.list.Items()
}

// Status returns the status line text.
func (m Model) Status() string {
	return m.status
}

func (m *Model) startSpinner() tea.Cmd {
	if m.spinning {
		return nil
	}
	m.spinning = true
	return m.spinner.Tick
}

// errorText renders a fetch error for the status line.
func errorText(err error) string {
	var httpErr *client.HTTPError
	var transportErr *client.TransportError

	switch {
	case errors.Is(err, client.ErrUnauthorized):
		return "Unauthorized: set CATALOG_API_KEY"
	case errors.Is(err, search.ErrTimeout):
		return "Request timed out (ctrl+r to retry)"
	case errors.Is(err, client.ErrRateLimited):
		return "Rate limited by the catalog (ctrl+r to retry later)"
	case errors.As(err, &httpErr):
		return fmt.Sprintf("Catalog error, status %d (ctrl+r to retry)", httpErr.StatusCode)
	case errors.As(err, &transportErr):
		return "Network error (ctrl+r to retry)"
	default:
		return fmt.Sprintf("Error: %v (ctrl+r to retry)", err)
	}
}
