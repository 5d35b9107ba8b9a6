package tui

import (
	"errors"
	"fmt"

	"github.com/Sternrassler/catalog-picker/pkg/pager"
	"github.com/Sternrassler/catalog-picker/pkg/productlist"
	"github.com/Sternrassler/catalog-picker/pkg/search"
	"github.com/Sternrassler/catalog-picker/pkg/selection"
	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// picker is one open product picker. It is discarded on close.
type picker struct {
	session int
	index   int

	ctrl  *search.Controller
	pager *pager.Pager
	sel   *selection.Set
	input textinput.Model

	cursor int
	offset int
}

func (p *picker) clampOffset(rows int) {
	if p.cursor < p.offset {
		p.offset = p.cursor
	}
	if p.cursor >= p.offset+rows {
		p.offset = p.cursor - rows + 1
	}
	if p.offset < 0 {
		p.offset = 0
	}
}

// pickerRows is the height of the result window.
func (m Model) pickerRows() int {
	if m.height == 0 {
		return 10
	}
	if rows := m.height - 10; rows > 3 {
		return rows
	}
	return 3
}

// openPicker opens the picker to replace the list item at index.
func (m Model) openPicker(index int) (tea.Model, tea.Cmd) {
	ctrl, err := search.New(m.fetcher, m.searchCfg)
	if err != nil {
		m.status = err.Error()
		m.logger.Error().Err(err).Msg("Cannot open picker")
		return m, nil
	}

	ti := textinput.New()
	ti.Placeholder = "Search products..."
	ti.CharLimit = 100
	ti.Width = 40
	ti.Cursor.SetMode(cursor.CursorStatic)

	m.session++
	m.picker = &picker{
		session: m.session,
		index:   index,
		ctrl:    ctrl,
		pager:   pager.New(ctrl),
		sel:     selection.New(),
		input:   ti,
	}
	m.screen = screenPicker
	m.status = ""

	m.logger.Debug().Int("session", m.session).Int("index", index).Msg("Picker opened")

	return m, tea.Batch(
		m.picker.input.Focus(),
		runSearch(m.session, ctrl.SetQuery("")),
		m.startSpinner(),
	)
}

func (m *Model) closePicker() {
	if m.picker == nil {
		return
	}
	m.picker.ctrl.Close()
	m.logger.Debug().Int("session", m.picker.session).Msg("Picker closed")
	m.picker = nil
	m.screen = screenList
}

func (m Model) handlePage(msg pageMsg) (tea.Model, tea.Cmd) {
	if m.picker == nil || msg.session != m.picker.session {
		m.logger.Debug().Int("session", msg.session).Msg("Dropping completion for closed picker")
		return m, nil
	}

	p := m.picker
	switch p.ctrl.Apply(msg.done) {
	case search.OutcomeFailed:
		m.status = errorText(p.ctrl.Err())
	case search.OutcomeAppended, search.OutcomeExhausted:
		m.status = ""
	}

	return m, m.checkPager()
}

// checkPager reports the visibility of the last result to the pager and
// requests the next page when it fires.
func (m *Model) checkPager() tea.Cmd {
	p := m.picker
	if p == nil {
		return nil
	}

	results := p.ctrl.Results()
	target := ""
	visible := false
	if n := len(results); n > 0 {
		target = fmt.Sprintf("%d/%d", p.ctrl.State().Epoch, results[n-1].ID)
		visible = pager.Visible(n-1, p.offset, m.pickerRows())
	}

	if !p.pager.Update(target, visible) {
		return nil
	}
	return tea.Batch(runSearch(p.session, p.ctrl.RequestNextPage()), m.startSpinner())
}

func (m Model) handlePickerKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	p := m.picker

	switch msg.String() {
	case "esc":
		m.closePicker()
		return m, nil
	case "enter":
		return m.confirmPicker()
	case "up":
		if p.cursor > 0 {
			p.cursor--
		}
		p.clampOffset(m.pickerRows())
		return m, m.checkPager()
	case "down":
		if p.cursor < len(p.ctrl.Results())-1 {
			p.cursor++
		}
		p.clampOffset(m.pickerRows())
		return m, m.checkPager()
	case "pgdown":
		p.cursor += m.pickerRows()
		if last := len(p.ctrl.Results()) - 1; p.cursor > last {
			p.cursor = last
		}
		if p.cursor < 0 {
			p.cursor = 0
		}
		p.clampOffset(m.pickerRows())
		return m, m.checkPager()
	case "pgup":
		p.cursor -= m.pickerRows()
		if p.cursor < 0 {
			p.cursor = 0
		}
		p.clampOffset(m.pickerRows())
		return m, m.checkPager()
	case "tab":
		results := p.ctrl.Results()
		if p.cursor >= 0 && p.cursor < len(results) {
			p.sel.Toggle(results[p.cursor])
		}
		return m, nil
	case "ctrl+r":
		cmd := p.ctrl.Retry()
		if cmd == nil {
			return m, nil
		}
		m.status = ""
		return m, tea.Batch(runSearch(p.session, cmd), m.startSpinner())
	}

	before := p.input.Value()
	var cmd tea.Cmd
	p.input, cmd = p.input.Update(msg)
	if p.input.Value() == before {
		return m, cmd
	}

	p.cursor = 0
	p.offset = 0
	m.status = ""
	return m, tea.Batch(cmd, runSearch(p.session, p.ctrl.SetQuery(p.input.Value())), m.startSpinner())
}

// confirmPicker splices the selection into the list in place of the item
// being edited.
func (m Model) confirmPicker() (tea.Model, tea.Cmd) {
	p := m.picker
	products := p.sel.Confirm()

	err := m.list.ReplaceRange(p.index, products)
	if errors.Is(err, productlist.ErrLastItem) {
		m.status = "Select at least one product"
		return m, nil
	}
	if err != nil {
		m.status = err.Error()
		return m, nil
	}

	m.logger.Info().
		Int("index", p.index).
		Int("selected", len(products)).
		Msg("Products added from picker")

	m.cursor = p.index
	if m.cursor >= m.list.Len() {
		m.cursor = m.list.Len() - 1
	}
	m.closePicker()
	return m, nil
}
