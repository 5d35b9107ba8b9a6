package tui

import (
	"errors"

	"github.com/Sternrassler/catalog-picker/pkg/productlist"
	tea "github.com/charmbracelet/bubbletea"
)

func (m Model) handleListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.status = ""

	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < m.list.Len()-1 {
			m.cursor++
		}
	case "shift+up", "K":
		m.move(m.cursor - 1)
	case "shift+down", "J":
		m.move(m.cursor + 1)
	case "a":
		m.cursor = m.list.Add()
	case "x", "delete":
		m.remove()
	case "e", "enter":
		return m.openPicker(m.cursor)
	case "v":
		if _, err := m.list.ToggleVariants(m.cursor); err != nil {
			m.status = err.Error()
		}
	case "t":
		m.toggleDiscountKind()
	case "d":
		return m.openDiscount()
	}

	return m, nil
}

func (m *Model) move(to int) {
	if to < 0 || to >= m.list.Len() {
		return
	}
	if err := m.list.Move(m.cursor, to); err != nil {
		m.status = err.Error()
		return
	}
	m.cursor = to
}

func (m *Model) remove() {
	err := m.list.RemoveAt(m.cursor)
	if errors.Is(err, productlist.ErrLastItem) {
		m.status = "At least one product must remain"
		return
	}
	if err != nil {
		m.status = err.Error()
		return
	}
	if m.cursor >= m.list.Len() {
		m.cursor = m.list.Len() - 1
	}
}

func (m *Model) toggleDiscountKind() {
	item, err := m.list.At(m.cursor)
	if err != nil {
		return
	}
	d := item.Discount
	if d.Kind == productlist.DiscountPercentage {
		d.Kind = productlist.DiscountFlat
	} else {
		d.Kind = productlist.DiscountPercentage
	}
	if err := m.list.SetDiscount(m.cursor, d); err != nil {
		m.status = err.Error()
	}
}

func (m Model) openDiscount() (tea.Model, tea.Cmd) {
	item, err := m.list.At(m.cursor)
	if err != nil {
		return m, nil
	}
	m.screen = screenDiscount
	m.discountInput.SetValue(item.Discount.Value.String())
	m.discountInput.CursorEnd()
	return m, m.discountInput.Focus()
}

func (m Model) handleDiscountKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.screen = screenList
		m.discountInput.Blur()
		return m, nil
	case tea.KeyEnter:
		item, err := m.list.At(m.cursor)
		if err != nil {
			m.screen = screenList
			return m, nil
		}
		d, err := productlist.ParseDiscount(item.Discount.Kind, m.discountInput.Value())
		if err == nil {
			err = m.list.SetDiscount(m.cursor, d)
		}
		if err != nil {
			m.status = err.Error()
			return m, nil
		}
		m.status = ""
		m.screen = screenList
		m.discountInput.Blur()
		return m, nil
	}

	var cmd tea.Cmd
	m.discountInput, cmd = m.discountInput.Update(msg)
	return m, cmd
}
