package tui

import (
	"fmt"
	"strings"

	"github.com/Sternrassler/catalog-picker/pkg/catalog"
	"github.com/Sternrassler/catalog-picker/pkg/productlist"
)

// View implements tea.Model.
func (m Model) View() string {
	if m.picker != nil {
		return m.pickerView()
	}
	return m.listView()
}

func (m Model) listView() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Product Management"))
	b.WriteString("\n")

	items := m.list.Items()
	for i, item := range items {
		b.WriteString(m.itemRow(i, item, len(items) > 1))
		b.WriteString("\n")
		if item.ShowVariants {
			for _, v := range item.Product.Variants {
				b.WriteString(variantRow(v, item.Discount))
				b.WriteString("\n")
			}
		}
	}

	if m.screen == screenDiscount {
		b.WriteString("\n")
		b.WriteString(boxStyle.Render("Discount: " + m.discountInput.View()))
		b.WriteString("\n")
	}

	if m.status != "" {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render(m.status))
		b.WriteString("\n")
	}

	help := "↑/↓ select • K/J move • e edit • a add • x remove • v variants • d discount • t flat/% • q quit"
	if m.screen == screenDiscount {
		help = "enter save • esc cancel"
	}
	b.WriteString(helpStyle.Render(help))
	return b.String()
}

func (m Model) itemRow(i int, item productlist.Item, removable bool) string {
	prefix := "  "
	if i == m.cursor {
		prefix = cursorStyle.Render("> ")
	}

	title := item.Product.Title
	if item.Product.IsPlaceholder() {
		title = mutedStyle.Render("Select Product")
	}

	row := fmt.Sprintf("%s%d. %s", prefix, i+1, title)
	if !item.Product.IsPlaceholder() {
		row += mutedStyle.Render("  " + item.Product.VariantSummary())
	}
	row += "  " + statusStyle.Render(item.Discount.String())

	if item.HasVariantToggle() {
		if item.ShowVariants {
			row += mutedStyle.Render("  [hide variants]")
		} else {
			row += mutedStyle.Render("  [show variants]")
		}
	}
	if !removable {
		row += mutedStyle.Render("  (last item)")
	}
	return row
}

func variantRow(v catalog.Variant, d productlist.Discount) string {
	price := "$" + v.Price.StringFixed(2)
	if discounted := d.Apply(v.Price); !discounted.Equal(v.Price) {
		price = fmt.Sprintf("%s → $%s", mutedStyle.Strikethrough(true).Render(price), discounted.StringFixed(2))
	}
	return fmt.Sprintf("      %s  %s", v.Title, price)
}

func (m Model) pickerView() string {
	p := m.picker
	var b strings.Builder

	b.WriteString(titleStyle.Render("Select Products"))
	b.WriteString("\n")
	b.WriteString(p.input.View())
	b.WriteString("\n\n")

	results := p.ctrl.Results()
	rows := m.pickerRows()
	end := p.offset + rows
	if end > len(results) {
		end = len(results)
	}

	for i := p.offset; i < end; i++ {
		product := results[i]

		check := "[ ]"
		if p.sel.IsSelected(product.ID) {
			check = selectedStyle.Render("[x]")
		}
		prefix := "  "
		if i == p.cursor {
			prefix = cursorStyle.Render("> ")
		}
		b.WriteString(fmt.Sprintf("%s%s %s  %s\n", prefix, check, product.Title, mutedStyle.Render(product.VariantSummary())))
	}

	switch {
	case p.ctrl.Loading():
		b.WriteString(m.spinner.View() + " Loading...\n")
	case len(results) == 0 && p.ctrl.Err() == nil:
		b.WriteString(mutedStyle.Render("No products found") + "\n")
	}

	if m.status != "" {
		b.WriteString(errorStyle.Render(m.status) + "\n")
	}

	b.WriteString(helpStyle.Render(fmt.Sprintf(
		"type to search • ↑/↓ move • tab select • enter add selected (%d) • esc cancel",
		p.sel.Len(),
	)))
	return b.String()
}
