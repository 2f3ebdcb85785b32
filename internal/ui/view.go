package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/moradology/kleis/internal/cart"
	"github.com/moradology/kleis/internal/catalog"
)

// View implements tea.Model.
func (m Model) View() string {
	if m.showHelp {
		return m.renderHelp()
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n\n")
	b.WriteString(m.renderTable())
	b.WriteString("\n")
	if m.showActivity {
		b.WriteString("\n")
		b.WriteString(m.renderActivity())
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(m.renderFooter())
	return b.String()
}

func (m Model) renderHeader() string {
	count := m.hook.ItemCount()
	noun := "items"
	if count == 1 {
		noun = "item"
	}
	left := m.styles.Title.Render("kleis") + " " + m.styles.MutedText.Render("cart")
	right := fmt.Sprintf("%d %s  ·  %s", count, noun, m.styles.Text.Bold(true).Render(formatPrice(m.hook.TotalPrice())))

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 2 {
		gap = 2
	}
	return m.styles.Header.Render(left + strings.Repeat(" ", gap) + right)
}

type column struct {
	title string
	width int
	right bool
}

var cartColumns = []column{
	{title: "Item", width: 28},
	{title: "Variant", width: 12},
	{title: "Price", width: 10, right: true},
	{title: "Qty", width: 5, right: true},
	{title: "Stock", width: 14},
	{title: "Total", width: 11, right: true},
}

func (m Model) renderTable() string {
	items := m.hook.Items()
	if len(items) == 0 {
		return m.styles.FaintText.Render("  Your cart is empty. Press a to add a product.")
	}

	var b strings.Builder
	header := make([]string, len(cartColumns))
	for i, col := range cartColumns {
		header[i] = cell(col, col.title)
	}
	b.WriteString(m.styles.MutedText.Bold(true).Render("  " + strings.Join(header, " ")))
	b.WriteString("\n")

	for i, it := range items {
		status := catalog.StockStatusFor(it.Stock)
		cells := []string{
			cell(cartColumns[0], it.Name),
			cell(cartColumns[1], it.Variant),
			cell(cartColumns[2], formatPrice(it.UnitPrice)),
			cell(cartColumns[3], fmt.Sprint(it.Quantity)),
			m.styles.StockStyle(status).Render(cell(cartColumns[4], stockLabel(it))),
			cell(cartColumns[5], formatPrice(it.LineTotal())),
		}
		row := strings.Join(cells, " ")
		if i == m.selected {
			b.WriteString(m.styles.Selected.Render("▸ " + row))
		} else {
			b.WriteString("  " + row)
		}
		if i < len(items)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (m Model) renderActivity() string {
	var b strings.Builder
	b.WriteString(m.styles.AccentText.Bold(true).Render("Activity"))
	if len(m.activity) == 0 {
		b.WriteString("\n")
		b.WriteString(m.styles.FaintText.Render("No log entries yet"))
	}
	for _, e := range m.activity {
		b.WriteString("\n")
		if !e.Time.IsZero() {
			b.WriteString(m.styles.FaintText.Render(e.Time.Local().Format("15:04:05")) + " ")
		}
		if e.Level != "" {
			b.WriteString(m.styles.LevelStyle(e.Level).Render(fmt.Sprintf("%-5.5s", strings.ToUpper(e.Level))) + " ")
		}
		b.WriteString(m.styles.Text.Render(e.Message))
		if fields := e.FieldString(); fields != "" {
			b.WriteString(" " + m.styles.MutedText.Render(fields))
		}
	}
	width := m.width - 2
	if width < 20 {
		width = 20
	}
	return m.styles.Panel.Width(width).Render(b.String())
}

func (m Model) renderFooter() string {
	var lines []string
	switch m.mode {
	case modeEditQuantity, modeAddProduct:
		label := "Quantity"
		if m.mode == modeAddProduct {
			label = "Add product"
		}
		lines = append(lines, m.styles.AccentText.Render(label)+" "+m.input.View())
		lines = append(lines, m.help.ShortHelpView(m.keys.promptHelp()))
	case modeConfirmClear:
		lines = append(lines, m.styles.WarningText.Render("Remove every item from the cart? (y/N)"))
	default:
		if m.status != "" {
			lines = append(lines, m.statusStyle().Render(m.status))
		}
		lines = append(lines, m.help.View(m.keys))
	}
	return m.styles.Footer.Render(strings.Join(lines, "\n"))
}

func (m Model) statusStyle() lipgloss.Style {
	switch m.statusKind {
	case statusOK:
		return m.styles.SuccessText
	case statusWarn:
		return m.styles.WarningText
	case statusError:
		return m.styles.DangerText
	default:
		return m.styles.Text
	}
}

// renderHelp renders the full key reference as a centered modal.
func (m Model) renderHelp() string {
	full := m.help
	full.ShowAll = true

	content := m.styles.Text.Bold(true).Render("Keyboard Shortcuts") + "\n\n" + full.View(m.keys)
	modal := m.styles.Modal.Render(content)
	if m.width == 0 || m.height == 0 {
		return modal
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal)
}

func cell(col column, value string) string {
	value = truncate(value, col.width)
	if col.right {
		return fmt.Sprintf("%*s", col.width, value)
	}
	return fmt.Sprintf("%-*s", col.width, value)
}

func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	if width <= 1 {
		return string(r[:width])
	}
	return string(r[:width-1]) + "…"
}

func stockLabel(it cart.LineItem) string {
	status := catalog.StockStatusFor(it.Stock)
	if status == catalog.StatusLowStock {
		return fmt.Sprintf("%s (%d)", status, it.Stock)
	}
	return status
}

func displayName(name, variant string) string {
	if variant == "" {
		return name
	}
	return name + " (" + variant + ")"
}

// formatPrice renders minor units as dollars.
func formatPrice(cents int) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s$%d.%02d", sign, cents/100, cents%100)
}
