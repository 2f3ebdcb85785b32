package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/moradology/kleis/internal/catalog"
)

// Theme is a named color palette.
type Theme struct {
	Name string

	Background  string
	Surface     string
	SelectionBg string
	Border      string

	Text    string
	Muted   string
	Faint   string
	Accent  string
	Success string
	Warning string
	Danger  string
}

// Styles are the lipgloss styles derived from a Theme.
type Styles struct {
	Text        lipgloss.Style
	MutedText   lipgloss.Style
	FaintText   lipgloss.Style
	AccentText  lipgloss.Style
	SuccessText lipgloss.Style
	WarningText lipgloss.Style
	DangerText  lipgloss.Style

	Header   lipgloss.Style
	Footer   lipgloss.Style
	Title    lipgloss.Style
	Selected lipgloss.Style
	Panel    lipgloss.Style
	Modal    lipgloss.Style
}

// Styles builds the lipgloss styles for t.
func (t Theme) Styles() Styles {
	fg := func(c string) lipgloss.Style { return lipgloss.NewStyle().Foreground(lipgloss.Color(c)) }
	return Styles{
		Text:        fg(t.Text),
		MutedText:   fg(t.Muted),
		FaintText:   fg(t.Faint),
		AccentText:  fg(t.Accent),
		SuccessText: fg(t.Success).Bold(true),
		WarningText: fg(t.Warning),
		DangerText:  fg(t.Danger).Bold(true),

		Header: lipgloss.NewStyle().
			Background(lipgloss.Color(t.Surface)).
			Foreground(lipgloss.Color(t.Text)).
			Padding(0, 1),
		Footer: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Muted)).
			Padding(0, 1),
		Title: fg(t.Warning).Bold(true),
		Selected: lipgloss.NewStyle().
			Background(lipgloss.Color(t.SelectionBg)).
			Foreground(lipgloss.Color(t.Text)),
		Panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(t.Border)).
			Padding(0, 1),
		Modal: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(t.Accent)).
			Padding(1, 2),
	}
}

// StockStyle colors a catalog stock status.
func (s Styles) StockStyle(status string) lipgloss.Style {
	switch status {
	case catalog.StatusInStock:
		return s.SuccessText
	case catalog.StatusLowStock:
		return s.WarningText
	case catalog.StatusOutOfStock:
		return s.DangerText
	default:
		return s.MutedText
	}
}

// LevelStyle colors a log level in the activity pane.
func (s Styles) LevelStyle(level string) lipgloss.Style {
	switch level {
	case "error", "fatal", "panic":
		return s.DangerText
	case "warning", "warn":
		return s.WarningText
	case "info":
		return s.AccentText
	default:
		return s.FaintText
	}
}

var themes = map[string]Theme{
	"Nightfox": {
		Name:        "Nightfox",
		Background:  "#131a24",
		Surface:     "#192330",
		SelectionBg: "#2b3b51",
		Border:      "#39506d",
		Text:        "#cdcecf",
		Muted:       "#738091",
		Faint:       "#71839b",
		Accent:      "#719cd6",
		Success:     "#81b29a",
		Warning:     "#dbc074",
		Danger:      "#c94f6d",
	},
	"Kanagawa": {
		Name:        "Kanagawa",
		Background:  "#16161D",
		Surface:     "#1F1F28",
		SelectionBg: "#2D4F67",
		Border:      "#54546D",
		Text:        "#DCD7BA",
		Muted:       "#C8C093",
		Faint:       "#727169",
		Accent:      "#7E9CD8",
		Success:     "#98BB6C",
		Warning:     "#E6C384",
		Danger:      "#E46876",
	},
	"Slate": {
		Name:        "Slate",
		Background:  "#020617",
		Surface:     "#0f172a",
		SelectionBg: "#0284c7",
		Border:      "#334155",
		Text:        "#f1f5f9",
		Muted:       "#94a3b8",
		Faint:       "#64748b",
		Accent:      "#38bdf8",
		Success:     "#22c55e",
		Warning:     "#f59e0b",
		Danger:      "#ef4444",
	},
}

var themeOrder = []string{"Nightfox", "Kanagawa", "Slate"}

// GetTheme returns the named theme, or Nightfox when unknown.
func GetTheme(name string) Theme {
	if t, ok := themes[name]; ok {
		return t
	}
	return themes["Nightfox"]
}

// NextTheme returns the theme after current in the cycle.
func NextTheme(current string) string {
	for i, name := range themeOrder {
		if name == current {
			return themeOrder[(i+1)%len(themeOrder)]
		}
	}
	return themeOrder[0]
}

// ThemeNames returns the available theme names in cycle order.
func ThemeNames() []string {
	return themeOrder
}
