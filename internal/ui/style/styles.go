package style

import (
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
)

// Styles groups everything the price screen renders with.
type Styles struct {
	Title       lipgloss.Style
	Subtitle    lipgloss.Style
	Container   lipgloss.Style
	Fresh       lipgloss.Style
	Stale       lipgloss.Style
	Unavailable lipgloss.Style
	Error       lipgloss.Style
	Muted       lipgloss.Style
	Table       table.Styles
}

// NewStyles creates screen styles with the given palette
func NewStyles(palette Palette) Styles {
	t := table.DefaultStyles()
	t.Header = t.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(palette.TextMuted).
		BorderBottom(true).
		Foreground(palette.Secondary).
		Bold(true)
	t.Selected = t.Selected.
		Foreground(palette.Background).
		Background(palette.Primary).
		Bold(false)
	t.Cell = t.Cell.Foreground(palette.Text)

	return Styles{
		Title: lipgloss.NewStyle().
			Foreground(palette.Primary).
			Bold(true).
			Padding(0, 1),

		Subtitle: lipgloss.NewStyle().
			Foreground(palette.TextSecondary),

		Container: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(palette.TextMuted).
			Padding(0, 1),

		Fresh:       lipgloss.NewStyle().Foreground(palette.Fresh).Bold(true),
		Stale:       lipgloss.NewStyle().Foreground(palette.Stale).Bold(true),
		Unavailable: lipgloss.NewStyle().Foreground(palette.Unavailable).Bold(true),

		Error: lipgloss.NewStyle().
			Foreground(palette.Unavailable),

		Muted: lipgloss.NewStyle().
			Foreground(palette.TextMuted).
			Italic(true),

		Table: t,
	}
}
