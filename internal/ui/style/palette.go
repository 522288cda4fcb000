package style

import "github.com/charmbracelet/lipgloss"

var (
	Cyan    = lipgloss.Color("#00E5FF") // Primary highlight
	Magenta = lipgloss.Color("#FF1B6B") // Accent
	Yellow  = lipgloss.Color("#FFB500") // Stale prices
	Green   = lipgloss.Color("#2AFFAA") // Fresh prices
	Red     = lipgloss.Color("#FF5555") // Unavailable / errors

	Base03 = lipgloss.Color("#1B1D23") // Background
	Base01 = lipgloss.Color("#6C7280") // Muted text
	Base2  = lipgloss.Color("#ECEFF4") // Primary text
	Base1  = lipgloss.Color("#B4BCC8") // Secondary text
)

// Palette provides a centralized color management
type Palette struct {
	Primary   lipgloss.Color
	Secondary lipgloss.Color

	Fresh       lipgloss.Color
	Stale       lipgloss.Color
	Unavailable lipgloss.Color

	Background    lipgloss.Color
	Text          lipgloss.Color
	TextMuted     lipgloss.Color
	TextSecondary lipgloss.Color
}

// DefaultPalette returns the default color palette
func DefaultPalette() Palette {
	return Palette{
		Primary:   Cyan,
		Secondary: Magenta,

		Fresh:       Green,
		Stale:       Yellow,
		Unavailable: Red,

		Background:    Base03,
		Text:          Base2,
		TextMuted:     Base01,
		TextSecondary: Base1,
	}
}
