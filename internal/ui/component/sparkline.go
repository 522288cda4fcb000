package component

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/rovshanmuradov/stakepool-price/internal/ui/style"
)

var sparkChars = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// Sparkline represents a mini graph component for showing price trends
type Sparkline struct {
	data     []float64
	width    int
	color    lipgloss.Color
	showText bool
}

// NewSparkline creates a new sparkline component
func NewSparkline(width int) *Sparkline {
	return &Sparkline{
		width: width,
		color: style.DefaultPalette().Primary,
	}
}

// SetData replaces the data points, keeping only the last width of them.
func (s *Sparkline) SetData(data []float64) *Sparkline {
	if len(data) > s.width {
		data = data[len(data)-s.width:]
	}
	s.data = append(s.data[:0], data...)
	return s
}

// AddDataPoint adds a new data point to the sparkline
func (s *Sparkline) AddDataPoint(value float64) *Sparkline {
	s.data = append(s.data, value)
	if len(s.data) > s.width {
		s.data = s.data[len(s.data)-s.width:]
	}
	return s
}

// SetColor sets the color for the sparkline
func (s *Sparkline) SetColor(color lipgloss.Color) *Sparkline {
	s.color = color
	return s
}

// ShowText enables the trend arrow after the graph.
func (s *Sparkline) ShowText(show bool) *Sparkline {
	s.showText = show
	return s
}

// Len returns the number of data points.
func (s *Sparkline) Len() int { return len(s.data) }

// View renders the sparkline
func (s *Sparkline) View() string {
	out := lipgloss.NewStyle().Foreground(s.color).Render(s.Blocks())
	if s.showText && len(s.data) >= 2 {
		out += " " + s.GetTrend()
	}
	return out
}

// Blocks renders the raw spark characters padded to width.
func (s *Sparkline) Blocks() string {
	if len(s.data) == 0 {
		return strings.Repeat("▁", s.width)
	}

	lo, hi := s.getMinMax()
	var b strings.Builder
	for _, v := range s.data {
		idx := len(sparkChars) / 2
		if hi > lo {
			idx = int((v - lo) / (hi - lo) * float64(len(sparkChars)-1))
			idx = max(0, min(idx, len(sparkChars)-1))
		}
		b.WriteRune(sparkChars[idx])
	}
	if pad := s.width - len(s.data); pad > 0 {
		b.WriteString(strings.Repeat(" ", pad))
	}
	return b.String()
}

func (s *Sparkline) getMinMax() (float64, float64) {
	lo, hi := s.data[0], s.data[0]
	for _, v := range s.data {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}

// GetTrend returns the overall trend of the data
func (s *Sparkline) GetTrend() string {
	switch c := s.GetChangePercent(); {
	case len(s.data) < 2 || math.Abs(c) < 0.01:
		return "→"
	case c > 0:
		return "↗"
	default:
		return "↘"
	}
}

// GetChangePercent returns the percentage change from first to last data point
func (s *Sparkline) GetChangePercent() float64 {
	if len(s.data) < 2 || s.data[0] == 0 {
		return 0
	}
	first, last := s.data[0], s.data[len(s.data)-1]
	return (last - first) / first * 100
}
