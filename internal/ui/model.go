package ui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rovshanmuradov/stakepool-price/internal/monitor"
	"github.com/rovshanmuradov/stakepool-price/internal/ui/component"
	"github.com/rovshanmuradov/stakepool-price/internal/ui/style"
)

const (
	sparkWidth   = 40
	tickInterval = time.Second
	refreshLimit = 30 * time.Second
)

// RefreshFunc reads every pool once.
type RefreshFunc func(ctx context.Context) ([]monitor.Snapshot, error)

// ExportFunc writes the collected history and returns the file path.
type ExportFunc func() (string, error)

// Model is the price screen: a table of pools with a trend line for the selected one.
type Model struct {
	table  table.Model
	help   help.Model
	keys   KeyMap
	styles style.Styles

	refresh RefreshFunc
	export  ExportFunc

	snapshots  []monitor.Snapshot
	series     map[string]*component.Sparkline
	lastUpdate time.Time
	status     string
	err        error
	refreshing bool
	width      int

	now func() time.Time
}

// NewModel creates the price screen. Monitor updates arrive as
// monitor.PriceUpdate messages sent to the program (see RecoveryHandler.Forward);
// refresh and export may be nil.
func NewModel(refresh RefreshFunc, export ExportFunc) Model {
	styles := style.NewStyles(style.DefaultPalette())
	t := table.New(
		table.WithColumns(columns(100)),
		table.WithFocused(true),
		table.WithHeight(10),
		table.WithStyles(styles.Table),
	)
	return Model{
		table:   t,
		help:    help.New(),
		keys:    DefaultKeyMap(),
		styles:  styles,
		refresh: refresh,
		export:  export,
		series:  make(map[string]*component.Sparkline),
		now:     time.Now,
	}
}

func columns(width int) []table.Column {
	price := max(14, width/6)
	return []table.Column{
		{Title: "Pool", Width: 12},
		{Title: "Address", Width: 13},
		{Title: "Virtual price", Width: price},
		{Title: "Status", Width: 26},
		{Title: "Slot", Width: 11},
		{Title: "Age", Width: 8},
	}
}

// Init starts the age ticker.
func (m Model) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg { return TickMsg(t) })
}

// Update handles keys, monitor updates and command results.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.table.SetColumns(columns(msg.Width))
		m.table.SetHeight(max(3, msg.Height-12))
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
			return m, nil
		case key.Matches(msg, m.keys.Refresh):
			if m.refresh == nil || m.refreshing {
				return m, nil
			}
			m.refreshing = true
			m.status = "refreshing..."
			return m, m.refreshCmd()
		case key.Matches(msg, m.keys.Export):
			if m.export == nil {
				return m, nil
			}
			return m, m.exportCmd()
		}
		var cmd tea.Cmd
		m.table, cmd = m.table.Update(msg)
		return m, cmd

	case monitor.PriceUpdate:
		m.apply(msg.Snapshots, msg.At)
		return m, nil

	case RefreshResultMsg:
		m.refreshing = false
		if msg.Err != nil {
			m.err = msg.Err
			m.status = ""
			return m, nil
		}
		m.apply(msg.Snapshots, m.now())
		m.status = "refreshed"
		return m, nil

	case ExportResultMsg:
		if msg.Err != nil {
			m.err = msg.Err
			return m, nil
		}
		m.status = "exported to " + msg.Path
		return m, nil

	case updatesClosedMsg:
		m.status = "monitor stopped"
		return m, nil

	case TickMsg:
		m.table.SetRows(m.rows())
		return m, tick()
	}
	return m, nil
}

func (m Model) refreshCmd() tea.Cmd {
	refresh := m.refresh
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), refreshLimit)
		defer cancel()
		snaps, err := refresh(ctx)
		return RefreshResultMsg{Snapshots: snaps, Err: err}
	}
}

func (m Model) exportCmd() tea.Cmd {
	export := m.export
	return func() tea.Msg {
		path, err := export()
		return ExportResultMsg{Path: path, Err: err}
	}
}

func (m *Model) apply(snaps []monitor.Snapshot, at time.Time) {
	m.snapshots = snaps
	m.lastUpdate = at
	m.err = nil
	for _, s := range snaps {
		if !s.Available || s.Stale {
			continue
		}
		addr := s.Pool.Address.String()
		sp, ok := m.series[addr]
		if !ok {
			sp = component.NewSparkline(sparkWidth).ShowText(true)
			m.series[addr] = sp
		}
		f, _ := s.Decimal.Float64()
		sp.AddDataPoint(f)
	}
	m.table.SetRows(m.rows())
}

func (m Model) rows() []table.Row {
	now := m.now()
	rows := make([]table.Row, 0, len(m.snapshots))
	for _, s := range m.snapshots {
		price := "-"
		if s.Available {
			price = s.Decimal.String()
		}
		age := "-"
		if !s.PricedAt.IsZero() {
			age = now.Sub(s.PricedAt).Truncate(time.Second).String()
		}
		rows = append(rows, table.Row{
			s.Pool.Name,
			shortAddress(s.Pool.Address.String()),
			price,
			statusText(s),
			strconv.FormatUint(s.Slot, 10),
			age,
		})
	}
	return rows
}

func statusText(s monitor.Snapshot) string {
	switch {
	case !s.Available:
		return "unavailable: " + s.Reason
	case s.Stale:
		return "stale: " + s.Reason
	}
	return "ok"
}

func shortAddress(a string) string {
	if len(a) <= 12 {
		return a
	}
	return a[:5] + "…" + a[len(a)-5:]
}

// View renders the screen.
func (m Model) View() string {
	var b strings.Builder

	header := m.styles.Title.Render("Stake pool virtual prices")
	if !m.lastUpdate.IsZero() {
		header += m.styles.Subtitle.Render("  updated " + m.lastUpdate.Format("15:04:05"))
	}
	b.WriteString(header + "\n\n")
	b.WriteString(m.styles.Container.Render(m.table.View()) + "\n")

	if s, ok := m.selected(); ok {
		line := fmt.Sprintf("%s  %s", s.Pool.Name, m.styledStatus(s))
		if sp, ok := m.series[s.Pool.Address.String()]; ok {
			line += "  " + sp.View()
		}
		b.WriteString(line + "\n")
	}

	switch {
	case m.err != nil:
		b.WriteString(m.styles.Error.Render("error: "+m.err.Error()) + "\n")
	case m.status != "":
		b.WriteString(m.styles.Muted.Render(m.status) + "\n")
	}

	b.WriteString("\n" + m.help.View(m.keys))
	return lipgloss.NewStyle().MaxWidth(max(m.width, 80)).Render(b.String())
}

func (m Model) selected() (monitor.Snapshot, bool) {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.snapshots) {
		return monitor.Snapshot{}, false
	}
	return m.snapshots[i], true
}

func (m Model) styledStatus(s monitor.Snapshot) string {
	text := statusText(s)
	switch {
	case !s.Available:
		return m.styles.Unavailable.Render(text)
	case s.Stale:
		return m.styles.Stale.Render(text)
	}
	return m.styles.Fresh.Render(text)
}
