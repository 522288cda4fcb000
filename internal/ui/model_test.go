package ui

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rovshanmuradov/stakepool-price/internal/monitor"
)

var testPool = monitor.Pool{
	Name:    "jitoSOL",
	Address: solana.MustPublicKeyFromBase58("Jito4APyf642JPZPx3hGc6WWJ8zPKtRbRs4P815Awbb"),
}

func keyPress(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func freshSnapshot(price int64, at time.Time) monitor.Snapshot {
	return monitor.Snapshot{
		Pool:      testPool,
		Price:     uint64(price),
		Decimal:   decimal.New(price, -6),
		Slot:      99,
		UpdatedAt: at,
		PricedAt:  at,
		Available: true,
	}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(Model)
	require.True(t, ok)
	return nm, cmd
}

func TestModelAppliesPriceUpdates(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 10, 0, time.UTC)
	m := NewModel(nil, nil)
	m.now = func() time.Time { return now }

	m, cmd := update(t, m, monitor.PriceUpdate{
		Snapshots: []monitor.Snapshot{freshSnapshot(1_234_567, now.Add(-5*time.Second))},
		At:        now,
	})
	assert.Nil(t, cmd)

	rows := m.table.Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, "jitoSOL", rows[0][0])
	assert.Equal(t, "Jito4…5Awbb", rows[0][1])
	assert.Equal(t, "1.234567", rows[0][2])
	assert.Equal(t, "ok", rows[0][3])
	assert.Equal(t, "99", rows[0][4])
	assert.Equal(t, "5s", rows[0][5])

	view := m.View()
	assert.Contains(t, view, "Stake pool virtual prices")
	assert.Contains(t, view, "updated 12:00:10")
}

func TestModelStatusColumn(t *testing.T) {
	m := NewModel(nil, nil)

	stale := freshSnapshot(1_000_000, time.Now())
	stale.Stale = true
	stale.Reason = monitor.ReasonRPC
	missing := monitor.Snapshot{Pool: testPool, Reason: monitor.ReasonZeroSupply}

	m, _ = update(t, m, monitor.PriceUpdate{Snapshots: []monitor.Snapshot{stale, missing}})
	rows := m.table.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, "stale: rpc_error", rows[0][3])
	assert.Equal(t, "-", rows[1][2])
	assert.Equal(t, "unavailable: zero_supply", rows[1][3])
	assert.Equal(t, "-", rows[1][5])

	assert.Empty(t, m.series, "only fresh prices feed the trend")
}

func TestModelTrendSeries(t *testing.T) {
	m := NewModel(nil, nil)
	for _, p := range []int64{1_000_000, 1_100_000, 1_200_000} {
		m, _ = update(t, m, monitor.PriceUpdate{Snapshots: []monitor.Snapshot{freshSnapshot(p, time.Now())}})
	}
	sp, ok := m.series[testPool.Address.String()]
	require.True(t, ok)
	assert.Equal(t, 3, sp.Len())
	assert.Equal(t, "↗", sp.GetTrend())
}

func TestModelQuit(t *testing.T) {
	m := NewModel(nil, nil)
	_, cmd := update(t, m, keyPress('q'))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
}

func TestModelRefresh(t *testing.T) {
	calls := 0
	refresh := func(context.Context) ([]monitor.Snapshot, error) {
		calls++
		return []monitor.Snapshot{freshSnapshot(2_000_000, time.Now())}, nil
	}
	m := NewModel(refresh, nil)

	m, cmd := update(t, m, keyPress('r'))
	require.NotNil(t, cmd)
	assert.True(t, m.refreshing)

	_, again := update(t, m, keyPress('r'))
	assert.Nil(t, again, "a refresh is already running")

	msg := cmd()
	require.IsType(t, RefreshResultMsg{}, msg)
	assert.Equal(t, 1, calls)

	m, _ = update(t, m, msg)
	assert.False(t, m.refreshing)
	assert.Equal(t, "2", m.table.Rows()[0][2])
	assert.Contains(t, m.View(), "refreshed")
}

func TestModelRefreshError(t *testing.T) {
	m := NewModel(func(context.Context) ([]monitor.Snapshot, error) { return nil, nil }, nil)
	m, _ = update(t, m, RefreshResultMsg{Err: errors.New("rpc down")})
	assert.Contains(t, m.View(), "error: rpc down")
}

func TestModelExport(t *testing.T) {
	m := NewModel(nil, func() (string, error) { return "exports/prices.csv", nil })

	_, cmd := update(t, m, keyPress('e'))
	require.NotNil(t, cmd)
	msg := cmd()
	assert.Equal(t, ExportResultMsg{Path: "exports/prices.csv"}, msg)

	m, _ = update(t, m, msg)
	assert.Contains(t, m.View(), "exported to exports/prices.csv")
}

func TestModelUpdatesClosed(t *testing.T) {
	m := NewModel(nil, nil)
	m, _ = update(t, m, updatesClosedMsg{})
	assert.Contains(t, m.View(), "monitor stopped")
}
