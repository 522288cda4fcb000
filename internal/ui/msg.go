package ui

import (
	"time"

	"github.com/rovshanmuradov/stakepool-price/internal/monitor"
)

// Tea message types for UI communication

// RefreshResultMsg carries the result of a manual refresh.
type RefreshResultMsg struct {
	Snapshots []monitor.Snapshot
	Err       error
}

// ExportResultMsg carries the result of an export request.
type ExportResultMsg struct {
	Path string
	Err  error
}

// TickMsg redraws snapshot ages.
type TickMsg time.Time

// updatesClosedMsg is sent once the monitor stops publishing.
type updatesClosedMsg struct{}
