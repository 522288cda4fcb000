package monitor

import (
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
)

// PriceThrottler limits how often refresh results reach the UI. Updates that
// arrive too early replace the pending one, so the UI always gets the latest.
type PriceThrottler struct {
	mu             sync.RWMutex
	updateInterval time.Duration
	lastUpdate     time.Time
	pendingUpdate  *PriceUpdate
	outputCh       chan<- tea.Msg
	logger         *zap.Logger

	droppedUpdates uint64
	sentUpdates    uint64
}

// NewPriceThrottler creates a throttler writing to outputCh at most once per updateInterval.
func NewPriceThrottler(updateInterval time.Duration, outputCh chan<- tea.Msg, logger *zap.Logger) *PriceThrottler {
	return &PriceThrottler{
		updateInterval: updateInterval,
		outputCh:       outputCh,
		logger:         logger,
	}
}

// trySend must be called with pt.mu held.
func (pt *PriceThrottler) trySend(update PriceUpdate, now time.Time) bool {
	select {
	case pt.outputCh <- update:
		pt.lastUpdate = now
		pt.sentUpdates++
		pt.pendingUpdate = nil
		return true
	default:
		return false
	}
}

// SendPriceUpdate sends update now, or keeps it as pending when the interval
// has not passed yet or the channel is full. Safe for concurrent use.
func (pt *PriceThrottler) SendPriceUpdate(update PriceUpdate) {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	now := time.Now()
	if since := now.Sub(pt.lastUpdate); since < pt.updateInterval {
		pt.pendingUpdate = &update
		pt.droppedUpdates++
		pt.logger.Debug("Price update throttled",
			zap.Int("pools", len(update.Snapshots)),
			zap.Duration("since_last", since))
		return
	}

	if pt.trySend(update, now) {
		pt.logger.Debug("Price update sent", zap.Int("pools", len(update.Snapshots)))
		return
	}
	pt.pendingUpdate = &update
	pt.droppedUpdates++
	pt.logger.Warn("Price update channel full, storing as pending",
		zap.Int("pools", len(update.Snapshots)))
}

// FlushPending sends the pending update once the interval has passed.
// Call it periodically so a throttled update is not lost.
func (pt *PriceThrottler) FlushPending() {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	if pt.pendingUpdate == nil {
		return
	}
	now := time.Now()
	if now.Sub(pt.lastUpdate) < pt.updateInterval {
		return
	}
	at := pt.pendingUpdate.At
	if pt.trySend(*pt.pendingUpdate, now) {
		pt.logger.Debug("Pending price update flushed", zap.Time("at", at))
	}
}

// GetStats returns how many updates were sent and how many were held back.
func (pt *PriceThrottler) GetStats() (sent, dropped uint64) {
	pt.mu.RLock()
	defer pt.mu.RUnlock()
	return pt.sentUpdates, pt.droppedUpdates
}
