package monitor

import (
	"sync"

	"go.uber.org/zap"
)

// PriceCache keeps the last successfully computed snapshot of every pool.
type PriceCache struct {
	prices map[string]Snapshot
	mu     sync.RWMutex
	logger *zap.Logger
}

// NewPriceCache creates an empty cache.
func NewPriceCache(logger *zap.Logger) *PriceCache {
	return &PriceCache{
		prices: make(map[string]Snapshot),
		logger: logger,
	}
}

// Put stores a fresh snapshot. Stale or unavailable snapshots are ignored.
func (c *PriceCache) Put(s Snapshot) {
	if !s.Available || s.Stale {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.prices[s.Pool.Address.String()] = s
	c.logger.Debug("Cached price",
		zap.String("pool", s.Pool.Name),
		zap.Uint64("price", s.Price),
		zap.Uint64("slot", s.Slot))
}

// Get returns the last good snapshot for a pool address.
func (c *PriceCache) Get(address string) (Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s, ok := c.prices[address]
	return s, ok
}
