package monitor

import (
	"sync"
	"time"
)

// History keeps a bounded list of snapshots per pool, oldest first.
type History struct {
	mu      sync.RWMutex
	max     int
	entries map[string][]Snapshot
	order   []string
}

// NewHistory creates a history holding up to max snapshots per pool.
func NewHistory(max int) *History {
	if max <= 0 {
		max = 1
	}
	return &History{
		max:     max,
		entries: make(map[string][]Snapshot),
	}
}

// Add appends snapshots, dropping the oldest entries of a pool once it is full.
func (h *History) Add(snaps ...Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, s := range snaps {
		key := s.Pool.Address.String()
		list, seen := h.entries[key]
		if !seen {
			h.order = append(h.order, key)
		}
		list = append(list, s)
		if len(list) > h.max {
			list = append(list[:0:0], list[len(list)-h.max:]...)
		}
		h.entries[key] = list
	}
}

// Snapshots returns every stored snapshot recorded between from and to
// (zero values mean unbounded), grouped by pool in insertion order.
func (h *History) Snapshots(from, to time.Time) []Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var out []Snapshot
	for _, key := range h.order {
		for _, s := range h.entries[key] {
			if !from.IsZero() && s.UpdatedAt.Before(from) {
				continue
			}
			if !to.IsZero() && s.UpdatedAt.After(to) {
				continue
			}
			out = append(out, s)
		}
	}
	return out
}

// Len returns the number of snapshots stored for address.
func (h *History) Len(address string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries[address])
}
