package notify

import (
	"sync"

	"github.com/snapstream-io/snapstream/shared/types"
)

// DefaultHistorySize is the ring capacity used when none is configured.
const DefaultHistorySize = 100

// History is a fixed-capacity ring buffer of recent notifications. Once full,
// the oldest entry is overwritten. There is no other notification storage —
// a restart starts empty.
type History struct {
	mu   sync.RWMutex
	ring []types.NotificationPayload
	next int
	full bool
}

// NewHistory creates a ring holding up to capacity entries.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultHistorySize
	}
	return &History{
		ring: make([]types.NotificationPayload, capacity),
	}
}

// Add records n, evicting the oldest entry when the ring is full.
func (h *History) Add(n types.NotificationPayload) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.ring[h.next] = n
	h.next++
	if h.next == len(h.ring) {
		h.next = 0
		h.full = true
	}
}

// Recent returns up to limit notifications, newest first. limit <= 0 returns
// everything retained.
func (h *History) Recent(limit int) []types.NotificationPayload {
	h.mu.RLock()
	defer h.mu.RUnlock()

	size := h.next
	if h.full {
		size = len(h.ring)
	}
	if limit <= 0 || limit > size {
		limit = size
	}

	out := make([]types.NotificationPayload, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (h.next - i + len(h.ring)) % len(h.ring)
		out = append(out, h.ring[idx])
	}
	return out
}

// Len returns the number of retained notifications.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.full {
		return len(h.ring)
	}
	return h.next
}
