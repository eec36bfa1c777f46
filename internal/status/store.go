// Package status keeps the latest known snapshot event per room.
//
// The store is the single source for both delivery paths: the gateway re-sends
// the cached event when a client joins (or re-joins) a room, and the REST
// status endpoints serve the same event's payload to polling clients. Feeding
// both from one place is what guarantees the broadcast payload and the
// request/response payload always have the same shape.
package status

import (
	"sync"

	"github.com/snapstream-io/snapstream/shared/types"
)

// Store holds the most recent broadcast event per room. Written by watchers
// and the notifier on every broadcast, read by the gateway and the REST
// handlers. Safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	latest map[string]types.Event // room name → last broadcast event
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		latest: make(map[string]types.Event),
	}
}

// Set records ev as the latest snapshot for room.
func (s *Store) Set(room string, ev types.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest[room] = ev
}

// Get returns the latest snapshot event for room. ok is false when nothing
// has been broadcast for the room yet — a client joining then gets no cached
// snapshot, only future broadcasts.
func (s *Store) Get(room string) (types.Event, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ev, ok := s.latest[room]
	return ev, ok
}
