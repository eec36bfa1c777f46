// Package ratelimit provides the per-client message rate ceiling enforced by
// the gateway.
//
// The limiter is a fixed-window counter: a shared map keyed by client id,
// reset in bulk on a fixed interval by the gateway's background loop. This is
// an approximate window, not an exact sliding one — a client can burst up to
// 2x the limit across a window boundary, which is acceptable for abuse
// protection on a status feed.
package ratelimit

import "sync"

// DefaultLimit is the number of client messages accepted per window.
const DefaultLimit = 100

// Limiter counts messages per client id within the current window.
// Safe for concurrent use.
type Limiter struct {
	mu     sync.Mutex
	limit  int
	counts map[string]int
}

// NewLimiter creates a Limiter allowing limit messages per window.
// A non-positive limit falls back to DefaultLimit.
func NewLimiter(limit int) *Limiter {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Limiter{
		limit:  limit,
		counts: make(map[string]int),
	}
}

// Allow records one message from clientID and reports whether it is within
// the window's ceiling. The first rejected message is the limit+1-th; earlier
// accepted messages are unaffected and the connection stays open — the
// caller surfaces a rate_limited error event instead of disconnecting.
func (l *Limiter) Allow(clientID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.counts[clientID]++
	return l.counts[clientID] <= l.limit
}

// ResetAll clears every counter. Called by the gateway on a fixed interval.
func (l *Limiter) ResetAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.counts = make(map[string]int)
}

// Forget drops the counter for a disconnected client so the map does not
// accumulate ids between resets.
func (l *Limiter) Forget(clientID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.counts, clientID)
}

// Count returns the number of messages recorded for clientID in the current
// window. Intended for tests and diagnostics.
func (l *Limiter) Count(clientID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.counts[clientID]
}
