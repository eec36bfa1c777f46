package client

import (
	"math/rand"
	"time"
)

// Backoff defaults.
const (
	DefaultBackoffBase = time.Second
	DefaultBackoffMax  = 30 * time.Second
	DefaultMaxAttempts = 10
)

// Backoff computes reconnection delays as a value type: every transition
// returns a new Backoff, so the progression can be unit-tested without
// timers. The delay for attempt n is min(Max, Base*2^n) plus random jitter
// in [0, Base).
//
// Attempt increments on every failed connect and resets only on success.
// Once Attempt reaches MaxAttempts the backoff reports exhaustion; the
// reconciler then stops automatic reconnection and relies on polling until
// a manual Reconnect.
type Backoff struct {
	Base        time.Duration
	Max         time.Duration
	MaxAttempts int

	// Attempt is the number of consecutive failures so far.
	Attempt int

	// jitter returns a random duration in [0, n). Injectable for tests;
	// nil means math/rand.
	jitter func(n time.Duration) time.Duration
}

// NewBackoff returns a Backoff with the default progression.
func NewBackoff() Backoff {
	return Backoff{
		Base:        DefaultBackoffBase,
		Max:         DefaultBackoffMax,
		MaxAttempts: DefaultMaxAttempts,
	}
}

func (b Backoff) withDefaults() Backoff {
	if b.Base <= 0 {
		b.Base = DefaultBackoffBase
	}
	if b.Max <= 0 {
		b.Max = DefaultBackoffMax
	}
	if b.MaxAttempts <= 0 {
		b.MaxAttempts = DefaultMaxAttempts
	}
	return b
}

// Delay returns the wait before the next attempt, without advancing state.
func (b Backoff) Delay() time.Duration {
	b = b.withDefaults()

	d := b.Base
	for i := 0; i < b.Attempt; i++ {
		d *= 2
		if d >= b.Max {
			d = b.Max
			break
		}
	}

	jitter := b.jitter
	if jitter == nil {
		jitter = func(n time.Duration) time.Duration {
			return time.Duration(rand.Int63n(int64(n)))
		}
	}
	return d + jitter(b.Base)
}

// OnFailure records a failed attempt and returns the updated backoff.
func (b Backoff) OnFailure() Backoff {
	b.Attempt++
	return b
}

// OnSuccess resets the failure streak.
func (b Backoff) OnSuccess() Backoff {
	b.Attempt = 0
	return b
}

// Exhausted reports whether the attempt ceiling has been reached.
func (b Backoff) Exhausted() bool {
	b = b.withDefaults()
	return b.Attempt >= b.MaxAttempts
}
