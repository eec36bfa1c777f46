package client

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func noJitter(b Backoff) Backoff {
	b.jitter = func(time.Duration) time.Duration { return 0 }
	return b
}

func TestBackoffMonotonicBoundedGrowth(t *testing.T) {
	b := noJitter(Backoff{Base: time.Second, Max: 8 * time.Second, MaxAttempts: 100})

	var prev time.Duration
	for i := 0; i < 10; i++ {
		d := b.Delay()
		assert.GreaterOrEqual(t, d, prev, "attempt %d", i)
		assert.LessOrEqual(t, d, 8*time.Second, "attempt %d", i)
		prev = d
		b = b.OnFailure()
	}
	// Capped at Max once the doubling passes it.
	assert.Equal(t, 8*time.Second, b.Delay())
}

func TestBackoffDoublesFromBase(t *testing.T) {
	b := noJitter(Backoff{Base: time.Second, Max: time.Minute, MaxAttempts: 100})

	assert.Equal(t, time.Second, b.Delay())
	b = b.OnFailure()
	assert.Equal(t, 2*time.Second, b.Delay())
	b = b.OnFailure()
	assert.Equal(t, 4*time.Second, b.Delay())
}

func TestBackoffJitterBounds(t *testing.T) {
	b := Backoff{Base: time.Second, Max: time.Minute, MaxAttempts: 100}

	for i := 0; i < 50; i++ {
		d := b.Delay()
		assert.GreaterOrEqual(t, d, time.Second)
		assert.Less(t, d, 2*time.Second)
	}
}

func TestBackoffResetOnSuccess(t *testing.T) {
	b := noJitter(NewBackoff())
	for i := 0; i < 5; i++ {
		b = b.OnFailure()
	}
	assert.Equal(t, 5, b.Attempt)

	b = b.OnSuccess()
	assert.Equal(t, 0, b.Attempt)
	assert.Equal(t, b.Base, b.Delay())
}

func TestBackoffExhaustion(t *testing.T) {
	b := Backoff{Base: time.Millisecond, Max: time.Second, MaxAttempts: 3}

	assert.False(t, b.Exhausted())
	for i := 0; i < 3; i++ {
		b = b.OnFailure()
	}
	assert.True(t, b.Exhausted())

	// Success re-arms the ceiling.
	b = b.OnSuccess()
	assert.False(t, b.Exhausted())
}
