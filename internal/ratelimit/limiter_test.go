package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNew_InvalidArgsDisablesLimiting(t *testing.T) {
	l := New(0, 10, 0)
	assert.Nil(t, l)
	for i := 0; i < 1000; i++ {
		ok, wait := l.Allow("user", time.Now())
		assert.True(t, ok)
		assert.Zero(t, wait)
	}
	assert.Equal(t, 0, l.Len())
	l.Release("user", time.Now())
}

func TestLimiter_BurstThenDeny(t *testing.T) {
	l := New(1, 3, time.Minute)
	now := time.Now()

	for i := 0; i < 3; i++ {
		ok, _ := l.Allow("user", now)
		assert.True(t, ok, "event %d within burst", i)
	}
	ok, wait := l.Allow("user", now)
	assert.False(t, ok)
	assert.InDelta(t, float64(time.Second), float64(wait), float64(10*time.Millisecond))

	// one token refills after a second
	ok, _ = l.Allow("user", now.Add(time.Second))
	assert.True(t, ok)
}

func TestLimiter_RetryAfterShrinksAsTokensRefill(t *testing.T) {
	l := New(2, 1, time.Minute)
	now := time.Now()

	ok, _ := l.Allow("user", now)
	assert.True(t, ok)

	ok, wait := l.Allow("user", now.Add(250*time.Millisecond))
	assert.False(t, ok)
	assert.InDelta(t, float64(250*time.Millisecond), float64(wait), float64(10*time.Millisecond))
}

func TestLimiter_IdentitiesAreIndependent(t *testing.T) {
	l := New(1, 1, time.Minute)
	now := time.Now()

	ok, _ := l.Allow("a", now)
	assert.True(t, ok)
	ok, _ = l.Allow("a", now)
	assert.False(t, ok)
	ok, _ = l.Allow("b", now)
	assert.True(t, ok)
}

func TestLimiter_EmptyIdentityAlwaysAllowed(t *testing.T) {
	l := New(1, 1, time.Minute)
	now := time.Now()
	for i := 0; i < 5; i++ {
		ok, _ := l.Allow("", now)
		assert.True(t, ok)
	}
	assert.Equal(t, 0, l.Len())
}

func TestLimiter_SweepsIdleBuckets(t *testing.T) {
	l := New(100, 100, time.Minute)
	start := time.Now()

	l.Allow("idle", start)
	later := start.Add(2 * time.Minute)
	for i := 0; i < sweepEvery-1; i++ {
		l.Allow("busy", later)
	}

	assert.Equal(t, 1, l.Len())
}

func TestLimiter_ReleaseKeepsDrainedBucket(t *testing.T) {
	l := New(1, 1, time.Minute)
	now := time.Now()

	ok, _ := l.Allow("a", now)
	assert.True(t, ok)

	// Reconnecting right away must not hand out a fresh burst.
	l.Release("a", now)
	assert.Equal(t, 1, l.Len())
	ok, _ = l.Allow("a", now)
	assert.False(t, ok)
}

func TestLimiter_ReleaseDropsRefilledBucket(t *testing.T) {
	l := New(1, 2, time.Minute)
	now := time.Now()

	l.Allow("a", now)
	l.Release("a", now.Add(2*time.Second))
	assert.Equal(t, 0, l.Len())

	l.Release("missing", now)
	assert.Equal(t, 0, l.Len())
}
