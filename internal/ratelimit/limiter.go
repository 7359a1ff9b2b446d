// Package ratelimit throttles inbound relay events per identity.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// sweepEvery is how many decisions pass between idle-bucket sweeps.
const sweepEvery = 512

// Limiter holds one token bucket per identity.
//
// A bucket outlives the connection that drained it: Release only drops
// buckets that have refilled, so reconnecting never restores a spent burst.
// Buckets untouched for idleTTL are swept.
//
// A nil *Limiter allows everything.
type Limiter struct {
	every   rate.Limit
	burst   int
	idleTTL time.Duration

	mu        sync.Mutex
	buckets   map[string]*bucket
	decisions uint64
}

type bucket struct {
	*rate.Limiter
	touched time.Time
}

// New creates a limiter refilling perSecond tokens up to burst.
// It returns nil (unlimited) when perSecond or burst is not positive.
func New(perSecond float64, burst int, idleTTL time.Duration) *Limiter {
	if perSecond <= 0 || burst <= 0 {
		return nil
	}
	if idleTTL <= 0 {
		idleTTL = 10 * time.Minute
	}
	return &Limiter{
		every:   rate.Limit(perSecond),
		burst:   burst,
		idleTTL: idleTTL,
		buckets: make(map[string]*bucket),
	}
}

// Allow consumes one token for identity at now. When the bucket is empty it
// reports false and how long until the next token is available.
func (l *Limiter) Allow(identity string, now time.Time) (bool, time.Duration) {
	if l == nil || identity == "" {
		return true, 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[identity]
	if !ok {
		b = &bucket{Limiter: rate.NewLimiter(l.every, l.burst)}
		l.buckets[identity] = b
	}
	b.touched = now

	l.decisions++
	if l.decisions%sweepEvery == 0 {
		l.sweepLocked(now)
	}

	if b.AllowN(now, 1) {
		return true, 0
	}
	return false, l.untilNextToken(b.TokensAt(now))
}

// Release is called when identity goes offline. The bucket is dropped only
// if it has refilled to its full burst; a drained bucket is kept until the
// idle sweep reaches it.
func (l *Limiter) Release(identity string, now time.Time) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[identity]
	if !ok {
		return
	}
	if b.TokensAt(now) >= float64(l.burst) {
		delete(l.buckets, identity)
	}
}

// Len returns the number of identities holding a bucket.
func (l *Limiter) Len() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func (l *Limiter) untilNextToken(tokens float64) time.Duration {
	missing := 1 - tokens
	if missing <= 0 {
		return 0
	}
	return time.Duration(missing / float64(l.every) * float64(time.Second))
}

func (l *Limiter) sweepLocked(now time.Time) {
	cutoff := now.Add(-l.idleTTL)
	for id, b := range l.buckets {
		if b.touched.Before(cutoff) {
			delete(l.buckets, id)
		}
	}
}
