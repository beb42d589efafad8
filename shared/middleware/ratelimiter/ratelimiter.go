// Package ratelimiter implements a per-key token bucket limiter.
package ratelimiter

import (
	"sync"
	"time"
)

type bucket struct {
	tokens   float64
	lastSeen time.Time
}

// Limiter keeps one token bucket per key. Buckets idle for longer than
// idleTTL are evicted by a janitor goroutine until Stop is called.
type Limiter struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	rate     float64 // tokens per second
	capacity float64
	idleTTL  time.Duration
	now      func() time.Time
	stop     chan struct{}
	stopOnce sync.Once
}

func New(rate, capacity float64, idleTTL time.Duration) *Limiter {
	l := &Limiter{
		buckets:  make(map[string]*bucket),
		rate:     rate,
		capacity: capacity,
		idleTTL:  idleTTL,
		now:      time.Now,
		stop:     make(chan struct{}),
	}
	if idleTTL > 0 {
		go l.janitor()
	}
	return l
}

// Allow takes a token from the bucket of key, refilling it first.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: l.capacity, lastSeen: now}
		l.buckets[key] = b
	}

	b.tokens += now.Sub(b.lastSeen).Seconds() * l.rate
	if b.tokens > l.capacity {
		b.tokens = l.capacity
	}
	b.lastSeen = now

	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

// Len reports the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// evict drops buckets not seen since idleTTL.
func (l *Limiter) evict() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.idleTTL)
	for key, b := range l.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, key)
		}
	}
}

func (l *Limiter) janitor() {
	ticker := time.NewTicker(l.idleTTL)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.evict()
		case <-l.stop:
			return
		}
	}
}

// Stop ends the janitor goroutine. It is safe to call more than once.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}
