package ratelimiter

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestLimiter(rate, capacity float64) (*Limiter, *clock) {
	c := &clock{now: time.Unix(1_700_000_000, 0)}
	l := New(rate, capacity, 0)
	l.now = c.Now
	return l, c
}

func TestAllow(t *testing.T) {
	t.Run("burst up to capacity", func(t *testing.T) {
		l, _ := newTestLimiter(1, 3)
		assert.True(t, l.Allow("a"))
		assert.True(t, l.Allow("a"))
		assert.True(t, l.Allow("a"))
		assert.False(t, l.Allow("a"))
	})

	t.Run("keys are independent", func(t *testing.T) {
		l, _ := newTestLimiter(1, 1)
		assert.True(t, l.Allow("a"))
		assert.False(t, l.Allow("a"))
		assert.True(t, l.Allow("b"))
	})

	t.Run("refills over time", func(t *testing.T) {
		l, c := newTestLimiter(1, 1)
		assert.True(t, l.Allow("a"))
		assert.False(t, l.Allow("a"))
		c.Advance(time.Second)
		assert.True(t, l.Allow("a"))
	})

	t.Run("does not exceed capacity", func(t *testing.T) {
		l, c := newTestLimiter(1, 2)
		assert.True(t, l.Allow("a"))
		c.Advance(time.Hour)
		assert.True(t, l.Allow("a"))
		assert.True(t, l.Allow("a"))
		assert.False(t, l.Allow("a"))
	})

	t.Run("concurrent access", func(t *testing.T) {
		l, _ := newTestLimiter(0, 50)
		var wg sync.WaitGroup
		var mu sync.Mutex
		allowed := 0
		for i := 0; i < 100; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if l.Allow("a") {
					mu.Lock()
					allowed++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 50, allowed)
	})
}

func TestEvict(t *testing.T) {
	l, c := newTestLimiter(1, 1)
	l.idleTTL = time.Minute

	l.Allow("old")
	c.Advance(2 * time.Minute)
	l.Allow("fresh")

	l.evict()
	assert.Equal(t, 1, l.Len())
}

func TestStop(t *testing.T) {
	l := New(1, 1, 10*time.Millisecond)
	l.Stop()
	l.Stop()
}
