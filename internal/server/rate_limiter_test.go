package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestRateLimiterBurstAndRefill(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	rl := newRateLimiterWithClock(RateLimitConfig{Burst: 2, RefillInterval: time.Second}, clock.now)

	assert.True(t, rl.allow())
	assert.True(t, rl.allow())
	assert.False(t, rl.allow(), "burst exhausted")

	clock.advance(500 * time.Millisecond)
	assert.True(t, rl.allow(), "half an interval refills one token")
	assert.False(t, rl.allow())

	clock.advance(time.Hour)
	assert.True(t, rl.allow())
	assert.True(t, rl.allow())
	assert.False(t, rl.allow(), "refill is capped at capacity")
}

func TestRateLimiterInvalidConfig(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	rl := newRateLimiterWithClock(RateLimitConfig{}, clock.now)

	assert.True(t, rl.allow())
	assert.False(t, rl.allow())

	clock.advance(time.Second)
	assert.True(t, rl.allow())
}
