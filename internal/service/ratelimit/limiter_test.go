package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(capacity, rate float64) (*Limiter, *fakeClock) {
	clk := &fakeClock{t: time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)}
	l := New(capacity, rate)
	l.now = clk.now
	return l, clk
}

func TestAllowConsumesAndRefills(t *testing.T) {
	l, clk := newTestLimiter(3, 1)

	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow("10.0.0.1"), "request %d", i)
	}
	assert.False(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.2"), "keys are independent")

	clk.advance(1500 * time.Millisecond)
	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"))
}

func TestRefillCapped(t *testing.T) {
	l, clk := newTestLimiter(2, 10)
	assert.True(t, l.Allow("k"))
	clk.advance(time.Hour)
	assert.True(t, l.Allow("k"))
	assert.True(t, l.Allow("k"))
	assert.False(t, l.Allow("k"))
}

func TestSweepDropsIdleKeys(t *testing.T) {
	l, clk := newTestLimiter(5, 1)
	l.Allow("old")
	clk.advance(10 * time.Minute)
	l.Allow("fresh")

	assert.Equal(t, 1, l.Sweep(5*time.Minute))
	assert.Equal(t, 1, l.Len())
}
