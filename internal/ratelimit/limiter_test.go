package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedClock gives tests full control of the limiter's view of time.
type fixedClock struct {
	now time.Time
}

func (c *fixedClock) advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestLimiter(quota float64, window time.Duration, threshold float64) (*Limiter, *fixedClock) {
	clock := &fixedClock{now: time.Unix(1_700_000_000, 0)}
	l := New(quota, window, threshold)
	l.now = func() time.Time { return clock.now }
	return l, clock
}

func TestAdmitUnderThreshold(t *testing.T) {
	l, _ := newTestLimiter(60, time.Minute, 10) // 1 unit/s decay

	assert.Equal(t, time.Duration(0), l.Admit(8), "first call starts from zero intensity")
	assert.Equal(t, time.Duration(0), l.Admit(2), "still at the threshold boundary")
}

func TestAdmitDelaysOverThreshold(t *testing.T) {
	l, _ := newTestLimiter(60, time.Minute, 10)

	require.Equal(t, time.Duration(0), l.Admit(8))
	require.Equal(t, time.Duration(0), l.Admit(8)) // intensity 8
	// Intensity hits 16 > 10: delay = (8 + 16 - 10) / 1 unit-per-s.
	assert.Equal(t, 14*time.Second, l.Admit(8))
}

func TestAdmitStacksConcurrentDelays(t *testing.T) {
	l, _ := newTestLimiter(60, time.Minute, 10)

	require.Equal(t, time.Duration(0), l.Admit(8))
	require.Equal(t, time.Duration(0), l.Admit(8))
	require.Equal(t, 14*time.Second, l.Admit(8))
	// last was future-dated by the previous admission, so the next caller
	// queues behind it rather than double-spending the same decay window.
	assert.Equal(t, 8*time.Second, l.Admit(1))
}

func TestAdmitDecayMonotonicity(t *testing.T) {
	var prev time.Duration
	for i, gap := range []time.Duration{0, 5 * time.Second, 10 * time.Second, 30 * time.Second} {
		l, clock := newTestLimiter(60, time.Minute, 10)
		require.Equal(t, time.Duration(0), l.Admit(8))
		require.Equal(t, time.Duration(0), l.Admit(8))
		clock.advance(gap)
		delay := l.Admit(8)
		if i > 0 {
			assert.LessOrEqual(t, delay, prev, "longer gap must not increase the delay")
		}
		prev = delay
	}
}

func TestAdmitZeroAfterFullDecay(t *testing.T) {
	l, clock := newTestLimiter(60, time.Minute, 10)

	require.Equal(t, time.Duration(0), l.Admit(8))
	require.Equal(t, time.Duration(0), l.Admit(8)) // intensity 8
	// elapsed * decayRate >= intensity + cost, so admission is free again.
	clock.advance(20 * time.Second)
	assert.Equal(t, time.Duration(0), l.Admit(8))
}

func TestAdmitToleratesClockAnomaly(t *testing.T) {
	l, clock := newTestLimiter(60, time.Minute, 10)

	require.Equal(t, time.Duration(0), l.Admit(5))
	clock.advance(-time.Hour)
	// Elapsed clamps to zero; the call is charged, never credited.
	assert.Equal(t, time.Duration(0), l.Admit(3))
	assert.Equal(t, time.Duration(0), l.Admit(2))
}

func TestWaitHonoursContext(t *testing.T) {
	l, _ := newTestLimiter(60, time.Minute, 1)
	require.Equal(t, time.Duration(0), l.Admit(1))
	require.NotEqual(t, time.Duration(0), l.Admit(100), "prime a long delay")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := l.Wait(ctx, 100)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAdmitSerializesConcurrentCallers(t *testing.T) {
	l := NewDefault()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			delay := l.Admit(5)
			assert.GreaterOrEqual(t, delay, time.Duration(0))
		}()
	}
	wg.Wait()
}
