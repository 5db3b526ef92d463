// Package ratelimit implements the decay-based throttle shared by all
// outbound Gmail calls.
//
// The upstream quota is expressed as cost units per fixed window (15000
// units per minute per user). The limiter folds every call's cost into a
// single intensity scalar that decays linearly with wall-clock time;
// admission is either immediate or comes with a delay the caller must
// sleep before proceeding. Callers sleep on their own time, not inside
// the limiter, so admission is serialized but waiting is concurrent.
package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"
)

// Upstream quota defaults. The threshold sits below the hard quota to
// leave headroom for calls the limiter never sees.
const (
	DefaultQuota     = 15000
	DefaultWindow    = time.Minute
	DefaultThreshold = 13000
)

// Limiter is a mutex-guarded decay counter. The zero value is not usable;
// construct with New.
type Limiter struct {
	mu        sync.Mutex
	intensity float64
	last      time.Time

	rate      float64 // units decayed per second
	threshold float64

	now func() time.Time
}

// New returns a limiter enforcing quota cost units per window, delaying
// callers once accumulated intensity passes threshold.
func New(quota float64, window time.Duration, threshold float64) *Limiter {
	return &Limiter{
		rate:      quota / window.Seconds(),
		threshold: threshold,
		now:       time.Now,
	}
}

// NewDefault returns a limiter tuned to the Gmail per-user quota.
func NewDefault() *Limiter {
	return New(DefaultQuota, DefaultWindow, DefaultThreshold)
}

// Admit charges cost against the limiter and returns how long the caller
// must sleep before performing the call. Zero means proceed immediately.
func (l *Limiter) Admit(cost float64) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	elapsed := now.Sub(l.last).Seconds()
	if elapsed < 0 {
		// Clock went backwards; decay nothing rather than go negative.
		elapsed = 0
	}

	intensity := l.intensity - elapsed*l.rate + cost
	if intensity < 0 {
		intensity = 0
	}
	l.intensity = intensity

	if intensity > l.threshold {
		perMilli := l.rate / 1000
		delay := time.Duration(math.Ceil((cost+intensity-l.threshold)/perMilli)) * time.Millisecond
		// Future-date last so concurrent admissions stack their delays.
		l.last = now.Add(delay)
		return delay
	}

	l.last = now
	return 0
}

// Wait charges cost and sleeps out any assigned delay, honouring ctx.
func (l *Limiter) Wait(ctx context.Context, cost float64) error {
	delay := l.Admit(cost)
	if delay == 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
