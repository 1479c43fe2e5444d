package main

import (
	"sync"
	"time"
)

// throttle limits how often station updates reach the panel. Fyne widgets are
// refreshed on the main thread, so updates arriving faster than the interval
// are dropped instead of queued.
type throttle struct {
	interval time.Duration
	now      func() time.Time

	mu   sync.Mutex
	last time.Time
}

func newThrottle(interval time.Duration) *throttle {
	return &throttle{
		interval: interval,
		now:      time.Now,
	}
}

// Allow reports whether an update may pass and records it if so.
func (t *throttle) Allow() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if !t.last.IsZero() && now.Sub(t.last) < t.interval {
		return false
	}
	t.last = now
	return true
}
