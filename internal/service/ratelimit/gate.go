package ratelimit

import (
	"context"
	"sync"
	"time"
)

// IntervalGate spaces outbound requests process-wide: no two reserved send
// slots are closer than the configured interval, whatever the caller.
type IntervalGate struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
	now      func() time.Time
}

// NewIntervalGate creates a gate with the given minimum spacing.
func NewIntervalGate(interval time.Duration) *IntervalGate {
	return &IntervalGate{interval: interval, now: time.Now}
}

// Interval returns the configured minimum spacing.
func (g *IntervalGate) Interval() time.Duration { return g.interval }

// Reserve claims the next free slot and returns it. Slots are strictly
// increasing across concurrent callers.
func (g *IntervalGate) Reserve() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	slot := g.now()
	if !g.last.IsZero() {
		if next := g.last.Add(g.interval); next.After(slot) {
			slot = next
		}
	}
	g.last = slot
	return slot
}

// Wait reserves a slot and blocks until it arrives or ctx is done. The slot
// stays consumed on cancellation so later callers keep their spacing.
func (g *IntervalGate) Wait(ctx context.Context) (time.Time, error) {
	slot := g.Reserve()
	d := time.Until(slot)
	if d <= 0 {
		return slot, ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return slot, nil
	case <-ctx.Done():
		return slot, ctx.Err()
	}
}
