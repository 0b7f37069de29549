// Package upstream tracks how region data is being sourced: live fetches
// from the EIA API versus local fallback synthesis. The health endpoint
// reports degraded when fallback dominates a recent window.
package upstream

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// maxAge bounds how long outcomes are retained regardless of query window.
const maxAge = 30 * time.Minute

// Tracker maintains sliding windows of sourcing outcomes.
type Tracker struct {
	clock         clockwork.Clock
	mu            sync.Mutex
	liveTimes     []time.Time
	fallbackTimes []time.Time
}

// NewTracker creates a Tracker using the given clock.
func NewTracker(clock clockwork.Clock) *Tracker {
	return &Tracker{clock: clock}
}

// RecordLive records one region built from upstream data.
func (t *Tracker) RecordLive() {
	t.record(&t.liveTimes)
}

// RecordFallback records one region served from local synthesis.
func (t *Tracker) RecordFallback() {
	t.record(&t.fallbackTimes)
}

func (t *Tracker) record(slice *[]time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.clock.Now()
	*slice = append(*slice, now)
	t.pruneLocked(now)
}

// Counts returns (live, fallback) outcome counts within the window.
func (t *Tracker) Counts(window time.Duration) (live, fallback int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.clock.Now().Add(-window)
	return countSince(t.liveTimes, cutoff), countSince(t.fallbackTimes, cutoff)
}

// FallbackShare returns the fraction of outcomes in the window that were
// fallback synthesis, and the total outcome count. Share is 0 when the
// window is empty.
func (t *Tracker) FallbackShare(window time.Duration) (share float64, total int) {
	live, fallback := t.Counts(window)
	total = live + fallback
	if total == 0 {
		return 0, 0
	}
	return float64(fallback) / float64(total), total
}

// Reset clears all recorded outcomes. For tests only.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.liveTimes = nil
	t.fallbackTimes = nil
}

func countSince(times []time.Time, cutoff time.Time) int {
	n := 0
	for _, ts := range times {
		if !ts.Before(cutoff) {
			n++
		}
	}
	return n
}

// pruneLocked drops outcomes older than maxAge. Must be called with the
// mutex held.
func (t *Tracker) pruneLocked(now time.Time) {
	cutoff := now.Add(-maxAge)
	prune := func(slice *[]time.Time) {
		times := *slice
		i := 0
		for ; i < len(times) && times[i].Before(cutoff); i++ {
		}
		if i > 0 {
			*slice = append(times[:0], times[i:]...)
		}
	}
	prune(&t.liveTimes)
	prune(&t.fallbackTimes)
}
