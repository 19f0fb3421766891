package journal

import (
	"sync"
	"time"
)

// Clock issues modification timestamps. Snapshots carry millisecond
// precision, so stamps are truncated to the millisecond and a stamp for a
// record is always strictly later than the record's previous one, even if
// the wall clock stalls or steps back.
type Clock struct {
	mu   sync.Mutex
	now  func() time.Time
	last time.Time
}

// NewClock returns a clock reading now, or time.Now when now is nil.
func NewClock(now func() time.Time) *Clock {
	if now == nil {
		now = time.Now
	}

	return &Clock{now: now}
}

// Stamp returns a UTC timestamp later than prev and later than any stamp
// this clock issued before.
func (c *Clock) Stamp(prev time.Time) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.now().UTC().Truncate(time.Millisecond)

	floor := prev
	if c.last.After(floor) {
		floor = c.last
	}

	if !t.After(floor) {
		t = floor.UTC().Truncate(time.Millisecond).Add(time.Millisecond)
	}

	c.last = t

	return t
}
