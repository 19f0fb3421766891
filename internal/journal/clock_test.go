package journal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestStamp_TruncatesToMillisecondUTC(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	c := NewClock(fixedNow(time.Date(2024, 3, 1, 13, 0, 0, 123456789, loc)))

	got := c.Stamp(time.Time{})
	assert.Equal(t, time.Date(2024, 3, 1, 12, 0, 0, 123000000, time.UTC), got)
	assert.Equal(t, time.UTC, got.Location())
}

func TestStamp_StrictlyIncreasingWhenClockStalls(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewClock(fixedNow(now))

	a := c.Stamp(time.Time{})
	b := c.Stamp(a)
	d := c.Stamp(time.Time{})

	assert.True(t, b.After(a))
	assert.True(t, d.After(b))
	assert.Equal(t, time.Millisecond, b.Sub(a))
}

func TestStamp_AfterPreviousFromPeer(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewClock(fixedNow(now))

	// A peer with a fast clock edited the record "in the future".
	prev := now.Add(time.Hour)

	got := c.Stamp(prev)
	assert.Equal(t, prev.Add(time.Millisecond), got)
}

func TestStamp_ClockSteppingBack(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewClock(func() time.Time { return now })

	first := c.Stamp(time.Time{})
	now = now.Add(-time.Minute)

	assert.True(t, c.Stamp(time.Time{}).After(first))
}

func TestNewClock_DefaultsToWallClock(t *testing.T) {
	c := NewClock(nil)
	before := time.Now().Add(-time.Second)

	assert.True(t, c.Stamp(time.Time{}).After(before))
}
