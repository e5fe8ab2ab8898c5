package pipeline

import "time"

// ReplayClock is a clock that follows the timestamps of replayed events.
// Until the first timestamped event is observed it reports the fallback time.
// It never moves backwards, so out-of-order captures cannot rewind windows.
type ReplayClock struct {
	now      time.Time
	fallback func() time.Time
}

// NewReplayClock returns a clock that reports fallback() until an event is observed.
// A nil fallback uses time.Now.
func NewReplayClock(fallback func() time.Time) *ReplayClock {
	if fallback == nil {
		fallback = time.Now
	}
	return &ReplayClock{fallback: fallback}
}

// Now returns the latest observed event time.
func (c *ReplayClock) Now() time.Time {
	if c.now.IsZero() {
		return c.fallback()
	}
	return c.now
}

// Observe advances the clock to ts. Zero and earlier times are ignored.
func (c *ReplayClock) Observe(ts time.Time) {
	if ts.After(c.now) {
		c.now = ts
	}
}
