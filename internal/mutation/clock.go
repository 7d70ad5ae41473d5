package mutation

import (
	"sync"
	"time"
)

// TimestampLayout renders instants the way browsers print Date.toISOString.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// Clock hands out strictly increasing millisecond timestamps. When the wall
// clock has not advanced past the previous stamp the next millisecond is
// used instead, so two messages never share a delete key.
type Clock struct {
	mu   sync.Mutex
	now  func() time.Time
	last time.Time
}

// NewClock returns a Clock reading now, or time.Now when nil.
func NewClock(now func() time.Time) *Clock {
	if now == nil {
		now = time.Now
	}
	return &Clock{now: now}
}

// Next returns the next timestamp.
func (c *Clock) Next() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.now().UTC().Truncate(time.Millisecond)
	if !t.After(c.last) {
		t = c.last.Add(time.Millisecond)
	}
	c.last = t
	return t.Format(TimestampLayout)
}
