package api

import (
	"sync/atomic"
	"time"
)

// commandClock stamps accepted commands.
var commandClock stampClock

// stampClock hands out strictly increasing nanosecond timestamps, even when
// the wall clock stalls or steps back.
type stampClock struct {
	last atomic.Int64
	now  func() time.Time
}

func (c *stampClock) wall() int64 {
	if c.now != nil {
		return c.now().UnixNano()
	}
	return time.Now().UnixNano()
}

// Next returns a single timestamp.
func (c *stampClock) Next() int64 { return c.Reserve(1) }

// Reserve claims count consecutive timestamps and returns the first one, or 0
// for a non-positive count.
func (c *stampClock) Reserve(count int) int64 {
	if count <= 0 {
		return 0
	}
	n := int64(count)
	for {
		start := c.wall()
		last := c.last.Load()
		if start <= last {
			start = last + 1
		}
		if c.last.CompareAndSwap(last, start+n-1) {
			return start
		}
	}
}
