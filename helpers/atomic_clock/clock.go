// Package atomic_clock is lock free timestamp for goroutine shared state:
// debounce, press start, backoff. Zero value means never set.
package atomic_clock

import (
	"sync/atomic"
	"time"
)

type Clock struct{ v int64 }

func source() int64 { return time.Now().UnixNano() }

func (c *Clock) get() int64    { return atomic.LoadInt64(&c.v) }
func (c *Clock) set(new int64) { atomic.StoreInt64(&c.v, new) }

func (c *Clock) IsZero() bool { return c.get() == 0 }
func (c *Clock) Reset()       { c.set(0) }

func (c *Clock) SetNow()             { c.set(source()) }
func (c *Clock) SetTime(t time.Time) { c.set(t.UnixNano()) }

func (c *Clock) UnixNano() int64 { return c.get() }
func (c *Clock) Time() time.Time { return time.Unix(0, c.get()) }

// Elapsed is duration from stored time to `at`, zero when clock was never set.
func (c *Clock) Elapsed(at time.Time) time.Duration {
	v := c.get()
	if v == 0 {
		return 0
	}
	return time.Duration(at.UnixNano() - v)
}

func New(v int64) *Clock { return &Clock{v: v} }
func Now() *Clock        { return New(source()) }

func Since(begin *Clock) time.Duration { return time.Duration(source() - begin.get()) }
