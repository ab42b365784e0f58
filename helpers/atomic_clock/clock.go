// Package atomic_clock is monotonic nanosecond clock in atomic int64.
// Values count from process start, wall clock changes (NTP after boot) do not affect them.
// Use for debounce, timeouts and tick accounting, never for display.
package atomic_clock

import (
	"sync/atomic"
	"time"
)

var epoch = time.Now()

type Clock struct{ v int64 }

func source() int64 { return int64(time.Since(epoch)) }

func (c *Clock) get() int64 { return atomic.LoadInt64(&c.v) }

func (c *Clock) IsZero() bool { return c.get() == 0 }

func (c *Clock) Set(v int64)   { atomic.StoreInt64(&c.v, v) }
func (c *Clock) SetNow()       { c.Set(source()) }
func (c *Clock) SetNowIfZero() { atomic.CompareAndSwapInt64(&c.v, 0, source()) }

func (c *Clock) Add(d time.Duration) { atomic.AddInt64(&c.v, int64(d)) }

func (c *Clock) Sub(begin *Clock) time.Duration { return time.Duration(c.get() - begin.get()) }
func (c *Clock) Nano() int64                    { return c.get() }

// Passed is true when clock used as deadline is in the past.
func (c *Clock) Passed() bool { return source() >= c.get() }

// Left is time until deadline, zero when passed.
func (c *Clock) Left() time.Duration {
	if d := time.Duration(c.get() - source()); d > 0 {
		return d
	}
	return 0
}

func New(v int64) *Clock { return &Clock{v: v} }
func Now() *Clock        { return New(source()) }

// Deadline returns clock set to now+d.
func Deadline(d time.Duration) *Clock { return New(source() + int64(d)) }

func Since(begin *Clock) time.Duration { return time.Duration(source() - begin.get()) }

// Source is current monotonic value, suitable as `func() int64` clock for injection.
func Source() int64 { return source() }
