package helpers

import (
	"time"
)

// Backoff is limited exponential delay between retries.
// Not safe for concurrent use, owned by one retry loop.
type Backoff struct {
	next time.Duration

	Min time.Duration
	Max time.Duration
	K   float32
}

// DelayAfter returns delay before next attempt.
// Success resets to zero delay, each failure waits longer by K up to Max.
//
//	for {
//		err := op()
//		time.Sleep(backoff.DelayAfter(err == nil))
//	}
func (b *Backoff) DelayAfter(success bool) time.Duration {
	if success {
		b.Reset()
		return 0
	}
	d := b.limit(b.next)
	b.next = b.limit(time.Duration(float64(d) * float64(b.K)))
	return d
}

// Reset makes next failure delay Min.
func (b *Backoff) Reset() { b.next = b.Min }

func (b *Backoff) limit(d time.Duration) time.Duration {
	if d < b.Min {
		d = b.Min
	}
	if b.Max != 0 && d > b.Max {
		d = b.Max
	}
	return d
}
