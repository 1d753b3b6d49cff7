// Package backoff provides a capped exponential delay sequence
package backoff

import (
	"context"
	"time"
)

// Backoff doubles from Min up to Max. The zero value is not usable.
type Backoff struct {
	Min time.Duration
	Max time.Duration

	cur time.Duration
}

// New creates a backoff starting at min and capped at max
func New(min, max time.Duration) *Backoff {
	if max < min {
		max = min
	}
	return &Backoff{Min: min, Max: max}
}

// Next returns the delay to wait before the next attempt
func (b *Backoff) Next() time.Duration {
	switch {
	case b.cur == 0:
		b.cur = b.Min
	case b.cur < b.Max:
		b.cur *= 2
		if b.cur > b.Max {
			b.cur = b.Max
		}
	}
	return b.cur
}

// Reset starts the sequence over at Min
func (b *Backoff) Reset() {
	b.cur = 0
}

// Sleep waits d or until ctx is done, reporting whether the full delay elapsed
func Sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
