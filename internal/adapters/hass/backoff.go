package hass

import (
	"math/rand"
	"time"
)

// backoff implements exponential backoff with jitter for websocket
// reconnects. The tickerplant side deliberately uses a fixed retry interval
// instead; the host websocket has no such contract and recovers faster with
// backoff.
type backoff struct {
	initial time.Duration
	max     time.Duration
	current time.Duration
}

func newBackoff(initial, max time.Duration) *backoff {
	return &backoff{
		initial: initial,
		max:     max,
		current: initial,
	}
}

// Next returns the delay to wait before the next attempt and increases the
// backoff, with ±20% jitter.
func (b *backoff) Next() time.Duration {
	jitter := float64(b.current) * 0.2 * (rand.Float64()*2 - 1)
	delay := time.Duration(float64(b.current) + jitter)

	b.current *= 2
	if b.current > b.max {
		b.current = b.max
	}
	return delay
}

// Reset resets the backoff to the initial duration.
func (b *backoff) Reset() {
	b.current = b.initial
}
