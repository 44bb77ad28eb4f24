package logstream

import "time"

// Backoff is a capped linear reconnect policy. Each step is used for
// MaxRetries attempts; after that the retry counter resets and the step
// grows by Increment, never beyond Max.
type Backoff struct {
	Initial    time.Duration
	Increment  time.Duration
	Max        time.Duration
	MaxRetries int

	retries int
	step    time.Duration
}

// Next returns the delay before the next attempt.
func (b *Backoff) Next() time.Duration {
	if b.step == 0 {
		b.step = b.Initial
	}
	b.retries++
	if b.MaxRetries > 0 && b.retries > b.MaxRetries {
		b.retries = 1
		b.step += b.Increment
	}
	if b.Max > 0 && b.step > b.Max {
		b.step = b.Max
	}
	return b.step
}

// Reset returns to the initial step after a successful connection.
func (b *Backoff) Reset() {
	b.retries = 0
	b.step = 0
}
