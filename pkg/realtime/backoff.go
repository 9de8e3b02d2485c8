package realtime

import "time"

// Backoff is the reconnect delay policy: the delay grows by the base on
// every consecutive failure, is capped, and the attempt count is bounded.
// Exhaustion is a terminal answer from Next, not a panic or an implicit
// timer chain.
type Backoff struct {
	Base        time.Duration
	Cap         time.Duration
	MaxAttempts int

	attempts int
}

// Next records one more attempt and returns the delay to wait before it.
// The second return is false once the attempt budget is exhausted; the
// caller must stop retrying and go fatal.
func (b *Backoff) Next() (time.Duration, bool) {
	if b.attempts >= b.MaxAttempts {
		return 0, false
	}
	b.attempts++
	delay := time.Duration(b.attempts) * b.Base
	if b.Cap > 0 && delay > b.Cap {
		delay = b.Cap
	}
	return delay, true
}

// Attempts returns the number of consecutive failed attempts recorded.
func (b *Backoff) Attempts() int { return b.attempts }

// Reset clears the attempt counter after a successful connection.
func (b *Backoff) Reset() { b.attempts = 0 }
