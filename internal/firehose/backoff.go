package firehose

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// Backoff is an exponential reconnect policy. With Jitter the delay is drawn
// uniformly from [0, computed delay).
type Backoff struct {
	Base   time.Duration
	Cap    time.Duration
	Factor float64
	Jitter bool
	// MaxAttempts stops reconnecting after that many consecutive failures. Zero is unlimited.
	MaxAttempts uint32
}

// DefaultBackoff starts at 500ms and caps at 30s with full jitter.
func DefaultBackoff() Backoff {
	return Backoff{Base: 500 * time.Millisecond, Cap: 30 * time.Second, Factor: 2, Jitter: true}
}

// Delay returns the wait before reconnect attempt n (1-based).
func (b Backoff) Delay(attempt uint32) time.Duration {
	if attempt == 0 {
		attempt = 1
	}
	base := b.Base
	if base <= 0 {
		base = 200 * time.Millisecond
	}
	factor := b.Factor
	if factor <= 0 {
		factor = 2.0
	}
	delay := float64(base) * math.Pow(factor, float64(attempt-1))
	d := time.Duration(math.MaxInt64)
	if delay < float64(math.MaxInt64) {
		d = time.Duration(delay)
	}
	if b.Cap > 0 && d > b.Cap {
		d = b.Cap
	}
	if b.Jitter {
		if d <= 0 {
			return 0
		}
		return time.Duration(rand.Int63n(int64(d)))
	}
	return d
}

// sleepCtx waits for d or until ctx is done; it reports whether the full
// duration elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
