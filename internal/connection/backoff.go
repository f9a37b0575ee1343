package connection

import (
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Backoff yields the delays between reconnect attempts.
// *backoff.ExponentialBackOff satisfies it.
type Backoff interface {
	// NextBackOff returns the next delay, or backoff.Stop to give up.
	NextBackOff() time.Duration

	// Reset restarts the sequence at the initial delay.
	Reset()
}

// NewBackoff builds the exponential policy described by cfg.
func NewBackoff(cfg ManagerConfig) Backoff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.InitialDelay
	b.MaxInterval = cfg.MaxDelay
	b.Multiplier = cfg.Multiplier
	b.RandomizationFactor = cfg.Jitter
	b.Reset()
	return b
}

// retryPolicy counts consecutive failures for one subscription.
// Not safe for concurrent use; Session guards it.
type retryPolicy struct {
	backoff    Backoff
	maxDelay   time.Duration // 0 = no cap beyond the backoff's own
	maxRetries int
	retries    int
}

// reset clears the failure count and rewinds the delay sequence.
func (p *retryPolicy) reset() {
	p.retries = 0
	p.backoff.Reset()
}

// failed records one failure. It returns the delay before the next attempt,
// or exhausted once the failure count exceeds maxRetries. Jitter is applied
// around the backoff's interval, so the result is clamped to maxDelay.
func (p *retryPolicy) failed() (delay time.Duration, exhausted bool) {
	p.retries++
	if p.maxRetries >= 0 && p.retries > p.maxRetries {
		return 0, true
	}
	delay = p.backoff.NextBackOff()
	if delay == backoff.Stop {
		return 0, true
	}
	if p.maxDelay > 0 && delay > p.maxDelay {
		delay = p.maxDelay
	}
	return delay, false
}
