package transport

import (
	"math/rand/v2"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/devnovikov/algoroom/internal/common/config"
)

// Backoff schedules reconnect attempts: an exponential delay doubling from
// the base up to the cap, plus additive jitter in [0, MaxJitter). It is not
// safe for concurrent use; the channel's reconnect loop owns it.
type Backoff struct {
	exp         *backoff.ExponentialBackOff
	maxJitter   time.Duration
	maxAttempts int
	attempts    int
	jitter      func(max time.Duration) time.Duration
}

// NewBackoff creates a Backoff from the reconnect settings
func NewBackoff(cfg config.ReconnectConfig) *Backoff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = cfg.BaseDelay
	exp.MaxInterval = cfg.MaxDelay
	exp.Multiplier = 2
	exp.RandomizationFactor = 0
	exp.Reset()

	return &Backoff{
		exp:         exp,
		maxJitter:   cfg.MaxJitter,
		maxAttempts: cfg.MaxAttempts,
		jitter:      randomJitter,
	}
}

// Next returns the delay before the next reconnect attempt. It returns false
// once MaxAttempts consecutive attempts have been scheduled.
func (b *Backoff) Next() (time.Duration, bool) {
	if b.maxAttempts > 0 && b.attempts >= b.maxAttempts {
		return 0, false
	}
	b.attempts++

	delay := b.exp.NextBackOff()
	if b.maxJitter > 0 {
		delay += b.jitter(b.maxJitter)
	}
	return delay, true
}

// Reset is called after a successful connect
func (b *Backoff) Reset() {
	b.attempts = 0
	b.exp.Reset()
}

// Attempts returns the number of attempts scheduled since the last Reset
func (b *Backoff) Attempts() int {
	return b.attempts
}

func randomJitter(max time.Duration) time.Duration {
	return time.Duration(rand.Int64N(int64(max)))
}
