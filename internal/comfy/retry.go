package comfy

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy bounds a retried operation. With Multiplier <= 1 the delay
// between attempts is fixed; otherwise it grows exponentially up to MaxDelay,
// randomized by Jitter (0 to 1).
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
	Multiplier  float64
	MaxDelay    time.Duration
	Jitter      float64
}

var (
	DefaultReadyPolicy  = RetryPolicy{MaxAttempts: 180, Delay: time.Second}
	DefaultSocketPolicy = RetryPolicy{MaxAttempts: 36, Delay: 5 * time.Second}
)

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	var b backoff.BackOff
	if p.Multiplier > 1 {
		eb := backoff.NewExponentialBackOff()
		eb.InitialInterval = p.Delay
		eb.Multiplier = p.Multiplier
		eb.RandomizationFactor = p.Jitter
		eb.MaxElapsedTime = 0
		if p.MaxDelay > 0 {
			eb.MaxInterval = p.MaxDelay
		}
		eb.Reset()
		b = eb
	} else {
		b = backoff.NewConstantBackOff(p.Delay)
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(p.attempts()-1)), ctx)
}

// Do runs op until it succeeds, the attempts are exhausted, or ctx is done.
// notify, if set, is called after each failed attempt that will be retried.
// The returned error is op's last error, or ctx's error when cancelled.
func (p RetryPolicy) Do(ctx context.Context, op func(attempt int) error, notify func(attempt int, err error, wait time.Duration)) (int, error) {
	attempt := 0
	var n backoff.Notify
	if notify != nil {
		n = func(err error, wait time.Duration) {
			notify(attempt, err, wait)
		}
	}
	err := backoff.RetryNotify(func() error {
		attempt++
		return op(attempt)
	}, p.backOff(ctx), n)
	return attempt, err
}
