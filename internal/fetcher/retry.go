package fetcher

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"

	"Sentinel6G/internal/domain"
)

var errAttemptFailed = errors.New("attempt failed")

// RetryPolicy bounds how often one strategy is tried before it counts as failed.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryPolicy mirrors the production settings: 3 tries, 2s doubling to 10s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, InitialBackoff: 2 * time.Second, MaxBackoff: 10 * time.Second}
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = 2 * time.Second
	}
	if p.MaxBackoff < p.InitialBackoff {
		p.MaxBackoff = p.InitialBackoff
	}
	return p
}

func (p RetryPolicy) backOff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.InitialBackoff
	bo.MaxInterval = p.MaxBackoff
	bo.Multiplier = 2
	return bo
}

// attemptWithRetry runs one strategy until it succeeds or the policy is exhausted.
// The last observed outcome is returned, with Attempts filled in.
func attemptWithRetry(ctx context.Context, policy RetryPolicy, strategy Strategy, source domain.Source, notify func(Outcome, time.Duration)) Outcome {
	policy = policy.normalized()
	last := TimedOut(strategy.Kind())
	attempts := 0

	operation := func() (struct{}, error) {
		attempts++
		last = strategy.Attempt(ctx, source.URL, source.Payload)
		if last.OK() {
			return struct{}{}, nil
		}
		if ctx.Err() != nil {
			return struct{}{}, backoff.Permanent(ctx.Err())
		}
		return struct{}{}, errAttemptFailed
	}

	_, _ = backoff.Retry(ctx, operation,
		backoff.WithBackOff(policy.backOff()),
		backoff.WithMaxTries(uint(policy.MaxAttempts)),
		backoff.WithNotify(func(_ error, wait time.Duration) {
			if notify != nil {
				notify(last, wait)
			}
		}),
	)

	if attempts == 0 && ctx.Err() != nil {
		last = TimedOut(strategy.Kind())
	}
	last.Attempts = attempts
	return last
}
