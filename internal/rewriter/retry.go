package rewriter

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Retrying wraps a Service with bounded exponential backoff. Only transient
// failures (unreachable, rate limited) are retried; invalid responses and
// other errors surface immediately. A Retry-After delay from the service
// takes precedence over the computed backoff when it is longer.
type Retrying struct {
	Service
	maxAttempts int
}

// WithRetry wraps svc. maxAttempts counts the first try as well; values
// below 1 mean a single attempt.
func WithRetry(svc Service, maxAttempts int) *Retrying {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Retrying{Service: svc, maxAttempts: maxAttempts}
}

func (r *Retrying) Rewrite(ctx context.Context, cfg Config, req Request) (*Result, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 500 * time.Millisecond
	policy.MaxInterval = 15 * time.Second
	bo := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(r.maxAttempts-1)), ctx)

	for {
		result, err := r.Service.Rewrite(ctx, cfg, req)
		if err == nil {
			return result, nil
		}
		if !retryable(err) {
			return nil, err
		}

		wait := bo.NextBackOff()
		if wait == backoff.Stop {
			return nil, err
		}
		var rle *RateLimitError
		if errors.As(err, &rle) && rle.RetryAfter > wait {
			wait = rle.RetryAfter
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}
