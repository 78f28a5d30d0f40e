package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	defaultRetryLimit = 3

	retryInitialInterval = 100 * time.Millisecond
	retryMaxInterval     = 2 * time.Second
)

// retryPolicy re-executes a transport call on transient failures. Delays are
// drawn from a randomized distribution that scales with the attempt count, so
// concurrent callers hitting the same rate limit do not retry in lockstep.
type retryPolicy struct {
	limit int
}

func newRetryPolicy(limit int) retryPolicy {
	if limit < 0 {
		limit = 0
	}
	return retryPolicy{limit: limit}
}

// execute runs fn until it succeeds, fails permanently, the retry limit is
// exhausted, or the context deadline passes. One context spans all attempts;
// the budget does not restart per attempt.
func (p retryPolicy) execute(ctx context.Context, fn func(context.Context) (*rawResponse, error)) (*rawResponse, error) {
	boff := backoff.NewExponentialBackOff()
	boff.InitialInterval = retryInitialInterval
	boff.MaxInterval = retryMaxInterval
	boff.RandomizationFactor = 0.5
	policy := backoff.WithContext(backoff.WithMaxRetries(boff, uint64(p.limit)), ctx)

	var resp *rawResponse
	attempts := 0

	err := backoff.Retry(func() error {
		attempts++

		r, err := fn(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			// transport-level failures (refused, reset, DNS) are transient
			return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
		}
		if terr := classifyStatus(r.status); terr != nil {
			return terr
		}
		resp = r
		return nil
	}, policy)

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, err
		}
		if isTransient(err) {
			return nil, &RetryExhaustedError{Attempts: attempts, Last: err}
		}
		return nil, err
	}
	return resp, nil
}
