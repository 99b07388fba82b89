package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/rl1809/wallet/internal/core/domain"
)

const (
	DefaultMaxAttempts    = 10
	DefaultInitialBackoff = 5 * time.Millisecond
	DefaultMaxBackoff     = 200 * time.Millisecond
)

// RetryPolicy bounds how often a read-modify-write cycle is repeated after a
// version conflict. Only domain.ErrVersionConflict is retried.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    DefaultMaxAttempts,
		InitialBackoff: DefaultInitialBackoff,
		MaxBackoff:     DefaultMaxBackoff,
	}
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.InitialBackoff
	exp.MaxInterval = p.MaxBackoff
	if exp.MaxInterval < exp.InitialInterval {
		exp.MaxInterval = exp.InitialInterval
	}
	// attempts are bounded by count, not wall time
	exp.MaxElapsedTime = 0

	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(attempts-1)), ctx)
}

// Do runs fn until it succeeds, fails with a non-conflict error or the attempt
// budget is spent. It returns the number of attempts made.
func (p RetryPolicy) Do(ctx context.Context, fn func() error) (int, error) {
	attempts := 0
	err := backoff.Retry(func() error {
		attempts++
		err := fn()
		if err == nil || errors.Is(err, domain.ErrVersionConflict) {
			return err
		}
		return backoff.Permanent(err)
	}, p.backOff(ctx))

	if errors.Is(err, domain.ErrVersionConflict) {
		return attempts, fmt.Errorf("%w: gave up after %d attempts", domain.ErrConcurrentUpdate, attempts)
	}
	return attempts, err
}
