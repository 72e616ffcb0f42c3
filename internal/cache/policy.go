package cache

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy controls freshness, retention, and retries for every key of a Cache.
type Policy struct {
	// StaleTime is how long a resolved value is served without refetching.
	StaleTime time.Duration
	// RetainTime is how long an unobserved value is kept after it resolved.
	RetainTime time.Duration
	Retry      RetryPolicy
}

// RetryPolicy bounds producer retries. Only errors are retried.
type RetryPolicy struct {
	// MaxRetries is the number of attempts made after the first one fails.
	MaxRetries int
	// NewBackOff returns the delay schedule between attempts. Nil uses
	// DefaultBackOff.
	NewBackOff func() backoff.BackOff
}

// DefaultPolicy returns 5 minutes fresh, 30 minutes retained and 2 retries.
func DefaultPolicy() Policy {
	return Policy{
		StaleTime:  5 * time.Minute,
		RetainTime: 30 * time.Minute,
		Retry: RetryPolicy{
			MaxRetries: 2,
			NewBackOff: DefaultBackOff,
		},
	}
}

// DefaultBackOff waits 1s, then doubles up to 30s between attempts.
func DefaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

func (p RetryPolicy) schedule() backoff.BackOff {
	newBackOff := p.NewBackOff
	if newBackOff == nil {
		newBackOff = DefaultBackOff
	}
	retries := p.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return backoff.WithMaxRetries(newBackOff(), uint64(retries))
}
