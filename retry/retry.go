// Package retry provides an explicit retry policy with exponential backoff
// for unreliable model calls. Only errors the caller classifies as transient
// are retried; permanent failures return immediately.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// ErrInvalidPolicy is returned by Policy.Validate for unusable configurations.
var ErrInvalidPolicy = errors.New("invalid retry policy")

// Policy configures retry behavior with exponential backoff.
type Policy struct {
	// MaxAttempts is the maximum number of attempts, including the first.
	MaxAttempts int
	// InitialBackoff is the wait before the first retry.
	InitialBackoff time.Duration
	// MaxBackoff caps the wait between retries.
	MaxBackoff time.Duration
	// BackoffFactor is the multiplier applied after each attempt.
	BackoffFactor float64
	// JitterFactor is the maximum jitter as a fraction of the backoff (0-1).
	JitterFactor float64
	// Retriable classifies errors; nil means nothing is retried.
	Retriable func(error) bool
}

// DefaultPolicy returns the policy used for model calls when the caller does
// not override it.
func DefaultPolicy(retriable func(error) bool) Policy {
	return Policy{
		MaxAttempts:    3,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     30 * time.Second,
		BackoffFactor:  2.0,
		JitterFactor:   0.2,
		Retriable:      retriable,
	}
}

// Validate checks the policy for usable values.
func (p Policy) Validate() error {
	if p.MaxAttempts < 1 {
		return ErrInvalidPolicy
	}
	if p.InitialBackoff <= 0 {
		return ErrInvalidPolicy
	}
	if p.MaxBackoff < p.InitialBackoff {
		return ErrInvalidPolicy
	}
	if p.BackoffFactor < 1.0 {
		return ErrInvalidPolicy
	}
	return nil
}

// Result contains the outcome of a retried operation.
type Result struct {
	// Attempts is the number of attempts made.
	Attempts int
	// TotalDuration is the total time spent, including backoff waits.
	TotalDuration time.Duration
	// LastErr is the error from the final attempt; nil on success.
	LastErr error
}

// Func is an operation that can be retried. attempt starts at 1.
type Func func(ctx context.Context, attempt int) error

// Do executes fn with exponential backoff retry under the given policy.
// fn is retried only when it fails with an error p.Retriable reports true
// for; any other error returns immediately. Context cancellation is checked
// before each attempt and during backoff waits, never mid-attempt.
func Do(ctx context.Context, p Policy, fn Func) (Result, error) {
	start := time.Now()
	res := Result{}

	backoff := p.InitialBackoff
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		res.Attempts = attempt

		if err := ctx.Err(); err != nil {
			res.LastErr = err
			res.TotalDuration = time.Since(start)
			return res, err
		}

		err := fn(ctx, attempt)
		if err == nil {
			res.TotalDuration = time.Since(start)
			return res, nil
		}
		res.LastErr = err

		if p.Retriable == nil || !p.Retriable(err) || attempt == p.MaxAttempts {
			res.TotalDuration = time.Since(start)
			return res, err
		}

		wait := backoff
		if p.JitterFactor > 0 {
			jitter := time.Duration(rand.Float64() * p.JitterFactor * float64(backoff))
			wait += jitter
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			res.LastErr = ctx.Err()
			res.TotalDuration = time.Since(start)
			return res, ctx.Err()
		case <-timer.C:
		}

		backoff = time.Duration(float64(backoff) * p.BackoffFactor)
		if backoff > p.MaxBackoff {
			backoff = p.MaxBackoff
		}
	}

	res.TotalDuration = time.Since(start)
	return res, res.LastErr
}
