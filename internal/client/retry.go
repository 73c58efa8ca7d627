package client

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	log "github.com/sirupsen/logrus"
)

// RetryPolicy bounds how often and how patiently an operation is repeated.
// Between attempts it sleeps a uniformly random duration in [MinWait, MaxWait].
type RetryPolicy struct {
	MaxAttempts int
	MinWait     time.Duration
	MaxWait     time.Duration

	// Retryable decides which errors earn another attempt. Nil means IsTransient.
	Retryable func(error) bool

	// OnRetry, when set, runs before every attempt after the first.
	OnRetry func(attempt int, lastErr error)
}

func NewRetryPolicy(maxAttempts int, minWait, maxWait time.Duration) *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts: maxAttempts,
		MinWait:     minWait,
		MaxWait:     maxWait,
		Retryable:   IsTransient,
	}
}

// Delay draws the wait before the next attempt.
func (p *RetryPolicy) Delay() time.Duration {
	if p.MaxWait <= p.MinWait {
		return max(p.MinWait, 0)
	}
	return p.MinWait + time.Duration(rand.Int64N(int64(p.MaxWait-p.MinWait)+1))
}

// Do runs op until it succeeds, fails with a non-retryable error, or the
// attempt budget is spent. Attempts are numbered from 1. The wait between
// attempts is abandoned as soon as ctx is done.
func (p *RetryPolicy) Do(ctx context.Context, op func(ctx context.Context, attempt int) error) error {
	attempts := max(p.MaxAttempts, 1)
	retryable := p.Retryable
	if retryable == nil {
		retryable = IsTransient
	}

	for attempt := 1; ; attempt++ {
		err := op(ctx, attempt)
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return err
		}
		if attempt >= attempts {
			return &ExhaustedRetriesError{Attempts: attempt, Cause: err}
		}

		wait := p.Delay()
		log.Debugf("⏳ Attempt %d/%d failed: %v, retrying in %v", attempt, attempts, err, wait.Round(time.Millisecond))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-timer.C:
		}

		if p.OnRetry != nil {
			p.OnRetry(attempt+1, err)
		}
	}
}
