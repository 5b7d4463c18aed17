package retryutil

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	defaultAttempts = 3
	defaultDelay    = 50 * time.Millisecond
	defaultMaxDelay = 2 * time.Second
)

// ErrExhausted wraps the last retryable error once every attempt is spent.
var ErrExhausted = errors.New("retry attempts exhausted")

type Policy struct {
	Attempts int
	Delay    time.Duration
	MaxDelay time.Duration
}

type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

// Retryable marks err as worth another attempt. Any other error returned by
// the attempt func stops Do immediately.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &retryableError{err: err}
}

func IsRetryable(err error) bool {
	var r *retryableError
	return errors.As(err, &r)
}

func (p Policy) withDefaults() Policy {
	if p.Attempts <= 0 {
		p.Attempts = defaultAttempts
	}
	if p.Delay <= 0 {
		p.Delay = defaultDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = defaultMaxDelay
	}
	if p.MaxDelay < p.Delay {
		p.MaxDelay = p.Delay
	}
	return p
}

// Do calls fn up to p.Attempts times, doubling the wait between attempts.
// attempt starts at 1.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context, attempt int) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	p = p.withDefaults()
	delay := p.Delay
	var last error
	for attempt := 1; attempt <= p.Attempts; attempt++ {
		err := fn(ctx, attempt)
		if err == nil {
			return nil
		}
		if !IsRetryable(err) {
			return err
		}
		last = err
		if attempt == p.Attempts {
			break
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay *= 2
		if delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}
	var r *retryableError
	errors.As(last, &r)
	return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, p.Attempts, r.err)
}
