// Package retry is the single retry mechanism shared by every batched remote
// call in the system: bounded attempts, exponential backoff with jitter, and
// a fixed allow-list of transient conditions.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"syscall"
	"time"
)

// Policy controls how a single batch call is retried.
//
// MaxAttempts: total tries including the first (default 3).
// BaseDelay:   delay before the second attempt; doubles per attempt.
// MaxDelay:    backoff cap.
// Retryable:   predicate deciding whether an error is worth retrying;
//              defaults to IsTransient.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Retryable   func(error) bool
}

// DefaultPolicy matches the remote services' tolerance: 3 attempts, 1s base,
// 20s cap.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    20 * time.Second,
	}
}

// transientError marks an error as retryable regardless of its type.
// Gateways wrap HTTP 429/5xx responses with it.
type transientError struct{ err error }

func (t *transientError) Error() string { return t.err.Error() }
func (t *transientError) Unwrap() error { return t.err }

// MarkTransient flags err as a transient remote condition.
func MarkTransient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient reports whether err is on the transient allow-list:
// connect/read/write timeouts, connection errors, pool exhaustion, or an
// explicit MarkTransient wrap. Anything else propagates immediately.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var te *transientError
	if errors.As(err, &te) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}
	return false
}

// Do invokes fn up to MaxAttempts times. Non-retryable errors propagate
// immediately; exhausting attempts re-raises the last transient error.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = IsTransient
	}

	var last error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.delay(attempt)):
			}
		}
		last = fn(ctx)
		if last == nil {
			return nil
		}
		if !retryable(last) {
			return last
		}
	}
	return last
}

// delay computes the backoff before the given attempt (1-based for waits):
// base * 2^(attempt-1), capped, then jittered by uniform[0.5, 1.5).
func (p Policy) delay(attempt int) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		base = time.Second
	}
	max := p.MaxDelay
	if max <= 0 {
		max = 20 * time.Second
	}
	d := base << (attempt - 1)
	if d > max || d <= 0 {
		d = max
	}
	jitter := 0.5 + rand.Float64()
	return time.Duration(float64(d) * jitter)
}

// CallBatched partitions items into ordered batches of at most batchSize,
// invokes call once per batch under the policy, and concatenates results
// preserving input order. The batch operation must be idempotent.
func CallBatched[T, R any](ctx context.Context, p Policy, items []T, batchSize int, call func(ctx context.Context, batch []T) ([]R, error)) ([]R, error) {
	if batchSize <= 0 {
		batchSize = len(items)
	}
	out := make([]R, 0, len(items))
	for start := 0; start < len(items); start += batchSize {
		end := start + batchSize
		if end > len(items) {
			end = len(items)
		}
		batch := items[start:end]

		var res []R
		err := p.Do(ctx, func(ctx context.Context) error {
			var callErr error
			res, callErr = call(ctx, batch)
			return callErr
		})
		if err != nil {
			return nil, err
		}
		out = append(out, res...)
	}
	return out, nil
}
