// Package retry provides small retry policies with exponential backoff.
package retry

import (
	"context"
	"errors"
	"time"
)

// Policy describes how often and how patiently an operation is retried.
// Backoff for attempt n (0-based) is InitialBackoff * Factor^n.
type Policy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	Factor         float64
}

// Permanent wraps an error that must not be retried.
type Permanent struct {
	Err error
}

func (e Permanent) Error() string {
	return e.Err.Error()
}

func (e Permanent) Unwrap() error {
	return e.Err
}

// IsPermanent returns true if err was marked with Permanent.
func IsPermanent(err error) bool {
	var p Permanent
	return errors.As(err, &p)
}

// Do runs fn until it succeeds, returns a Permanent error, the context is
// cancelled, or MaxAttempts is exhausted. The last error is returned.
func Do(ctx context.Context, p Policy, fn func(attempt int) error) error {
	var lastErr error

	backoff := p.InitialBackoff
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		err := fn(attempt)
		if err == nil {
			return nil
		}
		lastErr = err

		if IsPermanent(err) {
			return err
		}
		if attempt == p.MaxAttempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff = time.Duration(float64(backoff) * p.Factor)
	}

	return lastErr
}
