// Package retry provides the single retry policy shared by crawl fetches
// and provider calls.
package retry

import (
	"context"
	"time"
)

// Transient marks errors worth retrying. Errors that do not implement it
// are treated as transient, so plain network errors still get retried;
// callers opt out by returning an error whose IsTransient reports false.
type Transient interface {
	IsTransient() bool
}

// Policy retries an operation up to Attempts times with a backoff that
// grows linearly with the attempt number, matching rate-limit-friendly
// sequential pacing.
type Policy struct {
	Attempts int
	Backoff  time.Duration
}

// Do runs fn until it succeeds, exhausts the attempts, hits a
// non-transient error, or the context is cancelled. It returns the last
// error observed.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if t, ok := lastErr.(Transient); ok && !t.IsTransient() {
			return lastErr
		}
		if attempt == attempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.Backoff * time.Duration(attempt)):
		}
	}

	return lastErr
}
