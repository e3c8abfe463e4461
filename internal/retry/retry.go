// Package retry implements the one bounded retry policy the memory engine
// uses everywhere it calls out to an upstream HTTP vendor: base 250ms,
// factor 2, +-20% jitter, capped at 8s between attempts, 4 retries, 30s
// total budget. Grounded in the sibling fork's internal/storage/dolt
// reconnect policy, which reaches for the same library to retry a
// different kind of transient upstream (a MySQL-wire connection instead of
// an HTTP embedder/extractor call).
package retry

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	initialInterval     = 250 * time.Millisecond
	multiplier          = 2
	randomizationFactor = 0.20
	maxInterval         = 8 * time.Second
	maxElapsedTime      = 30 * time.Second
	maxRetries          = 4
)

// HTTPStatusError lets callers report a vendor HTTP status code without
// depending on a particular HTTP client type, so Retryable can classify it.
type HTTPStatusError struct {
	StatusCode int
	Err        error
}

func (e *HTTPStatusError) Error() string { return e.Err.Error() }
func (e *HTTPStatusError) Unwrap() error { return e.Err }

// Retryable reports whether err represents a transient upstream failure that
// is worth retrying: HTTP 5xx and 429 are retryable; other 4xx are not.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		if statusErr.StatusCode == http.StatusTooManyRequests {
			return true
		}
		if statusErr.StatusCode >= 500 && statusErr.StatusCode < 600 {
			return true
		}
		if statusErr.StatusCode >= 400 && statusErr.StatusCode < 500 {
			return false
		}
	}
	// No status information: assume network-level failures (timeouts,
	// connection resets) are transient and retry them on the full schedule.
	return true
}

// newBackOff builds the shared exponential backoff schedule.
func newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initialInterval
	b.Multiplier = multiplier
	b.RandomizationFactor = randomizationFactor
	b.MaxInterval = maxInterval
	b.MaxElapsedTime = maxElapsedTime
	return backoff.WithMaxRetries(b, maxRetries)
}

// Do runs fn, retrying per the shared schedule while Retryable(err) holds.
// A non-retryable error returns immediately. ctx cancellation is honored
// between attempts.
func Do(ctx context.Context, fn func(ctx context.Context) error) error {
	b := backoff.WithContext(newBackOff(), ctx)

	operation := func() error {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !Retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	return backoff.Retry(operation, b)
}
