// Package storage implements the durable persistence gateway for risk
// verdicts and alert records on top of Postgres.
package storage

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"
	"time"

	"github.com/lib/pq"
	"github.com/maxbolgarin/errm"
	"github.com/maxbolgarin/logze/v2"
)

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errm.New("record not found")

	// ErrInvalidInput is returned for validation failures before any write.
	// It is never retried.
	ErrInvalidInput = errm.New("invalid input")
)

// IsTransient reports whether err is a temporary backend failure worth
// retrying: connection problems, timeouts, serialization conflicts. Constraint
// violations and validation errors are permanent and fail immediately.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errm.Is(err, ErrInvalidInput) || errm.Is(err, ErrNotFound) {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "08", // connection exceptions
			"40", // transaction rollback (serialization failure, deadlock)
			"53", // insufficient resources
			"57": // operator intervention (admin shutdown)
			return true
		}
	}
	return false
}

// withRetry runs op up to maxRetries times with exponential backoff starting
// at base. Only transient errors are retried; everything else surfaces at once.
func withRetry(ctx context.Context, log logze.Logger, maxRetries int, base time.Duration, op func(context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if !IsTransient(lastErr) {
			return lastErr
		}
		if attempt == maxRetries-1 {
			break
		}
		wait := base << attempt
		log.Warn("database operation failed, retrying", "wait", wait.String(), "error", lastErr.Error())
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return errm.Wrap(ctx.Err(), "retry cancelled")
		}
	}
	return errm.Wrap(lastErr, "operation failed after retries")
}
