package persist

import (
	"context"
	"errors"
	"time"
)

// Store calls made while a player waits on the result get a short in-line
// retry budget before the failure surfaces.
const (
	retryAttempts = 3
	retryBase     = 50 * time.Millisecond
)

// WithRetry runs op, retrying transient store failures with doubling
// backoff. Definite outcomes (missing record, bad credentials, taken name,
// expired context) return immediately.
func WithRetry(ctx context.Context, op func() error) error {
	delay := retryBase
	var err error
	for attempt := 1; ; attempt++ {
		err = op()
		if err == nil || !transient(err) || attempt == retryAttempts {
			return err
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return err
		}
		delay *= 2
	}
}

func transient(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrBadCredentials),
		errors.Is(err, ErrNameTaken),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return false
	}
	return true
}
