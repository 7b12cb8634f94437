package middleware

import (
	"context"
	"errors"
	"time"

	"ipc-bridge/transport"
)

// Retryable reports whether err happened before any byte reached the gateway.
// Only dial failures qualify: once a request has been written the exchange cannot
// be replayed safely.
func Retryable(err error) bool {
	var dialErr *transport.DialError
	return errors.As(err, &dialErr)
}

// RetryMiddleware re-runs an exchange up to maxRetries times with exponential
// backoff when it fails with a Retryable error.
func RetryMiddleware(maxRetries int, baseDelay time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, ex *Exchange) error {
			err := next(ctx, ex)
			for i := 0; i < maxRetries && err != nil && Retryable(err); i++ {
				select {
				case <-time.After(baseDelay * time.Duration(1<<i)):
				case <-ctx.Done():
					return err
				}
				err = next(ctx, ex)
			}
			return err
		}
	}
}
