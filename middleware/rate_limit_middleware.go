package middleware

import (
	"context"
	"errors"

	"golang.org/x/time/rate"
)

// ErrRateLimited is returned when an exchange is rejected by RateLimitMiddleware.
var ErrRateLimited = errors.New("middleware: rate limit exceeded")

// RateLimitMiddleware rejects exchanges beyond r per second using a token bucket of
// the given burst. Rejected exchanges never touch the connection.
func RateLimitMiddleware(r float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, ex *Exchange) error {
			if !limiter.Allow() {
				return ErrRateLimited
			}
			return next(ctx, ex)
		}
	}
}
