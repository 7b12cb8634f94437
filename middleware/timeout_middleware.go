package middleware

import (
	"context"
	"time"
)

// TimeoutMiddleware bounds each exchange with a deadline. The transport applies the
// deadline to the socket, so a stalled gateway releases the caller instead of
// leaving a goroutine behind.
func TimeoutMiddleware(timeout time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, ex *Exchange) error {
			if timeout <= 0 {
				return next(ctx, ex)
			}
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			return next(ctx, ex)
		}
	}
}
