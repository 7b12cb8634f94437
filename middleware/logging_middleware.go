package middleware

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// LoggingMiddleware logs one line per exchange: debug on success, warn on failure.
func LoggingMiddleware(logger zerolog.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, ex *Exchange) error {
			start := time.Now()
			err := next(ctx, ex)

			var ev *zerolog.Event
			if err != nil {
				ev = logger.Warn().Err(err)
			} else {
				ev = logger.Debug()
			}
			ev.Str("exchange", ex.ID.String()).
				Str("op", ex.Op).
				Str("target", ex.Target).
				Str("addr", ex.Addr).
				Int("attempts", ex.Attempts).
				Dur("duration", time.Since(start)).
				Msg("bridge exchange")
			return err
		}
	}
}
