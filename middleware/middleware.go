// Package middleware wraps every bridge exchange the client performs.
//
// An exchange is one unit of work against a gateway: acquiring a connection, or one
// request/reply pair on it. Middlewares see the exchange record and the error it
// produced, never the bytes on the wire.
//
//	Chain(A, B, C)(handler) → A(B(C(handler)))
//	A.before → B.before → C.before → handler → C.after → B.after → A.after
package middleware

import (
	"context"

	"github.com/google/uuid"
)

// Exchange describes one unit of client work.
type Exchange struct {
	ID       uuid.UUID // Correlates log lines of one exchange
	Op       string    // "acquire", "open_service", "send_message", "allocate"
	Target   string    // Gateway name, service name or handle, depending on Op
	Addr     string    // Gateway address, once known
	Attempts int       // Number of times the handler ran
}

// NewExchange creates an exchange record with a fresh ID.
func NewExchange(op, target string) *Exchange {
	return &Exchange{ID: uuid.New(), Op: op, Target: target}
}

type HandlerFunc func(ctx context.Context, ex *Exchange) error

type Middleware func(next HandlerFunc) HandlerFunc

// Chain combines middlewares into one; the first one is the outermost.
func Chain(middlewares ...Middleware) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}
