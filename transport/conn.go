// Package transport owns the TCP side of the bridge client.
//
// The bridge protocol has no sequence numbers, so a connection carries exactly one
// exchange (request + reply) at a time. Conn enforces that and turns a context
// deadline or cancellation into a socket deadline so a blocked read is released.
//
//	goroutine-1 ──Get──→ Conn#1 ──Exchange──→ gateway
//	goroutine-2 ──Get──→ Conn#2 ──Exchange──→ gateway
//	goroutine-3 ──Get──→ (waits for a free slot)
//
// Any failed exchange leaves the stream at an unknown position, so the Conn is marked
// broken and the pool closes it instead of reusing it.
package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrBroken is returned by Exchange on a connection that already failed once.
	ErrBroken = errors.New("transport: connection is broken")
	// ErrReplyTooLarge is returned when a reply exceeds Options.MaxReplyBytes.
	ErrReplyTooLarge = errors.New("transport: reply exceeds size limit")
)

// aLongTimeAgo is a deadline in the past used to unblock pending I/O.
var aLongTimeAgo = time.Unix(1, 0)

// Options tunes dialing and exchanges.
type Options struct {
	DialTimeout   time.Duration
	MaxReplyBytes int64 // 0 means unlimited
}

// DialError reports a failure to reach a gateway. No bytes were exchanged, so the
// operation that needed the connection can safely be retried.
type DialError struct {
	Addr string
	Err  error
}

func (e *DialError) Error() string {
	return fmt.Sprintf("transport: dial %s: %v", e.Addr, e.Err)
}

func (e *DialError) Unwrap() error { return e.Err }

// Conn is one connection to a gateway. It is not safe for concurrent exchanges;
// callers get exclusive use through ConnPool.
type Conn struct {
	conn net.Conn
	r    *bufio.Reader
	addr string
	opts Options

	mu     sync.Mutex // Held for the whole exchange
	broken atomic.Bool
}

// Dial connects to addr.
func Dial(ctx context.Context, addr string, opts Options) (*Conn, error) {
	d := net.Dialer{Timeout: opts.DialTimeout}
	nc, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &DialError{Addr: addr, Err: err}
	}
	return NewConn(nc, opts), nil
}

// NewConn wraps an established connection.
func NewConn(nc net.Conn, opts Options) *Conn {
	return &Conn{
		conn: nc,
		r:    bufio.NewReader(nc),
		addr: nc.RemoteAddr().String(),
		opts: opts,
	}
}

// Exchange runs fn with the connection's writer and reader. fn must write one
// complete request and read exactly one reply.
//
// If fn fails, or ctx ends while fn runs, the connection is marked broken.
func (c *Conn) Exchange(ctx context.Context, fn func(w io.Writer, r io.Reader) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.broken.Load() {
		return ErrBroken
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	deadline, _ := ctx.Deadline() // zero when ctx has none, which clears the socket deadline
	if err := c.conn.SetDeadline(deadline); err != nil {
		c.broken.Store(true)
		return fmt.Errorf("transport: set deadline: %w", err)
	}
	stop := context.AfterFunc(ctx, func() {
		c.conn.SetDeadline(aLongTimeAgo)
	})
	defer stop()

	var r io.Reader = c.r
	var limited *io.LimitedReader
	if c.opts.MaxReplyBytes > 0 {
		limited = &io.LimitedReader{R: c.r, N: c.opts.MaxReplyBytes}
		r = limited
	}

	err := fn(c.conn, r)
	if err == nil {
		return nil
	}

	c.broken.Store(true)
	if limited != nil && limited.N <= 0 {
		return fmt.Errorf("%w (%d bytes): %w", ErrReplyTooLarge, c.opts.MaxReplyBytes, err)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("transport: exchange aborted: %w: %w", ctxErr, err)
	}
	// The socket deadline can fire just before ctx notices its own.
	if !deadline.IsZero() && errors.Is(err, os.ErrDeadlineExceeded) {
		return fmt.Errorf("transport: exchange aborted: %w: %w", context.DeadlineExceeded, err)
	}
	return err
}

// Broken reports whether the connection failed and must not be reused.
func (c *Conn) Broken() bool {
	return c.broken.Load()
}

// Addr returns the gateway address.
func (c *Conn) Addr() string {
	return c.addr
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	c.broken.Store(true)
	return c.conn.Close()
}
