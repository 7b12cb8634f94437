package transport

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrPoolClosed is returned by Get after Close.
var ErrPoolClosed = errors.New("transport: pool closed")

// ConnPool hands out exclusive connections to a single gateway address.
//
// Pool design: a buffered channel of tokens bounds how many connections are checked
// out at once, and a second buffered channel holds idle connections in FIFO order.
// Connections are created lazily.
type ConnPool struct {
	addr    string
	tokens  chan struct{} // One token per connection that may be in use
	idle    chan *Conn    // Healthy connections waiting for reuse
	factory func(ctx context.Context) (*Conn, error)

	mu     sync.Mutex
	closed bool
	open   atomic.Int64
}

// NewConnPool creates a pool of at most maxConns connections to addr.
func NewConnPool(addr string, maxConns int, factory func(ctx context.Context) (*Conn, error)) *ConnPool {
	if maxConns < 1 {
		maxConns = 1
	}
	return &ConnPool{
		addr:    addr,
		tokens:  make(chan struct{}, maxConns),
		idle:    make(chan *Conn, maxConns),
		factory: factory,
	}
}

// Get returns a connection for exclusive use, reusing an idle one when possible.
// It blocks while maxConns connections are checked out.
func (p *ConnPool) Get(ctx context.Context) (*Conn, error) {
	select {
	case p.tokens <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		<-p.tokens
		return nil, ErrPoolClosed
	}

	if c := p.takeIdle(); c != nil {
		return c, nil
	}

	c, err := p.factory(ctx)
	if err != nil {
		<-p.tokens
		return nil, err
	}
	p.open.Add(1)
	return c, nil
}

func (p *ConnPool) takeIdle() *Conn {
	for {
		select {
		case c := <-p.idle:
			if c.Broken() {
				p.discard(c)
				continue
			}
			return c
		default:
			return nil
		}
	}
}

// Put gives a connection back. Broken connections are closed instead of kept.
func (p *ConnPool) Put(c *Conn) {
	defer func() { <-p.tokens }()

	// Held across the push so Close cannot drain the idle list in between.
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed || c.Broken() {
		p.discard(c)
		return
	}
	select {
	case p.idle <- c:
	default:
		p.discard(c)
	}
}

func (p *ConnPool) discard(c *Conn) {
	c.Close()
	p.open.Add(-1)
}

// Open returns the number of live connections, idle or checked out.
func (p *ConnPool) Open() int {
	return int(p.open.Load())
}

// Addr returns the address the pool dials.
func (p *ConnPool) Addr() string {
	return p.addr
}

// Close closes idle connections. Checked-out connections are closed when returned.
func (p *ConnPool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	defer p.mu.Unlock()

	for {
		select {
		case c := <-p.idle:
			p.discard(c)
		default:
			return nil
		}
	}
}
