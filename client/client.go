// Package client talks to IPC bridge gateways.
//
// A Client discovers gateway instances, picks one per session with a load balancer and
// keeps a bounded connection pool per address. A Session is one checked-out
// connection: handles opened on it are only meaningful on that same connection, so
// callers keep the session for as long as they use those handles.
//
//	Client.Acquire → Registry.Discover → Balancer.Pick → ConnPool.Get → Session
//	Session.Send   → middleware chain → Conn.Exchange → protocol/codec → gateway
package client

import (
	"context"
	"fmt"
	"io"
	"slices"
	"sync"

	"github.com/rs/zerolog"

	"ipc-bridge/config"
	"ipc-bridge/loadbalance"
	"ipc-bridge/logging"
	"ipc-bridge/middleware"
	"ipc-bridge/registry"
	"ipc-bridge/transport"
)

// Client is safe for concurrent use. Sessions are not.
type Client struct {
	cfg      config.Config
	registry registry.Registry
	balancer loadbalance.Balancer
	logger   zerolog.Logger
	extra    []middleware.Middleware
	chain    middleware.Middleware // Built once in New
	closers  []io.Closer           // Resources owned by the client, e.g. an etcd registry

	mu     sync.Mutex
	pools  map[string]*transport.ConnPool // Gateway address → pool
	closed bool
}

type Option func(*Client)

// WithLogger sets the logger; the default discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithMiddleware adds middlewares inside the built-in ones, closest to the exchange.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(c *Client) { c.extra = append(c.extra, mws...) }
}

// New creates a client for cfg.Gateway. cfg is expected to have passed config.Validate.
//
// Built-in middleware order, outermost first: logging, rate limit (if configured),
// dial retry, per-exchange timeout.
func New(cfg config.Config, reg registry.Registry, bal loadbalance.Balancer, opts ...Option) *Client {
	c := &Client{
		cfg:      cfg,
		registry: reg,
		balancer: bal,
		logger:   zerolog.Nop(),
		pools:    make(map[string]*transport.ConnPool),
	}
	for _, opt := range opts {
		opt(c)
	}
	if lvl, ok := logging.ParseLevel(cfg.LogLevel); ok {
		c.logger = c.logger.Level(lvl)
	}
	c.logger = c.logger.With().Str("gateway", cfg.Gateway).Logger()

	mws := []middleware.Middleware{middleware.LoggingMiddleware(c.logger)}
	if cfg.RateLimit > 0 {
		mws = append(mws, middleware.RateLimitMiddleware(cfg.RateLimit, cfg.RateBurst))
	}
	mws = append(mws,
		middleware.RetryMiddleware(cfg.DialRetries, cfg.RetryDelay),
		middleware.TimeoutMiddleware(cfg.CallTimeout),
	)
	c.chain = middleware.Chain(append(mws, c.extra...)...)
	return c
}

// NewFromConfig builds the registry and balancer cfg names and returns a client
// owning them. etcd is used when endpoints are configured, the static address list
// otherwise.
func NewFromConfig(cfg config.Config, opts ...Option) (*Client, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	bal, err := loadbalance.New(cfg.Balancer)
	if err != nil {
		return nil, err
	}

	var reg registry.Registry
	var closers []io.Closer
	if len(cfg.EtcdEndpoints) > 0 {
		etcd, err := registry.NewEtcdRegistry(cfg.EtcdEndpoints, cfg.DialTimeout)
		if err != nil {
			return nil, fmt.Errorf("client: connect etcd: %w", err)
		}
		reg = etcd
		closers = append(closers, etcd)
	} else {
		reg = registry.NewStaticRegistry(cfg.Gateway, cfg.Addrs...)
	}

	c := New(cfg, reg, bal, opts...)
	c.closers = closers
	return c, nil
}

// Acquire checks out a session on a gateway chosen by the balancer.
func (c *Client) Acquire(ctx context.Context) (*Session, error) {
	return c.AcquireKey(ctx, "")
}

// AcquireKey is Acquire with an affinity key for key-aware balancers.
func (c *Client) AcquireKey(ctx context.Context, key string) (*Session, error) {
	var (
		pool *transport.ConnPool
		conn *transport.Conn
	)
	ex := middleware.NewExchange("acquire", c.cfg.Gateway)
	err := c.chain(func(ctx context.Context, ex *middleware.Exchange) error {
		ex.Attempts++
		instances, err := c.registry.Discover(ctx, c.cfg.Gateway)
		if err != nil {
			return fmt.Errorf("client: discover %s: %w", c.cfg.Gateway, err)
		}
		inst, err := c.balancer.Pick(instances, key)
		if err != nil {
			return fmt.Errorf("client: pick %s instance: %w", c.cfg.Gateway, err)
		}
		ex.Addr = inst.Addr

		if pool, err = c.pool(inst.Addr); err != nil {
			return err
		}
		conn, err = pool.Get(ctx)
		return err
	})(ctx, ex)
	if err != nil {
		return nil, err
	}
	return &Session{client: c, pool: pool, conn: conn}, nil
}

// Do runs fn on a freshly acquired session and returns the session afterwards.
func (c *Client) Do(ctx context.Context, key string, fn func(*Session) error) error {
	s, err := c.AcquireKey(ctx, key)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}

func (c *Client) pool(addr string) (*transport.ConnPool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClientClosed
	}
	if p, ok := c.pools[addr]; ok {
		return p, nil
	}

	opts := transport.Options{
		DialTimeout:   c.cfg.DialTimeout,
		MaxReplyBytes: c.cfg.MaxReplyBytes,
	}
	p := transport.NewConnPool(addr, c.cfg.PoolSize, func(ctx context.Context) (*transport.Conn, error) {
		return transport.Dial(ctx, addr, opts)
	})
	c.pools[addr] = p
	return p, nil
}

// WatchGateways follows registry changes until ctx is done and closes the pools of
// gateways that disappeared. Sessions already checked out finish normally.
func (c *Client) WatchGateways(ctx context.Context) {
	for instances := range c.registry.Watch(ctx, c.cfg.Gateway) {
		c.prune(instances)
	}
}

func (c *Client) prune(instances []registry.GatewayInstance) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for addr, p := range c.pools {
		if slices.ContainsFunc(instances, func(i registry.GatewayInstance) bool { return i.Addr == addr }) {
			continue
		}
		c.logger.Info().Str("addr", addr).Msg("gateway left, closing pool")
		p.Close()
		delete(c.pools, addr)
	}
}

// Close closes every pool and any resources the client owns.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	pools := c.pools
	c.pools = nil
	c.mu.Unlock()

	for _, p := range pools {
		p.Close()
	}
	var firstErr error
	for _, cl := range c.closers {
		if err := cl.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
