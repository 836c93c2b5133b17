package reconnect

import (
	"context"
	"net"
	"sync"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

// DialFunc opens one connection. It has the signature of net.Dialer.DialContext.
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// Hooks receive connection lifecycle events. Both run on the client's own
// goroutine and must not block for long.
type Hooks struct {
	// OnConnect is called exactly once per successful connection, before the
	// connection is handed to anything else.
	OnConnect func(conn net.Conn)

	// OnDisconnect is called when a connection attempt fails or an
	// established connection becomes unusable. err says why.
	OnDisconnect func(err error)
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock replaces the wall clock used for backoff timers.
func WithClock(clk clock.Clock) Option {
	return func(c *Client) {
		if clk != nil {
			c.clock = clk
		}
	}
}

// WithDialFunc replaces the TCP dialer.
func WithDialFunc(dial DialFunc) Option {
	return func(c *Client) {
		if dial != nil {
			c.dial = dial
		}
	}
}

// Client keeps one endpoint connected, retrying with exponential backoff
// after every failed attempt or dropped connection until Stop is called.
//
// Thread-safe: Start, Stop and Connected may be called from any goroutine.
type Client struct {
	hooks     Hooks
	dial      DialFunc
	clock     clock.Clock
	logger    *zap.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	conn      *trackedConn
	addr      string
	cfg       Config
	mu        sync.Mutex
	wg        sync.WaitGroup
	started   bool
	reconnect bool
}

// New creates a client for addr ("host:port"). Zero fields of cfg take their
// defaults. The client does nothing until Start is called.
//
// Example:
//
//	c := reconnect.New("db-1:5432", reconnect.Config{InitialDelay: 100 * time.Millisecond},
//	    reconnect.Hooks{
//	        OnConnect:    func(conn net.Conn) { log.Println("up") },
//	        OnDisconnect: func(err error) { log.Println("down:", err) },
//	    })
//	c.Start()
//	defer c.Stop()
func New(addr string, cfg Config, hooks Hooks, opts ...Option) *Client {
	cfg = cfg.WithDefaults()
	ctx, cancel := context.WithCancel(context.Background())

	c := &Client{
		addr:      addr,
		cfg:       cfg,
		hooks:     hooks,
		logger:    zap.NewNop(),
		clock:     clock.New(),
		ctx:       ctx,
		cancel:    cancel,
		reconnect: true,
	}
	c.dial = (&net.Dialer{KeepAlive: cfg.KeepAlive}).DialContext
	if cfg.OnConnect != nil {
		c.hooks.OnConnect = cfg.OnConnect
	}

	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(zap.String("addr", addr))

	return c
}

// Start begins connecting in the background. It never blocks.
// Calling Start again, or after Stop, has no effect.
func (c *Client) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started || c.ctx.Err() != nil {
		return
	}
	c.started = true

	c.wg.Add(1)
	go c.run()
}

// Stop disables reconnection, abandons any in-flight attempt, cancels a
// pending backoff timer and closes the live connection. No OnDisconnect
// is reported for the connection closed by Stop. Idempotent.
func (c *Client) Stop() {
	c.mu.Lock()
	c.reconnect = false
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	c.cancel()
	if conn != nil {
		_ = conn.Close()
	}
}

// Wait blocks until the background goroutine has exited after Stop.
func (c *Client) Wait() {
	c.wg.Wait()
}

// Connected reports whether the client currently holds a live connection.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Addr returns the address the client dials.
func (c *Client) Addr() string {
	return c.addr
}

func (c *Client) run() {
	defer c.wg.Done()

	b := c.cfg.newBackOff(c.clock)
	for {
		if c.ctx.Err() != nil {
			return
		}

		conn, err := c.connect()
		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			c.logger.Debug("connection attempt failed", zap.Error(err))
			c.disconnected(err)
		} else {
			b.Reset()
			if !c.hold(conn) {
				return
			}
		}

		if !c.shouldReconnect() {
			return
		}

		delay := b.NextBackOff()
		c.logger.Debug("scheduling reconnect", zap.Duration("delay", delay))
		timer := c.clock.Timer(delay)
		select {
		case <-timer.C:
		case <-c.ctx.Done():
			timer.Stop()
			return
		}
	}
}

// connect performs one dial bounded by the dial timeout.
func (c *Client) connect() (*trackedConn, error) {
	ctx, cancel := c.clock.WithTimeout(c.ctx, c.cfg.DialTimeout)
	defer cancel()

	raw, err := c.dial(ctx, "tcp", c.addr)
	if err != nil {
		return nil, err
	}

	conn := newTrackedConn(raw)
	c.mu.Lock()
	if !c.reconnect {
		c.mu.Unlock()
		_ = conn.Close()
		return nil, net.ErrClosed
	}
	c.conn = conn
	c.mu.Unlock()

	return conn, nil
}

// hold reports the connection and waits until it dies or the client stops.
// It returns false when the client was stopped.
func (c *Client) hold(conn *trackedConn) bool {
	c.logger.Debug("connected")
	if c.hooks.OnConnect != nil {
		c.hooks.OnConnect(conn)
	}

	select {
	case <-conn.dead:
	case <-c.ctx.Done():
		_ = conn.Close()
		return false
	}

	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.mu.Unlock()

	if c.ctx.Err() != nil {
		return false
	}
	c.logger.Debug("connection lost", zap.Error(conn.cause()))
	c.disconnected(conn.cause())
	return true
}

func (c *Client) disconnected(err error) {
	if c.hooks.OnDisconnect != nil {
		c.hooks.OnDisconnect(err)
	}
}

func (c *Client) shouldReconnect() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reconnect
}
