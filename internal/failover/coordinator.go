// Arbitration between the reconnecting clients of an ordered host list.

package failover

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/dreamware/failover/internal/eventloop"
	"github.com/dreamware/failover/internal/host"
	"github.com/dreamware/failover/internal/reconnect"
)

// Config describes the hosts to connect to, most preferred first, and the
// retry timing shared by all of them.
type Config struct {
	Hosts     []host.Descriptor `mapstructure:"hosts" yaml:"hosts"`
	Reconnect reconnect.Config  `mapstructure:"reconnect" yaml:"reconnect"`
}

// slot pairs one configured host with its client and the connection the
// client last reported. Only touched on the event loop.
type slot struct {
	client Client
	conn   net.Conn
	desc   host.Descriptor
	index  int
}

// Coordinator keeps one reconnecting client per host and tells its listeners
// whenever the current connection changes.
//
// State machine:
//
//	Connect(hosts) ──► Running ──Disconnect()──► Terminated
//	Connect([])    ──► Failed (one Error notification, Disconnect is a no-op)
//
// Thread Safety:
// slots, current, delivered and flushPending belong to the event loop and are
// only touched by tasks running on it. Status data is guarded by mu. Every
// listener call holds deliverMu, which Disconnect takes when called from
// another goroutine. The clients slice is fixed at construction.
type Coordinator struct {
	logger    *zap.Logger
	clock     clock.Clock
	loop      *eventloop.Loop
	factory   ClientFactory
	listeners []Listener
	clients   []Client
	hosts     []host.Descriptor

	// owned by the event loop
	slots        []*slot
	current      int
	delivered    net.Conn
	flushPending bool

	status     []HostStatus
	selected   int
	mu         sync.RWMutex
	deliverMu  sync.Mutex
	terminated atomic.Bool
	failed     bool
	ownLoop    bool
}

// ConnectHosts is Connect with default retry timing.
func ConnectHosts(hosts []host.Descriptor, opts ...Option) (*Coordinator, error) {
	return Connect(Config{Hosts: hosts}, opts...)
}

// Connect creates a coordinator and immediately starts one client per host.
// It never blocks on the network.
//
// Malformed input (a bad port, negative or inconsistent retry settings) is
// returned as an error wrapping ErrInvalidConfig. An empty host list is not
// an error here: the coordinator is returned in the failed state and
// ErrNoHosts is delivered to the listeners asynchronously.
//
// Example:
//
//	co, err := failover.Connect(cfg, failover.WithListener(failover.ListenerFuncs{
//	    OnConnected:    func(conn net.Conn) { use(conn) },
//	    OnDisconnected: func() { pause() },
//	}))
//	if err != nil {
//	    return err
//	}
//	defer co.Disconnect()
func Connect(cfg Config, opts ...Option) (*Coordinator, error) {
	if err := cfg.Reconnect.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	for i, d := range cfg.Hosts {
		if err := d.Validate(); err != nil {
			return nil, fmt.Errorf("%w: host %d: %v", ErrInvalidConfig, i, err)
		}
	}

	c := &Coordinator{
		logger:   zap.NewNop(),
		clock:    clock.New(),
		current:  -1,
		selected: -1,
		ownLoop:  true,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.loop == nil {
		c.loop = eventloop.New(c.logger)
	}
	if c.factory == nil {
		c.factory = c.defaultFactory
	}

	if len(cfg.Hosts) == 0 {
		c.failed = true
		c.logger.Error("no hosts configured")
		c.loop.Defer(c.deliverConfigError)
		c.startLoop()
		return c, nil
	}

	// The connect hook belongs to the coordinator; a caller supplied one
	// would bypass arbitration.
	rc := cfg.Reconnect
	rc.OnConnect = nil

	c.hosts = append([]host.Descriptor(nil), cfg.Hosts...)
	c.slots = make([]*slot, len(cfg.Hosts))
	c.clients = make([]Client, len(cfg.Hosts))
	c.status = make([]HostStatus, len(cfg.Hosts))
	for i, d := range cfg.Hosts {
		s := &slot{index: i, desc: d}
		s.client = c.factory(d, rc, c.hooks(s))
		c.slots[i] = s
		c.clients[i] = s.client
		c.status[i] = HostStatus{Addr: d.Addr(), Priority: i, State: StateUnknown}
	}

	c.startLoop()
	for _, s := range c.slots {
		s.client.Start()
	}
	c.logger.Info("failover started", zap.Int("hosts", len(c.slots)))

	return c, nil
}

// Disconnect stops every client, abandoning in-flight attempts and pending
// retries, and releases all hosts. It emits no notification, and no
// notification starts after it returns: called from another goroutine while
// a listener runs, it waits for that call to finish. Safe to call more than
// once and from inside a listener.
func (c *Coordinator) Disconnect() {
	if c.failed || !c.terminate() {
		return
	}

	for _, cl := range c.clients {
		cl.Stop()
	}

	c.mu.Lock()
	c.status = nil
	c.selected = -1
	c.mu.Unlock()

	c.loop.Post(func() {
		c.slots = nil
		c.current = -1
		c.delivered = nil
		if c.ownLoop {
			c.loop.Stop()
		}
	})
	c.logger.Info("failover disconnected")
}

// terminate sets the terminated flag and reports whether this call did so.
// Off the event loop it first waits for a listener call in progress, so a
// delivery cannot pass its check and start after Disconnect returns. On the
// loop, Disconnect comes from inside a listener and must not wait for itself.
func (c *Coordinator) terminate() bool {
	if !c.loop.InLoop() {
		c.deliverMu.Lock()
		defer c.deliverMu.Unlock()
	}
	return c.terminated.CompareAndSwap(false, true)
}

// Terminated reports whether Disconnect has been called.
func (c *Coordinator) Terminated() bool {
	return c.terminated.Load()
}

// Failed reports whether the coordinator was created without hosts.
func (c *Coordinator) Failed() bool {
	return c.failed
}

// Current returns the host of the last delivered Connected notification.
// ok is false while no host is current.
func (c *Coordinator) Current() (desc host.Descriptor, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.selected < 0 {
		return host.Descriptor{}, false
	}
	return c.hosts[c.selected], true
}

func (c *Coordinator) startLoop() {
	if c.ownLoop {
		c.loop.Start()
	}
}

// hooks routes a client's callbacks onto the event loop.
func (c *Coordinator) hooks(s *slot) reconnect.Hooks {
	return reconnect.Hooks{
		OnConnect: func(conn net.Conn) {
			c.loop.Post(func() { c.handleConnect(s, conn) })
		},
		OnDisconnect: func(err error) {
			c.loop.Post(func() { c.handleDisconnect(s, err) })
		},
	}
}

func (c *Coordinator) handleConnect(s *slot, conn net.Conn) {
	if c.terminated.Load() {
		return
	}
	s.conn = conn
	c.markConnected(s.index)
	c.logger.Debug("host connected", zap.String("host", s.desc.Addr()), zap.Int("priority", s.index))
	c.reevaluate()
}

// handleDisconnect treats every failure the same way: the error is logged
// and otherwise dropped, and the client retries on its own.
func (c *Coordinator) handleDisconnect(s *slot, err error) {
	if c.terminated.Load() {
		return
	}
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
		c.markDisconnected(s.index, true)
	} else {
		c.markDisconnected(s.index, false)
	}
	c.logger.Debug("host unavailable", zap.String("host", s.desc.Addr()), zap.Error(err))
	c.reevaluate()
}

// reevaluate selects the first slot holding a connection. It changes state
// synchronously and leaves the notification to a flush at the end of the turn.
func (c *Coordinator) reevaluate() {
	winner := -1
	for i, s := range c.slots {
		if s.conn != nil {
			winner = i
			break
		}
	}

	if winner == c.current {
		return
	}
	c.current = winner

	if !c.flushPending {
		c.flushPending = true
		c.loop.Defer(c.flush)
	}
}

// flush notifies listeners if the selection at this moment differs from the
// one they last saw. Several changes within one turn produce at most one call.
func (c *Coordinator) flush() {
	c.flushPending = false
	if c.terminated.Load() {
		return
	}

	var conn net.Conn
	if c.current >= 0 {
		conn = c.slots[c.current].conn
	}
	if conn == c.delivered {
		return
	}
	c.delivered = conn
	c.setSelected(c.current)

	if conn != nil {
		c.logger.Info("current host changed", zap.String("host", c.slots[c.current].desc.Addr()), zap.Int("priority", c.current))
		c.notify(func(l Listener) { l.Connected(conn) })
		return
	}
	c.logger.Warn("all hosts unavailable")
	c.notify(func(l Listener) { l.Disconnected() })
}

func (c *Coordinator) deliverConfigError() {
	c.notify(func(l Listener) { l.Error(ErrNoHosts) })
	if c.ownLoop {
		c.loop.Stop()
	}
}

// notify calls fn for every listener, stopping early once the coordinator is
// terminated. A panicking listener is logged and does not affect the others.
func (c *Coordinator) notify(fn func(Listener)) {
	for _, l := range c.listeners {
		if !c.deliver(l, fn) {
			return
		}
	}
}

// deliver makes one listener call unless the coordinator is terminated. The
// check and the call share deliverMu with terminate.
func (c *Coordinator) deliver(l Listener, fn func(Listener)) bool {
	c.deliverMu.Lock()
	defer c.deliverMu.Unlock()

	if c.terminated.Load() {
		return false
	}
	c.call(l, fn)
	return true
}

func (c *Coordinator) call(l Listener, fn func(Listener)) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("listener panicked", zap.Any("panic", r))
		}
	}()
	fn(l)
}
