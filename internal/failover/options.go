package failover

import (
	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/dreamware/failover/internal/eventloop"
	"github.com/dreamware/failover/internal/host"
	"github.com/dreamware/failover/internal/reconnect"
)

// Client is the part of a reconnecting client the coordinator relies on.
// *reconnect.Client satisfies it.
type Client interface {
	// Start begins connection attempts without blocking.
	Start()
	// Stop cancels retries and closes any live connection. The coordinator
	// does not expect a disconnect hook for it.
	Stop()
}

// ClientFactory builds the client for one host. cfg never carries an
// OnConnect hook.
type ClientFactory func(desc host.Descriptor, cfg reconnect.Config, hooks reconnect.Hooks) Client

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithListener registers a listener. It may be given several times.
func WithListener(l Listener) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.listeners = append(c.listeners, l)
		}
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock sets the clock used for status timestamps and, with the default
// client factory, for backoff timers.
func WithClock(clk clock.Clock) Option {
	return func(c *Coordinator) {
		if clk != nil {
			c.clock = clk
		}
	}
}

// WithClientFactory replaces the TCP reconnect client.
func WithClientFactory(f ClientFactory) Option {
	return func(c *Coordinator) {
		if f != nil {
			c.factory = f
		}
	}
}

// WithLoop runs the coordinator on an existing event loop. The caller owns
// the loop: the coordinator neither starts nor stops it.
func WithLoop(l *eventloop.Loop) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.loop = l
			c.ownLoop = false
		}
	}
}

func (c *Coordinator) defaultFactory(desc host.Descriptor, cfg reconnect.Config, hooks reconnect.Hooks) Client {
	return reconnect.New(desc.Addr(), cfg, hooks,
		reconnect.WithLogger(c.logger),
		reconnect.WithClock(c.clock),
	)
}
