package reconnect

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ErrInvalidConfig is returned by Config.Validate.
var ErrInvalidConfig = errors.New("invalid reconnect config")

// Default backoff settings, used for every zero field of a Config.
const (
	DefaultInitialDelay = 1 * time.Second
	DefaultMaxDelay     = 30 * time.Second
	DefaultMultiplier   = 2.0
	DefaultDialTimeout  = 10 * time.Second
	DefaultKeepAlive    = 15 * time.Second
)

// Config controls retry timing for a Client.
type Config struct {
	// InitialDelay is the wait before the first retry after a failure or drop.
	InitialDelay time.Duration `mapstructure:"initial-delay" yaml:"initialDelay"`

	// MaxDelay caps the exponential growth of the retry delay.
	MaxDelay time.Duration `mapstructure:"max-delay" yaml:"maxDelay"`

	// Multiplier is applied to the delay after every consecutive failure.
	Multiplier float64 `mapstructure:"multiplier" yaml:"multiplier"`

	// RandomizationFactor spreads retries of many clients apart. 0 disables jitter.
	RandomizationFactor float64 `mapstructure:"randomization-factor" yaml:"randomizationFactor"`

	// DialTimeout bounds a single connection attempt.
	DialTimeout time.Duration `mapstructure:"dial-timeout" yaml:"dialTimeout"`

	// KeepAlive is the TCP keep-alive period of dialed connections.
	KeepAlive time.Duration `mapstructure:"keep-alive" yaml:"keepAlive"`

	// OnConnect, when set, replaces the connect hook passed to New.
	OnConnect func(net.Conn) `mapstructure:"-" yaml:"-"`
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		InitialDelay: DefaultInitialDelay,
		MaxDelay:     DefaultMaxDelay,
		Multiplier:   DefaultMultiplier,
		DialTimeout:  DefaultDialTimeout,
		KeepAlive:    DefaultKeepAlive,
	}
}

// Validate rejects settings that cannot describe a backoff schedule.
// Zero values are valid and mean "use the default".
func (c Config) Validate() error {
	switch {
	case c.InitialDelay < 0:
		return fmt.Errorf("%w: initial delay %v is negative", ErrInvalidConfig, c.InitialDelay)
	case c.MaxDelay < 0:
		return fmt.Errorf("%w: max delay %v is negative", ErrInvalidConfig, c.MaxDelay)
	case c.DialTimeout < 0:
		return fmt.Errorf("%w: dial timeout %v is negative", ErrInvalidConfig, c.DialTimeout)
	case c.KeepAlive < 0:
		return fmt.Errorf("%w: keep-alive %v is negative", ErrInvalidConfig, c.KeepAlive)
	case c.Multiplier != 0 && c.Multiplier < 1:
		return fmt.Errorf("%w: multiplier %v is below 1", ErrInvalidConfig, c.Multiplier)
	case c.RandomizationFactor < 0 || c.RandomizationFactor > 1:
		return fmt.Errorf("%w: randomization factor %v outside [0,1]", ErrInvalidConfig, c.RandomizationFactor)
	case c.InitialDelay > 0 && c.MaxDelay > 0 && c.MaxDelay < c.InitialDelay:
		return fmt.Errorf("%w: max delay %v below initial delay %v", ErrInvalidConfig, c.MaxDelay, c.InitialDelay)
	}
	return nil
}

// WithDefaults returns a copy of c with every zero field set to its default.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.InitialDelay == 0 {
		c.InitialDelay = d.InitialDelay
	}
	if c.MaxDelay == 0 {
		c.MaxDelay = d.MaxDelay
	}
	if c.MaxDelay < c.InitialDelay {
		c.MaxDelay = c.InitialDelay
	}
	if c.Multiplier == 0 {
		c.Multiplier = d.Multiplier
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = d.DialTimeout
	}
	if c.KeepAlive == 0 {
		c.KeepAlive = d.KeepAlive
	}
	return c
}

// newBackOff builds a schedule that never gives up.
func (c Config) newBackOff(clk backoff.Clock) *backoff.ExponentialBackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     c.InitialDelay,
		RandomizationFactor: c.RandomizationFactor,
		Multiplier:          c.Multiplier,
		MaxInterval:         c.MaxDelay,
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               clk,
	}
	b.Reset()
	return b
}
