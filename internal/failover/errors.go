package failover

import "errors"

var (
	// ErrNoHosts is delivered through Listener.Error when a coordinator is
	// created without hosts.
	ErrNoHosts = errors.New("hosts property is empty")

	// ErrInvalidConfig is returned by Connect for malformed configuration.
	ErrInvalidConfig = errors.New("invalid failover config")
)
