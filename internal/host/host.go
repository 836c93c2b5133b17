package host

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// ErrInvalid is returned when a host string or descriptor cannot be used to dial.
var ErrInvalid = errors.New("invalid host")

// Descriptor identifies one candidate endpoint. Its priority is its position
// in the list handed to the failover coordinator.
//
// Address, Hostname and Host are alternative spellings of the same field; the
// first non-empty one is dialed.
type Descriptor struct {
	Address  string `json:"address,omitempty" yaml:"address,omitempty" mapstructure:"address"`
	Hostname string `json:"hostname,omitempty" yaml:"hostname,omitempty" mapstructure:"hostname"`
	Host     string `json:"host,omitempty" yaml:"host,omitempty" mapstructure:"host"`
	Port     int    `json:"port" yaml:"port" mapstructure:"port"`
}

// Name returns the host part used for dialing.
func (d Descriptor) Name() string {
	switch {
	case d.Address != "":
		return d.Address
	case d.Hostname != "":
		return d.Hostname
	default:
		return d.Host
	}
}

// Addr returns the "host:port" dial address.
func (d Descriptor) Addr() string {
	return net.JoinHostPort(d.Name(), strconv.Itoa(d.Port))
}

func (d Descriptor) String() string {
	return d.Addr()
}

// Validate reports whether the descriptor carries a usable port.
// An empty host name is allowed and dials the local system, as net.Dial does.
func (d Descriptor) Validate() error {
	if d.Port < 1 || d.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range for %q", ErrInvalid, d.Port, d.Name())
	}
	return nil
}

// Parse builds a Descriptor from a "host:port" string.
//
// Example:
//
//	d, err := host.Parse("db-1.internal:5432")
func Parse(s string) (Descriptor, error) {
	h, p, err := net.SplitHostPort(strings.TrimSpace(s))
	if err != nil {
		return Descriptor{}, fmt.Errorf("%w: %q: %v", ErrInvalid, s, err)
	}
	port, err := strconv.Atoi(p)
	if err != nil {
		return Descriptor{}, fmt.Errorf("%w: %q: port is not a number", ErrInvalid, s)
	}
	d := Descriptor{Address: h, Port: port}
	if err := d.Validate(); err != nil {
		return Descriptor{}, err
	}
	return d, nil
}

// ParseList parses every entry of list, keeping the order. Empty entries are
// skipped so that comma separated environment values with a trailing comma work.
func ParseList(list []string) ([]Descriptor, error) {
	out := make([]Descriptor, 0, len(list))
	for _, s := range list {
		if strings.TrimSpace(s) == "" {
			continue
		}
		d, err := Parse(s)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}
