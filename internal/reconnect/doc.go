// Package reconnect keeps a single TCP endpoint connected.
//
// A Client dials its address, reports the connection through Hooks.OnConnect
// and, when the connection fails or an attempt is refused, reports
// Hooks.OnDisconnect and tries again after an exponentially growing delay.
// It never gives up on its own; only Stop ends the retry loop.
//
// # Failure Reporting
//
// Dial errors (DNS, refused, timeout) are not returned anywhere. They are
// delivered as the err argument of OnDisconnect and are expected to be
// transient. A Client has no error channel of its own.
//
// # Detecting Drops
//
// The connection passed to OnConnect is a wrapper around the dialed
// net.Conn. The first read or write error that is not a timeout, or a call
// to Close, marks it dead and triggers OnDisconnect and a retry. A peer that
// disappears while nobody reads is detected through TCP keep-alive.
//
// # Backoff
//
//	attempt:  1     2      3      4      5  ...
//	delay:    0   Init  Init*M  Init*M² ... capped at MaxDelay
//
// The schedule resets after every successful connection.
package reconnect
