package failover

import "net"

// Listener receives the coordinator's notifications. Methods are called on
// the coordinator's event loop goroutine, never from inside the code that
// changed the selection, and one at a time.
type Listener interface {
	// Connected reports that the current connection changed to conn.
	// conn stays owned by the coordinator's client; do not keep using it
	// after the next notification.
	Connected(conn net.Conn)

	// Disconnected reports that no host is reachable any more.
	Disconnected()

	// Error reports a configuration failure. Connection errors are never
	// reported here.
	Error(err error)
}

// ListenerFuncs adapts plain functions to Listener. Nil fields are skipped.
type ListenerFuncs struct {
	OnConnected    func(conn net.Conn)
	OnDisconnected func()
	OnError        func(err error)
}

var _ Listener = ListenerFuncs{}

func (f ListenerFuncs) Connected(conn net.Conn) {
	if f.OnConnected != nil {
		f.OnConnected(conn)
	}
}

func (f ListenerFuncs) Disconnected() {
	if f.OnDisconnected != nil {
		f.OnDisconnected()
	}
}

func (f ListenerFuncs) Error(err error) {
	if f.OnError != nil {
		f.OnError(err)
	}
}
