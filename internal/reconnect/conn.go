package reconnect

import (
	"bytes"
	"errors"
	"net"
	"os"
	"sync"
	"time"
)

// maxBuffered bounds what the read pump holds for a consumer that is not
// reading. Once reached, the pump waits for the consumer to catch up.
const maxBuffered = 1 << 20

// trackedConn owns the reading side of a dialed connection. A pump goroutine
// reads the socket for as long as it lives, so a remote close is noticed even
// when nobody holds the connection for reading, as with a backup host that is
// not in use. Data read by the pump is buffered for the consumer.
//
// A write error other than a timeout, or Close by the consumer, also marks
// the connection dead. Read deadlines apply to the consumer's Read only.
type trackedConn struct {
	net.Conn
	dead chan struct{}
	err  error
	once sync.Once

	readable chan struct{}
	space    chan struct{}
	deadline time.Time
	rerr     error
	buf      bytes.Buffer
	mu       sync.Mutex
}

func newTrackedConn(conn net.Conn) *trackedConn {
	t := &trackedConn{
		Conn:     conn,
		dead:     make(chan struct{}),
		readable: make(chan struct{}, 1),
		space:    make(chan struct{}, 1),
	}
	go t.pump()
	return t
}

func (t *trackedConn) pump() {
	p := make([]byte, 32*1024)
	for {
		n, err := t.Conn.Read(p)

		t.mu.Lock()
		t.buf.Write(p[:n])
		if err != nil && t.rerr == nil {
			t.rerr = err
		}
		full := t.buf.Len() >= maxBuffered
		t.mu.Unlock()
		wake(t.readable)

		if err != nil {
			t.fail(err)
			return
		}
		if full {
			select {
			case <-t.space:
			case <-t.dead:
				return
			}
		}
	}
}

// Read returns buffered data first and the error that ended the pump once
// the buffer is empty. Only one goroutine should read at a time.
func (t *trackedConn) Read(p []byte) (int, error) {
	for {
		t.mu.Lock()
		if t.buf.Len() > 0 {
			n, _ := t.buf.Read(p)
			t.mu.Unlock()
			wake(t.space)
			return n, nil
		}
		rerr, deadline := t.rerr, t.deadline
		t.mu.Unlock()

		if rerr != nil {
			return 0, rerr
		}
		if len(p) == 0 {
			return 0, nil
		}
		if err := t.waitReadable(deadline); err != nil {
			return 0, err
		}
	}
}

func (t *trackedConn) waitReadable(deadline time.Time) error {
	if deadline.IsZero() {
		<-t.readable
		return nil
	}

	d := time.Until(deadline)
	if d <= 0 {
		return os.ErrDeadlineExceeded
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-t.readable:
		return nil
	case <-timer.C:
		return os.ErrDeadlineExceeded
	}
}

func (t *trackedConn) Write(p []byte) (int, error) {
	n, err := t.Conn.Write(p)
	if err != nil && !isTimeout(err) {
		t.fail(err)
	}
	return n, err
}

// SetDeadline sets the consumer's read deadline and the socket's write
// deadline. The pump itself never times out.
func (t *trackedConn) SetDeadline(d time.Time) error {
	if err := t.SetReadDeadline(d); err != nil {
		return err
	}
	return t.Conn.SetWriteDeadline(d)
}

func (t *trackedConn) SetReadDeadline(d time.Time) error {
	t.mu.Lock()
	t.deadline = d
	t.mu.Unlock()
	// a blocked Read picks up the new deadline
	wake(t.readable)
	return nil
}

func (t *trackedConn) Close() error {
	err := t.Conn.Close()

	t.mu.Lock()
	if t.rerr == nil {
		t.rerr = net.ErrClosed
	}
	t.mu.Unlock()
	wake(t.readable)

	t.fail(net.ErrClosed)
	return err
}

func (t *trackedConn) fail(err error) {
	t.once.Do(func() {
		t.err = err
		close(t.dead)
	})
}

// cause is only valid after dead is closed.
func (t *trackedConn) cause() error {
	return t.err
}

func wake(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
