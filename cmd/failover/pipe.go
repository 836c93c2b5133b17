package main

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"

	"go.uber.org/zap"

	"github.com/dreamware/failover/internal/failover"
)

// pipe bridges a local reader and writer to whatever connection the
// coordinator currently selects. Input that arrives while no host is
// connected is dropped.
type pipe struct {
	out    io.Writer
	conn   net.Conn
	logger *zap.SugaredLogger
	fatal  func(error)
	mu     sync.Mutex
	outMu  sync.Mutex
}

var _ failover.Listener = (*pipe)(nil)

func newPipe(out io.Writer, logger *zap.SugaredLogger, fatal func(error)) *pipe {
	return &pipe{out: out, logger: logger, fatal: fatal}
}

func (p *pipe) Connected(conn net.Conn) {
	p.mu.Lock()
	p.conn = conn
	p.mu.Unlock()

	p.logger.Infow("connected", "remote", conn.RemoteAddr().String())
	go p.copyOut(conn)
}

func (p *pipe) Disconnected() {
	p.mu.Lock()
	p.conn = nil
	p.mu.Unlock()

	p.logger.Warnw("all hosts down, waiting for reconnect")
}

func (p *pipe) Error(err error) {
	p.logger.Errorw("failover error", "error", err)
	if p.fatal != nil {
		p.fatal(err)
	}
}

func (p *pipe) current() net.Conn {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conn
}

// copyOut forwards data from conn while it is the current connection.
func (p *pipe) copyOut(conn net.Conn) {
	buf := make([]byte, 32*1024)
	for {
		n, err := conn.Read(buf)
		if n > 0 && p.current() == conn {
			p.outMu.Lock()
			_, werr := p.out.Write(buf[:n])
			p.outMu.Unlock()
			if werr != nil {
				p.logger.Warnw("failed to write output", "error", werr)
			}
		}
		if err != nil {
			return
		}
	}
}

// copyIn forwards in to the current connection until in is exhausted or ctx
// is cancelled. Write failures are left to the reconnect client.
func (p *pipe) copyIn(ctx context.Context, in io.Reader) error {
	buf := make([]byte, 32*1024)
	for {
		if ctx.Err() != nil {
			return nil
		}
		n, err := in.Read(buf)
		if n > 0 {
			if conn := p.current(); conn != nil {
				if _, werr := conn.Write(buf[:n]); werr != nil {
					p.logger.Debugw("write to current host failed", "error", werr)
				}
			} else {
				p.logger.Warnw("no host connected, dropping input", "bytes", n)
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
