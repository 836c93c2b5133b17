package echo

import (
	"encoding/json"
	"errors"
	"net"
	"strconv"
	"sync"

	"go.uber.org/zap"
)

// ErrRunning is returned by Start when the server is already listening.
var ErrRunning = errors.New("echo already running")

// Reply is written back, one JSON object per line, for every chunk read.
type Reply struct {
	Data string `json:"data"`
	Port int    `json:"port"`
}

// Server answers every chunk it receives with a Reply naming its own port,
// which lets a client tell which of several servers it is talking to.
//
// Thread-safe: Start and Stop may be called from any goroutine, repeatedly,
// to simulate a host going down and coming back.
type Server struct {
	logger  *zap.Logger
	ln      net.Listener
	clients map[net.Conn]struct{}
	host    string
	wg      sync.WaitGroup
	mu      sync.Mutex
	port    int
}

// New creates a stopped server for host:port. Port 0 picks a free port on
// the first Start and keeps it for later restarts.
func New(host string, port int, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		host:    host,
		port:    port,
		logger:  logger,
		clients: make(map[net.Conn]struct{}),
	}
}

// Start begins listening.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ln != nil {
		return ErrRunning
	}
	ln, err := net.Listen("tcp", net.JoinHostPort(s.host, strconv.Itoa(s.port)))
	if err != nil {
		return err
	}
	s.ln = ln
	s.port = ln.Addr().(*net.TCPAddr).Port
	s.logger.Info("echo listening", zap.String("addr", ln.Addr().String()))

	s.wg.Add(1)
	go s.accept(ln)
	return nil
}

// Stop closes the listener and every client connection. Stopping a stopped
// server does nothing.
func (s *Server) Stop() error {
	s.mu.Lock()
	ln := s.ln
	s.ln = nil
	clients := s.clients
	s.clients = make(map[net.Conn]struct{})
	s.mu.Unlock()

	if ln == nil {
		return nil
	}
	err := ln.Close()
	for c := range clients {
		_ = c.Close()
	}
	s.wg.Wait()
	s.logger.Info("echo stopped", zap.Int("port", s.Port()))
	return err
}

// Port returns the listening port.
func (s *Server) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port
}

// Addr returns host:port of the server.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.host, strconv.Itoa(s.Port()))
}

// Running reports whether the server is listening.
func (s *Server) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ln != nil
}

func (s *Server) accept(ln net.Listener) {
	defer s.wg.Done()
	for {
		conn, err := ln.Accept()
		if err != nil {
			return
		}

		s.mu.Lock()
		if s.ln != ln {
			s.mu.Unlock()
			_ = conn.Close()
			return
		}
		s.clients[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go s.serve(conn)
	}
}

func (s *Server) serve(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		s.mu.Unlock()
		_ = conn.Close()
	}()

	port := s.Port()
	enc := json.NewEncoder(conn)
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			if werr := enc.Encode(Reply{Port: port, Data: string(buf[:n])}); werr != nil {
				return
			}
		}
		if err != nil {
			return
		}
	}
}
