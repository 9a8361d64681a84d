// Package pipeendpoint implements the named local duplex channel between
// the tool process and the in-process agent: a Unix domain socket on
// Linux/Darwin, a Windows named pipe (via go-winio) on Windows. Both are
// byte-mode, single-client, and restricted to the current OS user.
package pipeendpoint

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/c360studio/hotreload/internal/errs"
)

// State is the lifecycle state of the server half of the channel.
type State int

// Disconnected, AwaitingClient, Connected, and Closed enumerate the pipe
// channel states.
const (
	Disconnected State = iota
	AwaitingClient
	Connected
	Closed
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case AwaitingClient:
		return "awaiting-client"
	case Connected:
		return "connected"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// platformListener is implemented per-OS in listener_unix.go / listener_windows.go.
type platformListener interface {
	net.Listener
}

// listen opens the platform-specific listener for name. Implemented per OS.
var listen func(name string) (platformListener, error)

// Server is the tool-owned half of the named pipe: it accepts exactly one
// client connection at a time and refuses any additional dialer while one
// is registered.
type Server struct {
	name     string
	logger   *slog.Logger
	listener platformListener

	mu    sync.Mutex
	state State
	conn  net.Conn
}

// NewServer constructs a Server bound to the platform-appropriate channel
// name, without starting to listen yet.
func NewServer(name string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{name: name, logger: logger, state: Disconnected}
}

// Listen opens the underlying platform listener and transitions to
// AwaitingClient.
func (s *Server) Listen(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if listen == nil {
		return errs.NewProtocol(fmt.Errorf("pipeendpoint: no platform listener registered"))
	}

	l, err := listen(s.name)
	if err != nil {
		return fmt.Errorf("listen on pipe %q: %w", s.name, err)
	}

	s.listener = l
	s.state = AwaitingClient
	s.logger.Debug("pipe endpoint listening", "name", s.name)
	return nil
}

// Accept blocks until the single client attaches, or ctx is cancelled.
// A second connection attempt while one client is already registered is
// refused and the extra connection is closed immediately.
func (s *Server) Accept(ctx context.Context) (net.Conn, error) {
	s.mu.Lock()
	if s.listener == nil {
		s.mu.Unlock()
		return nil, errs.NewProtocol(fmt.Errorf("pipeendpoint: Accept called before Listen"))
	}
	l := s.listener
	s.mu.Unlock()

	type result struct {
		conn net.Conn
		err  error
	}
	done := make(chan result, 1)
	go func() {
		conn, err := l.Accept()
		done <- result{conn: conn, err: err}
	}()

	select {
	case <-ctx.Done():
		_ = l.Close()
		return nil, ctx.Err()
	case r := <-done:
		if r.err != nil {
			return nil, fmt.Errorf("accept on pipe %q: %w", s.name, r.err)
		}

		s.mu.Lock()
		if s.conn != nil {
			s.mu.Unlock()
			s.logger.Warn("refusing second pipe client", "name", s.name)
			_ = r.conn.Close()
			return nil, errs.NewProtocol(fmt.Errorf("pipeendpoint: a client is already connected"))
		}
		s.conn = r.conn
		s.state = Connected
		s.mu.Unlock()

		s.logger.Info("agent connected", "name", s.name)
		return r.conn, nil
	}
}

// State returns the current channel state.
func (s *Server) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// NotifyDisconnected marks the channel as waiting for a new client after
// the current one has gone away (read EOF, write error).
func (s *Server) NotifyDisconnected() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Closed {
		return
	}
	s.conn = nil
	s.state = AwaitingClient
}

// Close shuts down the listener and any connected client, transitioning to
// Closed. Close is idempotent.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Closed {
		return nil
	}
	s.state = Closed

	var err error
	if s.conn != nil {
		err = s.conn.Close()
		s.conn = nil
	}
	if s.listener != nil {
		if lerr := s.listener.Close(); lerr != nil && err == nil {
			err = lerr
		}
	}
	return err
}
