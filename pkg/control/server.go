package control

import (
	"context"
	"net"
	"os"
	"sync"

	"github.com/sparrowlinux/svinit/pkg/logging"
	"github.com/sparrowlinux/svinit/pkg/supervisor"
)

// Target is the supervisor surface the control server drives. Requests
// become events on the supervisor's queue; the server never initiates a
// transition itself.
type Target interface {
	Submit(supervisor.Event)
	Runlevels() (prev, current string)
}

// Server listens on a Unix domain socket and handles control connections.
type Server struct {
	target   Target
	listener net.Listener
	sockPath string
	logger   *logging.Logger
	conns    map[*connection]struct{}
	mu       sync.Mutex
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewServer creates a new control socket server.
func NewServer(target Target, sockPath string, logger *logging.Logger) *Server {
	return &Server{
		target:   target,
		sockPath: sockPath,
		logger:   logger,
		conns:    make(map[*connection]struct{}),
	}
}

// Start binds the Unix socket and begins accepting connections.
func (s *Server) Start(ctx context.Context) error {
	// Remove stale socket file if it exists
	if err := os.Remove(s.sockPath); err != nil && !os.IsNotExist(err) {
		return err
	}

	listener, err := net.Listen("unix", s.sockPath)
	if err != nil {
		return err
	}

	// Runlevel changes are root's business; owner-only socket.
	if err := os.Chmod(s.sockPath, 0600); err != nil {
		listener.Close()
		return err
	}

	s.listener = listener
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.acceptLoop()

	s.logger.Info("Control socket listening on %s", s.sockPath)
	return nil
}

// Stop closes the listener and all active connections.
func (s *Server) Stop() error {
	if s.cancel != nil {
		s.cancel()
	}

	var err error
	if s.listener != nil {
		err = s.listener.Close()
	}

	s.mu.Lock()
	for conn := range s.conns {
		conn.close()
	}
	s.mu.Unlock()

	s.wg.Wait()

	os.Remove(s.sockPath)

	s.logger.Info("Control socket stopped")
	return err
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.ctx.Done():
				return
			default:
				s.logger.Error("Control socket accept error: %v", err)
				continue
			}
		}

		c := newConnection(s, conn)
		s.mu.Lock()
		s.conns[c] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			c.serve()
			s.mu.Lock()
			delete(s.conns, c)
			s.mu.Unlock()
		}()
	}
}
