package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

const (
	readHeaderTimeout = 10 * time.Second
	idleTimeout       = 2 * time.Minute
)

// Server serves the gateway router over HTTP/1.1 and cleartext HTTP/2.
// Request contexts derive from a server-wide context that Shutdown cancels,
// so backend calls made on behalf of a request stop with the process.
type Server struct {
	httpServer *http.Server
	cancelBase context.CancelFunc

	mu    sync.Mutex
	bound net.Addr
}

func New(addr string, handler http.Handler) *Server {
	baseCtx, cancel := context.WithCancel(context.Background())
	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           h2c.NewHandler(handler, &http2.Server{IdleTimeout: idleTimeout}),
			ReadHeaderTimeout: readHeaderTimeout,
			IdleTimeout:       idleTimeout,
			BaseContext:       func(net.Listener) context.Context { return baseCtx },
		},
		cancelBase: cancel,
	}
}

// Start listens on the configured address and serves until Shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ln)
}

func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	s.bound = ln.Addr()
	s.mu.Unlock()

	log.Printf("server: listening addr=%s", ln.Addr())
	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Addr is the bound listener address once serving, else the configured one.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bound != nil {
		return s.bound.String()
	}
	return s.httpServer.Addr
}

// Shutdown drains in-flight requests until ctx is done, then cancels the
// ones still running and drops their connections.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.cancelBase()
	if err != nil {
		log.Printf("server: drain incomplete addr=%s err=%v", s.Addr(), err)
		_ = s.httpServer.Close()
	}
	return err
}
