package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Brownie44l1/httpd/internal/logger"
	"github.com/Brownie44l1/httpd/internal/request"
	"github.com/Brownie44l1/httpd/internal/response"
)

var ErrServerClosed = errors.New("server closed")

// Config holds server configuration
type Config struct {
	Addr           string
	ServerName     string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	LingerTimeout  time.Duration
	MaxHeaderBytes int
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Addr:           ":80",
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   30 * time.Second,
		LingerTimeout:  2 * time.Second,
		MaxHeaderBytes: request.DefaultMaxHeaderBytes,
	}
}

// Dispatcher decides the response to one request head.
type Dispatcher interface {
	Dispatch(req *request.Request, parseErr error) *response.Outcome
}

// Server accepts connections and answers exactly one request on each.
type Server struct {
	config     Config
	dispatcher Dispatcher
	access     *logger.AccessLog
	Logger     logger.Logger
	metrics    *Metrics

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}

	wg     sync.WaitGroup
	closed atomic.Bool
	now    func() time.Time
}

// New creates a server. access and log may be nil.
func New(config Config, d Dispatcher, access *logger.AccessLog, log logger.Logger) *Server {
	defaults := DefaultConfig()
	if config.ReadTimeout <= 0 {
		config.ReadTimeout = defaults.ReadTimeout
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = defaults.WriteTimeout
	}
	if config.LingerTimeout <= 0 {
		config.LingerTimeout = defaults.LingerTimeout
	}
	if config.MaxHeaderBytes <= 0 {
		config.MaxHeaderBytes = defaults.MaxHeaderBytes
	}
	if access == nil {
		access = logger.NewAccessLog(nil, nil)
	}
	if log == nil {
		log = logger.NullLogger{}
	}

	return &Server{
		config:     config,
		dispatcher: d,
		access:     access,
		Logger:     log,
		metrics:    NewMetrics(),
		conns:      make(map[net.Conn]struct{}),
		now:        time.Now,
	}
}

// ListenAndServe listens on config.Addr and serves until Shutdown.
func (s *Server) ListenAndServe() error {
	l, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.config.Addr, err)
	}
	return s.Serve(l)
}

// Serve accepts connections on l until Shutdown or Close, then returns
// ErrServerClosed.
func (s *Server) Serve(l net.Listener) error {
	s.mu.Lock()
	if s.closed.Load() {
		s.mu.Unlock()
		l.Close()
		return ErrServerClosed
	}
	s.listener = l
	s.mu.Unlock()

	s.Logger.Info("-- Server started.", logger.F("addr", l.Addr().String()))

	var backoff time.Duration
	for {
		conn, err := l.Accept()
		if err != nil {
			if s.closed.Load() {
				return ErrServerClosed
			}

			// Out of descriptors and similar: wait and retry
			if backoff == 0 {
				backoff = 5 * time.Millisecond
			} else {
				backoff *= 2
			}
			if backoff > time.Second {
				backoff = time.Second
			}
			s.Logger.Warn("accept failed", logger.Err(err), logger.F("retry_in", backoff))
			time.Sleep(backoff)
			continue
		}
		backoff = 0

		if !s.track(conn) {
			conn.Close()
			return ErrServerClosed
		}
		go s.serveConn(conn)
	}
}

// Addr returns the listening address, or nil before Serve.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Load() {
		return false
	}
	s.conns[conn] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
	s.wg.Done()
}

// Shutdown stops accepting and waits for in-flight connections to finish.
// When ctx expires first the remaining connections are closed and ctx's
// error is returned.
func (s *Server) Shutdown(ctx context.Context) error {
	s.stopListening()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.Logger.Info("-- Server stopped.")
		return nil
	case <-ctx.Done():
		s.closeConns()
		<-done
		s.Logger.Warn("-- Server stopped with connections cut off.")
		return ctx.Err()
	}
}

// Close stops the server immediately.
func (s *Server) Close() error {
	err := s.stopListening()
	s.closeConns()
	s.wg.Wait()
	return err
}

func (s *Server) stopListening() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed.Store(true)
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}

func (s *Server) closeConns() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		conn.Close()
	}
}

// Stats returns current server statistics
func (s *Server) Stats() MetricsSnapshot {
	return s.metrics.Snapshot()
}
