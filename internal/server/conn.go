package server

import (
	"errors"
	"io"
	"net"
	"runtime/debug"

	"github.com/Brownie44l1/httpd/internal/logger"
	"github.com/Brownie44l1/httpd/internal/request"
	"github.com/Brownie44l1/httpd/internal/response"
)

const (
	readBufferSize = 4096
	maxLingerBytes = 64 << 10
)

// serveConn reads one request head, answers it and closes the connection.
// Nothing is written until the outcome is fully decided.
func (s *Server) serveConn(conn net.Conn) {
	ex := newExchange(conn, s.now())

	s.metrics.ConnectionsTotal.Add(1)
	s.metrics.ActiveConnections.Add(1)
	defer func() {
		if r := recover(); r != nil {
			s.metrics.Panics.Add(1)
			s.Logger.Error("panic serving connection",
				logger.F("peer", ex.peer),
				logger.F("panic", r),
				logger.F("stack", string(debug.Stack())),
			)
		}
		conn.Close()
		s.metrics.ActiveConnections.Add(-1)
		s.untrack(conn)
	}()

	req, err := s.readRequest(ex)
	if !s.answerable(ex, err) {
		return
	}

	ex.req = req
	if req != nil {
		s.access.Received(ex.peer, ex.method(), ex.path())
	}

	outcome := s.dispatcher.Dispatch(req, err)
	defer outcome.Close()

	s.respond(ex, outcome)
	s.linger(conn)
}

func (s *Server) readRequest(ex *exchange) (*request.Request, error) {
	buf := GetBuffer(readBufferSize)
	defer PutBuffer(buf)

	ex.conn.SetReadDeadline(s.now().Add(s.config.ReadTimeout))
	return request.NewParser(s.config.MaxHeaderBytes).ReadFrom(ex.conn, buf)
}

// answerable reports whether a response is owed. Parse errors get a 400;
// a connection that sent nothing, or broke mid-read, gets nothing.
func (s *Server) answerable(ex *exchange, err error) bool {
	var perr *request.ParseError
	switch {
	case err == nil, errors.As(err, &perr):
		return true

	case errors.Is(err, request.ErrNoRequest):
		s.Logger.Debug("connection closed without a request", logger.F("peer", ex.peer))
		return false

	default:
		s.metrics.Abandoned.Add(1)
		s.Logger.Warn("abandoning connection", logger.F("peer", ex.peer), logger.Err(err))
		return false
	}
}

func (s *Server) respond(ex *exchange, o *response.Outcome) {
	s.access.Responded(ex.peer, int(o.Status), ex.method(), ex.path())

	ex.conn.SetWriteDeadline(s.now().Add(s.config.WriteTimeout))
	w := response.NewWriter(ex.conn)
	err := w.WriteOutcome(o, o.Header(s.config.ServerName, s.now()))

	s.metrics.RecordRequest(o.Status, w.BodyBytes(), s.now().Sub(ex.start))
	if err != nil {
		s.Logger.Warn("write failed",
			logger.F("peer", ex.peer),
			logger.F("status", int(o.Status)),
			logger.Err(err),
		)
	}
}

type closeWriter interface {
	CloseWrite() error
}

// linger half-closes the connection and discards whatever the client is
// still sending, so unread request bytes do not turn our close into a
// reset that destroys the response in flight.
func (s *Server) linger(conn net.Conn) {
	cw, ok := conn.(closeWriter)
	if !ok {
		return
	}
	if err := cw.CloseWrite(); err != nil {
		return
	}

	conn.SetReadDeadline(s.now().Add(s.config.LingerTimeout))
	io.Copy(io.Discard, io.LimitReader(conn, maxLingerBytes))
}
