package server

import (
	"net"
	"time"

	"github.com/Brownie44l1/httpd/internal/request"
)

// exchange is what one connection knows about its request so far.
type exchange struct {
	conn  net.Conn
	peer  string
	start time.Time
	req   *request.Request
}

func newExchange(conn net.Conn, start time.Time) *exchange {
	return &exchange{
		conn:  conn,
		peer:  peerIP(conn.RemoteAddr()),
		start: start,
	}
}

// method is empty until the request line has parsed.
func (e *exchange) method() string {
	if e.req == nil {
		return ""
	}
	return e.req.Method.Token
}

func (e *exchange) path() string {
	if e.req == nil {
		return ""
	}
	return e.req.Path
}

// peerIP drops the port from a remote address.
func peerIP(addr net.Addr) string {
	if addr == nil {
		return "unknown"
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}
