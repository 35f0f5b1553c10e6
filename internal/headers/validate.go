package headers

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMissingHost        = errors.New("missing Host header")
	ErrDuplicateHost      = errors.New("duplicate Host header")
	ErrInvalidHeaderValue = errors.New("invalid character in header value")
	ErrHostMismatch       = errors.New("host does not name this server")
)

// Validator gates a finalized header block. The zero value only checks
// structure; Strict additionally requires Host to name this server.
type Validator struct {
	Strict     bool
	ServerName string
	IP         string
	Port       string
}

// Validate checks the header set and returns the single Host value.
func (v Validator) Validate(h *Headers) (string, error) {
	for _, f := range h.Fields() {
		if i := invalidValueByte(f.Value); i >= 0 {
			return "", fmt.Errorf("%w: %s: 0x%02x", ErrInvalidHeaderValue, f.Name, f.Value[i])
		}
	}

	hosts := h.GetAll("Host")
	switch len(hosts) {
	case 0:
		return "", ErrMissingHost
	case 1:
	default:
		return "", fmt.Errorf("%w: %d values", ErrDuplicateHost, len(hosts))
	}

	host := hosts[0]
	if v.Strict && !v.matchesHost(host) {
		return "", fmt.Errorf("%w: %q", ErrHostMismatch, host)
	}
	return host, nil
}

// matchesHost accepts the server name verbatim, or the configured IP with
// an optional ":port". An empty port after the colon stands for 80.
func (v Validator) matchesHost(host string) bool {
	if host == "" {
		return false
	}
	if host == v.ServerName {
		return true
	}

	ip, port, hasPort := strings.Cut(host, ":")
	if ip != v.IP {
		return false
	}
	if !hasPort {
		return true
	}
	if port == "" {
		port = "80"
	}
	return port == v.Port
}

// invalidValueByte returns the index of the first byte outside printable
// ASCII, or -1.
func invalidValueByte(s string) int {
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] > 0x7e {
			return i
		}
	}
	return -1
}
