package request

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/Brownie44l1/httpd/internal/headers"
)

var (
	ErrMalformedRequestLine = errors.New("malformed request line")
	ErrInvalidMethod        = errors.New("invalid HTTP method")
	ErrInvalidPath          = errors.New("invalid request path")
)

var crlf = []byte("\r\n")

// parseRequestLine parses: METHOD SP TARGET SP VERSION CRLF
// It returns 0 consumed bytes when no full line is buffered yet. When a
// full line is present but invalid, the line length is still reported so
// the caller can skip past it.
func parseRequestLine(data []byte) (*RequestLine, int, error) {
	idx := bytes.Index(data, crlf)
	if idx == -1 {
		return nil, 0, nil
	}

	line := data[:idx]
	consumed := idx + len(crlf)

	parts := bytes.Split(line, []byte(" "))
	if len(parts) != 3 {
		return nil, consumed, fmt.Errorf("%w: %d fields", ErrMalformedRequestLine, len(parts))
	}

	method := string(parts[0])
	target := string(parts[1])
	version := string(parts[2])

	if !headers.IsToken(method) {
		return nil, consumed, fmt.Errorf("%w: %q", ErrInvalidMethod, method)
	}

	if !isValidPath(target) {
		return nil, consumed, fmt.Errorf("%w: %q", ErrInvalidPath, target)
	}

	// Any version token is accepted here; unsupported ones are answered
	// with 505 once the head is complete.
	if version == "" {
		return nil, consumed, fmt.Errorf("%w: empty version", ErrMalformedRequestLine)
	}

	return &RequestLine{
		Method:  method,
		Target:  target,
		Version: version,
	}, consumed, nil
}

// isValidPath accepts origin-form targets made of visible ASCII.
func isValidPath(path string) bool {
	if len(path) == 0 || path[0] != '/' {
		return false
	}
	for i := 0; i < len(path); i++ {
		if path[i] <= 0x20 || path[i] >= 0x7f {
			return false
		}
	}
	return true
}

// isVersionShaped matches HTTP/<digit>.<digit>.
func isVersionShaped(v string) bool {
	return len(v) == 8 &&
		v[:5] == "HTTP/" &&
		isDigit(v[5]) && v[6] == '.' && isDigit(v[7])
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
