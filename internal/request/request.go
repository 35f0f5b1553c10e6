package request

import (
	"io"

	"github.com/Brownie44l1/httpd/internal/headers"
)

// MethodKind is the closed set of methods the server dispatches on.
type MethodKind int

const (
	MethodOther MethodKind = iota
	MethodHead
	MethodGet
)

// Method keeps the token as sent so unimplemented methods can be logged.
type Method struct {
	Kind  MethodKind
	Token string
}

func ParseMethod(token string) Method {
	switch token {
	case "HEAD":
		return Method{Kind: MethodHead, Token: token}
	case "GET":
		return Method{Kind: MethodGet, Token: token}
	default:
		return Method{Kind: MethodOther, Token: token}
	}
}

func (m Method) String() string {
	return m.Token
}

type Version int

const (
	VersionUnsupported Version = iota
	Version10
	Version11
)

func ParseVersion(token string) Version {
	switch token {
	case "HTTP/1.1":
		return Version11
	case "HTTP/1.0":
		return Version10
	default:
		return VersionUnsupported
	}
}

// RequestLine holds the three raw tokens of the first line.
type RequestLine struct {
	Method  string
	Target  string
	Version string
}

// Request is one parsed message head. It is owned by the connection that
// read it.
type Request struct {
	Line    RequestLine
	Method  Method
	Path    string
	Version Version
	Headers *headers.Headers

	// Host is set by Validate.
	Host string
}

func newRequest(rl *RequestLine) *Request {
	return &Request{
		Line:    *rl,
		Method:  ParseMethod(rl.Method),
		Path:    rl.Target,
		Version: ParseVersion(rl.Version),
		Headers: headers.NewHeaders(),
	}
}

// Proto is the version to answer with. Well-formed HTTP/x.y tokens are
// echoed, anything else gets HTTP/1.1.
func (r *Request) Proto() string {
	if isVersionShaped(r.Line.Version) {
		return r.Line.Version
	}
	return "HTTP/1.1"
}

// Validate runs the header gate and records the Host value.
func (r *Request) Validate(v headers.Validator) error {
	host, err := v.Validate(r.Headers)
	if err != nil {
		return err
	}
	r.Host = host
	return nil
}

// RequestFromReader parses one request head from reader with the default
// limits. On failure the returned request is non-nil whenever the request
// line was read, so callers can still log what was asked for.
func RequestFromReader(reader io.Reader) (*Request, error) {
	return NewParser(DefaultMaxHeaderBytes).ReadFrom(reader, nil)
}
