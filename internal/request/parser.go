package request

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
)

// Size limits
const (
	DefaultMaxHeaderBytes = 8192 // request line + field lines + blank line
	maxRequestLineSize    = 8192
	maxHeaderLines        = 100
	readBufferSize        = 4096
)

var (
	ErrRequestLineTooLarge = errors.New("request line too large")
	ErrHeaderTooLarge      = errors.New("headers too large")
	ErrTooManyHeaders      = errors.New("too many header lines")
	ErrTruncated           = errors.New("truncated request")
	ErrNoRequest           = errors.New("connection closed before a request was sent")
)

// ParseError reports a message that can never become a valid request.
// The server answers it with 400.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return "bad request: " + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// parserState represents the current state of the request parser
type parserState int

const (
	stateRequestLine parserState = iota
	stateHeaders
	stateDrain // a fault was seen, skip to the end of the head
	stateDone
)

// Parser incrementally assembles one request head from arbitrarily
// fragmented input. Bytes are accumulated until a complete line is
// available; nothing past the terminating blank line is consumed.
type Parser struct {
	state          parserState
	buffer         []byte
	consumed       int
	received       int
	maxHeaderBytes int

	req   *Request
	fault error
}

func NewParser(maxHeaderBytes int) *Parser {
	if maxHeaderBytes <= 0 {
		maxHeaderBytes = DefaultMaxHeaderBytes
	}

	return &Parser{
		state:          stateRequestLine,
		buffer:         make([]byte, 0, 1024),
		maxHeaderBytes: maxHeaderBytes,
	}
}

// Done reports whether the head is complete or has failed.
func (p *Parser) Done() bool {
	return p.state == stateDone
}

// Request returns the request being built, or nil before the request line
// has been parsed.
func (p *Parser) Request() *Request {
	return p.req
}

// Feed appends data to the accumulator and advances the state machine as
// far as the buffered bytes allow. It returns a *ParseError once the head
// is known to be invalid; a nil error with Done() == false means more
// bytes are needed.
func (p *Parser) Feed(data []byte) error {
	if p.state == stateDone {
		return p.result()
	}

	p.received += len(data)
	p.buffer = append(p.buffer, data...)

	for p.state != stateDone {
		n, err := p.step()
		if err != nil {
			p.fail(err)
			break
		}
		if n == 0 {
			break
		}
		p.buffer = p.buffer[n:]
		p.consumed += n
	}

	// Bytes left over after a finished head are not part of it
	pending := p.consumed
	if p.state != stateDone {
		pending += len(p.buffer)
	}
	if pending > p.maxHeaderBytes {
		p.fail(fmt.Errorf("%w: more than %d bytes", ErrHeaderTooLarge, p.maxHeaderBytes))
	}

	return p.result()
}

// step processes buffered data and returns the number of bytes consumed.
// Errors returned here are fatal; recoverable syntax faults switch the
// parser to draining instead.
func (p *Parser) step() (int, error) {
	switch p.state {
	case stateRequestLine:
		return p.parseRequestLine()

	case stateHeaders:
		return p.parseHeaders()

	case stateDrain:
		return p.drain(), nil

	case stateDone:
		return 0, nil

	default:
		return 0, fmt.Errorf("invalid parser state: %d", p.state)
	}
}

func (p *Parser) parseRequestLine() (int, error) {
	// Empty lines ahead of the request line are ignored (RFC 9112 2.2)
	if bytes.HasPrefix(p.buffer, crlf) {
		return len(crlf), nil
	}

	rl, consumed, err := parseRequestLine(p.buffer)
	if err != nil {
		p.fault = err
		p.state = stateDrain
		return consumed, nil
	}

	if consumed == 0 {
		if len(p.buffer) > maxRequestLineSize {
			return 0, ErrRequestLineTooLarge
		}
		return 0, nil
	}

	p.req = newRequest(rl)
	p.state = stateHeaders
	return consumed, nil
}

// parseHeaders parses field lines until the empty line
func (p *Parser) parseHeaders() (int, error) {
	consumed, done, err := p.req.Headers.Parse(p.buffer)
	if p.req.Headers.Len() > maxHeaderLines {
		return 0, ErrTooManyHeaders
	}

	if err != nil {
		p.fault = err
		p.state = stateDrain
		if consumed == 0 {
			// Parse made no progress, let drain take the bad line
			return p.drain(), nil
		}
		return consumed, nil
	}

	if done {
		p.state = stateDone
	}
	return consumed, nil
}

// drain consumes one complete line and stops at the empty line.
func (p *Parser) drain() int {
	idx := bytes.Index(p.buffer, crlf)
	if idx == -1 {
		return 0
	}
	if idx == 0 {
		p.state = stateDone
	}
	return idx + len(crlf)
}

func (p *Parser) fail(err error) {
	if p.fault == nil {
		p.fault = err
	}
	p.state = stateDone
}

func (p *Parser) result() error {
	if p.state == stateDone && p.fault != nil {
		return &ParseError{Err: p.fault}
	}
	return nil
}

// ReadFrom reads from reader until the head is complete. buf is used as
// scratch space for reads; a fresh buffer is allocated when it is empty.
func (p *Parser) ReadFrom(reader io.Reader, buf []byte) (*Request, error) {
	if len(buf) == 0 {
		buf = make([]byte, readBufferSize)
	}

	for !p.Done() {
		n, err := reader.Read(buf)
		if n > 0 {
			if ferr := p.Feed(buf[:n]); ferr != nil {
				return p.req, ferr
			}
		}

		if err != nil {
			if p.Done() {
				break
			}
			return p.req, p.interrupted(err)
		}
	}

	return p.req, p.result()
}

// interrupted classifies a read error seen before the head was complete.
func (p *Parser) interrupted(err error) error {
	if p.fault != nil {
		return &ParseError{Err: p.fault}
	}

	eof := errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
	timeout := errors.Is(err, os.ErrDeadlineExceeded)

	switch {
	case (eof || timeout) && p.received == 0:
		return fmt.Errorf("%w: %w", ErrNoRequest, err)
	case eof || timeout:
		return &ParseError{Err: fmt.Errorf("%w: %w", ErrTruncated, err)}
	default:
		return fmt.Errorf("read error: %w", err)
	}
}
