package request

import (
	"errors"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Brownie44l1/httpd/internal/headers"
)

func TestSimpleHEADRequest(t *testing.T) {
	data := "HEAD /index.html HTTP/1.1\r\nHost: 127.0.0.1\r\n\r\n"
	req, err := RequestFromReader(strings.NewReader(data))

	require.NoError(t, err)
	assert.Equal(t, MethodHead, req.Method.Kind)
	assert.Equal(t, "HEAD", req.Method.String())
	assert.Equal(t, "/index.html", req.Path)
	assert.Equal(t, Version11, req.Version)
	assert.Equal(t, "HTTP/1.1", req.Proto())

	host, ok := req.Headers.Get("host")
	assert.True(t, ok)
	assert.Equal(t, "127.0.0.1", host)
}

func TestSimpleGETRequest(t *testing.T) {
	data := "GET / HTTP/1.1\r\nHost: example.com\r\nAccept: */*\r\n\r\n"
	req, err := RequestFromReader(strings.NewReader(data))

	require.NoError(t, err)
	assert.Equal(t, MethodGet, req.Method.Kind)
	assert.Equal(t, "/", req.Path)
	assert.Equal(t, []headers.Field{
		{Name: "Host", Value: "example.com"},
		{Name: "Accept", Value: "*/*"},
	}, req.Headers.Fields())
}

func TestOtherMethodsAreParsed(t *testing.T) {
	// Dispatch decides what is implemented, the parser only wants a token
	methods := []string{"PUT", "POST", "DELETE", "PATCH", "OPTIONS", "BREW", "get"}

	for _, method := range methods {
		data := method + " / HTTP/1.1\r\nHost: example.com\r\n\r\n"
		req, err := RequestFromReader(strings.NewReader(data))

		require.NoError(t, err, "Method %s should parse", method)
		assert.Equal(t, MethodOther, req.Method.Kind)
		assert.Equal(t, method, req.Method.Token)
	}
}

func TestHTTP10Request(t *testing.T) {
	data := "HEAD /index.html HTTP/1.0\r\nHost: 127.0.0.1\r\n\r\n"
	req, err := RequestFromReader(strings.NewReader(data))

	require.NoError(t, err)
	assert.Equal(t, Version10, req.Version)
	assert.Equal(t, "HTTP/1.0", req.Proto())
}

func TestUnsupportedVersionIsNotAParseError(t *testing.T) {
	tests := []struct {
		version string
		proto   string
	}{
		{"HTTP/2.0", "HTTP/2.0"},
		{"HTTP/0.9", "HTTP/0.9"},
		{"HTTP/1.10", "HTTP/1.1"},
		{"http/1.1", "HTTP/1.1"},
		{"FOO", "HTTP/1.1"},
	}

	for _, tt := range tests {
		data := "GET / " + tt.version + "\r\nHost: example.com\r\n\r\n"
		req, err := RequestFromReader(strings.NewReader(data))

		require.NoError(t, err, tt.version)
		assert.Equal(t, VersionUnsupported, req.Version, tt.version)
		assert.Equal(t, tt.proto, req.Proto(), tt.version)
	}
}

func TestMalformedRequestLine(t *testing.T) {
	tests := []struct {
		name string
		line string
		want error
	}{
		{"missing version", "GET /path", ErrMalformedRequestLine},
		{"empty version", "GET /path ", ErrMalformedRequestLine},
		{"double space", "GET  /path HTTP/1.1", ErrMalformedRequestLine},
		{"four fields", "GET /a /b HTTP/1.1", ErrMalformedRequestLine},
		{"non-token method", "G(T / HTTP/1.1", ErrInvalidMethod},
		{"relative path", "GET index.html HTTP/1.1", ErrInvalidPath},
		{"asterisk", "OPTIONS * HTTP/1.1", ErrInvalidPath},
		{"non-ascii path", "GET /caf\xc3\xa9 HTTP/1.1", ErrInvalidPath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := tt.line + "\r\nHost: example.com\r\n\r\n"
			req, err := RequestFromReader(strings.NewReader(data))

			require.Error(t, err)
			var perr *ParseError
			assert.True(t, errors.As(err, &perr))
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, req)
		})
	}
}

func TestInvalidHeaderKeepsRequestLine(t *testing.T) {
	data := "HEAD /index.html HTTP/1.1\r\nHost: 127.0.0.1\r\nX-Wron\xc2\xa3g-Header: oops\r\n\r\n"
	req, err := RequestFromReader(strings.NewReader(data))

	require.Error(t, err)
	assert.ErrorIs(t, err, headers.ErrInvalidHeaderName)
	require.NotNil(t, req)
	assert.Equal(t, "/index.html", req.Path)
}

func TestFaultDrainsToEndOfHead(t *testing.T) {
	p := NewParser(0)

	err := p.Feed([]byte("GET /path\r\nHost: example.com\r\n"))
	require.NoError(t, err, "fault is reported once the head ends")
	assert.False(t, p.Done())

	err = p.Feed([]byte("Accept: */*\r\n\r\n"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedRequestLine)
	assert.True(t, p.Done())
}

func TestLeadingEmptyLinesIgnored(t *testing.T) {
	data := "\r\n\r\nGET / HTTP/1.1\r\nHost: example.com\r\n\r\n"
	req, err := RequestFromReader(strings.NewReader(data))

	require.NoError(t, err)
	assert.Equal(t, "/", req.Path)
}

func TestBareLFIsIncomplete(t *testing.T) {
	p := NewParser(0)

	err := p.Feed([]byte("GET / HTTP/1.1\nHost: example.com\n\n"))
	require.NoError(t, err)
	assert.False(t, p.Done())
	assert.Nil(t, p.Request())
}

func TestIncrementalParsing(t *testing.T) {
	data := []byte("GET /a/b.html HTTP/1.1\r\nHost: example.com\r\nUser-Agent: test\r\n\r\n")

	for _, size := range []int{1, 2, 3, 5, 7, 64} {
		reader := &slowReader{data: data, chunkSize: size}
		req, err := RequestFromReader(reader)

		require.NoError(t, err, "chunk size %d", size)
		assert.Equal(t, "GET", req.Method.Token)
		assert.Equal(t, "/a/b.html", req.Path)
		assert.Equal(t, 2, req.Headers.Len())
	}
}

func TestCRLFSplitAcrossReads(t *testing.T) {
	p := NewParser(0)

	require.NoError(t, p.Feed([]byte("GET / HTTP/1.1\r")))
	assert.Nil(t, p.Request())
	require.NoError(t, p.Feed([]byte("\nHost: x\r\n\r")))
	assert.False(t, p.Done())
	require.NoError(t, p.Feed([]byte("\n")))
	assert.True(t, p.Done())

	req := p.Request()
	require.NoError(t, req.Validate(headers.Validator{}))
	assert.Equal(t, "x", req.Host)
}

func TestNothingReadPastHead(t *testing.T) {
	data := "GET / HTTP/1.1\r\nHost: example.com\r\n\r\nbody-bytes"
	req, err := RequestFromReader(strings.NewReader(data))

	require.NoError(t, err)
	assert.Equal(t, 1, req.Headers.Len())
}

func TestHeaderTooLarge(t *testing.T) {
	p := NewParser(64)
	data := "GET / HTTP/1.1\r\nHost: example.com\r\nX-Padding: " + strings.Repeat("a", 64) + "\r\n\r\n"

	req, err := p.ReadFrom(strings.NewReader(data), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrHeaderTooLarge)
	require.NotNil(t, req)
	assert.Equal(t, "/", req.Path)
}

func TestHeaderTooLargeInOneRead(t *testing.T) {
	p := NewParser(32)
	err := p.Feed([]byte("GET / HTTP/1.1\r\nHost: example.com.example.com\r\n\r\n"))

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrHeaderTooLarge)
}

func TestRequestLineTooLarge(t *testing.T) {
	p := NewParser(1 << 20)
	data := "GET /" + strings.Repeat("a", maxRequestLineSize)

	_, err := p.ReadFrom(strings.NewReader(data), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRequestLineTooLarge)
}

func TestTooManyHeaders(t *testing.T) {
	var b strings.Builder
	b.WriteString("GET / HTTP/1.1\r\n")
	for i := 0; i <= maxHeaderLines; i++ {
		b.WriteString("X-A: b\r\n")
	}
	b.WriteString("\r\n")

	_, err := NewParser(1<<20).ReadFrom(strings.NewReader(b.String()), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTooManyHeaders)
}

func TestTruncatedRequest(t *testing.T) {
	data := "HEAD /index.html HTTP/1.1\r\nHost: 127.0.0.1\r\n"
	req, err := RequestFromReader(strings.NewReader(data))

	require.Error(t, err)
	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	assert.ErrorIs(t, err, ErrTruncated)
	require.NotNil(t, req)
	assert.Equal(t, "HEAD", req.Method.Token)
}

func TestEmptyConnection(t *testing.T) {
	req, err := RequestFromReader(strings.NewReader(""))

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoRequest)
	var perr *ParseError
	assert.False(t, errors.As(err, &perr))
	assert.Nil(t, req)
}

func TestTimeoutAfterPartialRequest(t *testing.T) {
	reader := &failingReader{data: []byte("GET / HT"), err: os.ErrDeadlineExceeded}
	_, err := RequestFromReader(reader)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTruncated)
	assert.ErrorIs(t, err, os.ErrDeadlineExceeded)
}

func TestTransportErrorIsNotAParseError(t *testing.T) {
	reset := errors.New("connection reset by peer")
	reader := &failingReader{data: []byte("GET / HTTP/1.1\r\n"), err: reset}
	req, err := RequestFromReader(reader)

	require.Error(t, err)
	assert.ErrorIs(t, err, reset)
	var perr *ParseError
	assert.False(t, errors.As(err, &perr))
	require.NotNil(t, req)
}

// slowReader simulates a network connection that provides data slowly
type slowReader struct {
	data      []byte
	chunkSize int
	offset    int
}

func (r *slowReader) Read(p []byte) (int, error) {
	if r.offset >= len(r.data) {
		return 0, io.EOF
	}

	n := r.chunkSize
	if n > len(p) {
		n = len(p)
	}
	if n > len(r.data)-r.offset {
		n = len(r.data) - r.offset
	}

	copy(p, r.data[r.offset:r.offset+n])
	r.offset += n
	return n, nil
}

// failingReader returns data once, then err forever.
type failingReader struct {
	data []byte
	err  error
	done bool
}

func (r *failingReader) Read(p []byte) (int, error) {
	if r.done {
		return 0, r.err
	}
	r.done = true
	return copy(p, r.data), nil
}
