package response

import (
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/Brownie44l1/httpd/internal/headers"
)

// TimeFormat is the IMF-fixdate layout used for the Date header.
const TimeFormat = "Mon, 02 Jan 2006 15:04:05 GMT"

// NotImplementedBody is the entity sent with every 501.
const NotImplementedBody = "Method Not Implemented\n"

// Outcome is the fully decided response for one request. ContentLength
// always describes the entity a GET would carry, even when SuppressBody
// is set for HEAD.
type Outcome struct {
	Status        StatusCode
	Proto         string
	ContentLength int64
	ContentType   string
	Body          io.ReadCloser // nil when there is no entity
	SuppressBody  bool
}

// ErrorOutcome is an entity-less response.
func ErrorOutcome(proto string, code StatusCode) *Outcome {
	return &Outcome{
		Status: code,
		Proto:  proto,
	}
}

// NotImplementedOutcome answers a method outside HEAD and GET.
func NotImplementedOutcome(proto string) *Outcome {
	return &Outcome{
		Status:        StatusNotImplemented,
		Proto:         proto,
		ContentLength: int64(len(NotImplementedBody)),
		ContentType:   "text/plain; charset=utf-8",
		Body:          io.NopCloser(strings.NewReader(NotImplementedBody)),
	}
}

// FileOutcome answers HEAD or GET for a resolved file. For HEAD, body may
// be nil.
func FileOutcome(proto string, size int64, contentType string, body io.ReadCloser, head bool) *Outcome {
	return &Outcome{
		Status:        StatusOK,
		Proto:         proto,
		ContentLength: size,
		ContentType:   contentType,
		Body:          body,
		SuppressBody:  head,
	}
}

// SendsBody reports whether entity bytes go on the wire.
func (o *Outcome) SendsBody() bool {
	return o.Body != nil && !o.SuppressBody && o.ContentLength > 0
}

// Header builds the response header block in its fixed order.
func (o *Outcome) Header(server string, now time.Time) *headers.Headers {
	h := headers.NewHeaders()
	h.Set("Date", now.UTC().Format(TimeFormat))
	if server != "" {
		h.Set("Server", server)
	}
	h.Set("Content-Length", strconv.FormatInt(o.ContentLength, 10))
	if o.ContentType != "" {
		h.Set("Content-Type", o.ContentType)
	}
	h.Set("Connection", "close")
	return h
}

// Close releases the body, if any.
func (o *Outcome) Close() error {
	if o.Body == nil {
		return nil
	}
	return o.Body.Close()
}

// WriteOutcome writes the status line, h, and the body when one is due.
func (w *Writer) WriteOutcome(o *Outcome, h *headers.Headers) error {
	if err := w.WriteStatusLine(o.Proto, o.Status); err != nil {
		return err
	}

	if err := w.WriteHeaders(h); err != nil {
		return err
	}

	if !o.SendsBody() {
		return w.Flush()
	}

	return w.WriteBody(io.LimitReader(o.Body, o.ContentLength))
}
