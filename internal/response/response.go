package response

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/Brownie44l1/httpd/internal/headers"
)

var (
	ErrStatusWritten    = errors.New("status line already written")
	ErrStatusNotWritten = errors.New("must write status line before headers")
	ErrHeadersNotDone   = errors.New("must write headers before body")
)

// writerState tracks what's been written so far
type writerState int

const (
	stateStart writerState = iota
	stateStatusWritten
	stateHeadersWritten
	stateBodyWritten
)

// Writer writes one HTTP response. Output is buffered until Flush.
type Writer struct {
	w          io.Writer
	bw         *bufio.Writer
	state      writerState
	statusCode StatusCode
	written    int64
	hadError   bool
}

// NewWriter creates a new response writer
func NewWriter(w io.Writer) *Writer {
	return &Writer{
		w:     w,
		bw:    bufio.NewWriter(w),
		state: stateStart,
	}
}

// WriteStatusLine writes "<proto> <code> <reason>".
func (w *Writer) WriteStatusLine(proto string, code StatusCode) error {
	if w.state != stateStart {
		return ErrStatusWritten
	}

	if _, err := fmt.Fprintf(w.bw, "%s %d %s\r\n", proto, code, StatusText(code)); err != nil {
		w.hadError = true
		return err
	}

	w.statusCode = code
	w.state = stateStatusWritten
	return nil
}

// WriteHeaders writes all header fields in order, then the blank line.
func (w *Writer) WriteHeaders(h *headers.Headers) error {
	if w.state != stateStatusWritten {
		return ErrStatusNotWritten
	}

	for _, f := range h.Fields() {
		if _, err := fmt.Fprintf(w.bw, "%s: %s\r\n", f.Name, f.Value); err != nil {
			w.hadError = true
			return err
		}
	}

	if _, err := w.bw.WriteString("\r\n"); err != nil {
		w.hadError = true
		return err
	}

	w.state = stateHeadersWritten
	return nil
}

// WriteBody flushes the head and streams body straight to the
// underlying writer, so a *net.TCPConn can use sendfile for files.
func (w *Writer) WriteBody(body io.Reader) error {
	if w.state != stateHeadersWritten {
		return ErrHeadersNotDone
	}

	if err := w.Flush(); err != nil {
		return err
	}

	n, err := io.Copy(w.w, body)
	w.written += n
	if err != nil {
		w.hadError = true
		return err
	}

	w.state = stateBodyWritten
	return nil
}

// Flush sends everything buffered so far.
func (w *Writer) Flush() error {
	if err := w.bw.Flush(); err != nil {
		w.hadError = true
		return err
	}
	return nil
}

func (w *Writer) HadError() bool {
	return w.hadError
}

func (w *Writer) StatusCode() StatusCode {
	return w.statusCode
}

// BodyBytes is the number of body bytes sent.
func (w *Writer) BodyBytes() int64 {
	return w.written
}
