package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// TimeFormat prefixes every line, e.g. "Sat, 17 Oct 2026 09:30:00 GMT".
const TimeFormat = "Mon, 02 Jan 2006 15:04:05 GMT"

// Sink is the single shared log writer. Each line is written whole under
// its mutex, so concurrent connections never interleave.
type Sink struct {
	mu   sync.Mutex
	w    io.Writer
	name string
	now  func() time.Time
}

// NewSink writes lines prefixed with the date and "[serverName]". A nil
// writer discards everything.
func NewSink(w io.Writer, serverName string) *Sink {
	if w == nil {
		w = io.Discard
	}
	return &Sink{
		w:    w,
		name: serverName,
		now:  time.Now,
	}
}

// Discard is a sink for disabled logging.
func Discard() *Sink {
	return NewSink(nil, "")
}

// Println writes msg as one line.
func (s *Sink) Println(msg string) {
	line := fmt.Sprintf("%s [%s] %s\n", s.now().UTC().Format(TimeFormat), s.name, msg)

	s.mu.Lock()
	defer s.mu.Unlock()
	io.WriteString(s.w, line)
}

// Printf formats and writes one line.
func (s *Sink) Printf(format string, args ...interface{}) {
	s.Println(fmt.Sprintf(format, args...))
}

// OpenFile opens path for appending, creating it if needed.
func OpenFile(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}
