package logger

import (
	"fmt"
	"strings"
	"time"
)

type EventKind string

const (
	Received  EventKind = "received"
	Responded EventKind = "responded"
)

// Event is one access log record. Method and Path are empty when the
// request line never parsed.
type Event struct {
	Kind   EventKind `json:"kind"`
	Method string    `json:"method,omitempty"`
	Path   string    `json:"path,omitempty"`
	Status int       `json:"status,omitempty"`
	Peer   string    `json:"peer"`
	Time   time.Time `json:"time"`
}

// String renders the event as its access log line.
func (e Event) String() string {
	switch {
	case e.Kind == Received:
		return fmt.Sprintf("received %s on '%s' from %s", e.Method, e.Path, e.Peer)
	case e.Method == "":
		return fmt.Sprintf("responding with %d to %s", e.Status, e.Peer)
	default:
		return fmt.Sprintf("responding with %d to %s for %s on '%s'", e.Status, e.Peer, e.Method, e.Path)
	}
}

// Publisher receives a copy of every event. Publish must not block.
type Publisher interface {
	Publish(Event) bool
}

// AccessLog writes request and response lines and forwards events.
type AccessLog struct {
	sink *Sink
	pub  Publisher
	now  func() time.Time
}

// NewAccessLog writes to sink; pub may be nil.
func NewAccessLog(sink *Sink, pub Publisher) *AccessLog {
	if sink == nil {
		sink = Discard()
	}
	return &AccessLog{sink: sink, pub: pub, now: time.Now}
}

// Received records a request whose request line parsed.
func (a *AccessLog) Received(peer, method, path string) {
	a.record(Event{
		Kind:   Received,
		Method: method,
		Path:   path,
		Peer:   peer,
	})
}

// Responded records the outcome sent to peer. method is empty when the
// request line was unreadable.
func (a *AccessLog) Responded(peer string, status int, method, path string) {
	a.record(Event{
		Kind:   Responded,
		Method: method,
		Path:   path,
		Status: status,
		Peer:   peer,
	})
}

func (a *AccessLog) record(e Event) {
	e.Method = clean(e.Method)
	e.Path = clean(e.Path)
	e.Time = a.now().UTC()

	a.sink.Println(e.String())
	if a.pub != nil {
		a.pub.Publish(e)
	}
}

// Tokens reach here already validated, but a log line is still one line.
func clean(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
}
