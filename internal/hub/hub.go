package hub

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/Brownie44l1/httpd/internal/logger"
)

const (
	inputBuffer      = 4096
	subscriberBuffer = 1024
)

// Hub fans access log events out to live subscribers. Publishing never
// blocks a connection: when the hub or a subscriber falls behind, the
// event is dropped and counted.
type Hub struct {
	input chan logger.Event

	mu          sync.RWMutex
	subscribers map[chan logger.Event]struct{}
	closed      bool

	dropped atomic.Int64
}

func New() *Hub {
	return &Hub{
		input:       make(chan logger.Event, inputBuffer),
		subscribers: make(map[chan logger.Event]struct{}),
	}
}

// Publish offers e to the hub. It reports false if e was dropped.
func (h *Hub) Publish(e logger.Event) bool {
	select {
	case h.input <- e:
		return true
	default:
		h.dropped.Add(1)
		return false
	}
}

// Subscribe returns a buffered channel that receives every event published
// after the call. The channel is closed by Unsubscribe or when the hub stops.
func (h *Hub) Subscribe() <-chan logger.Event {
	ch := make(chan logger.Event, subscriberBuffer)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return ch
	}
	h.subscribers[ch] = struct{}{}
	return ch
}

// Unsubscribe stops delivery to ch and closes it.
func (h *Hub) Unsubscribe(ch <-chan logger.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subscribers {
		if sub == ch {
			delete(h.subscribers, sub)
			close(sub)
			return
		}
	}
}

// Subscribers returns the number of live subscribers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Dropped returns the total number of events lost to a full queue.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

// Start broadcasts published events until ctx is cancelled, then closes
// every subscriber.
func (h *Hub) Start(ctx context.Context) {
	defer h.closeAll()

	for {
		select {
		case <-ctx.Done():
			return
		case e := <-h.input:
			h.broadcast(e)
		}
	}
}

func (h *Hub) broadcast(e logger.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subscribers {
		select {
		case ch <- e:
		default:
			h.dropped.Add(1)
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subscribers {
		close(ch)
	}
	clear(h.subscribers)
	h.closed = true
}
