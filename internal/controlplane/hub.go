package controlplane

import (
	"sync"

	"github.com/fentz26/taskstack/internal/models"
)

// DefaultSubscriberBuffer is how many updates a subscriber may lag behind
// before it is dropped.
const DefaultSubscriberBuffer = 32

// Hub fans update payloads out to event stream subscribers.
type Hub struct {
	mu      sync.Mutex
	subs    map[chan models.UpdatePayload]struct{}
	buffer  int
	metrics *Metrics
	closed  bool
}

// NewHub creates a hub. metrics may be nil.
func NewHub(buffer int, metrics *Metrics) *Hub {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	return &Hub{
		subs:    make(map[chan models.UpdatePayload]struct{}),
		buffer:  buffer,
		metrics: metrics,
	}
}

// Subscribe registers a subscriber. The channel is closed when the
// subscriber is dropped, unsubscribed, or the hub closes.
func (h *Hub) Subscribe() (<-chan models.UpdatePayload, func()) {
	ch := make(chan models.UpdatePayload, h.buffer)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	h.subs[ch] = struct{}{}
	h.setGaugeLocked()
	h.mu.Unlock()

	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.removeLocked(ch)
	}
}

// Publish delivers u to every subscriber without blocking. A subscriber
// whose buffer is full is dropped; its stream ends and it resynchronises on
// reconnect.
func (h *Hub) Publish(u models.UpdatePayload) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.eventsBroadcast.WithLabelValues(string(u.Action)).Inc()
	}
	for ch := range h.subs {
		select {
		case ch <- u:
		default:
			h.removeLocked(ch)
			if h.metrics != nil {
				h.metrics.subscriberDrops.Inc()
			}
		}
	}
}

// Len returns the number of live subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close ends every subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for ch := range h.subs {
		h.removeLocked(ch)
	}
}

func (h *Hub) removeLocked(ch chan models.UpdatePayload) {
	if _, ok := h.subs[ch]; !ok {
		return
	}
	delete(h.subs, ch)
	close(ch)
	h.setGaugeLocked()
}

func (h *Hub) setGaugeLocked() {
	if h.metrics != nil {
		h.metrics.subscribers.Set(float64(len(h.subs)))
	}
}
