package notify

import (
	"context"
	"sync"

	"github.com/nhle/teamtasks/internal/model"
)

// Publisher pushes a freshly written notification to listeners of its user.
type Publisher interface {
	Publish(ctx context.Context, n model.Notification) error
}

// Subscriber delivers notifications for one user until cancel is called or
// ctx ends.
type Subscriber interface {
	Subscribe(ctx context.Context, userID string) (<-chan model.Notification, func(), error)
}

// Broker is both ends of a push channel keyed by user id.
type Broker interface {
	Publisher
	Subscriber
}

// subscriberBuffer is the per-subscriber channel capacity. Publishing to a
// full subscriber drops the message; the feed's poll loop catches up.
const subscriberBuffer = 16

// Hub is an in-process Broker.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[chan model.Notification]struct{}
}

var _ Broker = (*Hub)(nil)

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[string]map[chan model.Notification]struct{})}
}

// Publish sends n to every subscriber of n.UserID without blocking.
func (h *Hub) Publish(_ context.Context, n model.Notification) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.clients[n.UserID] {
		select {
		case ch <- n:
		default:
		}
	}
	return nil
}

// Subscribe registers a listener for userID.
func (h *Hub) Subscribe(ctx context.Context, userID string) (<-chan model.Notification, func(), error) {
	ch := make(chan model.Notification, subscriberBuffer)

	h.mu.Lock()
	if _, ok := h.clients[userID]; !ok {
		h.clients[userID] = make(map[chan model.Notification]struct{})
	}
	h.clients[userID][ch] = struct{}{}
	h.mu.Unlock()

	done := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			h.mu.Lock()
			if clients, ok := h.clients[userID]; ok {
				delete(clients, ch)
				if len(clients) == 0 {
					delete(h.clients, userID)
				}
			}
			h.mu.Unlock()
			close(ch)
		})
	}

	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-done:
		}
	}()

	return ch, cancel, nil
}

// Subscribers returns the number of listeners for userID.
func (h *Hub) Subscribers(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}
