package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrNotConnected is returned by SendToUser when a user has no subscribers.
var ErrNotConnected = errors.New("user not connected")

// Subscriber receives events addressed to one user.
type Subscriber interface {
	Deliver(Event) error
}

// SubscriberFunc adapts a function to Subscriber.
type SubscriberFunc func(Event) error

// Deliver calls f.
func (f SubscriberFunc) Deliver(ev Event) error { return f(ev) }

// Hub is an in-process registry mapping user ids to their subscribers.
// A user may have several subscribers at once.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[int64]Subscriber
	nextID int64
}

// NewHub creates an empty hub. The server always publishes through one so
// an in-process consumer (a future push transport, or an embedding program)
// can Register per-user subscribers without touching the send path. With
// no subscribers Publish is a no-op.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[int64]Subscriber)}
}

// Register adds s for userID and returns an id for Unregister.
func (h *Hub) Register(userID string, s Subscriber) int64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subs[userID]; !ok {
		h.subs[userID] = make(map[int64]Subscriber)
	}

	h.nextID++
	id := h.nextID
	h.subs[userID][id] = s
	return id
}

// Unregister removes a previously registered subscriber.
func (h *Hub) Unregister(userID string, id int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conns, ok := h.subs[userID]; ok {
		delete(conns, id)
		if len(conns) == 0 {
			delete(h.subs, userID)
		}
	}
}

// Connected reports how many subscribers userID currently has.
func (h *Hub) Connected(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[userID])
}

// SendToUser delivers ev to every subscriber of userID. Subscribers that
// fail are unregistered; the first failure is returned.
func (h *Hub) SendToUser(userID string, ev Event) error {
	h.mu.RLock()
	conns := make(map[int64]Subscriber, len(h.subs[userID]))
	for id, s := range h.subs[userID] {
		conns[id] = s
	}
	h.mu.RUnlock()

	if len(conns) == 0 {
		return fmt.Errorf("%w: %s", ErrNotConnected, userID)
	}

	var firstErr error
	var failed []int64
	for id, s := range conns {
		if err := s.Deliver(ev); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			failed = append(failed, id)
		}
	}

	for _, id := range failed {
		h.Unregister(userID, id)
	}

	return firstErr
}

// Publish implements Publisher by delivering to the receiver. A receiver
// with no subscribers is not an error: the message is already stored.
func (h *Hub) Publish(_ context.Context, ev Event) error {
	err := h.SendToUser(ev.ReceiverID, ev)
	if errors.Is(err, ErrNotConnected) {
		return nil
	}
	return err
}
