package hub

import (
	"sync"

	"github.com/google/uuid"
)

// QueueCapacity is the bounded size of each subscription's event queue.
const QueueCapacity = 256

// Hub is a process-wide pub/sub bus keyed by service name.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[string]*Subscription
}

// New creates an empty Hub.
func New() *Hub {
	return &Hub{subs: make(map[string]map[string]*Subscription)}
}

// Subscription is a bounded-queue handle returned by Subscribe. Consumers
// range over Events() until Close is called or the hub drops the last
// reference.
type Subscription struct {
	ID      string
	Service string

	hub *Hub
	ch  chan Event

	closeOnce sync.Once
}

// Subscribe returns a new subscription for service with a bounded event
// queue. The caller must call Close when done to release it from the hub.
func (h *Hub) Subscribe(service string) *Subscription {
	sub := &Subscription{
		ID:      uuid.NewString(),
		Service: service,
		hub:     h,
		ch:      make(chan Event, QueueCapacity),
	}

	h.mu.Lock()
	if h.subs[service] == nil {
		h.subs[service] = make(map[string]*Subscription)
	}
	h.subs[service][sub.ID] = sub
	h.mu.Unlock()

	return sub
}

// Events returns the channel of events for this subscription.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// Close removes the subscription from the hub and closes its channel. Safe
// to call multiple times.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		s.hub.mu.Lock()
		if byID := s.hub.subs[s.Service]; byID != nil {
			delete(byID, s.ID)
			if len(byID) == 0 {
				delete(s.hub.subs, s.Service)
			}
		}
		s.hub.mu.Unlock()
		close(s.ch)
	})
}

// push enqueues an event, dropping the oldest queued event if the
// subscription's queue is full.
func (s *Subscription) push(event Event) {
	select {
	case s.ch <- event:
		return
	default:
	}

	// Queue full: drop the oldest event, then retry once. Both operations
	// are best-effort non-blocking — a concurrent consumer may have already
	// drained an event, which is fine either way.
	select {
	case <-s.ch:
	default:
	}
	select {
	case s.ch <- event:
	default:
	}
}

// Publish enqueues event to every current subscriber of service. Publish
// iterates a stable snapshot of subscriptions taken under the read lock,
// so a subscriber that unsubscribes mid-publish does not affect delivery
// to the others.
func (h *Hub) Publish(service string, event Event) {
	h.mu.RLock()
	byID := h.subs[service]
	snapshot := make([]*Subscription, 0, len(byID))
	for _, sub := range byID {
		snapshot = append(snapshot, sub)
	}
	h.mu.RUnlock()

	for _, sub := range snapshot {
		sub.push(event)
	}
}

// SubscriberCount returns the number of active subscriptions for service,
// used to feed the realtime-hub subscriber gauge.
func (h *Hub) SubscriberCount(service string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[service])
}
