package delivery

import (
	"strings"
	"sync"

	"aim-chat/conversation-core/pkg/models"
)

const defaultSubscriptionBuffer = 128

// Hub relays events to the subscriptions registered for a topic at publish
// time. There is no history: a late subscriber never sees earlier events.
type Hub struct {
	mu      sync.Mutex
	nextID  uint64
	byTopic map[string]map[uint64]*Subscription
}

func NewHub() *Hub {
	return &Hub{byTopic: make(map[string]map[uint64]*Subscription)}
}

type Subscription struct {
	id     uint64
	hub    *Hub
	ch     chan models.Event
	topics map[string]struct{}
	closed bool
}

// Subscribe registers a subscription for topics. A subscriber that cannot keep
// up with its buffer is dropped and its channel closed.
func (h *Hub) Subscribe(buffer int, topics ...string) *Subscription {
	if buffer <= 0 {
		buffer = defaultSubscriptionBuffer
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	sub := &Subscription{
		id:     h.nextID,
		hub:    h,
		ch:     make(chan models.Event, buffer),
		topics: make(map[string]struct{}),
	}
	for _, topic := range topics {
		h.addLocked(sub, topic)
	}
	return sub
}

// Publish returns how many subscriptions accepted the event.
func (h *Hub) Publish(evt models.Event) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	delivered := 0
	for _, sub := range h.byTopic[evt.Topic] {
		select {
		case sub.ch <- evt:
			delivered++
		default:
			h.closeLocked(sub)
		}
	}
	return delivered
}

// Subscribers reports the number of live subscriptions on topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.byTopic[topic])
}

func (h *Hub) addLocked(sub *Subscription, topic string) {
	topic = strings.TrimSpace(topic)
	if topic == "" || sub.closed {
		return
	}
	subs, ok := h.byTopic[topic]
	if !ok {
		subs = make(map[uint64]*Subscription)
		h.byTopic[topic] = subs
	}
	subs[sub.id] = sub
	sub.topics[topic] = struct{}{}
}

func (h *Hub) removeLocked(sub *Subscription, topic string) {
	if subs, ok := h.byTopic[topic]; ok {
		delete(subs, sub.id)
		if len(subs) == 0 {
			delete(h.byTopic, topic)
		}
	}
	delete(sub.topics, topic)
}

func (h *Hub) closeLocked(sub *Subscription) {
	if sub.closed {
		return
	}
	for topic := range sub.topics {
		h.removeLocked(sub, topic)
	}
	sub.closed = true
	close(sub.ch)
}

// C is closed when the subscription ends for any reason.
func (s *Subscription) C() <-chan models.Event {
	return s.ch
}

func (s *Subscription) Add(topic string) {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	s.hub.addLocked(s, topic)
}

func (s *Subscription) Remove(topic string) {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	s.hub.removeLocked(s, strings.TrimSpace(topic))
}

func (s *Subscription) Has(topic string) bool {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	_, ok := s.topics[topic]
	return ok
}

func (s *Subscription) Close() {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	s.hub.closeLocked(s)
}
