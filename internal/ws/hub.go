package ws

import (
	"strings"
	"sync"

	jww "github.com/spf13/jwalterweatherman"

	"guild-chat-service/internal/models"
	"guild-chat-service/internal/observability"
)

// Hub tracks live sessions, their topic subscriptions and their users.
type Hub struct {
	mu       sync.RWMutex
	sessions map[*Session]struct{}
	topics   map[string]map[*Session]struct{}
	users    map[int]map[*Session]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		sessions: make(map[*Session]struct{}),
		topics:   make(map[string]map[*Session]struct{}),
		users:    make(map[int]map[*Session]struct{}),
	}
}

// Register adds a session and indexes it by user.
func (h *Hub) Register(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions[s] = struct{}{}
	if _, ok := h.users[s.info.UserID]; !ok {
		h.users[s.info.UserID] = make(map[*Session]struct{})
	}
	h.users[s.info.UserID][s] = struct{}{}
}

// Unregister removes a session from every index. It reports whether the
// session was still registered.
func (h *Hub) Unregister(s *Session) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.sessions[s]; !ok {
		return false
	}
	delete(h.sessions, s)
	if conns, ok := h.users[s.info.UserID]; ok {
		delete(conns, s)
		if len(conns) == 0 {
			delete(h.users, s.info.UserID)
		}
	}
	for topic := range s.topics {
		h.removeFromTopic(topic, s)
	}
	s.topics = nil
	return true
}

// Subscribe adds the session to a topic. Callers authorize first.
func (h *Hub) Subscribe(s *Session, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.sessions[s]; !ok {
		return
	}
	if _, ok := h.topics[topic]; !ok {
		h.topics[topic] = make(map[*Session]struct{})
	}
	h.topics[topic][s] = struct{}{}
	s.topics[topic] = struct{}{}
}

// Unsubscribe removes the session from a topic.
func (h *Hub) Unsubscribe(s *Session, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeFromTopic(topic, s)
	delete(s.topics, topic)
}

func (h *Hub) removeFromTopic(topic string, s *Session) {
	if conns, ok := h.topics[topic]; ok {
		delete(conns, s)
		if len(conns) == 0 {
			delete(h.topics, topic)
		}
	}
}

type revoked struct {
	session *Session
	topic   string
}

// Revoke drops the subscriptions of every session of userID whose topic
// starts with prefix. Each session is told which topics it lost.
func (h *Hub) Revoke(userID int, prefix string) {
	h.mu.Lock()
	var dropped []revoked
	for s := range h.users[userID] {
		for topic := range s.topics {
			if strings.HasPrefix(topic, prefix) {
				h.removeFromTopic(topic, s)
				delete(s.topics, topic)
				dropped = append(dropped, revoked{session: s, topic: topic})
			}
		}
	}
	h.mu.Unlock()
	h.announce(dropped)
}

// RevokeAll drops every subscription to topics starting with prefix.
func (h *Hub) RevokeAll(prefix string) {
	h.mu.Lock()
	var dropped []revoked
	for topic, conns := range h.topics {
		if !strings.HasPrefix(topic, prefix) {
			continue
		}
		for s := range conns {
			delete(s.topics, topic)
			dropped = append(dropped, revoked{session: s, topic: topic})
		}
		delete(h.topics, topic)
	}
	h.mu.Unlock()
	h.announce(dropped)
}

func (h *Hub) announce(dropped []revoked) {
	for _, d := range dropped {
		jww.DEBUG.Printf("ws subscription revoked conn=%s user=%d topic=%s", d.session.info.ConnID, d.session.info.UserID, d.topic)
		d.session.Send(models.Event{Type: models.EventUnsubscribed, Topic: d.topic})
	}
}

// Publish delivers an event to every subscriber of topic.
func (h *Hub) Publish(topic string, event models.Event) {
	h.mu.RLock()
	targets := make([]*Session, 0, len(h.topics[topic]))
	for s := range h.topics[topic] {
		targets = append(targets, s)
	}
	h.mu.RUnlock()
	h.deliver(targets, event)
}

// PublishToUser delivers an event to every session of one user.
func (h *Hub) PublishToUser(userID int, event models.Event) {
	h.mu.RLock()
	targets := make([]*Session, 0, len(h.users[userID]))
	for s := range h.users[userID] {
		targets = append(targets, s)
	}
	h.mu.RUnlock()
	h.deliver(targets, event)
}

// deliver never blocks: a session whose queue is full is dropped.
func (h *Hub) deliver(targets []*Session, event models.Event) {
	if len(targets) == 0 {
		return
	}
	payload, err := encode(event)
	if err != nil {
		jww.ERROR.Printf("ws encode event type=%s topic=%s: %v", event.Type, event.Topic, err)
		return
	}
	for _, s := range targets {
		if s.enqueue(payload) {
			observability.IncWSEvent("out", event.Type)
			continue
		}
		jww.WARN.Printf("ws send queue full conn=%s user=%d; dropping session", s.info.ConnID, s.info.UserID)
		observability.IncWSDropped()
		s.info.publishLifecycle(s.ctx, "ws_dropped", "send queue full")
		s.Close()
	}
}

// SessionCount returns the number of live sessions.
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Subscribers returns the number of sessions subscribed to topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

// CloseAll closes every live session. Used on shutdown, since hijacked
// connections outlive http.Server.Shutdown.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	live := make([]*Session, 0, len(h.sessions))
	for s := range h.sessions {
		live = append(live, s)
	}
	h.mu.RUnlock()
	for _, s := range live {
		s.Close()
	}
}
