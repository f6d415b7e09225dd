package ws

import (
	"sync"

	"messaging-service/internal/models"
)

// Hub routes live events to subscribers. Subscriptions are explicit
// handles owned by the caller; every Subscribe must be paired with a
// Close, or stale callbacks accumulate.
type Hub struct {
	mu     sync.RWMutex
	nextID uint64

	convSubs   map[string]map[uint64]*Subscription
	typingSubs map[string]map[uint64]func(models.TypingSignal)
	userSubs   map[string]map[uint64]func(models.Notification)
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		convSubs:   make(map[string]map[uint64]*Subscription),
		typingSubs: make(map[string]map[uint64]func(models.TypingSignal)),
		userSubs:   make(map[string]map[uint64]func(models.Notification)),
	}
}

// Subscription is a live-message listener handle for one conversation.
type Subscription struct {
	hub            *Hub
	conversationID string
	id             uint64

	onAdded   func(models.Message)
	onChanged func(models.Message)
}

// Close deregisters the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	if subs, ok := s.hub.convSubs[s.conversationID]; ok {
		delete(subs, s.id)
		if len(subs) == 0 {
			delete(s.hub.convSubs, s.conversationID)
		}
	}
}

// Subscribe registers listeners for new and changed messages in a
// conversation and returns the owning handle.
func (h *Hub) Subscribe(conversationID string, onAdded, onChanged func(models.Message)) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	sub := &Subscription{
		hub:            h,
		conversationID: conversationID,
		id:             h.nextID,
		onAdded:        onAdded,
		onChanged:      onChanged,
	}
	if _, ok := h.convSubs[conversationID]; !ok {
		h.convSubs[conversationID] = make(map[uint64]*Subscription)
	}
	h.convSubs[conversationID][sub.id] = sub
	return sub
}

// TypingSubscription is a listener handle for typing signals.
type TypingSubscription struct {
	hub            *Hub
	conversationID string
	id             uint64
}

// Close deregisters the typing subscription.
func (s *TypingSubscription) Close() {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	if subs, ok := s.hub.typingSubs[s.conversationID]; ok {
		delete(subs, s.id)
		if len(subs) == 0 {
			delete(s.hub.typingSubs, s.conversationID)
		}
	}
}

// ListenTyping registers a typing-signal listener for a conversation.
func (h *Hub) ListenTyping(conversationID string, fn func(models.TypingSignal)) *TypingSubscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	sub := &TypingSubscription{hub: h, conversationID: conversationID, id: h.nextID}
	if _, ok := h.typingSubs[conversationID]; !ok {
		h.typingSubs[conversationID] = make(map[uint64]func(models.TypingSignal))
	}
	h.typingSubs[conversationID][sub.id] = fn
	return sub
}

// UserSubscription is a listener handle for one user's notifications.
type UserSubscription struct {
	hub    *Hub
	userID string
	id     uint64
}

// Close deregisters the notification subscription.
func (s *UserSubscription) Close() {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	if subs, ok := s.hub.userSubs[s.userID]; ok {
		delete(subs, s.id)
		if len(subs) == 0 {
			delete(s.hub.userSubs, s.userID)
		}
	}
}

// SubscribeUser registers a listener for notifications created for a user.
func (h *Hub) SubscribeUser(userID string, fn func(models.Notification)) *UserSubscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	sub := &UserSubscription{hub: h, userID: userID, id: h.nextID}
	if _, ok := h.userSubs[userID]; !ok {
		h.userSubs[userID] = make(map[uint64]func(models.Notification))
	}
	h.userSubs[userID][sub.id] = fn
	return sub
}

// BroadcastMessageAdded delivers a newly stored message to all
// conversation subscribers, the sender included so optimistic local
// entries get confirmed.
func (h *Hub) BroadcastMessageAdded(msg models.Message) {
	for _, sub := range h.conversationSubs(msg.ConversationID) {
		if sub.onAdded != nil {
			sub.onAdded(msg)
		}
	}
}

// BroadcastMessageChanged delivers an edited, deleted, reacted-to or
// status-advanced message.
func (h *Hub) BroadcastMessageChanged(msg models.Message) {
	for _, sub := range h.conversationSubs(msg.ConversationID) {
		if sub.onChanged != nil {
			sub.onChanged(msg)
		}
	}
}

// BroadcastTyping delivers a typing signal to conversation listeners.
func (h *Hub) BroadcastTyping(signal models.TypingSignal) {
	h.mu.RLock()
	fns := make([]func(models.TypingSignal), 0, len(h.typingSubs[signal.ConversationID]))
	for _, fn := range h.typingSubs[signal.ConversationID] {
		fns = append(fns, fn)
	}
	h.mu.RUnlock()
	for _, fn := range fns {
		fn(signal)
	}
}

// NotifyUser delivers a notification to the recipient's live listeners.
func (h *Hub) NotifyUser(n models.Notification) {
	h.mu.RLock()
	fns := make([]func(models.Notification), 0, len(h.userSubs[n.RecipientID]))
	for _, fn := range h.userSubs[n.RecipientID] {
		fns = append(fns, fn)
	}
	h.mu.RUnlock()
	for _, fn := range fns {
		fn(n)
	}
}

func (h *Hub) conversationSubs(conversationID string) []*Subscription {
	h.mu.RLock()
	defer h.mu.RUnlock()
	subs := make([]*Subscription, 0, len(h.convSubs[conversationID]))
	for _, sub := range h.convSubs[conversationID] {
		subs = append(subs, sub)
	}
	return subs
}
