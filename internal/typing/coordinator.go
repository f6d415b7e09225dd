package typing

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"messaging-service/internal/models"
)

// Broadcaster delivers typing signals to local listeners.
type Broadcaster interface {
	BroadcastTyping(signal models.TypingSignal)
}

// Coordinator owns typing state: it debounces the per-(conversation, user)
// expiry timer, writes signals through to the store and broadcasts them.
// A signal not refreshed within the expiry window is observed by listeners
// as isTyping=false without an explicit clear call.
type Coordinator struct {
	hub    Broadcaster
	store  SignalStore
	expiry time.Duration
	log    *zap.SugaredLogger

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// NewCoordinator constructs a Coordinator.
func NewCoordinator(hub Broadcaster, store SignalStore, expiry time.Duration, log *zap.SugaredLogger) *Coordinator {
	return &Coordinator{
		hub:    hub,
		store:  store,
		expiry: expiry,
		log:    log,
		timers: make(map[string]*time.Timer),
	}
}

func timerKey(conversationID, userID string) string {
	return conversationID + "/" + userID
}

// Set publishes or clears a typing signal. Setting isTyping=true restarts
// the expiry timer; each keystroke refresh pushes the deadline out again.
func (c *Coordinator) Set(ctx context.Context, conversationID, userID, userName string, isTyping bool) error {
	signal := models.TypingSignal{
		ConversationID: conversationID,
		UserID:         userID,
		UserName:       userName,
		IsTyping:       isTyping,
		UpdatedAt:      time.Now().UTC(),
	}

	if !isTyping {
		c.cancelTimer(conversationID, userID)
		if err := c.store.Clear(ctx, conversationID, userID); err != nil && c.log != nil {
			c.log.Warnw("typing clear failed", "conversation_id", conversationID, "error", err)
		}
		c.emit(ctx, signal)
		return nil
	}

	if err := c.store.Put(ctx, signal, c.expiry); err != nil && c.log != nil {
		c.log.Warnw("typing put failed", "conversation_id", conversationID, "error", err)
	}
	c.resetTimer(conversationID, userID, userName)
	c.emit(ctx, signal)
	return nil
}

// StopOnSend clears the signal immediately; called when the user sends the
// message they were typing.
func (c *Coordinator) StopOnSend(ctx context.Context, conversationID, userID, userName string) {
	c.mu.Lock()
	_, active := c.timers[timerKey(conversationID, userID)]
	c.mu.Unlock()
	if active {
		_ = c.Set(ctx, conversationID, userID, userName, false)
	}
}

// Disconnect clears any signal the user left behind; the stream handler
// calls this when the client connection drops, so a signal never outlives
// the session.
func (c *Coordinator) Disconnect(conversationID, userID, userName string) {
	_ = c.Set(context.Background(), conversationID, userID, userName, false)
}

// Touch refreshes the user's presence key.
func (c *Coordinator) Touch(ctx context.Context, userID string, ttl time.Duration) {
	if err := c.store.SetPresence(ctx, userID, true, ttl); err != nil && c.log != nil {
		c.log.Debugw("presence refresh failed", "user_id", userID, "error", err)
	}
}

// Offline drops the user's presence key.
func (c *Coordinator) Offline(ctx context.Context, userID string) {
	if err := c.store.SetPresence(ctx, userID, false, 0); err != nil && c.log != nil {
		c.log.Debugw("presence clear failed", "user_id", userID, "error", err)
	}
}

// IsOnline reports best-effort presence for a user.
func (c *Coordinator) IsOnline(ctx context.Context, userID string) (bool, error) {
	return c.store.IsOnline(ctx, userID)
}

func (c *Coordinator) emit(ctx context.Context, signal models.TypingSignal) {
	c.hub.BroadcastTyping(signal)
	if err := c.store.Publish(ctx, signal); err != nil && c.log != nil {
		c.log.Debugw("typing relay publish failed", "conversation_id", signal.ConversationID, "error", err)
	}
}

func (c *Coordinator) resetTimer(conversationID, userID, userName string) {
	key := timerKey(conversationID, userID)
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.timers[key]; ok {
		t.Stop()
	}
	c.timers[key] = time.AfterFunc(c.expiry, func() {
		c.expire(conversationID, userID, userName)
	})
}

func (c *Coordinator) cancelTimer(conversationID, userID string) {
	key := timerKey(conversationID, userID)
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.timers[key]; ok {
		t.Stop()
		delete(c.timers, key)
	}
}

func (c *Coordinator) expire(conversationID, userID, userName string) {
	c.mu.Lock()
	delete(c.timers, timerKey(conversationID, userID))
	c.mu.Unlock()

	signal := models.TypingSignal{
		ConversationID: conversationID,
		UserID:         userID,
		UserName:       userName,
		IsTyping:       false,
		UpdatedAt:      time.Now().UTC(),
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.store.Clear(ctx, conversationID, userID); err != nil && c.log != nil {
		c.log.Debugw("typing expiry clear failed", "conversation_id", conversationID, "error", err)
	}
	c.emit(ctx, signal)
}

// RunRelay consumes cross-instance typing events from the store and
// rebroadcasts them locally. Events published by this instance are
// skipped. Blocks until ctx is done.
func (c *Coordinator) RunRelay(ctx context.Context, store *RedisStore) {
	sub := store.Subscribe(ctx)
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-sub.Channel():
			if !ok {
				return
			}
			c.handleRelay(store.instance, msg)
		}
	}
}

func (c *Coordinator) handleRelay(instance string, msg *redis.Message) {
	var event relayEvent
	if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
		if c.log != nil {
			c.log.Debugw("typing relay decode failed", "error", err)
		}
		return
	}
	if event.Instance == instance {
		return
	}
	c.hub.BroadcastTyping(event.Signal)
}
