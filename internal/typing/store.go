package typing

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"messaging-service/internal/models"
)

// SignalStore persists ephemeral typing signals with a TTL and relays them
// across service instances.
type SignalStore interface {
	Put(ctx context.Context, signal models.TypingSignal, ttl time.Duration) error
	Clear(ctx context.Context, conversationID, userID string) error
	Publish(ctx context.Context, signal models.TypingSignal) error
	SetPresence(ctx context.Context, userID string, online bool, ttl time.Duration) error
	IsOnline(ctx context.Context, userID string) (bool, error)
}

// RedisStore keeps typing signals and presence in Redis so other
// instances can observe them. Keys:
//   <prefix>:typing:<conversation>:<user> -> signal JSON, TTL = expiry
//   <prefix>:presence:<user>              -> "online", TTL-refreshed
type RedisStore struct {
	client   *redis.Client
	prefix   string
	instance string
}

// NewRedisStore constructs a RedisStore. The instance id tags published
// relay events so a coordinator can skip its own.
func NewRedisStore(client *redis.Client, prefix, instance string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, instance: instance}
}

func (s *RedisStore) typingKey(conversationID, userID string) string {
	return fmt.Sprintf("%s:typing:%s:%s", s.prefix, conversationID, userID)
}

func (s *RedisStore) presenceKey(userID string) string {
	return fmt.Sprintf("%s:presence:%s", s.prefix, userID)
}

func (s *RedisStore) channel(conversationID string) string {
	return fmt.Sprintf("%s:typing-events:%s", s.prefix, conversationID)
}

// Put stores a signal with the expiry TTL, so a crashed client's signal
// dies on its own.
func (s *RedisStore) Put(ctx context.Context, signal models.TypingSignal, ttl time.Duration) error {
	payload, err := json.Marshal(signal)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.typingKey(signal.ConversationID, signal.UserID), payload, ttl).Err()
}

// Clear removes the stored signal.
func (s *RedisStore) Clear(ctx context.Context, conversationID, userID string) error {
	return s.client.Del(ctx, s.typingKey(conversationID, userID)).Err()
}

type relayEvent struct {
	Instance string              `json:"instance"`
	Signal   models.TypingSignal `json:"signal"`
}

// Publish relays the signal to other instances.
func (s *RedisStore) Publish(ctx context.Context, signal models.TypingSignal) error {
	payload, err := json.Marshal(relayEvent{Instance: s.instance, Signal: signal})
	if err != nil {
		return err
	}
	return s.client.Publish(ctx, s.channel(signal.ConversationID), payload).Err()
}

// Subscribe returns the pub/sub handle for all typing relay channels.
func (s *RedisStore) Subscribe(ctx context.Context) *redis.PubSub {
	return s.client.PSubscribe(ctx, fmt.Sprintf("%s:typing-events:*", s.prefix))
}

// SetPresence marks a user online (with TTL refresh) or offline.
func (s *RedisStore) SetPresence(ctx context.Context, userID string, online bool, ttl time.Duration) error {
	if !online {
		return s.client.Del(ctx, s.presenceKey(userID)).Err()
	}
	return s.client.Set(ctx, s.presenceKey(userID), "online", ttl).Err()
}

// IsOnline reports whether the user has a live presence key.
func (s *RedisStore) IsOnline(ctx context.Context, userID string) (bool, error) {
	n, err := s.client.Exists(ctx, s.presenceKey(userID)).Result()
	return n > 0, err
}

// NoopStore is used when Redis is not configured; signals then exist only
// in this instance's timers.
type NoopStore struct{}

func (NoopStore) Put(ctx context.Context, signal models.TypingSignal, ttl time.Duration) error {
	return nil
}

func (NoopStore) Clear(ctx context.Context, conversationID, userID string) error { return nil }

func (NoopStore) Publish(ctx context.Context, signal models.TypingSignal) error { return nil }

func (NoopStore) SetPresence(ctx context.Context, userID string, online bool, ttl time.Duration) error {
	return nil
}

func (NoopStore) IsOnline(ctx context.Context, userID string) (bool, error) { return false, nil }

var (
	_ SignalStore = (*RedisStore)(nil)
	_ SignalStore = NoopStore{}
)
