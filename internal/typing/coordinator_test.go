package typing

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"messaging-service/internal/models"
)

type captureBroadcaster struct {
	mu      sync.Mutex
	signals []models.TypingSignal
}

func (b *captureBroadcaster) BroadcastTyping(signal models.TypingSignal) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.signals = append(b.signals, signal)
}

func (b *captureBroadcaster) all() []models.TypingSignal {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]models.TypingSignal, len(b.signals))
	copy(out, b.signals)
	return out
}

func (b *captureBroadcaster) last() (models.TypingSignal, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.signals) == 0 {
		return models.TypingSignal{}, false
	}
	return b.signals[len(b.signals)-1], true
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within deadline")
}

func TestTypingSignalBroadcastImmediately(t *testing.T) {
	hub := &captureBroadcaster{}
	coord := NewCoordinator(hub, NoopStore{}, time.Hour, nil)

	require.NoError(t, coord.Set(context.Background(), "c1", "u1", "Alice", true))

	signals := hub.all()
	require.Len(t, signals, 1)
	assert.True(t, signals[0].IsTyping)
	assert.Equal(t, "Alice", signals[0].UserName)
}

func TestTypingExpiresAutomatically(t *testing.T) {
	hub := &captureBroadcaster{}
	coord := NewCoordinator(hub, NoopStore{}, 20*time.Millisecond, nil)

	require.NoError(t, coord.Set(context.Background(), "c1", "u1", "Alice", true))

	waitFor(t, func() bool {
		last, ok := hub.last()
		return ok && !last.IsTyping
	})
	last, _ := hub.last()
	assert.Equal(t, "u1", last.UserID)
}

func TestTypingRefreshResetsExpiry(t *testing.T) {
	hub := &captureBroadcaster{}
	coord := NewCoordinator(hub, NoopStore{}, 60*time.Millisecond, nil)

	require.NoError(t, coord.Set(context.Background(), "c1", "u1", "Alice", true))
	time.Sleep(40 * time.Millisecond)
	require.NoError(t, coord.Set(context.Background(), "c1", "u1", "Alice", true))
	time.Sleep(40 * time.Millisecond)

	// The refresh pushed the deadline out, so no expiry has fired yet.
	for _, s := range hub.all() {
		assert.True(t, s.IsTyping)
	}

	waitFor(t, func() bool {
		last, ok := hub.last()
		return ok && !last.IsTyping
	})
}

func TestExplicitClearCancelsTimer(t *testing.T) {
	hub := &captureBroadcaster{}
	coord := NewCoordinator(hub, NoopStore{}, 20*time.Millisecond, nil)

	require.NoError(t, coord.Set(context.Background(), "c1", "u1", "Alice", true))
	require.NoError(t, coord.Set(context.Background(), "c1", "u1", "Alice", false))

	count := len(hub.all())
	time.Sleep(50 * time.Millisecond)
	// No extra expiry broadcast after the explicit clear.
	assert.Equal(t, count, len(hub.all()))
}

func TestStopOnSendOnlyClearsActiveSignal(t *testing.T) {
	hub := &captureBroadcaster{}
	coord := NewCoordinator(hub, NoopStore{}, time.Hour, nil)

	// Nothing active: StopOnSend stays silent.
	coord.StopOnSend(context.Background(), "c1", "u1", "Alice")
	assert.Empty(t, hub.all())

	require.NoError(t, coord.Set(context.Background(), "c1", "u1", "Alice", true))
	coord.StopOnSend(context.Background(), "c1", "u1", "Alice")

	last, ok := hub.last()
	require.True(t, ok)
	assert.False(t, last.IsTyping)
}

func TestDisconnectClearsSignal(t *testing.T) {
	hub := &captureBroadcaster{}
	coord := NewCoordinator(hub, NoopStore{}, time.Hour, nil)

	require.NoError(t, coord.Set(context.Background(), "c1", "u1", "Alice", true))
	coord.Disconnect("c1", "u1", "Alice")

	last, ok := hub.last()
	require.True(t, ok)
	assert.False(t, last.IsTyping)
}

func TestTimersAreIndependentPerUser(t *testing.T) {
	hub := &captureBroadcaster{}
	coord := NewCoordinator(hub, NoopStore{}, 30*time.Millisecond, nil)

	require.NoError(t, coord.Set(context.Background(), "c1", "u1", "Alice", true))
	require.NoError(t, coord.Set(context.Background(), "c1", "u2", "Bob", true))
	require.NoError(t, coord.Set(context.Background(), "c1", "u1", "Alice", false))

	waitFor(t, func() bool {
		for _, s := range hub.all() {
			if s.UserID == "u2" && !s.IsTyping {
				return true
			}
		}
		return false
	})
}
