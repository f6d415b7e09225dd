package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimelineOrdersByCreatedAt(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tl := NewTimeline(nil)
	tl.Apply(Message{ID: 2, PublicID: "m2", CreatedAt: base.Add(2 * time.Second)})
	tl.Apply(Message{ID: 1, PublicID: "m1", CreatedAt: base})
	tl.Apply(Message{ID: 3, PublicID: "m3", CreatedAt: base.Add(time.Second)})

	msgs := tl.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "m1", msgs[0].PublicID)
	assert.Equal(t, "m3", msgs[1].PublicID)
	assert.Equal(t, "m2", msgs[2].PublicID)
}

func TestTimelineTieBreaksOnInsertionKey(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tl := NewTimeline(nil)
	tl.Apply(Message{ID: 9, PublicID: "m9", CreatedAt: at})
	tl.Apply(Message{ID: 4, PublicID: "m4", CreatedAt: at})

	msgs := tl.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "m4", msgs[0].PublicID)
	assert.Equal(t, "m9", msgs[1].PublicID)
}

func TestTimelineReplacesKnownID(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tl := NewTimeline([]Message{{ID: 1, PublicID: "m1", Content: "hello", CreatedAt: at}})
	tl.Apply(Message{ID: 1, PublicID: "m1", Content: "edited", CreatedAt: at})

	msgs := tl.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "edited", msgs[0].Content)
}

func TestTimelineConfirmsOptimisticEntryByClientKey(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tl := NewTimeline(nil)
	// Optimistic local insert: no server id yet.
	tl.Apply(Message{PublicID: "local-1", ClientKey: "ck-1", Content: "hi", Status: StatusSending, CreatedAt: at})
	// Server echo carries the durable id and the same client key.
	tl.Apply(Message{ID: 5, PublicID: "m5", ClientKey: "ck-1", Content: "hi", Status: StatusSent, CreatedAt: at})

	msgs := tl.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "m5", msgs[0].PublicID)
	assert.Equal(t, StatusSent, msgs[0].Status)
}

func TestTimelineDistinctClientKeysDoNotCollapse(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tl := NewTimeline(nil)
	tl.Apply(Message{ID: 1, PublicID: "m1", ClientKey: "ck-1", CreatedAt: at})
	tl.Apply(Message{ID: 2, PublicID: "m2", ClientKey: "ck-2", CreatedAt: at.Add(time.Second)})

	assert.Equal(t, 2, tl.Len())
}

func TestDirectKeyIsOrderInsensitive(t *testing.T) {
	assert.Equal(t, DirectKey("u1", "u2"), DirectKey("u2", "u1"))
	assert.Equal(t, "u1:u2", DirectKey("u2", "u1"))
}

func TestStatusRankOrdering(t *testing.T) {
	assert.Less(t, StatusSending.Rank(), StatusSent.Rank())
	assert.Less(t, StatusSent.Rank(), StatusDelivered.Rank())
	assert.Less(t, StatusDelivered.Rank(), StatusRead.Rank())
}

func TestStatusesBefore(t *testing.T) {
	assert.ElementsMatch(t, []string{"sending", "sent"}, StatusesBefore(StatusDelivered))
	assert.ElementsMatch(t, []string{"sending", "sent", "delivered"}, StatusesBefore(StatusRead))
}
