package unread_test

import (
	"context"
	"testing"
	"time"

	"travelmate/backend/internal/logger"
	"travelmate/backend/internal/models"
	"travelmate/backend/internal/storage"
	"travelmate/backend/internal/storage/storagetest"
	"travelmate/backend/internal/unread"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedDirectRoomWithMessages(t *testing.T, st storage.Storage, roomID, a, b string, fromA int) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	key := models.PairKey(a, b)
	_, err := st.CreateRoom(ctx, &models.ChatRoom{ID: roomID, Type: models.RoomDirect, DirectKey: &key, Capacity: 2, CreatedAt: now, LastMessageTime: now}, []string{a, b})
	require.NoError(t, err)
	for i := 0; i < fromA; i++ {
		msg := &models.Message{ID: roomID + "-" + string(rune('a'+i)), ChatRoomID: roomID, SenderID: a, Content: "hey", SentAt: now.Add(time.Duration(i+1) * time.Microsecond)}
		require.NoError(t, st.SaveMessage(ctx, msg))
	}
}

func TestAggregator_TotalsFromDurableState(t *testing.T) {
	ctx := context.Background()
	st := storagetest.New(t)
	agg := unread.NewAggregatorService(st, unread.NewMemoryCounterStore(), logger.Discard())

	seedDirectRoomWithMessages(t, st, "r1", "a", "me", 2)
	seedDirectRoomWithMessages(t, st, "r2", "b", "me", 3)

	// Gathering messages do not count towards the badge.
	host := "c"
	now := time.Now().UTC()
	_, err := st.CreateRoom(ctx, &models.ChatRoom{ID: "g1", Type: models.RoomGathering, HostID: &host, Capacity: 5, CreatedAt: now, LastMessageTime: now}, []string{"c", "me"})
	require.NoError(t, err)
	require.NoError(t, st.SaveMessage(ctx, &models.Message{ID: "g-1", ChatRoomID: "g1", SenderID: "c", Content: "all", SentAt: now}))

	require.NoError(t, st.CreateRequest(ctx, &models.ConnectionRequest{SenderID: "d", ReceiverID: "me", Status: models.RequestPending, CreatedAt: now}))
	require.NoError(t, st.CreateRequest(ctx, &models.ConnectionRequest{SenderID: "me", ReceiverID: "e", Status: models.RequestPending, CreatedAt: now}))

	total, err := agg.TotalUnreadMessages(ctx, "me")
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)

	pending, err := agg.PendingRequestCount(ctx, "me")
	require.NoError(t, err)
	assert.Equal(t, int64(1), pending)
}

func TestAggregator_SnapshotReconcilesWhenUnseeded(t *testing.T) {
	ctx := context.Background()
	st := storagetest.New(t)
	agg := unread.NewAggregatorService(st, unread.NewMemoryCounterStore(), logger.Discard())
	seedDirectRoomWithMessages(t, st, "r1", "a", "me", 2)

	counters, err := agg.Snapshot(ctx, "me")
	require.NoError(t, err)
	assert.Equal(t, int64(2), counters.UnreadMessages)

	require.NoError(t, agg.IncrementMessages(ctx, "me"))
	require.NoError(t, agg.IncrementRequests(ctx, "me"))
	require.NoError(t, agg.DecrementMessagesBy(ctx, "me", 10))

	counters, err = agg.Snapshot(ctx, "me")
	require.NoError(t, err)
	assert.Equal(t, models.Counters{UnreadMessages: 0, PendingRequests: 1}, counters)

	// Reconcile restores the authoritative values.
	counters, err = agg.Reconcile(ctx, "me")
	require.NoError(t, err)
	assert.Equal(t, models.Counters{UnreadMessages: 2, PendingRequests: 0}, counters)
}

func TestAggregator_DecrementRequestsNeverGoesNegative(t *testing.T) {
	ctx := context.Background()
	agg := unread.NewAggregatorService(storagetest.New(t), unread.NewMemoryCounterStore(), logger.Discard())

	require.NoError(t, agg.Seed(ctx, "me", models.Counters{}))
	require.NoError(t, agg.DecrementRequests(ctx, "me"))

	counters, err := agg.Snapshot(ctx, "me")
	require.NoError(t, err)
	assert.Equal(t, int64(0), counters.PendingRequests)
}
