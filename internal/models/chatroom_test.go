package models_test

import (
	"testing"
	"time"

	"travelmate/backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRoom_Direct(t *testing.T) {
	key := models.PairKey("a", "b")
	row := &models.ChatRoom{ID: "r1", Type: models.RoomDirect, DirectKey: &key}

	room := models.NewRoom(row, []string{"a", "b"}, 10)

	direct, ok := room.(models.DirectRoom)
	require.True(t, ok)
	assert.Equal(t, "b", direct.Other("a"))
	assert.True(t, direct.HasMember("a"))
	assert.False(t, direct.HasMember("c"))

	summary := models.Summarize(row, room, 3)
	assert.Equal(t, 2, summary.Capacity)
	assert.Empty(t, summary.HostID)
	assert.Equal(t, int64(3), summary.UnreadCount)
}

func TestNewRoom_GatheringFallsBackToDefaultCapacity(t *testing.T) {
	host := "h"
	row := &models.ChatRoom{
		ID:              "g1",
		Type:            models.RoomGathering,
		HostID:          &host,
		RoomName:        "Hikers",
		LastMessageTime: time.Now(),
	}

	room := models.NewRoom(row, []string{"h", "x"}, 2)

	gathering, ok := room.(models.GatheringRoom)
	require.True(t, ok)
	assert.True(t, gathering.IsHost("h"))
	assert.True(t, gathering.IsFull())

	summary := models.Summarize(row, room, 0)
	assert.Equal(t, "h", summary.HostID)
	assert.Equal(t, 2, summary.Capacity)
	assert.Equal(t, "Hikers", summary.RoomName)
}
