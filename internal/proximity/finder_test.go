package proximity_test

import (
	"context"
	"testing"

	"travelmate/backend/internal/apperr"
	"travelmate/backend/internal/config"
	"travelmate/backend/internal/geo"
	"travelmate/backend/internal/logger"
	"travelmate/backend/internal/proximity"
	"travelmate/backend/internal/requests"
	"travelmate/backend/internal/rooms"
	"travelmate/backend/internal/storage"
	"travelmate/backend/internal/storage/storagetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFinder(t *testing.T) (*proximity.FinderService, *requests.LedgerService, *storage.Service) {
	t.Helper()
	st := storagetest.New(t)
	ledger := requests.NewLedgerService(st, rooms.NewDirectoryService(st, 10, logger.Discard()), nil, nil, logger.Discard())
	return proximity.NewFinderService(st, ledger, geo.NewSeededFuzzer(11), logger.Discard()), ledger, st
}

func TestFindNearby_ExcludesSelfRequestPeersAndOtherAreas(t *testing.T) {
	finder, ledger, st := newFinder(t)
	ctx := context.Background()

	storagetest.SeedUser(t, st, "me", "Kyiv", "Kyiv")
	storagetest.SeedUser(t, st, "u3", "Kyiv", "Kyiv")
	storagetest.SeedUser(t, st, "u1", "Kyiv", "Kyiv")
	storagetest.SeedUser(t, st, "pending", "Kyiv", "Kyiv")
	storagetest.SeedUser(t, st, "declined", "Kyiv", "Kyiv")
	storagetest.SeedUser(t, st, "incoming", "Kyiv", "Kyiv")
	storagetest.SeedUser(t, st, "elsewhere", "Odesa", "Odesa")

	_, err := ledger.CreateRequest(ctx, "me", "pending", "")
	require.NoError(t, err)
	declined, err := ledger.CreateRequest(ctx, "me", "declined", "")
	require.NoError(t, err)
	_, err = ledger.Respond(ctx, declined.ID, "declined", requests.ActionDecline)
	require.NoError(t, err)
	_, err = ledger.CreateRequest(ctx, "incoming", "me", "")
	require.NoError(t, err)

	found, err := finder.FindNearby(ctx, "me", "Kyiv", "Kyiv")
	require.NoError(t, err)

	var got []string
	for _, u := range found {
		got = append(got, u.ID)
		assert.Nil(t, u.DistanceKm)
	}
	assert.Equal(t, []string{"u1", "u3"}, got)
}

func TestFindNearby_BlankAreaRejected(t *testing.T) {
	finder, _, st := newFinder(t)
	storagetest.SeedUser(t, st, "me", "Kyiv", "Kyiv")

	_, err := finder.FindNearby(context.Background(), "me", " ", "Kyiv")
	assert.True(t, apperr.Is(err, apperr.CodeInvalidInput))

	_, err = finder.FindNearby(context.Background(), "me", "Kyiv", "")
	assert.True(t, apperr.Is(err, apperr.CodeInvalidInput))
}

func TestFindNearby_FuzzedDistanceWhenBothHaveCoordinates(t *testing.T) {
	finder, _, st := newFinder(t)
	ctx := context.Background()

	storagetest.SeedUserAt(t, st, "me", "Kyiv", "Kyiv", 50.4501, 30.5234)
	storagetest.SeedUserAt(t, st, "near", "Kyiv", "Kyiv", 50.4547, 30.5238)
	storagetest.SeedUser(t, st, "nocoords", "Kyiv", "Kyiv")

	found, err := finder.FindNearby(ctx, "me", "Kyiv", "Kyiv")
	require.NoError(t, err)
	require.Len(t, found, 2)

	assert.Equal(t, "near", found[0].ID)
	require.NotNil(t, found[0].DistanceKm)
	trueKm := geo.ComputeDistance(50.4501, 30.5234, 50.4547, 30.5238)
	assert.InDelta(t, trueKm, *found[0].DistanceKm, trueKm*0.5+0.1)

	require.NotNil(t, found[0].Location)
	assert.InDelta(t, 50.4547, found[0].Location.Lat, config.FuzzRadiusDegrees+1e-9)
	assert.InDelta(t, 30.5238, found[0].Location.Lng, config.FuzzRadiusDegrees+1e-9)

	assert.Equal(t, "nocoords", found[1].ID)
	assert.Nil(t, found[1].DistanceKm)
	assert.Nil(t, found[1].Location)

	// Stored coordinates are never altered.
	stored, err := st.GetUserByID(ctx, "near")
	require.NoError(t, err)
	assert.Equal(t, 50.4547, *stored.Latitude)
}

func TestFindNearby_CancelledContext(t *testing.T) {
	finder, _, st := newFinder(t)
	storagetest.SeedUser(t, st, "me", "Kyiv", "Kyiv")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := finder.FindNearby(ctx, "me", "Kyiv", "Kyiv")
	assert.Error(t, err)
}
