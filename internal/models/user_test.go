package models_test

import (
	"reflect"
	"testing"

	"travelmate/backend/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

// TestUserBeforeCreate_GeneratesUUID verifies that the BeforeCreate hook generates a valid UUID.
func TestUserBeforeCreate_GeneratesUUID(t *testing.T) {
	user := &models.User{DisplayName: "Olena", City: "Lviv", Region: "Lviv Oblast"}
	assert.Empty(t, user.ID)

	err := user.BeforeCreate(nil)

	assert.NoError(t, err)
	parsed, parseErr := uuid.Parse(user.ID)
	assert.NoError(t, parseErr)
	assert.NotEqual(t, uuid.Nil, parsed)
}

func TestUserBeforeCreate_PreservesExistingID(t *testing.T) {
	existingID := uuid.New().String()
	user := &models.User{ID: existingID}

	assert.NoError(t, user.BeforeCreate(nil))
	assert.Equal(t, existingID, user.ID)
}

func TestUserSummary_HidesCoordinates(t *testing.T) {
	lat, lng := 49.84, 24.03
	user := &models.User{ID: "u1", DisplayName: "Taras", City: "Lviv", Region: "West", Latitude: &lat, Longitude: &lng}

	summary := user.Summary()

	assert.True(t, user.HasLocation())
	assert.Equal(t, "u1", summary.ID)
	assert.Nil(t, summary.DistanceKm)

	// Coordinates must never be serialized.
	latField, _ := reflect.TypeOf(models.User{}).FieldByName("Latitude")
	assert.Equal(t, "-", latField.Tag.Get("json"))
}

func TestPairKey_IsDirectionIndependent(t *testing.T) {
	assert.Equal(t, models.PairKey("a", "b"), models.PairKey("b", "a"))
	assert.Equal(t, "a:b", models.PairKey("b", "a"))
}

func TestConnectionRequestBeforeCreate_SetsPairKey(t *testing.T) {
	req := &models.ConnectionRequest{SenderID: "zed", ReceiverID: "amy"}

	assert.NoError(t, req.BeforeCreate(nil))
	assert.NotEmpty(t, req.ID)
	assert.Equal(t, "amy:zed", req.PairKey)
	assert.Equal(t, "amy", req.Counterpart("zed"))
	assert.Equal(t, "zed", req.Counterpart("amy"))
}
