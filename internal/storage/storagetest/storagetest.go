// Package storagetest opens throwaway SQLite databases for service tests.
package storagetest

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"travelmate/backend/internal/logger"
	"travelmate/backend/internal/models"
	"travelmate/backend/internal/storage"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var dbSeq atomic.Int64

// New returns a migrated storage service over a private in-memory database.
// A single connection serializes transactions the way row locks would.
func New(t testing.TB) *storage.Service {
	t.Helper()

	dsn := fmt.Sprintf("file:travelmate_%d_%d?mode=memory&cache=shared&_busy_timeout=5000", time.Now().UnixNano(), dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	svc := storage.NewStorageService(db, logger.Discard())
	require.NoError(t, svc.Migrate())
	return svc
}

// SeedUser stores a user with the given id in city/region and returns it.
func SeedUser(t testing.TB, st storage.Storage, id, city, region string) *models.User {
	t.Helper()
	user := &models.User{ID: id, DisplayName: "user " + id, City: city, Region: region, Language: "en"}
	require.NoError(t, st.SaveUser(context.Background(), user))
	return user
}

// SeedUserAt stores a user with coordinates.
func SeedUserAt(t testing.TB, st storage.Storage, id, city, region string, lat, lng float64) *models.User {
	t.Helper()
	user := &models.User{
		ID:          id,
		DisplayName: "user " + id,
		City:        city,
		Region:      region,
		Latitude:    &lat,
		Longitude:   &lng,
		Language:    "en",
	}
	require.NoError(t, st.SaveUser(context.Background(), user))
	return user
}
