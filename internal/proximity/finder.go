// Package proximity lists travelers in the same area who can still be sent a request.
package proximity

import (
	"context"
	"errors"
	"strings"

	"travelmate/backend/internal/apperr"
	"travelmate/backend/internal/geo"
	"travelmate/backend/internal/models"
	"travelmate/backend/internal/storage"

	"github.com/sirupsen/logrus"
)

// PeerExcluder returns users that must not be offered to userID.
type PeerExcluder interface {
	ExcludedPeers(ctx context.Context, userID string) (map[string]struct{}, error)
}

// DistanceFuzzer blurs a true position or distance before it is shown.
type DistanceFuzzer interface {
	Fuzzy(lat, lng float64) (float64, float64)
	AddDistanceError(km float64) float64
}

type FinderService struct {
	storage  storage.Storage
	excluder PeerExcluder
	fuzzer   DistanceFuzzer
	log      *logrus.Logger
}

func NewFinderService(s storage.Storage, excluder PeerExcluder, fuzzer DistanceFuzzer, log *logrus.Logger) *FinderService {
	return &FinderService{storage: s, excluder: excluder, fuzzer: fuzzer, log: log}
}

// FindNearby returns users sharing city and region with userID, minus the
// user and anyone already linked by a request, ordered by id. A peer with
// coordinates gets a fuzzed location, and a fuzzed distance when the viewer
// has coordinates too.
func (f *FinderService) FindNearby(ctx context.Context, userID, city, region string) ([]models.UserSummary, error) {
	city = strings.TrimSpace(city)
	region = strings.TrimSpace(region)
	if city == "" || region == "" {
		return nil, apperr.InvalidInput("city and region are required")
	}
	if err := ctx.Err(); err != nil {
		return nil, apperr.Internal("find nearby", err)
	}

	viewer, err := f.storage.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.NotFound("user not found")
		}
		return nil, apperr.Internal("load user", err)
	}

	excluded, err := f.excluder.ExcludedPeers(ctx, userID)
	if err != nil {
		return nil, err
	}

	candidates, err := f.storage.FindUsersByArea(ctx, city, region, userID)
	if err != nil {
		return nil, apperr.Internal("find users by area", err)
	}

	nearby := make([]models.UserSummary, 0, len(candidates))
	for i := range candidates {
		c := &candidates[i]
		if _, skip := excluded[c.ID]; skip {
			continue
		}
		summary := c.Summary()
		if c.HasLocation() {
			lat, lng := f.fuzzer.Fuzzy(*c.Latitude, *c.Longitude)
			summary.Location = &models.Point{Lat: lat, Lng: lng}
		}
		if viewer.HasLocation() && c.HasLocation() {
			km := geo.ComputeDistance(*viewer.Latitude, *viewer.Longitude, *c.Latitude, *c.Longitude)
			fuzzed := f.fuzzer.AddDistanceError(km)
			summary.DistanceKm = &fuzzed
		}
		nearby = append(nearby, summary)
	}

	f.log.WithFields(logrus.Fields{
		"user_id":  userID,
		"city":     city,
		"region":   region,
		"found":    len(nearby),
		"excluded": len(excluded),
	}).Debug("proximity: nearby lookup")
	return nearby, nil
}
