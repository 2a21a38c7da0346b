// Package unread derives a user's badge counters from durable state and keeps
// a live copy of them that message and request flows adjust incrementally.
package unread

import (
	"context"

	"travelmate/backend/internal/apperr"
	"travelmate/backend/internal/models"
	"travelmate/backend/internal/storage"

	"github.com/sirupsen/logrus"
)

type AggregatorService struct {
	storage storage.Storage
	store   CounterStore
	log     *logrus.Logger
}

func NewAggregatorService(s storage.Storage, store CounterStore, log *logrus.Logger) *AggregatorService {
	return &AggregatorService{storage: s, store: store, log: log}
}

// TotalUnreadMessages sums unread messages over the user's direct rooms.
func (a *AggregatorService) TotalUnreadMessages(ctx context.Context, userID string) (int64, error) {
	rooms, err := a.storage.ListRoomsForUser(ctx, userID, models.RoomDirect)
	if err != nil {
		return 0, apperr.Internal("list rooms", err)
	}
	if len(rooms) == 0 {
		return 0, nil
	}

	ids := make([]string, 0, len(rooms))
	for _, r := range rooms {
		ids = append(ids, r.ID)
	}
	counts, err := a.storage.CountUnread(ctx, userID, ids)
	if err != nil {
		return 0, apperr.Internal("count unread", err)
	}

	var total int64
	for _, n := range counts {
		total += n
	}
	return total, nil
}

// PendingRequestCount counts pending requests addressed to the user.
func (a *AggregatorService) PendingRequestCount(ctx context.Context, userID string) (int64, error) {
	n, err := a.storage.CountPendingRequests(ctx, userID)
	if err != nil {
		return 0, apperr.Internal("count pending requests", err)
	}
	return n, nil
}

// Seed overwrites the live counters of a user.
func (a *AggregatorService) Seed(ctx context.Context, userID string, counters models.Counters) error {
	if err := a.store.Set(ctx, userID, counters); err != nil {
		a.log.WithError(err).WithField("user_id", userID).Error("unread: seed counters failed")
		return apperr.Internal("seed counters", err)
	}
	return nil
}

// Reconcile recomputes both counters from durable state and re-seeds them.
func (a *AggregatorService) Reconcile(ctx context.Context, userID string) (models.Counters, error) {
	messages, err := a.TotalUnreadMessages(ctx, userID)
	if err != nil {
		return models.Counters{}, err
	}
	requests, err := a.PendingRequestCount(ctx, userID)
	if err != nil {
		return models.Counters{}, err
	}

	counters := models.Counters{UnreadMessages: messages, PendingRequests: requests}
	if err := a.Seed(ctx, userID, counters); err != nil {
		return models.Counters{}, err
	}
	a.log.WithFields(logrus.Fields{
		"user_id":          userID,
		"unread_messages":  messages,
		"pending_requests": requests,
	}).Debug("unread: counters reconciled")
	return counters, nil
}

// Snapshot returns the live counters, reconciling first if none are seeded.
func (a *AggregatorService) Snapshot(ctx context.Context, userID string) (models.Counters, error) {
	counters, ok, err := a.store.Get(ctx, userID)
	if err != nil {
		a.log.WithError(err).WithField("user_id", userID).Warn("unread: read counters failed, reconciling")
	}
	if err != nil || !ok {
		return a.Reconcile(ctx, userID)
	}
	return counters, nil
}

func (a *AggregatorService) IncrementMessages(ctx context.Context, userID string) error {
	return a.adjust(ctx, userID, KindMessages, 1)
}

func (a *AggregatorService) DecrementMessagesBy(ctx context.Context, userID string, n int64) error {
	if n <= 0 {
		return nil
	}
	return a.adjust(ctx, userID, KindMessages, -n)
}

func (a *AggregatorService) IncrementRequests(ctx context.Context, userID string) error {
	return a.adjust(ctx, userID, KindRequests, 1)
}

func (a *AggregatorService) DecrementRequests(ctx context.Context, userID string) error {
	return a.adjust(ctx, userID, KindRequests, -1)
}

func (a *AggregatorService) adjust(ctx context.Context, userID string, kind Kind, delta int64) error {
	var err error
	if delta < 0 {
		err = a.store.SubClamped(ctx, userID, kind, -delta)
	} else {
		err = a.store.Add(ctx, userID, kind, delta)
	}
	if err != nil {
		a.log.WithError(err).WithFields(logrus.Fields{"user_id": userID, "kind": kind, "delta": delta}).
			Error("unread: adjust counter failed")
		return apperr.Internal("adjust counter", err)
	}
	return nil
}
