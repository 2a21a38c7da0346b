// Package requests owns the connection-request state machine:
// pending -> accepted | declined, at most one request per pair of users.
package requests

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"travelmate/backend/internal/apperr"
	"travelmate/backend/internal/config"
	"travelmate/backend/internal/models"
	"travelmate/backend/internal/storage"

	"github.com/sirupsen/logrus"
)

type Action string

const (
	ActionAccept  Action = "accept"
	ActionDecline Action = "decline"
)

// RoomMaterializer creates the direct room of an accepted pair inside the
// accepting transaction.
type RoomMaterializer interface {
	GetOrCreateDirectIn(ctx context.Context, tx storage.Storage, a, b string) (string, error)
}

// Notifier delivers an event to a user after the change is committed.
type Notifier interface {
	Dispatch(userID string, event models.RealtimeEvent)
}

// RequestCounter adjusts the live pending-request badge.
type RequestCounter interface {
	IncrementRequests(ctx context.Context, userID string) error
	DecrementRequests(ctx context.Context, userID string) error
}

type LedgerService struct {
	storage  storage.Storage
	rooms    RoomMaterializer
	notifier Notifier
	counters RequestCounter
	log      *logrus.Logger
	now      func() time.Time
}

func NewLedgerService(s storage.Storage, rooms RoomMaterializer, notifier Notifier, counters RequestCounter, log *logrus.Logger) *LedgerService {
	return &LedgerService{
		storage:  s,
		rooms:    rooms,
		notifier: notifier,
		counters: counters,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateRequest records a pending request from sender to receiver.
func (l *LedgerService) CreateRequest(ctx context.Context, senderID, receiverID, message string) (*models.ConnectionRequest, error) {
	senderID = strings.TrimSpace(senderID)
	receiverID = strings.TrimSpace(receiverID)
	switch {
	case senderID == "" || receiverID == "":
		return nil, apperr.InvalidInput("sender and receiver are required")
	case senderID == receiverID:
		return nil, apperr.InvalidInput("cannot send a request to yourself")
	case utf8.RuneCountInString(message) > config.MaxRequestMessageLength:
		return nil, apperr.InvalidInput("request message is too long")
	}

	fields := logrus.Fields{"sender_id": senderID, "receiver_id": receiverID}
	var created *models.ConnectionRequest

	err := l.storage.Transaction(ctx, func(tx storage.Storage) error {
		if _, err := tx.GetUserByID(ctx, receiverID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return apperr.InvalidInput("receiver does not exist")
			}
			return apperr.Internal("look up receiver", err)
		}

		_, err := tx.FindRequestBetween(ctx, senderID, receiverID)
		if err == nil {
			return apperr.Conflict("a request between these users already exists")
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return apperr.Internal("check existing request", err)
		}

		req := &models.ConnectionRequest{
			SenderID:   senderID,
			ReceiverID: receiverID,
			Status:     models.RequestPending,
			Message:    message,
			CreatedAt:  l.now(),
		}
		if err := tx.CreateRequest(ctx, req); err != nil {
			if errors.Is(err, storage.ErrDuplicate) {
				return apperr.Conflict("a request between these users already exists")
			}
			return apperr.Internal("create request", err)
		}
		created = req
		return nil
	})
	if err != nil {
		l.logFailure(err, "create request", fields)
		return nil, err
	}

	l.log.WithFields(fields).WithField("request_id", created.ID).Info("requests: request created")

	if l.counters != nil {
		_ = l.counters.IncrementRequests(ctx, receiverID)
	}
	if l.notifier != nil {
		l.notifier.Dispatch(receiverID, models.RealtimeEvent{
			Type:      models.EventRequestReceived,
			RequestID: created.ID,
			SenderID:  senderID,
		})
	}
	return created, nil
}

// Respond accepts or declines a pending request. Accepting materializes the
// direct room in the same transaction and returns its id.
func (l *LedgerService) Respond(ctx context.Context, requestID, responderID string, action Action) (string, error) {
	var target models.RequestStatus
	switch action {
	case ActionAccept:
		target = models.RequestAccepted
	case ActionDecline:
		target = models.RequestDeclined
	default:
		return "", apperr.InvalidInput("action must be accept or decline")
	}

	fields := logrus.Fields{"request_id": requestID, "responder_id": responderID, "action": action}
	var req *models.ConnectionRequest
	var roomID string

	err := l.storage.Transaction(ctx, func(tx storage.Storage) error {
		var err error
		req, err = tx.GetRequestByID(ctx, requestID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return apperr.NotFound("request not found")
			}
			return apperr.Internal("load request", err)
		}
		if req.ReceiverID != responderID {
			return apperr.Forbidden("only the receiver can respond to a request")
		}
		if req.Status != models.RequestPending {
			return apperr.InvalidState("request was already answered")
		}

		changed, err := tx.TransitionRequest(ctx, requestID, models.RequestPending, target, l.now())
		if err != nil {
			return apperr.Internal("update request", err)
		}
		if !changed {
			return apperr.InvalidState("request was already answered")
		}

		if target == models.RequestAccepted {
			roomID, err = l.rooms.GetOrCreateDirectIn(ctx, tx, req.SenderID, req.ReceiverID)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		l.logFailure(err, "respond to request", fields)
		return "", err
	}

	l.log.WithFields(fields).WithField("room_id", roomID).Info("requests: request answered")

	if l.counters != nil {
		_ = l.counters.DecrementRequests(ctx, req.ReceiverID)
	}
	if target == models.RequestAccepted && l.notifier != nil {
		l.notifier.Dispatch(req.SenderID, models.RealtimeEvent{
			Type:      models.EventRequestAccepted,
			RequestID: req.ID,
			RoomID:    roomID,
			SenderID:  req.ReceiverID,
		})
	}
	return roomID, nil
}

// ExcludedPeers returns every user that shares a request with userID, whatever
// its status. Such users are hidden from discovery and cannot be re-requested.
func (l *LedgerService) ExcludedPeers(ctx context.Context, userID string) (map[string]struct{}, error) {
	peers, err := l.storage.ListPeerIDs(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("list peers", err)
	}
	excluded := make(map[string]struct{}, len(peers))
	for _, id := range peers {
		excluded[id] = struct{}{}
	}
	return excluded, nil
}

// ListReceived returns pending requests addressed to the user, newest first.
func (l *LedgerService) ListReceived(ctx context.Context, userID string) ([]models.RequestView, error) {
	reqs, err := l.storage.ListRequestsReceived(ctx, userID, models.RequestPending)
	if err != nil {
		return nil, apperr.Internal("list received requests", err)
	}
	return l.withCounterparts(ctx, userID, reqs)
}

// ListSent returns every request the user sent, newest first.
func (l *LedgerService) ListSent(ctx context.Context, userID string) ([]models.RequestView, error) {
	reqs, err := l.storage.ListRequestsSent(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("list sent requests", err)
	}
	return l.withCounterparts(ctx, userID, reqs)
}

func (l *LedgerService) withCounterparts(ctx context.Context, userID string, reqs []models.ConnectionRequest) ([]models.RequestView, error) {
	ids := make([]string, 0, len(reqs))
	for i := range reqs {
		ids = append(ids, reqs[i].Counterpart(userID))
	}
	users, err := l.storage.GetUsersByIDs(ctx, ids)
	if err != nil {
		return nil, apperr.Internal("load profiles", err)
	}

	views := make([]models.RequestView, 0, len(reqs))
	for i := range reqs {
		view := models.RequestView{ConnectionRequest: reqs[i]}
		other := reqs[i].Counterpart(userID)
		if u, ok := users[other]; ok {
			view.Counterpart = u.Summary()
		} else {
			view.Counterpart = models.UserSummary{ID: other}
		}
		views = append(views, view)
	}
	return views, nil
}

func (l *LedgerService) logFailure(err error, op string, fields logrus.Fields) {
	entry := l.log.WithFields(fields).WithError(err)
	if apperr.CodeOf(err) == apperr.CodeInternal {
		entry.Errorf("requests: %s failed", op)
		return
	}
	entry.Debugf("requests: %s rejected", op)
}
