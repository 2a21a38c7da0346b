package storage

import (
	"context"
	"time"

	"travelmate/backend/internal/models"

	"github.com/sirupsen/logrus"
)

// CreateRequest inserts a request. A second request for the same pair yields ErrDuplicate.
func (s *Service) CreateRequest(ctx context.Context, req *models.ConnectionRequest) error {
	err := translate(s.db(ctx).Create(req).Error)
	s.logError(err, "create request", logrus.Fields{"sender_id": req.SenderID, "receiver_id": req.ReceiverID})
	return err
}

func (s *Service) GetRequestByID(ctx context.Context, id string) (*models.ConnectionRequest, error) {
	var req models.ConnectionRequest
	if err := s.db(ctx).Where("id = ?", id).First(&req).Error; err != nil {
		err = translate(err)
		s.logError(err, "get request", logrus.Fields{"request_id": id})
		return nil, err
	}
	return &req, nil
}

// FindRequestBetween looks a request up by pair key, in either direction.
func (s *Service) FindRequestBetween(ctx context.Context, a, b string) (*models.ConnectionRequest, error) {
	var req models.ConnectionRequest
	if err := s.db(ctx).Where("pair_key = ?", models.PairKey(a, b)).First(&req).Error; err != nil {
		err = translate(err)
		s.logError(err, "find request between", logrus.Fields{"user_a": a, "user_b": b})
		return nil, err
	}
	return &req, nil
}

// TransitionRequest moves a request from one status to another only if it is
// still in the expected status. It reports whether the row changed.
func (s *Service) TransitionRequest(ctx context.Context, id string, from, to models.RequestStatus, at time.Time) (bool, error) {
	result := s.db(ctx).Model(&models.ConnectionRequest{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{
			"status":       to,
			"responded_at": at,
		})
	if result.Error != nil {
		s.logError(result.Error, "transition request", logrus.Fields{"request_id": id, "to": to})
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// ListPeerIDs returns every user that shares a request with userID, any status.
func (s *Service) ListPeerIDs(ctx context.Context, userID string) ([]string, error) {
	var rows []models.ConnectionRequest
	err := s.db(ctx).
		Select("sender_id", "receiver_id").
		Where("sender_id = ? OR receiver_id = ?", userID, userID).
		Find(&rows).Error
	if err != nil {
		s.logError(err, "list peers", logrus.Fields{"user_id": userID})
		return nil, err
	}
	peers := make([]string, 0, len(rows))
	for i := range rows {
		peers = append(peers, rows[i].Counterpart(userID))
	}
	return peers, nil
}

func (s *Service) ListRequestsReceived(ctx context.Context, userID string, status models.RequestStatus) ([]models.ConnectionRequest, error) {
	var reqs []models.ConnectionRequest
	err := s.db(ctx).
		Where("receiver_id = ? AND status = ?", userID, status).
		Order("created_at DESC, id DESC").
		Find(&reqs).Error
	if err != nil {
		s.logError(err, "list received requests", logrus.Fields{"user_id": userID})
		return nil, err
	}
	return reqs, nil
}

func (s *Service) ListRequestsSent(ctx context.Context, userID string) ([]models.ConnectionRequest, error) {
	var reqs []models.ConnectionRequest
	err := s.db(ctx).
		Where("sender_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&reqs).Error
	if err != nil {
		s.logError(err, "list sent requests", logrus.Fields{"user_id": userID})
		return nil, err
	}
	return reqs, nil
}

func (s *Service) CountPendingRequests(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := s.db(ctx).Model(&models.ConnectionRequest{}).
		Where("receiver_id = ? AND status = ?", userID, models.RequestPending).
		Count(&count).Error
	if err != nil {
		s.logError(err, "count pending requests", logrus.Fields{"user_id": userID})
		return 0, err
	}
	return count, nil
}
