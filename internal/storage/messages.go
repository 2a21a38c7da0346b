package storage

import (
	"context"
	"time"

	"travelmate/backend/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func (s *Service) SaveMessage(ctx context.Context, msg *models.Message) error {
	err := translate(s.db(ctx).Create(msg).Error)
	s.logError(err, "save message", logrus.Fields{"room_id": msg.ChatRoomID, "sender_id": msg.SenderID})
	return err
}

// ListMessages returns up to limit messages of a room sent strictly before
// `before` (or the newest ones when before is nil), newest first.
func (s *Service) ListMessages(ctx context.Context, roomID string, before *time.Time, limit int) ([]models.Message, error) {
	q := s.db(ctx).Where("chat_room_id = ?", roomID)
	if before != nil {
		q = q.Where("sent_at < ?", before.UTC())
	}
	var msgs []models.Message
	if err := q.Order("sent_at DESC").Limit(limit).Find(&msgs).Error; err != nil {
		s.logError(err, "list messages", logrus.Fields{"room_id": roomID})
		return nil, err
	}
	return msgs, nil
}

// CountUnread counts, per room, messages from other members newer than the
// user's read cursor. Rooms without a cursor count every message from others.
// Rooms with nothing unread are absent from the result.
func (s *Service) CountUnread(ctx context.Context, userID string, roomIDs []string) (map[string]int64, error) {
	result := make(map[string]int64, len(roomIDs))
	if len(roomIDs) == 0 {
		return result, nil
	}

	var rows []struct {
		ChatRoomID string
		Unread     int64
	}
	err := s.db(ctx).
		Table("messages AS m").
		Select("m.chat_room_id AS chat_room_id, COUNT(*) AS unread").
		Joins("LEFT JOIN read_cursors rc ON rc.chat_room_id = m.chat_room_id AND rc.user_id = ?", userID).
		Where("m.chat_room_id IN ? AND m.sender_id <> ?", roomIDs, userID).
		Where("rc.last_read_at IS NULL OR m.sent_at > rc.last_read_at").
		Group("m.chat_room_id").
		Scan(&rows).Error
	if err != nil {
		s.logError(err, "count unread", logrus.Fields{"user_id": userID, "rooms": len(roomIDs)})
		return nil, err
	}
	for _, row := range rows {
		result[row.ChatRoomID] = row.Unread
	}
	return result, nil
}

func (s *Service) GetReadCursor(ctx context.Context, roomID, userID string) (*models.ReadCursor, error) {
	var cursor models.ReadCursor
	err := s.db(ctx).Where("chat_room_id = ? AND user_id = ?", roomID, userID).First(&cursor).Error
	if err != nil {
		err = translate(err)
		s.logError(err, "get read cursor", logrus.Fields{"room_id": roomID, "user_id": userID})
		return nil, err
	}
	return &cursor, nil
}

// AdvanceReadCursor moves the cursor to at, creating it if needed. A cursor
// already past at is left untouched.
func (s *Service) AdvanceReadCursor(ctx context.Context, roomID, userID string, at time.Time) error {
	cursor := models.ReadCursor{ChatRoomID: roomID, UserID: userID, LastReadAt: at.UTC()}
	err := s.db(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "chat_room_id"}, {Name: "user_id"}},
		DoUpdates: clause.Set{{
			Column: clause.Column{Name: "last_read_at"},
			Value: gorm.Expr("CASE WHEN excluded.last_read_at > read_cursors.last_read_at " +
				"THEN excluded.last_read_at ELSE read_cursors.last_read_at END"),
		}},
	}).Create(&cursor).Error
	s.logError(err, "advance read cursor", logrus.Fields{"room_id": roomID, "user_id": userID})
	return err
}

// MarkMessagesRead flags messages from others sent up to upTo as read.
func (s *Service) MarkMessagesRead(ctx context.Context, roomID, userID string, upTo time.Time) (int64, error) {
	result := s.db(ctx).Model(&models.Message{}).
		Where("chat_room_id = ? AND sender_id <> ? AND read = ? AND sent_at <= ?", roomID, userID, false, upTo.UTC()).
		Update("read", true)
	if result.Error != nil {
		s.logError(result.Error, "mark messages read", logrus.Fields{"room_id": roomID, "user_id": userID})
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
