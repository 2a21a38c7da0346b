package storage

import (
	"context"
	"time"

	"travelmate/backend/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreateRoom inserts a room and its initial members. The insert is skipped
// when a room with the same direct key already exists, in which case it
// reports false and adds no members.
func (s *Service) CreateRoom(ctx context.Context, room *models.ChatRoom, participantIDs []string) (bool, error) {
	created := false
	err := s.db(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "direct_key"}},
			DoNothing: true,
		}).Create(room)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}
		created = true

		members := make([]models.RoomParticipant, 0, len(participantIDs))
		for _, id := range participantIDs {
			members = append(members, models.RoomParticipant{ChatRoomID: room.ID, UserID: id, JoinedAt: room.CreatedAt})
		}
		if len(members) == 0 {
			return nil
		}
		return tx.Create(&members).Error
	})
	if err != nil {
		err = translate(err)
		s.logError(err, "create room", logrus.Fields{"room_id": room.ID, "type": room.Type})
		return false, err
	}
	return created, nil
}

func (s *Service) GetRoomByID(ctx context.Context, id string) (*models.ChatRoom, error) {
	return s.findRoom(s.db(ctx), "get room", "id = ?", id)
}

// LockRoom reads a room holding a row lock until the surrounding transaction ends.
// SQLite has no row locks; its writers are already serialized.
func (s *Service) LockRoom(ctx context.Context, id string) (*models.ChatRoom, error) {
	q := s.db(ctx)
	if s.isPostgres() {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return s.findRoom(q, "lock room", "id = ?", id)
}

func (s *Service) FindDirectRoom(ctx context.Context, directKey string) (*models.ChatRoom, error) {
	return s.findRoom(s.db(ctx), "find direct room", "direct_key = ?", directKey)
}

func (s *Service) findRoom(q *gorm.DB, op string, query string, arg string) (*models.ChatRoom, error) {
	var room models.ChatRoom
	if err := q.Where(query, arg).First(&room).Error; err != nil {
		err = translate(err)
		s.logError(err, op, logrus.Fields{"key": arg})
		return nil, err
	}
	return &room, nil
}

// ListParticipantIDs returns the members of a room in join order.
func (s *Service) ListParticipantIDs(ctx context.Context, roomID string) ([]string, error) {
	var ids []string
	err := s.db(ctx).Model(&models.RoomParticipant{}).
		Where("chat_room_id = ?", roomID).
		Order("joined_at ASC, user_id ASC").
		Pluck("user_id", &ids).Error
	if err != nil {
		s.logError(err, "list participants", logrus.Fields{"room_id": roomID})
		return nil, err
	}
	return ids, nil
}

func (s *Service) ListParticipantsForRooms(ctx context.Context, roomIDs []string) (map[string][]string, error) {
	result := make(map[string][]string, len(roomIDs))
	if len(roomIDs) == 0 {
		return result, nil
	}
	var rows []models.RoomParticipant
	err := s.db(ctx).
		Where("chat_room_id IN ?", roomIDs).
		Order("joined_at ASC, user_id ASC").
		Find(&rows).Error
	if err != nil {
		s.logError(err, "list participants for rooms", logrus.Fields{"rooms": len(roomIDs)})
		return nil, err
	}
	for _, row := range rows {
		result[row.ChatRoomID] = append(result[row.ChatRoomID], row.UserID)
	}
	return result, nil
}

func (s *Service) IsParticipant(ctx context.Context, roomID, userID string) (bool, error) {
	var count int64
	err := s.db(ctx).Model(&models.RoomParticipant{}).
		Where("chat_room_id = ? AND user_id = ?", roomID, userID).
		Count(&count).Error
	if err != nil {
		s.logError(err, "check participant", logrus.Fields{"room_id": roomID, "user_id": userID})
		return false, err
	}
	return count > 0, nil
}

func (s *Service) CountParticipants(ctx context.Context, roomID string) (int64, error) {
	var count int64
	err := s.db(ctx).Model(&models.RoomParticipant{}).
		Where("chat_room_id = ?", roomID).
		Count(&count).Error
	if err != nil {
		s.logError(err, "count participants", logrus.Fields{"room_id": roomID})
		return 0, err
	}
	return count, nil
}

// AddParticipant inserts a membership. An existing membership yields ErrDuplicate.
func (s *Service) AddParticipant(ctx context.Context, p *models.RoomParticipant) error {
	err := translate(s.db(ctx).Create(p).Error)
	s.logError(err, "add participant", logrus.Fields{"room_id": p.ChatRoomID, "user_id": p.UserID})
	return err
}

// RemoveParticipant deletes a membership and the member's read cursor.
// It reports whether a membership existed.
func (s *Service) RemoveParticipant(ctx context.Context, roomID, userID string) (bool, error) {
	removed := false
	err := s.db(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("chat_room_id = ? AND user_id = ?", roomID, userID).Delete(&models.RoomParticipant{})
		if result.Error != nil {
			return result.Error
		}
		removed = result.RowsAffected > 0
		return tx.Where("chat_room_id = ? AND user_id = ?", roomID, userID).Delete(&models.ReadCursor{}).Error
	})
	if err != nil {
		s.logError(err, "remove participant", logrus.Fields{"room_id": roomID, "user_id": userID})
		return false, err
	}
	return removed, nil
}

// DeleteRoom removes a room with its members, cursors and messages.
func (s *Service) DeleteRoom(ctx context.Context, roomID string) error {
	err := s.db(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range []interface{}{&models.ReadCursor{}, &models.Message{}, &models.RoomParticipant{}} {
			if err := tx.Where("chat_room_id = ?", roomID).Delete(model).Error; err != nil {
				return err
			}
		}
		return tx.Where("id = ?", roomID).Delete(&models.ChatRoom{}).Error
	})
	s.logError(err, "delete room", logrus.Fields{"room_id": roomID})
	return err
}

// ListRoomsForUser returns the user's rooms, most recently active first.
// An empty roomType matches both kinds.
func (s *Service) ListRoomsForUser(ctx context.Context, userID string, roomType models.RoomType) ([]models.ChatRoom, error) {
	q := s.db(ctx).
		Joins("JOIN room_participants rp ON rp.chat_room_id = chat_rooms.id AND rp.user_id = ?", userID)
	if roomType != "" {
		q = q.Where("chat_rooms.type = ?", roomType)
	}
	var rooms []models.ChatRoom
	if err := q.Order("chat_rooms.last_message_time DESC, chat_rooms.id DESC").Find(&rooms).Error; err != nil {
		s.logError(err, "list rooms", logrus.Fields{"user_id": userID, "type": roomType})
		return nil, err
	}
	return rooms, nil
}

func (s *Service) UpdateRoomSummary(ctx context.Context, roomID, lastMessage string, at time.Time) error {
	err := s.db(ctx).Model(&models.ChatRoom{}).
		Where("id = ?", roomID).
		Updates(map[string]interface{}{
			"last_message":      lastMessage,
			"last_message_time": at,
		}).Error
	s.logError(err, "update room summary", logrus.Fields{"room_id": roomID})
	return err
}
