// Package messages stores room history and tracks how far each member has read.
package messages

import (
	"context"
	"errors"
	"time"

	"travelmate/backend/internal/apperr"
	"travelmate/backend/internal/config"
	"travelmate/backend/internal/models"
	"travelmate/backend/internal/storage"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Notifier delivers an event to a user after the change is committed.
type Notifier interface {
	Dispatch(userID string, event models.RealtimeEvent)
}

// MessageCounter adjusts the live unread-message badge.
type MessageCounter interface {
	IncrementMessages(ctx context.Context, userID string) error
	DecrementMessagesBy(ctx context.Context, userID string, n int64) error
}

type StoreService struct {
	storage   storage.Storage
	notifier  Notifier
	counters  MessageCounter
	maxLength int
	pageSize  int
	log       *logrus.Logger
	now       func() time.Time
}

func NewStoreService(s storage.Storage, notifier Notifier, counters MessageCounter, maxLength, pageSize int, log *logrus.Logger) *StoreService {
	if maxLength <= 0 {
		maxLength = config.DefaultMaxMessageLength
	}
	if pageSize <= 0 {
		pageSize = config.DefaultPageSize
	}
	return &StoreService{
		storage:   s,
		notifier:  notifier,
		counters:  counters,
		maxLength: maxLength,
		pageSize:  pageSize,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// NextSentAt returns the timestamp for a message written at now into a room
// whose latest message is at last. Timestamps are microsecond precision and
// strictly increasing within a room.
func NextSentAt(now, last time.Time) time.Time {
	t := now.UTC().Truncate(time.Microsecond)
	floor := last.UTC().Truncate(time.Microsecond).Add(time.Microsecond)
	if t.Before(floor) {
		return floor
	}
	return t
}

// Append writes a message and updates the room's last message atomically.
func (s *StoreService) Append(ctx context.Context, roomID, senderID, content string) (*models.Message, error) {
	content, err := ValidateContent(content, s.maxLength)
	if err != nil {
		return nil, err
	}

	fields := logrus.Fields{"room_id": roomID, "sender_id": senderID}
	var msg *models.Message
	var row *models.ChatRoom
	var members []string

	err = s.storage.Transaction(ctx, func(tx storage.Storage) error {
		var err error
		row, err = tx.LockRoom(ctx, roomID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return apperr.NotFound("room not found")
			}
			return apperr.Internal("load room", err)
		}

		members, err = tx.ListParticipantIDs(ctx, roomID)
		if err != nil {
			return apperr.Internal("list members", err)
		}
		if !contains(members, senderID) {
			return apperr.Forbidden("not a member of this room")
		}

		msg = &models.Message{
			ID:         uuid.New().String(),
			ChatRoomID: roomID,
			SenderID:   senderID,
			Content:    content,
			SentAt:     NextSentAt(s.now(), row.LastMessageTime),
		}
		if err := tx.SaveMessage(ctx, msg); err != nil {
			return apperr.Internal("save message", err)
		}
		if err := tx.UpdateRoomSummary(ctx, roomID, preview(content, config.LastMessagePreviewRunes), msg.SentAt); err != nil {
			return apperr.Internal("update room", err)
		}
		return nil
	})
	if err != nil {
		s.logFailure(err, "append message", fields)
		return nil, err
	}

	s.log.WithFields(fields).WithField("message_id", msg.ID).Debug("messages: message appended")

	for _, member := range members {
		if member == senderID {
			continue
		}
		if row.Type == models.RoomDirect && s.counters != nil {
			_ = s.counters.IncrementMessages(ctx, member)
		}
		if s.notifier != nil {
			s.notifier.Dispatch(member, models.RealtimeEvent{
				Type:     models.EventMessageNew,
				RoomID:   roomID,
				SenderID: senderID,
				Message:  msg,
			})
		}
	}
	return msg, nil
}

// Page returns messages older than before, newest first. A non-positive limit
// selects the default page size; larger ones are capped at MaxPageSize.
func (s *StoreService) Page(ctx context.Context, roomID, viewerID string, before *time.Time, limit int) (*models.MessagePage, error) {
	row, err := s.requireMember(ctx, roomID, viewerID)
	if err != nil {
		return nil, err
	}

	limit = s.clampLimit(limit)
	rows, err := s.storage.ListMessages(ctx, roomID, before, limit+1)
	if err != nil {
		return nil, apperr.Internal("list messages", err)
	}

	page := &models.MessagePage{Messages: rows}
	if len(rows) > limit {
		page.Messages = rows[:limit]
		page.HasMore = true
		next := page.Messages[limit-1].SentAt
		page.NextCursor = &next
	}
	if page.Messages == nil {
		page.Messages = []models.Message{}
	}
	if row.Type == models.RoomGathering {
		if err := s.readForViewer(ctx, roomID, viewerID, page.Messages); err != nil {
			return nil, err
		}
	}
	return page, nil
}

// readForViewer rewrites the shared read flag of a gathering page from the
// viewer's own cursor. The viewer's own messages keep the stored flag, which
// means some member has seen them.
func (s *StoreService) readForViewer(ctx context.Context, roomID, viewerID string, msgs []models.Message) error {
	var readUpTo time.Time
	cursor, err := s.storage.GetReadCursor(ctx, roomID, viewerID)
	switch {
	case err == nil:
		readUpTo = cursor.LastReadAt
	case !errors.Is(err, storage.ErrNotFound):
		return apperr.Internal("load read cursor", err)
	}
	for i := range msgs {
		if msgs[i].SenderID != viewerID {
			msgs[i].Read = !readUpTo.IsZero() && !msgs[i].SentAt.After(readUpTo)
		}
	}
	return nil
}

func (s *StoreService) clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return s.pageSize
	case limit > config.MaxPageSize:
		return config.MaxPageSize
	default:
		return limit
	}
}

// MarkRead advances the member's read cursor to the latest message and flags
// the messages it passes as read. It returns how many messages became read;
// calling it again without new messages returns zero.
func (s *StoreService) MarkRead(ctx context.Context, roomID, userID string) (int64, error) {
	fields := logrus.Fields{"room_id": roomID, "user_id": userID}
	var row *models.ChatRoom
	var newlyRead int64

	err := s.storage.Transaction(ctx, func(tx storage.Storage) error {
		var err error
		row, err = tx.LockRoom(ctx, roomID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return apperr.NotFound("room not found")
			}
			return apperr.Internal("load room", err)
		}
		member, err := tx.IsParticipant(ctx, roomID, userID)
		if err != nil {
			return apperr.Internal("check membership", err)
		}
		if !member {
			return apperr.Forbidden("not a member of this room")
		}

		counts, err := tx.CountUnread(ctx, userID, []string{roomID})
		if err != nil {
			return apperr.Internal("count unread", err)
		}
		newlyRead = counts[roomID]

		upTo := s.now()
		if row.LastMessageTime.After(upTo) {
			upTo = row.LastMessageTime
		}
		if err := tx.AdvanceReadCursor(ctx, roomID, userID, upTo); err != nil {
			return apperr.Internal("advance read cursor", err)
		}
		if _, err := tx.MarkMessagesRead(ctx, roomID, userID, upTo); err != nil {
			return apperr.Internal("mark messages read", err)
		}
		return nil
	})
	if err != nil {
		s.logFailure(err, "mark read", fields)
		return 0, err
	}

	if newlyRead > 0 && row.Type == models.RoomDirect && s.counters != nil {
		_ = s.counters.DecrementMessagesBy(ctx, userID, newlyRead)
	}
	return newlyRead, nil
}

// UnreadCount counts messages from others newer than the member's read cursor.
func (s *StoreService) UnreadCount(ctx context.Context, roomID, userID string) (int64, error) {
	if _, err := s.requireMember(ctx, roomID, userID); err != nil {
		return 0, err
	}
	counts, err := s.storage.CountUnread(ctx, userID, []string{roomID})
	if err != nil {
		return 0, apperr.Internal("count unread", err)
	}
	return counts[roomID], nil
}

func (s *StoreService) requireMember(ctx context.Context, roomID, userID string) (*models.ChatRoom, error) {
	row, err := s.storage.GetRoomByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.NotFound("room not found")
		}
		return nil, apperr.Internal("load room", err)
	}
	member, err := s.storage.IsParticipant(ctx, roomID, userID)
	if err != nil {
		return nil, apperr.Internal("check membership", err)
	}
	if !member {
		return nil, apperr.Forbidden("not a member of this room")
	}
	return row, nil
}

func (s *StoreService) logFailure(err error, op string, fields logrus.Fields) {
	entry := s.log.WithFields(fields).WithError(err)
	if apperr.CodeOf(err) == apperr.CodeInternal {
		entry.Errorf("messages: %s failed", op)
		return
	}
	entry.Debugf("messages: %s rejected", op)
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
