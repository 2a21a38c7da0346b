// Package rooms manages chat rooms and their membership.
package rooms

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

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type DirectoryService struct {
	storage         storage.Storage
	defaultCapacity int
	log             *logrus.Logger
	now             func() time.Time
}

func NewDirectoryService(s storage.Storage, defaultCapacity int, log *logrus.Logger) *DirectoryService {
	if defaultCapacity <= 0 {
		defaultCapacity = config.DefaultGatheringCapacity
	}
	return &DirectoryService{
		storage:         s,
		defaultCapacity: defaultCapacity,
		log:             log,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// GetOrCreateDirect returns the direct room of a and b, creating it if needed.
// Concurrent callers for the same pair all get the same room.
func (d *DirectoryService) GetOrCreateDirect(ctx context.Context, a, b string) (string, error) {
	var roomID string
	err := d.storage.Transaction(ctx, func(tx storage.Storage) error {
		var err error
		roomID, err = d.GetOrCreateDirectIn(ctx, tx, a, b)
		return err
	})
	return roomID, err
}

// GetOrCreateDirectIn is GetOrCreateDirect bound to a caller's transaction.
func (d *DirectoryService) GetOrCreateDirectIn(ctx context.Context, tx storage.Storage, a, b string) (string, error) {
	if a == "" || b == "" {
		return "", apperr.InvalidInput("both participants are required")
	}
	if a == b {
		return "", apperr.InvalidInput("a direct room needs two different users")
	}

	key := models.PairKey(a, b)
	existing, err := tx.FindDirectRoom(ctx, key)
	if err == nil {
		return existing.ID, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return "", apperr.Internal("find direct room", err)
	}

	now := d.now()
	room := &models.ChatRoom{
		ID:              uuid.New().String(),
		Type:            models.RoomDirect,
		DirectKey:       &key,
		Capacity:        2,
		CreatedAt:       now,
		LastMessageTime: now,
	}
	members := []string{a, b}
	if b < a {
		members = []string{b, a}
	}

	created, err := tx.CreateRoom(ctx, room, members)
	if err != nil {
		return "", apperr.Internal("create direct room", err)
	}
	if created {
		d.log.WithFields(logrus.Fields{"room_id": room.ID, "user_a": a, "user_b": b}).Info("rooms: direct room created")
		return room.ID, nil
	}

	// Lost the race; the winner's row is now visible.
	existing, err = tx.FindDirectRoom(ctx, key)
	if err != nil {
		return "", apperr.Internal("find direct room", err)
	}
	return existing.ID, nil
}

// CreateGathering opens a gathering with the host as its first member.
// A capacity of zero uses the configured default.
func (d *DirectoryService) CreateGathering(ctx context.Context, hostID, name, image string, capacity int) (*models.RoomSummary, error) {
	name = strings.TrimSpace(name)
	switch {
	case hostID == "":
		return nil, apperr.InvalidInput("host is required")
	case name == "":
		return nil, apperr.InvalidInput("room name is required")
	case utf8.RuneCountInString(name) > config.MaxRoomNameLength:
		return nil, apperr.InvalidInput("room name is too long")
	case capacity < 0 || capacity == 1 || capacity > config.MaxGatheringCapacity:
		return nil, apperr.InvalidInput("capacity must be between 2 and 500")
	}
	if capacity == 0 {
		capacity = d.defaultCapacity
	}

	now := d.now()
	host := hostID
	row := &models.ChatRoom{
		ID:              uuid.New().String(),
		Type:            models.RoomGathering,
		HostID:          &host,
		Capacity:        capacity,
		RoomName:        name,
		RoomImage:       strings.TrimSpace(image),
		CreatedAt:       now,
		LastMessageTime: now,
	}

	err := d.storage.Transaction(ctx, func(tx storage.Storage) error {
		if _, err := tx.CreateRoom(ctx, row, []string{hostID}); err != nil {
			return apperr.Internal("create gathering", err)
		}
		if err := tx.AdvanceReadCursor(ctx, row.ID, hostID, now); err != nil {
			return apperr.Internal("seed read cursor", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	d.log.WithFields(logrus.Fields{"room_id": row.ID, "host_id": hostID, "capacity": capacity}).Info("rooms: gathering created")
	summary := models.Summarize(row, models.NewRoom(row, []string{hostID}, d.defaultCapacity), 0)
	return &summary, nil
}

// JoinGathering adds userID to a gathering that still has room.
// History from before the join is not counted as unread.
func (d *DirectoryService) JoinGathering(ctx context.Context, roomID, userID string) error {
	fields := logrus.Fields{"room_id": roomID, "user_id": userID}
	err := d.storage.Transaction(ctx, func(tx storage.Storage) error {
		row, err := tx.LockRoom(ctx, roomID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return apperr.NotFound("gathering not found")
			}
			return apperr.Internal("load room", err)
		}
		if row.Type != models.RoomGathering {
			return apperr.NotFound("gathering not found")
		}

		member, err := tx.IsParticipant(ctx, roomID, userID)
		if err != nil {
			return apperr.Internal("check membership", err)
		}
		if member {
			return apperr.Conflict("already a member of this gathering")
		}

		count, err := tx.CountParticipants(ctx, roomID)
		if err != nil {
			return apperr.Internal("count members", err)
		}
		if count >= int64(d.capacityOf(row)) {
			return apperr.Full("gathering is full")
		}

		now := d.now()
		if err := tx.AddParticipant(ctx, &models.RoomParticipant{ChatRoomID: roomID, UserID: userID, JoinedAt: now}); err != nil {
			if errors.Is(err, storage.ErrDuplicate) {
				return apperr.Conflict("already a member of this gathering")
			}
			return apperr.Internal("add member", err)
		}

		seen := now
		if row.LastMessageTime.After(seen) {
			seen = row.LastMessageTime
		}
		if err := tx.AdvanceReadCursor(ctx, roomID, userID, seen); err != nil {
			return apperr.Internal("seed read cursor", err)
		}
		return nil
	})
	if err != nil {
		d.logFailure(err, "join gathering", fields)
		return err
	}
	d.log.WithFields(fields).Info("rooms: member joined")
	return nil
}

// Leave removes a member from a gathering. Hosts cannot leave their own
// gathering and direct rooms cannot be left at all.
func (d *DirectoryService) Leave(ctx context.Context, roomID, userID string) error {
	fields := logrus.Fields{"room_id": roomID, "user_id": userID}
	row, err := d.loadRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if row.Type == models.RoomDirect {
		return apperr.Forbidden("direct rooms cannot be left")
	}
	if row.HostID != nil && *row.HostID == userID {
		return apperr.Forbidden("the host cannot leave the gathering")
	}

	removed, err := d.storage.RemoveParticipant(ctx, roomID, userID)
	if err != nil {
		return apperr.Internal("remove member", err)
	}
	if !removed {
		return apperr.NotFound("not a member of this gathering")
	}
	d.log.WithFields(fields).Info("rooms: member left")
	return nil
}

// DeleteGathering removes a gathering with its history. Only the host may do it.
func (d *DirectoryService) DeleteGathering(ctx context.Context, roomID, userID string) error {
	row, err := d.loadRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if row.Type != models.RoomGathering {
		return apperr.Forbidden("only gatherings can be deleted")
	}
	if row.HostID == nil || *row.HostID != userID {
		return apperr.Forbidden("only the host can delete the gathering")
	}

	if err := d.storage.DeleteRoom(ctx, roomID); err != nil {
		return apperr.Internal("delete gathering", err)
	}
	d.log.WithFields(logrus.Fields{"room_id": roomID, "host_id": userID}).Info("rooms: gathering deleted")
	return nil
}

// ListRoomsForUser lists the user's rooms, most recently active first, each
// with its unread count. An empty roomType lists both kinds.
func (d *DirectoryService) ListRoomsForUser(ctx context.Context, userID string, roomType models.RoomType) ([]models.RoomSummary, error) {
	if roomType != "" && !roomType.Valid() {
		return nil, apperr.InvalidInput("type must be direct or gathering")
	}

	rows, err := d.storage.ListRoomsForUser(ctx, userID, roomType)
	if err != nil {
		return nil, apperr.Internal("list rooms", err)
	}
	if len(rows) == 0 {
		return []models.RoomSummary{}, nil
	}

	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	members, err := d.storage.ListParticipantsForRooms(ctx, ids)
	if err != nil {
		return nil, apperr.Internal("list members", err)
	}
	unread, err := d.storage.CountUnread(ctx, userID, ids)
	if err != nil {
		return nil, apperr.Internal("count unread", err)
	}

	summaries := make([]models.RoomSummary, 0, len(rows))
	for i := range rows {
		room := models.NewRoom(&rows[i], members[rows[i].ID], d.defaultCapacity)
		summaries = append(summaries, models.Summarize(&rows[i], room, unread[rows[i].ID]))
	}
	return summaries, nil
}

// GetRoom returns one room as seen by a member.
func (d *DirectoryService) GetRoom(ctx context.Context, roomID, viewerID string) (*models.RoomDetail, error) {
	row, err := d.loadRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	members, err := d.storage.ListParticipantIDs(ctx, roomID)
	if err != nil {
		return nil, apperr.Internal("list members", err)
	}
	room := models.NewRoom(row, members, d.defaultCapacity)
	if !room.HasMember(viewerID) {
		return nil, apperr.Forbidden("not a member of this room")
	}

	unread, err := d.storage.CountUnread(ctx, viewerID, []string{roomID})
	if err != nil {
		return nil, apperr.Internal("count unread", err)
	}

	detail := &models.RoomDetail{RoomSummary: models.Summarize(row, room, unread[roomID])}
	switch r := room.(type) {
	case models.DirectRoom:
		other, err := d.storage.GetUserByID(ctx, r.Other(viewerID))
		if err == nil {
			summary := other.Summary()
			detail.OtherParticipant = &summary
		} else if !errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.Internal("load participant", err)
		}
	case models.GatheringRoom:
		detail.IsHost = r.IsHost(viewerID)
	}
	return detail, nil
}

func (d *DirectoryService) loadRoom(ctx context.Context, roomID string) (*models.ChatRoom, error) {
	row, err := d.storage.GetRoomByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.NotFound("room not found")
		}
		return nil, apperr.Internal("load room", err)
	}
	return row, nil
}

func (d *DirectoryService) capacityOf(row *models.ChatRoom) int {
	if row.Capacity > 0 {
		return row.Capacity
	}
	return d.defaultCapacity
}

func (d *DirectoryService) logFailure(err error, op string, fields logrus.Fields) {
	entry := d.log.WithFields(fields).WithError(err)
	if apperr.CodeOf(err) == apperr.CodeInternal {
		entry.Errorf("rooms: %s failed", op)
		return
	}
	entry.Debugf("rooms: %s rejected", op)
}
