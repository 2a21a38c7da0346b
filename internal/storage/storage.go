package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"travelmate/backend/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when a looked-up row does not exist.
	ErrNotFound = errors.New("storage: record not found")
	// ErrDuplicate is returned when an insert violates a unique index.
	ErrDuplicate = errors.New("storage: duplicate record")
)

// Storage is the persistence boundary of every service. All methods honour ctx.
// Transaction runs fn against a Storage bound to one database transaction;
// fn must only use the tx it is given.
type Storage interface {
	Transaction(ctx context.Context, fn func(tx Storage) error) error

	SaveUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUsersByIDs(ctx context.Context, ids []string) (map[string]models.User, error)
	FindUsersByArea(ctx context.Context, city, region, excludeID string) ([]models.User, error)
	GetUserByTelegramChatID(ctx context.Context, chatID int64) (*models.User, error)
	LinkTelegramChat(ctx context.Context, userID string, chatID int64) error
	SetUserLanguage(ctx context.Context, userID, language string) error

	CreateRequest(ctx context.Context, req *models.ConnectionRequest) error
	GetRequestByID(ctx context.Context, id string) (*models.ConnectionRequest, error)
	FindRequestBetween(ctx context.Context, a, b string) (*models.ConnectionRequest, error)
	TransitionRequest(ctx context.Context, id string, from, to models.RequestStatus, at time.Time) (bool, error)
	ListPeerIDs(ctx context.Context, userID string) ([]string, error)
	ListRequestsReceived(ctx context.Context, userID string, status models.RequestStatus) ([]models.ConnectionRequest, error)
	ListRequestsSent(ctx context.Context, userID string) ([]models.ConnectionRequest, error)
	CountPendingRequests(ctx context.Context, userID string) (int64, error)

	CreateRoom(ctx context.Context, room *models.ChatRoom, participantIDs []string) (bool, error)
	GetRoomByID(ctx context.Context, id string) (*models.ChatRoom, error)
	LockRoom(ctx context.Context, id string) (*models.ChatRoom, error)
	FindDirectRoom(ctx context.Context, directKey string) (*models.ChatRoom, error)
	ListParticipantIDs(ctx context.Context, roomID string) ([]string, error)
	ListParticipantsForRooms(ctx context.Context, roomIDs []string) (map[string][]string, error)
	IsParticipant(ctx context.Context, roomID, userID string) (bool, error)
	CountParticipants(ctx context.Context, roomID string) (int64, error)
	AddParticipant(ctx context.Context, p *models.RoomParticipant) error
	RemoveParticipant(ctx context.Context, roomID, userID string) (bool, error)
	DeleteRoom(ctx context.Context, roomID string) error
	ListRoomsForUser(ctx context.Context, userID string, roomType models.RoomType) ([]models.ChatRoom, error)
	UpdateRoomSummary(ctx context.Context, roomID, lastMessage string, at time.Time) error

	SaveMessage(ctx context.Context, msg *models.Message) error
	ListMessages(ctx context.Context, roomID string, before *time.Time, limit int) ([]models.Message, error)
	CountUnread(ctx context.Context, userID string, roomIDs []string) (map[string]int64, error)
	GetReadCursor(ctx context.Context, roomID, userID string) (*models.ReadCursor, error)
	AdvanceReadCursor(ctx context.Context, roomID, userID string, at time.Time) error
	MarkMessagesRead(ctx context.Context, roomID, userID string, upTo time.Time) (int64, error)
}

type Service struct {
	DB  *gorm.DB
	Log *logrus.Logger
}

// NewStorageService Constructor
func NewStorageService(db *gorm.DB, log *logrus.Logger) *Service {
	return &Service{DB: db, Log: log}
}

// Migrate creates or updates every table the services use.
func (s *Service) Migrate() error {
	return s.DB.AutoMigrate(
		&models.User{},
		&models.ConnectionRequest{},
		&models.ChatRoom{},
		&models.RoomParticipant{},
		&models.Message{},
		&models.ReadCursor{},
	)
}

func (s *Service) Transaction(ctx context.Context, fn func(tx Storage) error) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Service{DB: tx, Log: s.Log})
	})
}

func (s *Service) db(ctx context.Context) *gorm.DB {
	return s.DB.WithContext(ctx)
}

func (s *Service) isPostgres() bool {
	return s.DB.Dialector.Name() == "postgres"
}

// translate maps driver errors onto the package sentinels.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case isDuplicate(err):
		return ErrDuplicate
	default:
		return err
	}
}

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}

func (s *Service) logError(err error, op string, fields logrus.Fields) {
	if s.Log == nil || err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, ErrDuplicate) {
		return
	}
	s.Log.WithFields(fields).WithError(err).Errorf("storage: %s failed", op)
}

// SaveUser upserts a user profile.
func (s *Service) SaveUser(ctx context.Context, user *models.User) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	err := translate(s.db(ctx).Save(user).Error)
	s.logError(err, "save user", logrus.Fields{"user_id": user.ID})
	return err
}

func (s *Service) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := s.db(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		err = translate(err)
		s.logError(err, "get user", logrus.Fields{"user_id": id})
		return nil, err
	}
	return &user, nil
}

func (s *Service) GetUsersByIDs(ctx context.Context, ids []string) (map[string]models.User, error) {
	result := make(map[string]models.User, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	var users []models.User
	if err := s.db(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		s.logError(err, "get users", logrus.Fields{"count": len(ids)})
		return nil, err
	}
	for _, u := range users {
		result[u.ID] = u
	}
	return result, nil
}

// FindUsersByArea returns users in the given city and region ordered by id.
func (s *Service) FindUsersByArea(ctx context.Context, city, region, excludeID string) ([]models.User, error) {
	var users []models.User
	err := s.db(ctx).
		Where("city = ? AND region = ? AND id <> ?", city, region, excludeID).
		Order("id ASC").
		Find(&users).Error
	if err != nil {
		s.logError(err, "find users by area", logrus.Fields{"city": city, "region": region})
		return nil, err
	}
	return users, nil
}

func (s *Service) GetUserByTelegramChatID(ctx context.Context, chatID int64) (*models.User, error) {
	var user models.User
	if err := s.db(ctx).Where("telegram_chat_id = ?", chatID).First(&user).Error; err != nil {
		err = translate(err)
		s.logError(err, "get user by telegram chat", logrus.Fields{"chat_id": chatID})
		return nil, err
	}
	return &user, nil
}

// LinkTelegramChat attaches a Telegram chat to userID, detaching it from any
// user it was linked to before.
func (s *Service) LinkTelegramChat(ctx context.Context, userID string, chatID int64) error {
	err := s.db(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.User{}).
			Where("telegram_chat_id = ? AND id <> ?", chatID, userID).
			Update("telegram_chat_id", nil).Error; err != nil {
			return err
		}
		res := tx.Model(&models.User{}).Where("id = ?", userID).Update("telegram_chat_id", chatID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	err = translate(err)
	s.logError(err, "link telegram chat", logrus.Fields{"user_id": userID, "chat_id": chatID})
	return err
}

func (s *Service) SetUserLanguage(ctx context.Context, userID, language string) error {
	res := s.db(ctx).Model(&models.User{}).Where("id = ?", userID).Update("language", language)
	if res.Error != nil {
		err := translate(res.Error)
		s.logError(err, "set user language", logrus.Fields{"user_id": userID})
		return err
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
