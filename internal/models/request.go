package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestAccepted RequestStatus = "accepted"
	RequestDeclined RequestStatus = "declined"
)

// ConnectionRequest is an invitation from one traveler to another.
// PairKey is unique, so an unordered pair of users holds at most one request
// regardless of direction or status.
type ConnectionRequest struct {
	ID          string        `gorm:"primaryKey;type:varchar(36)" json:"id"`
	SenderID    string        `gorm:"type:varchar(36);not null;index" json:"senderId"`
	ReceiverID  string        `gorm:"type:varchar(36);not null;index:idx_requests_receiver_status" json:"receiverId"`
	PairKey     string        `gorm:"type:varchar(80);not null;uniqueIndex" json:"-"`
	Status      RequestStatus `gorm:"type:varchar(16);not null;index:idx_requests_receiver_status" json:"status"`
	Message     string        `gorm:"type:text;not null;default:''" json:"message"`
	CreatedAt   time.Time     `json:"createdAt"`
	RespondedAt *time.Time    `json:"respondedAt,omitempty"`
}

func (r *ConnectionRequest) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	r.PairKey = PairKey(r.SenderID, r.ReceiverID)
	return
}

// Counterpart returns the other side of the request as seen by userID.
func (r *ConnectionRequest) Counterpart(userID string) string {
	if r.SenderID == userID {
		return r.ReceiverID
	}
	return r.SenderID
}

// PairKey is the direction-independent key of two user ids.
func PairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + ":" + b
}

// RequestView is a request together with the public profile of the other user.
type RequestView struct {
	ConnectionRequest
	Counterpart UserSummary `json:"counterpart"`
}
