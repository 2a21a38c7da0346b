package models

import "time"

// Message is immutable once written except for Read, which only moves false to true.
// SentAt is strictly increasing within a room, backed by a unique index.
type Message struct {
	ID         string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	ChatRoomID string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_messages_room_sent,priority:1" json:"roomId"`
	SenderID   string    `gorm:"type:varchar(36);not null;index" json:"senderId"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	SentAt     time.Time `gorm:"not null;uniqueIndex:idx_messages_room_sent,priority:2" json:"sentAt"`
	Read       bool      `gorm:"not null;default:false" json:"read"`
}

// ReadCursor marks how far a member has read a room. It never moves backwards.
type ReadCursor struct {
	ChatRoomID string    `gorm:"primaryKey;type:varchar(36)"`
	UserID     string    `gorm:"primaryKey;type:varchar(36)"`
	LastReadAt time.Time `gorm:"not null"`
}

// MessagePage is one newest-first page of room history.
type MessagePage struct {
	Messages   []Message  `json:"messages"`
	HasMore    bool       `json:"hasMore"`
	NextCursor *time.Time `json:"nextCursor,omitempty"`
}
