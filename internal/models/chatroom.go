package models

import "time"

type RoomType string

const (
	RoomDirect    RoomType = "direct"
	RoomGathering RoomType = "gathering"
)

func (t RoomType) Valid() bool {
	return t == RoomDirect || t == RoomGathering
}

// ChatRoom is the persisted row behind both room kinds. DirectKey is the pair
// key of the two members for direct rooms and NULL for gatherings; its unique
// index keeps one direct room per pair.
type ChatRoom struct {
	ID              string    `gorm:"primaryKey;type:varchar(36)"`
	Type            RoomType  `gorm:"type:varchar(16);not null;index"`
	DirectKey       *string   `gorm:"type:varchar(80);uniqueIndex"`
	HostID          *string   `gorm:"type:varchar(36);index"`
	Capacity        int       `gorm:"not null;default:0"`
	RoomName        string    `gorm:"not null;default:''"`
	RoomImage       string    `gorm:"not null;default:''"`
	CreatedAt       time.Time `gorm:"not null"`
	LastMessage     string    `gorm:"type:text;not null;default:''"`
	LastMessageTime time.Time `gorm:"not null;index"`
}

// RoomParticipant is one membership row.
type RoomParticipant struct {
	ChatRoomID string    `gorm:"primaryKey;type:varchar(36)"`
	UserID     string    `gorm:"primaryKey;type:varchar(36);index"`
	JoinedAt   time.Time `gorm:"not null"`
}

// Room is either a DirectRoom or a GatheringRoom.
type Room interface {
	RoomID() string
	Kind() RoomType
	Members() []string
	HasMember(userID string) bool
}

// DirectRoom always has exactly two members.
type DirectRoom struct {
	ID           string
	Participants [2]string
}

func (r DirectRoom) RoomID() string    { return r.ID }
func (r DirectRoom) Kind() RoomType    { return RoomDirect }
func (r DirectRoom) Members() []string { return r.Participants[:] }

func (r DirectRoom) HasMember(userID string) bool {
	return r.Participants[0] == userID || r.Participants[1] == userID
}

// Other returns the member that is not userID.
func (r DirectRoom) Other(userID string) string {
	if r.Participants[0] == userID {
		return r.Participants[1]
	}
	return r.Participants[0]
}

// GatheringRoom is a hosted group room with a member cap.
type GatheringRoom struct {
	ID           string
	HostID       string
	Capacity     int
	Participants []string
}

func (r GatheringRoom) RoomID() string    { return r.ID }
func (r GatheringRoom) Kind() RoomType    { return RoomGathering }
func (r GatheringRoom) Members() []string { return r.Participants }

func (r GatheringRoom) HasMember(userID string) bool {
	for _, id := range r.Participants {
		if id == userID {
			return true
		}
	}
	return false
}

func (r GatheringRoom) IsHost(userID string) bool { return r.HostID == userID }

func (r GatheringRoom) IsFull() bool { return len(r.Participants) >= r.Capacity }

// NewRoom builds the variant matching the row's type. defaultCapacity is used
// for gatherings stored without a capacity.
func NewRoom(row *ChatRoom, participants []string, defaultCapacity int) Room {
	if row.Type == RoomDirect {
		room := DirectRoom{ID: row.ID}
		copy(room.Participants[:], participants)
		return room
	}
	room := GatheringRoom{ID: row.ID, Capacity: row.Capacity, Participants: participants}
	if room.Capacity <= 0 {
		room.Capacity = defaultCapacity
	}
	if row.HostID != nil {
		room.HostID = *row.HostID
	}
	return room
}

// RoomSummary is the listing shape shared by both room kinds.
type RoomSummary struct {
	ID              string    `json:"id"`
	Type            RoomType  `json:"type"`
	RoomName        string    `json:"roomName"`
	RoomImage       string    `json:"roomImage"`
	HostID          string    `json:"hostId,omitempty"`
	Capacity        int       `json:"capacity"`
	Participants    []string  `json:"participants"`
	LastMessage     string    `json:"lastMessage"`
	LastMessageTime time.Time `json:"lastMessageTime"`
	UnreadCount     int64     `json:"unreadCount"`
}

// Summarize projects a row and its room variant into a RoomSummary.
func Summarize(row *ChatRoom, room Room, unread int64) RoomSummary {
	summary := RoomSummary{
		ID:              row.ID,
		Type:            row.Type,
		RoomName:        row.RoomName,
		RoomImage:       row.RoomImage,
		Participants:    room.Members(),
		LastMessage:     row.LastMessage,
		LastMessageTime: row.LastMessageTime,
		UnreadCount:     unread,
	}
	switch r := room.(type) {
	case DirectRoom:
		summary.Capacity = 2
	case GatheringRoom:
		summary.HostID = r.HostID
		summary.Capacity = r.Capacity
	}
	return summary
}

// RoomDetail is a single room as seen by one of its members.
type RoomDetail struct {
	RoomSummary
	OtherParticipant *UserSummary `json:"otherParticipant,omitempty"`
	IsHost           bool         `json:"isHost"`
}
