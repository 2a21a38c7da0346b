package models

type EventType string

const (
	EventRequestReceived EventType = "request_received"
	EventRequestAccepted EventType = "request_accepted"
	EventMessageNew      EventType = "message_new"
	EventCounters        EventType = "counters"
)

// RealtimeEvent is pushed to a user over WebSocket and, for some types, Telegram.
type RealtimeEvent struct {
	Type      EventType `json:"type"`
	RoomID    string    `json:"roomId,omitempty"`
	RequestID string    `json:"requestId,omitempty"`
	SenderID  string    `json:"senderId,omitempty"`
	Message   *Message  `json:"message,omitempty"`
	Counters  *Counters `json:"counters,omitempty"`
}

// Delivery addresses an event to one user. It is the payload carried between
// hub instances over Redis.
type Delivery struct {
	UserID string        `json:"userId"`
	Event  RealtimeEvent `json:"event"`
}

// Counters are the live badge numbers of a user.
type Counters struct {
	UnreadMessages  int64 `json:"unreadMessages"`
	PendingRequests int64 `json:"pendingRequests"`
}
