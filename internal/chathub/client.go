package chathub

import "travelmate/backend/internal/models"

// Client is one live connection of a user. A user may hold several clients
// at once, one per device or tab.
type Client interface {
	// GetUserID returns the user the connection belongs to.
	GetUserID() string

	// GetSendChannel returns the channel the hub writes events for this
	// connection to. The hub never blocks on it.
	GetSendChannel() chan<- models.RealtimeEvent

	// Run starts the connection's pumps.
	Run()
	// Close stops the write side. The hub calls it exactly once, when the
	// client is unregistered or dropped.
	Close()
}
