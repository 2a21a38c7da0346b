package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is a traveler profile. Coordinates are stored exactly and never leave
// the server; other users only ever see a fuzzed distance.
type User struct {
	ID             string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	DisplayName    string    `gorm:"not null;default:''" json:"displayName"`
	AvatarURL      string    `json:"avatarUrl"`
	City           string    `gorm:"index:idx_users_area" json:"city"`
	Region         string    `gorm:"index:idx_users_area" json:"region"`
	Latitude       *float64  `json:"-"`
	Longitude      *float64  `json:"-"`
	TelegramChatID *int64    `gorm:"uniqueIndex" json:"-"`
	Language       string    `gorm:"not null;default:'en'" json:"language"`
	CreatedAt      time.Time `json:"createdAt"`
}

// BeforeCreate generates a UUID for the user if the ID is not set.
func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return
}

func (u *User) HasLocation() bool {
	return u.Latitude != nil && u.Longitude != nil
}

// Summary projects the public profile of the user.
func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:          u.ID,
		DisplayName: u.DisplayName,
		AvatarURL:   u.AvatarURL,
		City:        u.City,
		Region:      u.Region,
	}
}

// UserSummary is what one traveler may see about another.
type UserSummary struct {
	ID          string   `json:"id"`
	DisplayName string   `json:"displayName"`
	AvatarURL   string   `json:"avatarUrl"`
	City        string   `json:"city"`
	Region      string   `json:"region"`
	DistanceKm  *float64 `json:"distanceKm,omitempty"`
	Location    *Point   `json:"location,omitempty"`
}

// Point is a blurred position, never a stored one.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}
