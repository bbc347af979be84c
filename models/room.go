package models

import (
	"fmt"
	"time"
)

// Room is a single gift exchange. The id is an opaque hex string; the short
// code is derived from it at creation time and stored so that code lookups
// stay cheap. Codes are not guaranteed unique: resolution prefers the most
// recently created active room.
type Room struct {
	ID            string     `json:"id" gorm:"primaryKey"`
	ShortCode     int        `json:"short_code" gorm:"index;not null"`
	Name          string     `json:"name" gorm:"not null"`
	ManagerUserID int64      `json:"manager_user_id" gorm:"index;not null"`
	CreatedAt     time.Time  `json:"created_at"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`

	// Relationships
	Members []User `json:"members,omitempty" gorm:"foreignKey:RoomID"`
}

// IsActive reports whether the room still accepts state changes.
func (r *Room) IsActive() bool {
	return r.CompletedAt == nil
}

func (r *Room) GameStarted() bool {
	return r.StartedAt != nil
}

func (r *Room) GameCompleted() bool {
	return r.CompletedAt != nil
}

// DisplayShortCode zero-pads the code to four digits for sharing.
func (r *Room) DisplayShortCode() string {
	return fmt.Sprintf("%04d", r.ShortCode)
}
