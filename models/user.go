package models

import (
	"fmt"
	"time"
)

// User is a participant identified by their external chat/account id.
// The id is supplied by the messaging platform and never generated here.
type User struct {
	ID       int64      `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Username *string    `json:"username,omitempty"`
	Name     *string    `json:"name,omitempty"`
	RoomID   *string    `json:"room_id,omitempty" gorm:"index"`
	JoinedAt time.Time  `json:"joined_at"`

	// Relationships
	Room *Room `json:"room,omitempty" gorm:"foreignKey:RoomID"`
}

// DisplayName prefers the explicit name, then the handle, then "Unknown".
func (u *User) DisplayName() string {
	if u.Name != nil && *u.Name != "" {
		return *u.Name
	}
	if u.Username != nil && *u.Username != "" {
		return *u.Username
	}
	return "Unknown"
}

// FormalDisplayName is the name plus the handle, used in manager-facing lists.
func (u *User) FormalDisplayName() string {
	if u.Username != nil && *u.Username != "" {
		return fmt.Sprintf("%s (@%s)", u.DisplayName(), *u.Username)
	}
	return u.DisplayName()
}

func (u *User) InRoom() bool {
	return u.RoomID != nil
}
