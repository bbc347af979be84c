package models

// Target records who gives a gift to whom in a room. Rows are inserted all at
// once when the game starts and never updated afterwards.
type Target struct {
	ID           uint   `json:"id" gorm:"primaryKey"`
	RoomID       string `json:"room_id" gorm:"index;not null"`
	UserID       int64  `json:"user_id" gorm:"index;not null"`
	TargetUserID int64  `json:"target_user_id" gorm:"not null"`

	// Relationships
	Room Room `json:"room,omitempty" gorm:"foreignKey:RoomID"`
}

// Pair is a resolved (giver, receiver) assignment returned to the caller at
// game start so the front end can notify both sides.
type Pair struct {
	Giver    User `json:"giver"`
	Receiver User `json:"receiver"`
}
