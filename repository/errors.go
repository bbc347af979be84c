package repository

import "errors"

// Storage-level failure conditions. The repository reports missing or
// duplicate entities; cross-entity business rules (quotas, state gating)
// belong to the game service.
var (
	ErrUserNotFound      = errors.New("user not found")
	ErrUserAlreadyExists = errors.New("user already exists")
	ErrRoomNotFound      = errors.New("room not found")
	ErrNotInRoom         = errors.New("user is not in a room")
	ErrTargetNotAssigned = errors.New("target not assigned")
)
