package services

import "errors"

// Business-level failure conditions raised by the Moroz service. Together
// with the repository errors these form the closed set of expected failures
// the front ends translate into user-facing text; anything else is treated
// as an internal error.
var (
	ErrMaxNumberOfRoomsReached = errors.New("maximum number of managed rooms reached")
	ErrAlreadyInRoom           = errors.New("user is already in a room")
	ErrRoomTooSmall            = errors.New("not enough players in the room")
	ErrGameAlreadyStarted      = errors.New("game has already started")
	ErrGameNotStarted          = errors.New("game has not started")
	ErrGameAlreadyCompleted    = errors.New("game has already been completed")
	ErrInvalidName             = errors.New("invalid name")
)
