package repository

import (
	"context"
	"time"

	"github.com/rayannott/ded-moroz/models"
)

// TargetPair is one row of a game assignment: user_id gives to target_user_id.
type TargetPair struct {
	UserID       int64
	TargetUserID int64
}

// Repository is the persistence contract for users, rooms and targets.
// Every mutating call commits before returning; within a single process
// callers may rely on read-after-write consistency.
type Repository interface {
	// CreateUser stores a new user. Fails with ErrUserAlreadyExists if the
	// id is already registered.
	CreateUser(ctx context.Context, id int64, username, name *string) (*models.User, error)

	// GetUser fails with ErrUserNotFound.
	GetUser(ctx context.Context, id int64) (*models.User, error)

	// SetUserName fails with ErrUserNotFound.
	SetUserName(ctx context.Context, userID int64, name string) error

	// CreateRoom generates a fresh room id and its short code. The manager
	// must exist (ErrUserNotFound).
	CreateRoom(ctx context.Context, managerUserID int64, name string) (*models.Room, error)

	// GetRoom fails with ErrRoomNotFound.
	GetRoom(ctx context.Context, roomID string) (*models.Room, error)

	// GetRoomByShortCode resolves a short code to an active room. When
	// several active rooms share a code the most recently created one wins
	// and the anomaly is logged. Fails with ErrRoomNotFound when no active
	// room matches.
	GetRoomByShortCode(ctx context.Context, shortCode int) (*models.Room, error)

	// GetRoomsManagedByUser returns every room the user manages, regardless
	// of state. The user must exist (ErrUserNotFound).
	GetRoomsManagedByUser(ctx context.Context, userID int64) ([]models.Room, error)

	// GetActiveRoomsManagedByUser filters GetRoomsManagedByUser down to
	// rooms that are not completed.
	GetActiveRoomsManagedByUser(ctx context.Context, userID int64) ([]models.Room, error)

	// GetUsersInRoom fails with ErrRoomNotFound if the room does not exist.
	GetUsersInRoom(ctx context.Context, roomID string) ([]models.User, error)

	// JoinRoom records the user as a member of the room. Fails with
	// ErrUserNotFound / ErrRoomNotFound.
	JoinRoom(ctx context.Context, userID int64, roomID string) error

	// LeaveRoom clears the user's membership and returns the room they just
	// left. Fails with ErrUserNotFound / ErrNotInRoom / ErrRoomNotFound.
	LeaveRoom(ctx context.Context, userID int64) (*models.Room, error)

	// ClearMembership removes the user from the given room only if they are
	// still a member of it, in one conditional write. Fails with ErrNotInRoom
	// otherwise. Eviction paths use this so a member who moved to another
	// room keeps their new membership.
	ClearMembership(ctx context.Context, userID int64, roomID string) error

	// DeleteRoom removes the room row. It does not evict members; the game
	// service orchestrates that. Fails with ErrRoomNotFound.
	DeleteRoom(ctx context.Context, roomID string) error

	// AssignTargets inserts all assignment rows atomically: either every
	// pair is persisted or none are.
	AssignTargets(ctx context.Context, roomID string, pairs []TargetPair) error

	// GetTarget returns the user the given participant gifts to. Fails with
	// ErrTargetNotAssigned when the game has not started or the user left
	// before assignment.
	GetTarget(ctx context.Context, roomID string, userID int64) (*models.User, error)

	// SetGameStarted fails with ErrRoomNotFound.
	SetGameStarted(ctx context.Context, roomID string, startedAt time.Time) error

	// SetGameCompleted fails with ErrRoomNotFound.
	SetGameCompleted(ctx context.Context, roomID string, completedAt time.Time) error
}
