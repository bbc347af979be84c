package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rayannott/ded-moroz/models"
	"github.com/rayannott/ded-moroz/repository"
)

// MorozConfig carries the game rules the service enforces.
type MorozConfig struct {
	MaxRoomsManagedByUser int
	MinPlayersToStartGame int
}

// Moroz is the game service: it owns the room/user lifecycle and the business
// invariants around it. All durable state lives in the repository; the only
// in-memory state here are the per-room and per-user locks that serialize
// read-then-write sequences.
type Moroz struct {
	repo repository.Repository
	cfg  MorozConfig

	rngMu sync.Mutex
	rng   *rand.Rand

	roomLocks lockTable
	userLocks lockTable
}

func NewMoroz(repo repository.Repository, cfg MorozConfig, rng *rand.Rand) *Moroz {
	if cfg.MinPlayersToStartGame < 2 {
		cfg.MinPlayersToStartGame = 2
	}
	return &Moroz{repo: repo, cfg: cfg, rng: rng}
}

// CreateUser registers a user. Registering the same id twice fails with
// repository.ErrUserAlreadyExists.
func (m *Moroz) CreateUser(ctx context.Context, id int64, username, name *string) (*models.User, error) {
	logrus.WithField("user_id", id).Info("Creating user")
	return m.repo.CreateUser(ctx, id, username, name)
}

func (m *Moroz) GetUser(ctx context.Context, id int64) (*models.User, error) {
	return m.repo.GetUser(ctx, id)
}

// CreateRoom creates a room managed by the given user, subject to the quota
// on simultaneously active managed rooms. The creator is not joined as a
// member.
func (m *Moroz) CreateRoom(ctx context.Context, managerUserID int64, name string) (*models.Room, error) {
	logCtx := logrus.WithFields(logrus.Fields{"manager_user_id": managerUserID, "room_name": name})
	logCtx.Info("Creating room")

	unlock := m.userLocks.lock(userKey(managerUserID))
	defer unlock()

	active, err := m.repo.GetActiveRoomsManagedByUser(ctx, managerUserID)
	if err != nil {
		return nil, err
	}
	if len(active) >= m.cfg.MaxRoomsManagedByUser {
		logCtx.WithField("active_rooms", len(active)).Info("Room quota reached")
		return nil, ErrMaxNumberOfRoomsReached
	}

	room, err := m.repo.CreateRoom(ctx, managerUserID, name)
	if err != nil {
		return nil, err
	}
	logCtx.WithFields(logrus.Fields{"room_id": room.ID, "short_code": room.ShortCode}).Info("Room created")
	return room, nil
}

// DeleteRoom removes the room and then evicts its former members. The room
// row goes away under the room lock, so no new member can join mid-delete;
// eviction runs afterwards under each member's user lock and leaves alone
// anyone who already left or joined another room. Returns the members that
// were in the room so the caller can notify them.
func (m *Moroz) DeleteRoom(ctx context.Context, roomID string) ([]models.User, error) {
	logCtx := logrus.WithField("room_id", roomID)
	logCtx.Info("Deleting room")

	unlock := m.roomLocks.lock(roomID)
	members, err := m.repo.GetUsersInRoom(ctx, roomID)
	if err != nil {
		unlock()
		return nil, err
	}
	if err := m.repo.DeleteRoom(ctx, roomID); err != nil {
		unlock()
		return nil, err
	}
	unlock()

	evicted := m.evictMembers(ctx, roomID, members)
	logCtx.WithField("evicted", evicted).Info("Room deleted")
	return members, nil
}

// evictMembers clears membership for each snapshot member, taking the user
// lock per member. A member who left or moved to another room since the
// snapshot keeps their current membership; other failures are logged and
// skipped so the room transition itself stands. Runs without the room lock:
// taking the user lock inside it would invert the user-then-room order the
// join path uses.
func (m *Moroz) evictMembers(ctx context.Context, roomID string, members []models.User) int {
	evicted := 0
	for _, member := range members {
		unlock := m.userLocks.lock(userKey(member.ID))
		err := m.repo.ClearMembership(ctx, member.ID, roomID)
		unlock()
		switch {
		case err == nil:
			evicted++
		case errors.Is(err, repository.ErrNotInRoom):
			logrus.WithFields(logrus.Fields{"room_id": roomID, "user_id": member.ID}).Info("Member moved before eviction, skipping")
		default:
			logrus.WithFields(logrus.Fields{"room_id": roomID, "user_id": member.ID}).WithError(err).Warn("Failed to evict member")
		}
	}
	return evicted
}

// JoinRoomByShortCode puts the user into the room the code resolves to.
// Rooms past the open state reject joins.
func (m *Moroz) JoinRoomByShortCode(ctx context.Context, userID int64, shortCode int) (*models.Room, error) {
	logCtx := logrus.WithFields(logrus.Fields{"user_id": userID, "short_code": shortCode})
	logCtx.Info("Joining room by short code")

	unlock := m.userLocks.lock(userKey(userID))
	defer unlock()

	user, err := m.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.InRoom() {
		logCtx.WithField("room_id", *user.RoomID).Info("User is already in a room")
		return nil, ErrAlreadyInRoom
	}

	room, err := m.repo.GetRoomByShortCode(ctx, shortCode)
	if err != nil {
		return nil, err
	}

	unlockRoom := m.roomLocks.lock(room.ID)
	defer unlockRoom()

	if room.GameCompleted() {
		return nil, ErrGameAlreadyCompleted
	}
	if room.GameStarted() {
		return nil, ErrGameAlreadyStarted
	}
	if err := m.repo.JoinRoom(ctx, userID, room.ID); err != nil {
		return nil, err
	}
	logCtx.WithField("room_id", room.ID).Info("User joined room")
	return room, nil
}

// LeaveRoom clears the user's membership and returns the room they left.
// The manager's kick action goes through here too.
func (m *Moroz) LeaveRoom(ctx context.Context, userID int64) (*models.Room, error) {
	logrus.WithField("user_id", userID).Info("User leaving room")

	unlock := m.userLocks.lock(userKey(userID))
	defer unlock()

	return m.repo.LeaveRoom(ctx, userID)
}

// StartGame assigns targets to the room's current members and marks the game
// started. Returns the (giver, receiver) pairs for notification purposes.
func (m *Moroz) StartGame(ctx context.Context, roomID string) ([]models.Pair, error) {
	logCtx := logrus.WithField("room_id", roomID)
	logCtx.Info("Starting game")

	unlock := m.roomLocks.lock(roomID)
	defer unlock()

	room, err := m.repo.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room.GameCompleted() {
		return nil, ErrGameAlreadyCompleted
	}
	if room.GameStarted() {
		return nil, ErrGameAlreadyStarted
	}

	members, err := m.repo.GetUsersInRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if len(members) < m.cfg.MinPlayersToStartGame {
		logCtx.WithFields(logrus.Fields{
			"members":     len(members),
			"min_players": m.cfg.MinPlayersToStartGame,
		}).Info("Room too small to start the game")
		return nil, ErrRoomTooSmall
	}

	byID := make(map[int64]models.User, len(members))
	ids := make([]int64, 0, len(members))
	for _, member := range members {
		byID[member.ID] = member
		ids = append(ids, member.ID)
	}

	m.rngMu.Lock()
	targets := AssignTargets(m.rng, ids)
	m.rngMu.Unlock()

	rows := make([]repository.TargetPair, 0, len(members))
	pairs := make([]models.Pair, 0, len(members))
	for _, member := range members {
		targetID := targets[member.ID]
		rows = append(rows, repository.TargetPair{UserID: member.ID, TargetUserID: targetID})
		pairs = append(pairs, models.Pair{Giver: member, Receiver: byID[targetID]})
	}

	if err := m.repo.AssignTargets(ctx, roomID, rows); err != nil {
		return nil, err
	}
	if err := m.repo.SetGameStarted(ctx, roomID, time.Now().UTC()); err != nil {
		return nil, err
	}
	logCtx.WithField("players", len(pairs)).Info("Game started")
	return pairs, nil
}

// CompleteGame marks a started game as completed and evicts every member, so
// a completed room holds no members. Returns the pre-completion member list
// for notification. The completion timestamp lands under the room lock, which
// blocks new joins; eviction then follows the same policy as DeleteRoom.
func (m *Moroz) CompleteGame(ctx context.Context, roomID string) ([]models.User, error) {
	logCtx := logrus.WithField("room_id", roomID)
	logCtx.Info("Completing game")

	unlock := m.roomLocks.lock(roomID)
	room, err := m.repo.GetRoom(ctx, roomID)
	if err != nil {
		unlock()
		return nil, err
	}
	if room.GameCompleted() {
		unlock()
		return nil, ErrGameAlreadyCompleted
	}
	if !room.GameStarted() {
		unlock()
		return nil, ErrGameNotStarted
	}

	members, err := m.repo.GetUsersInRoom(ctx, roomID)
	if err != nil {
		unlock()
		return nil, err
	}
	if err := m.repo.SetGameCompleted(ctx, roomID, time.Now().UTC()); err != nil {
		unlock()
		return nil, err
	}
	unlock()

	m.evictMembers(ctx, roomID, members)
	logCtx.WithField("players", len(members)).Info("Game completed")
	return members, nil
}

// UpdateName validates and persists a new display name.
func (m *Moroz) UpdateName(ctx context.Context, userID int64, name string) error {
	logrus.WithFields(logrus.Fields{"user_id": userID, "name": name}).Info("Updating user name")
	if ok, reason := IsNameValid(name); !ok {
		return fmt.Errorf("%w: %s", ErrInvalidName, reason)
	}
	return m.repo.SetUserName(ctx, userID, name)
}

// MinPlayersToStartGame exposes the configured floor so front ends can word
// their error messages.
func (m *Moroz) MinPlayersToStartGame() int {
	return m.cfg.MinPlayersToStartGame
}

func (m *Moroz) GetRoom(ctx context.Context, roomID string) (*models.Room, error) {
	return m.repo.GetRoom(ctx, roomID)
}

func (m *Moroz) GetRoomsManagedByUser(ctx context.Context, userID int64) ([]models.Room, error) {
	return m.repo.GetRoomsManagedByUser(ctx, userID)
}

func (m *Moroz) GetActiveRoomsManagedByUser(ctx context.Context, userID int64) ([]models.Room, error) {
	return m.repo.GetActiveRoomsManagedByUser(ctx, userID)
}

func (m *Moroz) GetUsersInRoom(ctx context.Context, roomID string) ([]models.User, error) {
	return m.repo.GetUsersInRoom(ctx, roomID)
}

func (m *Moroz) GetTarget(ctx context.Context, roomID string, userID int64) (*models.User, error) {
	return m.repo.GetTarget(ctx, roomID, userID)
}

// GetRoomInformation renders a read-only text report about a room. Sections
// with no data are omitted.
func (m *Moroz) GetRoomInformation(ctx context.Context, roomID string) (string, error) {
	room, err := m.repo.GetRoom(ctx, roomID)
	if err != nil {
		return "", err
	}
	members, err := m.repo.GetUsersInRoom(ctx, roomID)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Room %s (code %s)\n", room.Name, room.DisplayShortCode())
	fmt.Fprintf(&b, "Status: %s\n", roomStatus(room))
	if manager, err := m.repo.GetUser(ctx, room.ManagerUserID); err == nil {
		fmt.Fprintf(&b, "Manager: %s\n", manager.FormalDisplayName())
	}
	if len(members) == 0 {
		b.WriteString("No players in the room yet.")
	} else {
		fmt.Fprintf(&b, "Players (%d):\n", len(members))
		for _, member := range members {
			fmt.Fprintf(&b, "- %s\n", member.FormalDisplayName())
		}
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// GetUserInformation renders a read-only text report about a user: their
// room and target, if any, and the rooms they manage.
func (m *Moroz) GetUserInformation(ctx context.Context, userID int64) (string, error) {
	user, err := m.repo.GetUser(ctx, userID)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are %s.\n", user.FormalDisplayName())
	if user.InRoom() {
		if room, err := m.repo.GetRoom(ctx, *user.RoomID); err == nil {
			fmt.Fprintf(&b, "You are in room %s (code %s).\n", room.Name, room.DisplayShortCode())
		}
		if target, err := m.repo.GetTarget(ctx, *user.RoomID, userID); err == nil {
			fmt.Fprintf(&b, "You are to give a gift to %s.\n", target.DisplayName())
		}
	} else {
		b.WriteString("You are not in any room.\n")
	}
	managed, err := m.repo.GetActiveRoomsManagedByUser(ctx, userID)
	if err == nil && len(managed) > 0 {
		fmt.Fprintf(&b, "You manage %d active room(s):\n", len(managed))
		for _, room := range managed {
			fmt.Fprintf(&b, "- %s (code %s)\n", room.Name, room.DisplayShortCode())
		}
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func roomStatus(room *models.Room) string {
	switch {
	case room.GameCompleted():
		return "completed"
	case room.GameStarted():
		return "started"
	default:
		return "open"
	}
}

// lockTable hands out one mutex per key. Locks are kept for the process
// lifetime; the key space (rooms and users seen by this instance) stays
// small enough that reclaiming them is not worth the bookkeeping.
type lockTable struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (t *lockTable) lock(key string) func() {
	t.mu.Lock()
	if t.locks == nil {
		t.locks = make(map[string]*sync.Mutex)
	}
	l, ok := t.locks[key]
	if !ok {
		l = &sync.Mutex{}
		t.locks[key] = l
	}
	t.mu.Unlock()

	l.Lock()
	return l.Unlock
}

func userKey(userID int64) string {
	return fmt.Sprintf("user:%d", userID)
}
