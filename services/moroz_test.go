package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rayannott/ded-moroz/models"
	"github.com/rayannott/ded-moroz/repository"
)

func newTestMoroz(minPlayers int) *Moroz {
	return NewMoroz(repository.NewMemoryRepository(), MorozConfig{
		MaxRoomsManagedByUser: 2,
		MinPlayersToStartGame: minPlayers,
	}, rand.New(rand.NewSource(1)))
}

func registerUser(t *testing.T, m *Moroz, id int64) *models.User {
	t.Helper()
	username := fmt.Sprintf("user%d", id)
	user, err := m.CreateUser(context.Background(), id, &username, nil)
	require.NoError(t, err)
	return user
}

func joinRoom(t *testing.T, m *Moroz, userID int64, room *models.Room) {
	t.Helper()
	_, err := m.JoinRoomByShortCode(context.Background(), userID, room.ShortCode)
	require.NoError(t, err)
}

func TestCreateUserTwice(t *testing.T) {
	m := newTestMoroz(2)
	ctx := context.Background()

	registerUser(t, m, 1)
	_, err := m.CreateUser(ctx, 1, nil, nil)
	assert.ErrorIs(t, err, repository.ErrUserAlreadyExists)
}

func TestCreateRoomQuota(t *testing.T) {
	m := newTestMoroz(2)
	ctx := context.Background()
	registerUser(t, m, 1)

	roomA, err := m.CreateRoom(ctx, 1, "Office Party")
	require.NoError(t, err)
	_, err = m.CreateRoom(ctx, 1, "Family")
	require.NoError(t, err)

	_, err = m.CreateRoom(ctx, 1, "One Too Many")
	assert.ErrorIs(t, err, ErrMaxNumberOfRoomsReached)

	// Only active rooms count against the quota.
	registerUser(t, m, 2)
	registerUser(t, m, 3)
	joinRoom(t, m, 2, roomA)
	joinRoom(t, m, 3, roomA)
	_, err = m.StartGame(ctx, roomA.ID)
	require.NoError(t, err)
	_, err = m.CompleteGame(ctx, roomA.ID)
	require.NoError(t, err)

	_, err = m.CreateRoom(ctx, 1, "Third Time Lucky")
	assert.NoError(t, err)
}

func TestCreateRoomUnknownManager(t *testing.T) {
	m := newTestMoroz(2)

	_, err := m.CreateRoom(context.Background(), 99, "Ghost Room")
	assert.ErrorIs(t, err, repository.ErrUserNotFound)
}

func TestJoinAndLeave(t *testing.T) {
	m := newTestMoroz(2)
	ctx := context.Background()
	registerUser(t, m, 1)
	registerUser(t, m, 2)

	room, err := m.CreateRoom(ctx, 1, "Office Party")
	require.NoError(t, err)

	joined, err := m.JoinRoomByShortCode(ctx, 2, room.ShortCode)
	require.NoError(t, err)
	assert.Equal(t, room.ID, joined.ID)

	user, err := m.GetUser(ctx, 2)
	require.NoError(t, err)
	assert.True(t, user.InRoom())

	_, err = m.JoinRoomByShortCode(ctx, 2, room.ShortCode)
	assert.ErrorIs(t, err, ErrAlreadyInRoom)

	left, err := m.LeaveRoom(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, room.ID, left.ID)

	_, err = m.LeaveRoom(ctx, 2)
	assert.ErrorIs(t, err, repository.ErrNotInRoom)
}

func TestJoinUnknownCode(t *testing.T) {
	m := newTestMoroz(2)
	ctx := context.Background()
	registerUser(t, m, 1)

	room, err := m.CreateRoom(ctx, 1, "Office Party")
	require.NoError(t, err)

	_, err = m.JoinRoomByShortCode(ctx, 1, (room.ShortCode+1)%10000)
	assert.ErrorIs(t, err, repository.ErrRoomNotFound)
}

func TestJoinAfterGameStarted(t *testing.T) {
	m := newTestMoroz(2)
	ctx := context.Background()
	registerUser(t, m, 1)
	registerUser(t, m, 2)
	registerUser(t, m, 3)
	registerUser(t, m, 4)

	room, err := m.CreateRoom(ctx, 1, "Office Party")
	require.NoError(t, err)
	joinRoom(t, m, 2, room)
	joinRoom(t, m, 3, room)

	_, err = m.StartGame(ctx, room.ID)
	require.NoError(t, err)

	_, err = m.JoinRoomByShortCode(ctx, 4, room.ShortCode)
	assert.ErrorIs(t, err, ErrGameAlreadyStarted)
}

func TestStartGameTooSmall(t *testing.T) {
	m := newTestMoroz(3)
	ctx := context.Background()
	registerUser(t, m, 1)
	registerUser(t, m, 2)
	registerUser(t, m, 3)

	room, err := m.CreateRoom(ctx, 1, "Office Party")
	require.NoError(t, err)
	joinRoom(t, m, 2, room)
	joinRoom(t, m, 3, room)

	_, err = m.StartGame(ctx, room.ID)
	assert.ErrorIs(t, err, ErrRoomTooSmall)
}

func TestStartGameAssignsEveryone(t *testing.T) {
	m := newTestMoroz(2)
	ctx := context.Background()
	registerUser(t, m, 1)
	for i := int64(2); i <= 5; i++ {
		registerUser(t, m, i)
	}

	room, err := m.CreateRoom(ctx, 1, "Office Party")
	require.NoError(t, err)
	for i := int64(2); i <= 5; i++ {
		joinRoom(t, m, i, room)
	}

	pairs, err := m.StartGame(ctx, room.ID)
	require.NoError(t, err)
	require.Len(t, pairs, 4)

	receivers := make(map[int64]bool)
	for _, pair := range pairs {
		assert.NotEqual(t, pair.Giver.ID, pair.Receiver.ID)
		assert.False(t, receivers[pair.Receiver.ID])
		receivers[pair.Receiver.ID] = true
	}

	for i := int64(2); i <= 5; i++ {
		target, err := m.GetTarget(ctx, room.ID, i)
		require.NoError(t, err)
		assert.NotEqual(t, i, target.ID)
	}

	started, err := m.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.True(t, started.GameStarted())

	_, err = m.StartGame(ctx, room.ID)
	assert.ErrorIs(t, err, ErrGameAlreadyStarted)
}

func TestCompleteGame(t *testing.T) {
	m := newTestMoroz(2)
	ctx := context.Background()
	registerUser(t, m, 1)
	registerUser(t, m, 2)
	registerUser(t, m, 3)

	room, err := m.CreateRoom(ctx, 1, "Office Party")
	require.NoError(t, err)
	joinRoom(t, m, 2, room)
	joinRoom(t, m, 3, room)

	_, err = m.CompleteGame(ctx, room.ID)
	assert.ErrorIs(t, err, ErrGameNotStarted)

	_, err = m.StartGame(ctx, room.ID)
	require.NoError(t, err)

	members, err := m.CompleteGame(ctx, room.ID)
	require.NoError(t, err)
	assert.Len(t, members, 2)

	completed, err := m.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.True(t, completed.GameCompleted())

	// Completed rooms hold no members and are no longer joinable by code.
	remaining, err := m.GetUsersInRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.Empty(t, remaining)
	_, err = m.JoinRoomByShortCode(ctx, 2, room.ShortCode)
	assert.ErrorIs(t, err, repository.ErrRoomNotFound)

	_, err = m.CompleteGame(ctx, room.ID)
	assert.ErrorIs(t, err, ErrGameAlreadyCompleted)
	_, err = m.StartGame(ctx, room.ID)
	assert.ErrorIs(t, err, ErrGameAlreadyCompleted)
}

func TestDeleteRoomEvictsMembers(t *testing.T) {
	m := newTestMoroz(2)
	ctx := context.Background()
	registerUser(t, m, 1)
	registerUser(t, m, 2)
	registerUser(t, m, 3)

	room, err := m.CreateRoom(ctx, 1, "Office Party")
	require.NoError(t, err)
	joinRoom(t, m, 2, room)
	joinRoom(t, m, 3, room)

	members, err := m.DeleteRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.Len(t, members, 2)

	_, err = m.GetRoom(ctx, room.ID)
	assert.ErrorIs(t, err, repository.ErrRoomNotFound)

	for _, id := range []int64{2, 3} {
		user, err := m.GetUser(ctx, id)
		require.NoError(t, err)
		assert.False(t, user.InRoom())
	}
}

// snapshotHookRepo runs a one-shot hook right after a member snapshot is
// taken, to interleave membership changes with an in-flight room transition.
type snapshotHookRepo struct {
	repository.Repository
	onUsersInRoom func()
}

func (r *snapshotHookRepo) GetUsersInRoom(ctx context.Context, roomID string) ([]models.User, error) {
	users, err := r.Repository.GetUsersInRoom(ctx, roomID)
	if r.onUsersInRoom != nil {
		hook := r.onUsersInRoom
		r.onUsersInRoom = nil
		hook()
	}
	return users, err
}

func TestDeleteRoomKeepsMembersWhoMoved(t *testing.T) {
	ctx := context.Background()
	mem := repository.NewMemoryRepository()
	hooked := &snapshotHookRepo{Repository: mem}
	m := NewMoroz(hooked, MorozConfig{MaxRoomsManagedByUser: 2, MinPlayersToStartGame: 2},
		rand.New(rand.NewSource(1)))

	for id := int64(1); id <= 3; id++ {
		registerUser(t, m, id)
	}
	roomA, err := m.CreateRoom(ctx, 1, "First")
	require.NoError(t, err)
	roomB, err := m.CreateRoom(ctx, 1, "Second")
	require.NoError(t, err)
	require.NoError(t, mem.JoinRoom(ctx, 2, roomA.ID))
	require.NoError(t, mem.JoinRoom(ctx, 3, roomA.ID))

	// Between the member snapshot and eviction, user 3 leaves and joins
	// another room.
	hooked.onUsersInRoom = func() {
		_, err := mem.LeaveRoom(ctx, 3)
		require.NoError(t, err)
		require.NoError(t, mem.JoinRoom(ctx, 3, roomB.ID))
	}

	members, err := m.DeleteRoom(ctx, roomA.ID)
	require.NoError(t, err)
	assert.Len(t, members, 2)

	user2, err := m.GetUser(ctx, 2)
	require.NoError(t, err)
	assert.False(t, user2.InRoom())

	// User 3 keeps their new membership instead of being yanked out of it.
	user3, err := m.GetUser(ctx, 3)
	require.NoError(t, err)
	require.NotNil(t, user3.RoomID)
	assert.Equal(t, roomB.ID, *user3.RoomID)
}

func TestCompleteGameKeepsMembersWhoMoved(t *testing.T) {
	ctx := context.Background()
	mem := repository.NewMemoryRepository()
	hooked := &snapshotHookRepo{Repository: mem}
	m := NewMoroz(hooked, MorozConfig{MaxRoomsManagedByUser: 2, MinPlayersToStartGame: 2},
		rand.New(rand.NewSource(1)))

	for id := int64(1); id <= 3; id++ {
		registerUser(t, m, id)
	}
	roomA, err := m.CreateRoom(ctx, 1, "First")
	require.NoError(t, err)
	roomB, err := m.CreateRoom(ctx, 1, "Second")
	require.NoError(t, err)
	require.NoError(t, mem.JoinRoom(ctx, 2, roomA.ID))
	require.NoError(t, mem.JoinRoom(ctx, 3, roomA.ID))

	_, err = m.StartGame(ctx, roomA.ID)
	require.NoError(t, err)

	hooked.onUsersInRoom = func() {
		_, err := mem.LeaveRoom(ctx, 3)
		require.NoError(t, err)
		require.NoError(t, mem.JoinRoom(ctx, 3, roomB.ID))
	}

	members, err := m.CompleteGame(ctx, roomA.ID)
	require.NoError(t, err)
	assert.Len(t, members, 2)

	completed, err := m.GetRoom(ctx, roomA.ID)
	require.NoError(t, err)
	assert.True(t, completed.GameCompleted())

	user2, err := m.GetUser(ctx, 2)
	require.NoError(t, err)
	assert.False(t, user2.InRoom())

	user3, err := m.GetUser(ctx, 3)
	require.NoError(t, err)
	require.NotNil(t, user3.RoomID)
	assert.Equal(t, roomB.ID, *user3.RoomID)
}

func TestUpdateName(t *testing.T) {
	m := newTestMoroz(2)
	ctx := context.Background()
	registerUser(t, m, 1)

	err := m.UpdateName(ctx, 1, "John Doe")
	require.NoError(t, err)

	user, err := m.GetUser(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "John Doe", user.DisplayName())

	err = m.UpdateName(ctx, 1, "John3")
	assert.True(t, errors.Is(err, ErrInvalidName))
	assert.Contains(t, err.Error(), "can only contain letters and spaces")
}

func TestMinPlayersFloor(t *testing.T) {
	m := newTestMoroz(0)
	assert.Equal(t, 2, m.MinPlayersToStartGame())
}

func TestGetUserInformation(t *testing.T) {
	m := newTestMoroz(2)
	ctx := context.Background()
	registerUser(t, m, 1)
	registerUser(t, m, 2)

	room, err := m.CreateRoom(ctx, 1, "Office Party")
	require.NoError(t, err)
	joinRoom(t, m, 2, room)
	joinRoom(t, m, 1, room)
	_, err = m.StartGame(ctx, room.ID)
	require.NoError(t, err)

	info, err := m.GetUserInformation(ctx, 2)
	require.NoError(t, err)
	assert.Contains(t, info, "user2")
	assert.Contains(t, info, "Office Party")
	assert.Contains(t, info, "You are to give a gift to")

	info, err = m.GetUserInformation(ctx, 1)
	require.NoError(t, err)
	assert.Contains(t, info, "You manage 1 active room(s):")
}

func TestGetRoomInformation(t *testing.T) {
	m := newTestMoroz(2)
	ctx := context.Background()
	registerUser(t, m, 1)
	registerUser(t, m, 2)

	room, err := m.CreateRoom(ctx, 1, "Office Party")
	require.NoError(t, err)

	info, err := m.GetRoomInformation(ctx, room.ID)
	require.NoError(t, err)
	assert.Contains(t, info, "Office Party")
	assert.Contains(t, info, room.DisplayShortCode())
	assert.Contains(t, info, "Status: open")
	assert.Contains(t, info, "No players in the room yet.")

	joinRoom(t, m, 2, room)
	info, err = m.GetRoomInformation(ctx, room.ID)
	require.NoError(t, err)
	assert.Contains(t, info, "Players (1):")
	assert.Contains(t, info, "user2")
}
