package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestShortCodeFromID(t *testing.T) {
	assert.Equal(t, 255, ShortCodeFromID("00ff"))
	assert.Equal(t, 7295, ShortCodeFromID("ffffffff")) // 4294967295 % 10000
	assert.Equal(t, 0, ShortCodeFromID("0"))
	assert.Equal(t, 0, ShortCodeFromID("not-hex"))
}

func TestMemoryUserLifecycle(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	_, err := repo.GetUser(ctx, 1)
	assert.ErrorIs(t, err, ErrUserNotFound)

	user, err := repo.CreateUser(ctx, 1, strPtr("alice"), nil)
	require.NoError(t, err)
	assert.Equal(t, "alice", user.DisplayName())

	_, err = repo.CreateUser(ctx, 1, nil, nil)
	assert.ErrorIs(t, err, ErrUserAlreadyExists)

	require.NoError(t, repo.SetUserName(ctx, 1, "Alice"))
	user, err = repo.GetUser(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Alice", user.DisplayName())
	assert.Equal(t, "Alice (@alice)", user.FormalDisplayName())

	assert.ErrorIs(t, repo.SetUserName(ctx, 99, "Nobody"), ErrUserNotFound)
}

func TestMemoryRoomLifecycle(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	_, err := repo.CreateRoom(ctx, 1, "No Manager")
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = repo.CreateUser(ctx, 1, strPtr("alice"), nil)
	require.NoError(t, err)

	room, err := repo.CreateRoom(ctx, 1, "Office Party")
	require.NoError(t, err)
	assert.Len(t, room.ID, 8)
	assert.Equal(t, ShortCodeFromID(room.ID), room.ShortCode)
	assert.True(t, room.IsActive())

	got, err := repo.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, room.ID, got.ID)

	byCode, err := repo.GetRoomByShortCode(ctx, room.ShortCode)
	require.NoError(t, err)
	assert.Equal(t, room.ID, byCode.ID)

	require.NoError(t, repo.DeleteRoom(ctx, room.ID))
	_, err = repo.GetRoom(ctx, room.ID)
	assert.ErrorIs(t, err, ErrRoomNotFound)
	assert.ErrorIs(t, repo.DeleteRoom(ctx, room.ID), ErrRoomNotFound)
}

func TestMemoryShortCodeSkipsCompletedRooms(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	_, err := repo.CreateUser(ctx, 1, nil, nil)
	require.NoError(t, err)
	room, err := repo.CreateRoom(ctx, 1, "Office Party")
	require.NoError(t, err)

	require.NoError(t, repo.SetGameCompleted(ctx, room.ID, time.Now().UTC()))

	_, err = repo.GetRoomByShortCode(ctx, room.ShortCode)
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestMemoryMembership(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	for id := int64(1); id <= 3; id++ {
		_, err := repo.CreateUser(ctx, id, nil, nil)
		require.NoError(t, err)
	}
	room, err := repo.CreateRoom(ctx, 1, "Office Party")
	require.NoError(t, err)

	_, err = repo.LeaveRoom(ctx, 2)
	assert.ErrorIs(t, err, ErrNotInRoom)

	require.NoError(t, repo.JoinRoom(ctx, 2, room.ID))
	require.NoError(t, repo.JoinRoom(ctx, 3, room.ID))
	assert.ErrorIs(t, repo.JoinRoom(ctx, 99, room.ID), ErrUserNotFound)
	assert.ErrorIs(t, repo.JoinRoom(ctx, 2, "deadbeef"), ErrRoomNotFound)

	members, err := repo.GetUsersInRoom(ctx, room.ID)
	require.NoError(t, err)
	ids := make([]int64, 0, len(members))
	for _, member := range members {
		ids = append(ids, member.ID)
	}
	assert.ElementsMatch(t, []int64{2, 3}, ids)

	left, err := repo.LeaveRoom(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, room.ID, left.ID)

	members, err = repo.GetUsersInRoom(ctx, room.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, int64(3), members[0].ID)
}

func TestMemoryClearMembership(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	_, err := repo.CreateUser(ctx, 1, nil, nil)
	require.NoError(t, err)
	_, err = repo.CreateUser(ctx, 2, nil, nil)
	require.NoError(t, err)
	roomA, err := repo.CreateRoom(ctx, 1, "First")
	require.NoError(t, err)
	roomB, err := repo.CreateRoom(ctx, 1, "Second")
	require.NoError(t, err)

	require.NoError(t, repo.JoinRoom(ctx, 2, roomA.ID))

	// Only clears when the user is still in that exact room.
	assert.ErrorIs(t, repo.ClearMembership(ctx, 2, roomB.ID), ErrNotInRoom)
	user, err := repo.GetUser(ctx, 2)
	require.NoError(t, err)
	assert.True(t, user.InRoom())

	require.NoError(t, repo.ClearMembership(ctx, 2, roomA.ID))
	user, err = repo.GetUser(ctx, 2)
	require.NoError(t, err)
	assert.False(t, user.InRoom())

	assert.ErrorIs(t, repo.ClearMembership(ctx, 2, roomA.ID), ErrNotInRoom)
	assert.ErrorIs(t, repo.ClearMembership(ctx, 99, roomA.ID), ErrNotInRoom)
}

func TestMemoryManagedRooms(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	_, err := repo.GetRoomsManagedByUser(ctx, 1)
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = repo.CreateUser(ctx, 1, nil, nil)
	require.NoError(t, err)

	roomA, err := repo.CreateRoom(ctx, 1, "First")
	require.NoError(t, err)
	_, err = repo.CreateRoom(ctx, 1, "Second")
	require.NoError(t, err)

	all, err := repo.GetRoomsManagedByUser(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, repo.SetGameCompleted(ctx, roomA.ID, time.Now().UTC()))

	active, err := repo.GetActiveRoomsManagedByUser(ctx, 1)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "Second", active[0].Name)
}

func TestMemoryTargets(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	for id := int64(1); id <= 3; id++ {
		_, err := repo.CreateUser(ctx, id, nil, nil)
		require.NoError(t, err)
	}
	room, err := repo.CreateRoom(ctx, 1, "Office Party")
	require.NoError(t, err)

	_, err = repo.GetTarget(ctx, room.ID, 1)
	assert.ErrorIs(t, err, ErrTargetNotAssigned)

	err = repo.AssignTargets(ctx, room.ID, []TargetPair{
		{UserID: 1, TargetUserID: 2},
		{UserID: 2, TargetUserID: 3},
		{UserID: 3, TargetUserID: 1},
	})
	require.NoError(t, err)

	target, err := repo.GetTarget(ctx, room.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), target.ID)

	target, err = repo.GetTarget(ctx, room.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(1), target.ID)
}

func TestMemoryGameTimestamps(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	_, err := repo.CreateUser(ctx, 1, nil, nil)
	require.NoError(t, err)
	room, err := repo.CreateRoom(ctx, 1, "Office Party")
	require.NoError(t, err)

	now := time.Now().UTC()
	require.NoError(t, repo.SetGameStarted(ctx, room.ID, now))
	require.NoError(t, repo.SetGameCompleted(ctx, room.ID, now))

	got, err := repo.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.True(t, got.GameStarted())
	assert.True(t, got.GameCompleted())
	assert.False(t, got.IsActive())

	assert.ErrorIs(t, repo.SetGameStarted(ctx, "deadbeef", now), ErrRoomNotFound)

	// Returned rooms are copies, mutating them must not leak back.
	got.Name = "Mutated"
	fresh, err := repo.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, "Office Party", fresh.Name)
}
