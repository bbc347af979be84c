package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rayannott/ded-moroz/models"
)

// MemoryRepository is an in-memory Repository. It backs the test suite and
// the DB-less development mode; semantics match GormRepository.
type MemoryRepository struct {
	mu      sync.RWMutex
	users   map[int64]*models.User
	rooms   map[string]*models.Room
	targets map[string]map[int64]int64 // room id -> user id -> target user id
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		users:   make(map[int64]*models.User),
		rooms:   make(map[string]*models.Room),
		targets: make(map[string]map[int64]int64),
	}
}

func (r *MemoryRepository) CreateUser(ctx context.Context, id int64, username, name *string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; ok {
		return nil, ErrUserAlreadyExists
	}
	user := &models.User{
		ID:       id,
		Username: username,
		Name:     name,
		JoinedAt: time.Now().UTC(),
	}
	r.users[id] = user
	return copyUser(user), nil
}

func (r *MemoryRepository) GetUser(ctx context.Context, id int64) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return copyUser(user), nil
}

func (r *MemoryRepository) SetUserName(ctx context.Context, userID int64, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	user.Name = &name
	return nil
}

func (r *MemoryRepository) CreateRoom(ctx context.Context, managerUserID int64, name string) (*models.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[managerUserID]; !ok {
		return nil, ErrUserNotFound
	}
	id := generateRoomID()
	for r.rooms[id] != nil {
		id = generateRoomID()
	}
	room := &models.Room{
		ID:            id,
		ShortCode:     ShortCodeFromID(id),
		Name:          name,
		ManagerUserID: managerUserID,
		CreatedAt:     time.Now().UTC(),
	}
	r.rooms[id] = room
	return copyRoom(room), nil
}

func (r *MemoryRepository) GetRoom(ctx context.Context, roomID string) (*models.Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[roomID]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return copyRoom(room), nil
}

func (r *MemoryRepository) GetRoomByShortCode(ctx context.Context, shortCode int) (*models.Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var matches []*models.Room
	for _, room := range r.rooms {
		if room.ShortCode == shortCode && room.IsActive() {
			matches = append(matches, room)
		}
	}
	if len(matches) == 0 {
		return nil, ErrRoomNotFound
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})
	if len(matches) > 1 {
		logrus.WithFields(logrus.Fields{
			"short_code": shortCode,
			"rooms":      len(matches),
			"resolved":   matches[0].ID,
		}).Warn("Short code collision, resolving to most recent room")
	}
	return copyRoom(matches[0]), nil
}

func (r *MemoryRepository) GetRoomsManagedByUser(ctx context.Context, userID int64) ([]models.Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.users[userID]; !ok {
		return nil, ErrUserNotFound
	}
	var rooms []models.Room
	for _, room := range r.rooms {
		if room.ManagerUserID == userID {
			rooms = append(rooms, *copyRoom(room))
		}
	}
	sort.Slice(rooms, func(i, j int) bool {
		return rooms[i].CreatedAt.Before(rooms[j].CreatedAt)
	})
	return rooms, nil
}

func (r *MemoryRepository) GetActiveRoomsManagedByUser(ctx context.Context, userID int64) ([]models.Room, error) {
	all, err := r.GetRoomsManagedByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	active := make([]models.Room, 0, len(all))
	for _, room := range all {
		if room.IsActive() {
			active = append(active, room)
		}
	}
	return active, nil
}

func (r *MemoryRepository) GetUsersInRoom(ctx context.Context, roomID string) ([]models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.rooms[roomID]; !ok {
		return nil, ErrRoomNotFound
	}
	var users []models.User
	for _, user := range r.users {
		if user.RoomID != nil && *user.RoomID == roomID {
			users = append(users, *copyUser(user))
		}
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].JoinedAt.Equal(users[j].JoinedAt) {
			return users[i].ID < users[j].ID
		}
		return users[i].JoinedAt.Before(users[j].JoinedAt)
	})
	return users, nil
}

func (r *MemoryRepository) JoinRoom(ctx context.Context, userID int64, roomID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rooms[roomID]; !ok {
		return ErrRoomNotFound
	}
	user, ok := r.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	id := roomID
	user.RoomID = &id
	return nil
}

func (r *MemoryRepository) LeaveRoom(ctx context.Context, userID int64) (*models.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	if user.RoomID == nil {
		return nil, ErrNotInRoom
	}
	room, ok := r.rooms[*user.RoomID]
	if !ok {
		return nil, ErrRoomNotFound
	}
	user.RoomID = nil
	return copyRoom(room), nil
}

func (r *MemoryRepository) ClearMembership(ctx context.Context, userID int64, roomID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[userID]
	if !ok || user.RoomID == nil || *user.RoomID != roomID {
		return ErrNotInRoom
	}
	user.RoomID = nil
	return nil
}

func (r *MemoryRepository) DeleteRoom(ctx context.Context, roomID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rooms[roomID]; !ok {
		return ErrRoomNotFound
	}
	delete(r.rooms, roomID)
	return nil
}

func (r *MemoryRepository) AssignTargets(ctx context.Context, roomID string, pairs []TargetPair) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	assignment, ok := r.targets[roomID]
	if !ok {
		assignment = make(map[int64]int64, len(pairs))
		r.targets[roomID] = assignment
	}
	for _, p := range pairs {
		assignment[p.UserID] = p.TargetUserID
	}
	return nil
}

func (r *MemoryRepository) GetTarget(ctx context.Context, roomID string, userID int64) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	targetID, ok := r.targets[roomID][userID]
	if !ok {
		return nil, ErrTargetNotAssigned
	}
	target, ok := r.users[targetID]
	if !ok {
		return nil, ErrUserNotFound
	}
	return copyUser(target), nil
}

func (r *MemoryRepository) SetGameStarted(ctx context.Context, roomID string, startedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[roomID]
	if !ok {
		return ErrRoomNotFound
	}
	ts := startedAt
	room.StartedAt = &ts
	return nil
}

func (r *MemoryRepository) SetGameCompleted(ctx context.Context, roomID string, completedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[roomID]
	if !ok {
		return ErrRoomNotFound
	}
	ts := completedAt
	room.CompletedAt = &ts
	return nil
}

func copyUser(u *models.User) *models.User {
	cp := *u
	return &cp
}

func copyRoom(r *models.Room) *models.Room {
	cp := *r
	return &cp
}
