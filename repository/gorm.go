package repository

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/rayannott/ded-moroz/models"
)

// GormRepository implements Repository on top of a gorm-managed database.
type GormRepository struct {
	db *gorm.DB
}

func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

func (r *GormRepository) CreateUser(ctx context.Context, id int64, username, name *string) (*models.User, error) {
	var existing models.User
	err := r.db.WithContext(ctx).First(&existing, "id = ?", id).Error
	if err == nil {
		return nil, ErrUserAlreadyExists
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("gorm: check user %d: %w", id, err)
	}

	user := models.User{
		ID:       id,
		Username: username,
		Name:     name,
		JoinedAt: time.Now().UTC(),
	}
	if err := r.db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, fmt.Errorf("gorm: create user %d: %w", id, err)
	}
	return &user, nil
}

func (r *GormRepository) GetUser(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("gorm: get user %d: %w", id, err)
	}
	return &user, nil
}

func (r *GormRepository) SetUserName(ctx context.Context, userID int64, name string) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Update("name", name)
	if res.Error != nil {
		return fmt.Errorf("gorm: set name for user %d: %w", userID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *GormRepository) CreateRoom(ctx context.Context, managerUserID int64, name string) (*models.Room, error) {
	if _, err := r.GetUser(ctx, managerUserID); err != nil {
		return nil, err
	}

	id := generateRoomID()
	room := models.Room{
		ID:            id,
		ShortCode:     ShortCodeFromID(id),
		Name:          name,
		ManagerUserID: managerUserID,
		CreatedAt:     time.Now().UTC(),
	}
	if err := r.db.WithContext(ctx).Create(&room).Error; err != nil {
		return nil, fmt.Errorf("gorm: create room %s: %w", id, err)
	}
	return &room, nil
}

func (r *GormRepository) GetRoom(ctx context.Context, roomID string) (*models.Room, error) {
	var room models.Room
	err := r.db.WithContext(ctx).First(&room, "id = ?", roomID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("gorm: get room %s: %w", roomID, err)
	}
	return &room, nil
}

func (r *GormRepository) GetRoomByShortCode(ctx context.Context, shortCode int) (*models.Room, error) {
	var rooms []models.Room
	err := r.db.WithContext(ctx).
		Where("short_code = ? AND completed_at IS NULL", shortCode).
		Order("created_at DESC").
		Find(&rooms).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: get room by short code %d: %w", shortCode, err)
	}
	if len(rooms) == 0 {
		return nil, ErrRoomNotFound
	}
	if len(rooms) > 1 {
		logrus.WithFields(logrus.Fields{
			"short_code": shortCode,
			"rooms":      len(rooms),
			"resolved":   rooms[0].ID,
		}).Warn("Short code collision, resolving to most recent room")
	}
	return &rooms[0], nil
}

func (r *GormRepository) GetRoomsManagedByUser(ctx context.Context, userID int64) ([]models.Room, error) {
	if _, err := r.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	var rooms []models.Room
	err := r.db.WithContext(ctx).
		Where("manager_user_id = ?", userID).
		Order("created_at ASC").
		Find(&rooms).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: rooms managed by user %d: %w", userID, err)
	}
	return rooms, nil
}

func (r *GormRepository) GetActiveRoomsManagedByUser(ctx context.Context, userID int64) ([]models.Room, error) {
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

func (r *GormRepository) GetUsersInRoom(ctx context.Context, roomID string) ([]models.User, error) {
	if _, err := r.GetRoom(ctx, roomID); err != nil {
		return nil, err
	}
	var users []models.User
	err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("joined_at ASC").
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: users in room %s: %w", roomID, err)
	}
	return users, nil
}

func (r *GormRepository) JoinRoom(ctx context.Context, userID int64, roomID string) error {
	if _, err := r.GetRoom(ctx, roomID); err != nil {
		return err
	}
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Update("room_id", roomID)
	if res.Error != nil {
		return fmt.Errorf("gorm: join user %d to room %s: %w", userID, roomID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *GormRepository) LeaveRoom(ctx context.Context, userID int64) (*models.Room, error) {
	user, err := r.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.RoomID == nil {
		return nil, ErrNotInRoom
	}
	room, err := r.GetRoom(ctx, *user.RoomID)
	if err != nil {
		return nil, err
	}
	err = r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Update("room_id", nil).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: leave room for user %d: %w", userID, err)
	}
	return room, nil
}

func (r *GormRepository) ClearMembership(ctx context.Context, userID int64, roomID string) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND room_id = ?", userID, roomID).
		Update("room_id", nil)
	if res.Error != nil {
		return fmt.Errorf("gorm: clear membership for user %d in room %s: %w", userID, roomID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotInRoom
	}
	return nil
}

func (r *GormRepository) DeleteRoom(ctx context.Context, roomID string) error {
	res := r.db.WithContext(ctx).Delete(&models.Room{}, "id = ?", roomID)
	if res.Error != nil {
		return fmt.Errorf("gorm: delete room %s: %w", roomID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrRoomNotFound
	}
	return nil
}

func (r *GormRepository) AssignTargets(ctx context.Context, roomID string, pairs []TargetPair) error {
	targets := make([]models.Target, 0, len(pairs))
	for _, p := range pairs {
		targets = append(targets, models.Target{
			RoomID:       roomID,
			UserID:       p.UserID,
			TargetUserID: p.TargetUserID,
		})
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&targets).Error
	})
	if err != nil {
		return fmt.Errorf("gorm: assign %d targets in room %s: %w", len(pairs), roomID, err)
	}
	return nil
}

func (r *GormRepository) GetTarget(ctx context.Context, roomID string, userID int64) (*models.User, error) {
	var target models.Target
	err := r.db.WithContext(ctx).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		First(&target).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTargetNotAssigned
		}
		return nil, fmt.Errorf("gorm: get target for user %d in room %s: %w", userID, roomID, err)
	}
	return r.GetUser(ctx, target.TargetUserID)
}

func (r *GormRepository) SetGameStarted(ctx context.Context, roomID string, startedAt time.Time) error {
	return r.setRoomTimestamp(ctx, roomID, "started_at", startedAt)
}

func (r *GormRepository) SetGameCompleted(ctx context.Context, roomID string, completedAt time.Time) error {
	return r.setRoomTimestamp(ctx, roomID, "completed_at", completedAt)
}

func (r *GormRepository) setRoomTimestamp(ctx context.Context, roomID, column string, ts time.Time) error {
	res := r.db.WithContext(ctx).Model(&models.Room{}).Where("id = ?", roomID).Update(column, ts)
	if res.Error != nil {
		return fmt.Errorf("gorm: set %s on room %s: %w", column, roomID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrRoomNotFound
	}
	return nil
}

// generateRoomID returns a fresh opaque room id: 8 hex characters.
func generateRoomID() string {
	bytes := make([]byte, 4)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}

// ShortCodeFromID derives the human-shareable code from a hex room id.
// Codes can collide; GetRoomByShortCode resolves ties toward the most
// recently created active room.
func ShortCodeFromID(id string) int {
	n, err := strconv.ParseUint(id, 16, 64)
	if err != nil {
		return 0
	}
	return int(n % 10_000)
}
