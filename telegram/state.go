package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Conversation states: what kind of plain-text reply the bot is waiting for
// from a chat.
const (
	StateNone          = ""
	StateAwaitRoomName = "await_room_name"
	StateAwaitCode     = "await_code"
	StateAwaitName     = "await_name"
)

type ChatState struct {
	State string `json:"state"`
}

// StateStore keeps per-chat conversation state in redis so a restart does not
// strand users mid-dialogue. Entries expire on their own.
type StateStore struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewStateStore(redisClient *redis.Client) *StateStore {
	return &StateStore{redis: redisClient, ttl: 10 * time.Minute}
}

func stateKey(chatID int64) string {
	return fmt.Sprintf("tg:state:%d", chatID)
}

func (s *StateStore) Get(ctx context.Context, chatID int64) ChatState {
	data, err := s.redis.Get(ctx, stateKey(chatID)).Result()
	if err != nil {
		if err != redis.Nil {
			logrus.WithError(err).WithField("chat_id", chatID).Error("Redis error reading chat state")
		}
		return ChatState{}
	}

	var state ChatState
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		logrus.WithError(err).WithField("chat_id", chatID).Error("Failed to unmarshal chat state")
		return ChatState{}
	}
	return state
}

func (s *StateStore) Set(ctx context.Context, chatID int64, state ChatState) {
	data, err := json.Marshal(state)
	if err != nil {
		logrus.WithError(err).WithField("chat_id", chatID).Error("Failed to marshal chat state")
		return
	}
	if err := s.redis.Set(ctx, stateKey(chatID), data, s.ttl).Err(); err != nil {
		logrus.WithError(err).WithField("chat_id", chatID).Error("Redis error storing chat state")
	}
}

func (s *StateStore) Clear(ctx context.Context, chatID int64) {
	if err := s.redis.Del(ctx, stateKey(chatID)).Err(); err != nil {
		logrus.WithError(err).WithField("chat_id", chatID).Error("Redis error clearing chat state")
	}
}
