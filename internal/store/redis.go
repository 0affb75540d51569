package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"

	"github.com/sks2025/werbrtc-sub000/internal/domain"
)

const (
	chatTTL      = 24 * time.Hour
	maxChatItems = 500
)

// ChatMessage is the ephemeral chat record mirrored to Redis so a
// reconnecting participant can backfill the conversation.
type ChatMessage struct {
	ID        string        `json:"id"`
	RoomID    domain.RoomID `json:"roomId"`
	Role      domain.Role   `json:"role"`
	Sender    string        `json:"sender,omitempty"`
	Text      string        `json:"text"`
	Timestamp int64         `json:"timestamp"`
}

// RedisStore handles Redis operations: ephemeral chat history and login
// throttling. The whole store is optional; a nil *RedisStore degrades to
// no history and no throttling.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func chatKey(roomID domain.RoomID) string {
	return fmt.Sprintf("room:%s:chat", roomID)
}

func loginKey(email string) string {
	return fmt.Sprintf("login:attempts:%s", email)
}

// AddChatMessage appends a message to the room's history with a rolling TTL.
func (s *RedisStore) AddChatMessage(ctx context.Context, msg *ChatMessage) error {
	if s == nil {
		return nil
	}
	if msg.ID == "" {
		msg.ID = ulid.Make().String()
	}
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().UnixMilli()
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	key := chatKey(msg.RoomID)
	pipe := s.client.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(msg.Timestamp), Member: data})
	pipe.ZRemRangeByRank(ctx, key, 0, int64(-maxChatItems-1))
	pipe.Expire(ctx, key, chatTTL)
	_, err = pipe.Exec(ctx)
	return err
}

// ChatHistory returns the room's messages in chronological order.
func (s *RedisStore) ChatHistory(ctx context.Context, roomID domain.RoomID) ([]ChatMessage, error) {
	if s == nil {
		return nil, nil
	}
	raw, err := s.client.ZRange(ctx, chatKey(roomID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]ChatMessage, 0, len(raw))
	for _, item := range raw {
		var msg ChatMessage
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}

// AllowLogin counts an attempt for the email within a fixed window and
// reports whether it is still under the limit.
func (s *RedisStore) AllowLogin(ctx context.Context, email string, limit int, window time.Duration) (bool, error) {
	if s == nil {
		return true, nil
	}
	key := loginKey(email)
	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return true, err
	}
	if count == 1 {
		s.client.Expire(ctx, key, window)
	}
	return count <= int64(limit), nil
}
