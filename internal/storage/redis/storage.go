package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/tablesync/internal/model"
	"github.com/mcoot/tablesync/internal/storage"
)

// Storage is a Redis-backed implementation of the storage interface
type Storage struct {
	client *redis.Client
	cfg    Config
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return &Storage{
		client: client,
		cfg:    cfg,
	}, nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	return &Storage{
		client: client,
		cfg:    cfg,
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Profile operations

func (s *Storage) SaveProfile(ctx context.Context, profile *model.Profile) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, profileKey(profile.Username), data, s.cfg.ProfileTTL)
	pipe.Set(ctx, lastProfileKey(), string(profile.Username), s.cfg.ProfileTTL)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Storage) GetProfile(ctx context.Context, username model.Username) (*model.Profile, error) {
	data, err := s.client.Get(ctx, profileKey(username)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrProfileNotFound
		}
		return nil, err
	}

	var profile model.Profile
	if err := json.Unmarshal(data, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

func (s *Storage) GetLastProfile(ctx context.Context) (*model.Profile, error) {
	username, err := s.client.Get(ctx, lastProfileKey()).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrProfileNotFound
		}
		return nil, err
	}
	return s.GetProfile(ctx, model.Username(username))
}

func (s *Storage) DeleteProfile(ctx context.Context, username model.Username) error {
	last, err := s.client.Get(ctx, lastProfileKey()).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, profileKey(username))
	if last == string(username) {
		pipe.Del(ctx, lastProfileKey())
	}
	_, err = pipe.Exec(ctx)
	return err
}

// Chat operations

func (s *Storage) AppendChatMessage(ctx context.Context, room model.RoomID, msg model.ChatMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	key := chatKey(room)
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, data)
	if s.cfg.ChatHistoryLimit > 0 {
		pipe.LTrim(ctx, key, -s.cfg.ChatHistoryLimit, -1)
	}
	if s.cfg.ChatTTL > 0 {
		pipe.Expire(ctx, key, s.cfg.ChatTTL)
	}
	_, err = pipe.Exec(ctx)
	return err
}

// GetChatHistory returns the newest limit messages in send order. A
// non-positive limit returns everything kept.
func (s *Storage) GetChatHistory(ctx context.Context, room model.RoomID, limit int) ([]model.ChatMessage, error) {
	start := int64(0)
	if limit > 0 {
		start = -int64(limit)
	}

	entries, err := s.client.LRange(ctx, chatKey(room), start, -1).Result()
	if err != nil {
		return nil, err
	}

	messages := make([]model.ChatMessage, 0, len(entries))
	for _, entry := range entries {
		var msg model.ChatMessage
		if err := json.Unmarshal([]byte(entry), &msg); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func (s *Storage) DeleteChatHistory(ctx context.Context, room model.RoomID) error {
	return s.client.Del(ctx, chatKey(room)).Err()
}

// Room directory cache

func (s *Storage) SaveRoomList(ctx context.Context, rooms []model.RoomSummary) error {
	if rooms == nil {
		rooms = []model.RoomSummary{}
	}
	data, err := json.Marshal(rooms)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, roomListKey(), data, s.cfg.RoomListTTL).Err()
}

func (s *Storage) GetRoomList(ctx context.Context) ([]model.RoomSummary, error) {
	data, err := s.client.Get(ctx, roomListKey()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrRoomListNotCached
		}
		return nil, err
	}

	var rooms []model.RoomSummary
	if err := json.Unmarshal(data, &rooms); err != nil {
		return nil, err
	}
	return rooms, nil
}
