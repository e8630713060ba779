package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mhpenta/imagestudio"
	"github.com/redis/go-redis/v9"
)

// RedisOptions configures a RedisStore.
type RedisOptions struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string

	// TTL expires items and indexes. Zero keeps them forever.
	TTL time.Duration
}

// RedisStore keeps one JSON value per item, keyed by item ID alone, and a per-user
// sorted set scored by timestamp for ordering.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

var _ imagestudio.HistoryRecorder = (*RedisStore)(nil)

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewRedisStoreFromClient(client, opts), nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client *redis.Client, opts RedisOptions) *RedisStore {
	prefix := opts.KeyPrefix
	if prefix == "" {
		prefix = "imagestudio:"
	}
	return &RedisStore{
		client:    client,
		keyPrefix: prefix + "history:",
		ttl:       opts.TTL,
	}
}

func (s *RedisStore) itemKey(id string) string {
	return s.keyPrefix + "item:" + id
}

func (s *RedisStore) userKey(userID string) string {
	return s.keyPrefix + "user:" + userID
}

func (s *RedisStore) Save(ctx context.Context, item *imagestudio.HistoryItem) error {
	if err := validateItem(item); err != nil {
		return err
	}

	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to marshal history item: %w", err)
	}

	// Item keys are global, so SETNX rejects an ID held by any user.
	created, err := s.client.SetNX(ctx, s.itemKey(item.ID), data, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to save history item: %w", err)
	}
	if !created {
		return fmt.Errorf("%w: %s", imagestudio.ErrHistoryExists, item.ID)
	}

	pipe := s.client.TxPipeline()
	pipe.ZAdd(ctx, s.userKey(item.UserID), redis.Z{
		Score:  float64(item.Timestamp.UnixNano()),
		Member: item.ID,
	})
	if s.ttl > 0 {
		pipe.Expire(ctx, s.userKey(item.UserID), s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		s.client.Del(ctx, s.itemKey(item.ID))
		return fmt.Errorf("failed to index history item: %w", err)
	}
	return nil
}

func (s *RedisStore) List(ctx context.Context, userID string) ([]*imagestudio.HistoryItem, error) {
	ids, err := s.client.ZRevRange(ctx, s.userKey(userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	if len(ids) == 0 {
		return []*imagestudio.HistoryItem{}, nil
	}

	items, stale, err := s.load(ctx, userID, ids)
	if err != nil {
		return nil, err
	}
	if len(stale) > 0 {
		s.client.ZRem(ctx, s.userKey(userID), stale...)
	}
	return items, nil
}

// load fetches the items behind ids that still belong to userID. IDs whose item
// expired, or was re-created by another user after expiry, are returned as stale.
func (s *RedisStore) load(ctx context.Context, userID string, ids []string) ([]*imagestudio.HistoryItem, []any, error) {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.itemKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load history items: %w", err)
	}

	items := make([]*imagestudio.HistoryItem, 0, len(values))
	var stale []any
	for i, v := range values {
		str, ok := v.(string)
		if !ok {
			stale = append(stale, ids[i])
			continue
		}
		var item imagestudio.HistoryItem
		if err := json.Unmarshal([]byte(str), &item); err != nil {
			return nil, nil, fmt.Errorf("failed to unmarshal history item %s: %w", ids[i], err)
		}
		if item.UserID != userID {
			stale = append(stale, ids[i])
			continue
		}
		items = append(items, &item)
	}
	return items, stale, nil
}

func (s *RedisStore) DeleteOne(ctx context.Context, userID, id string) error {
	items, _, err := s.load(ctx, userID, []string{id})
	if err != nil {
		return fmt.Errorf("failed to delete history item: %w", err)
	}

	pipe := s.client.TxPipeline()
	if len(items) == 1 {
		pipe.Del(ctx, s.itemKey(id))
	}
	pipe.ZRem(ctx, s.userKey(userID), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete history item: %w", err)
	}
	if len(items) == 0 {
		return imagestudio.ErrHistoryNotFound
	}
	return nil
}

func (s *RedisStore) DeleteAll(ctx context.Context, userID string) error {
	ids, err := s.client.ZRange(ctx, s.userKey(userID), 0, -1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to clear history: %w", err)
	}

	keys := []string{s.userKey(userID)}
	if len(ids) > 0 {
		items, _, err := s.load(ctx, userID, ids)
		if err != nil {
			return fmt.Errorf("failed to clear history: %w", err)
		}
		for _, item := range items {
			keys = append(keys, s.itemKey(item.ID))
		}
	}

	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	return nil
}

// Ping checks if the store is healthy.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
