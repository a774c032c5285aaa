package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store on redis.
type RedisStore struct {
	rdb *redis.Client
}

// RedisStoreParams configures the redis connection.
type RedisStoreParams struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisStore connects to redis and verifies the connection.
func NewRedisStore(ctx context.Context, params RedisStoreParams) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     params.Addr,
		Password: params.Password,
		DB:       params.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisStore{rdb: rdb}, nil
}

// Close releases the underlying client.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

func stateKey(namespace, key string) string {
	return fmt.Sprintf("jobs:%s:%s", namespace, key)
}

func nextRunKey(namespace string) string {
	return fmt.Sprintf("jobs:nextrun:%s", namespace)
}

func (s *RedisStore) Save(ctx context.Context, namespace string, key string, value string, ttl time.Duration) error {
	return s.rdb.Set(ctx, stateKey(namespace, key), value, ttl).Err()
}

func (s *RedisStore) Get(ctx context.Context, namespace string, key string) (string, error) {
	value, err := s.rdb.Get(ctx, stateKey(namespace, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

func (s *RedisStore) SaveError(ctx context.Context, namespace string, itemID string, payload any) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode error payload: %w", err)
	}
	return s.Save(ctx, namespace, "error:"+itemID, string(encoded), SnapshotTTL)
}

func (s *RedisStore) NextRun(ctx context.Context, namespace string) (time.Time, error) {
	value, err := s.rdb.Get(ctx, nextRunKey(namespace)).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse next run for %s: %w", namespace, err)
	}
	return t, nil
}

func (s *RedisStore) SetNextRun(ctx context.Context, namespace string, t time.Time) error {
	return s.rdb.Set(ctx, nextRunKey(namespace), t.Format(time.RFC3339), 0).Err()
}
