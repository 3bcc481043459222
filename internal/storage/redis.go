package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
)

// RedisStorage stores JSON documents in Redis with a TTL
type RedisStorage struct {
	client *redis.Client
}

// NewRedisStorage connects to redisURL and verifies the connection
func NewRedisStorage(ctx context.Context, redisURL string) (*RedisStorage, error) {
	if redisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse REDIS_URL: %w", err)
	}

	r := &RedisStorage{client: redis.NewClient(opts)}
	if err := r.Ping(ctx); err != nil {
		_ = r.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return r, nil
}

// SetJSON stores data under key
func (r *RedisStorage) SetJSON(ctx context.Context, key string, data any, ttl time.Duration) error {
	payload, err := sonic.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	if err := r.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

// GetJSON decodes key into dest; found is false when the key does not exist
func (r *RedisStorage) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	payload, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get %s: %w", key, err)
	}
	if err := sonic.Unmarshal(payload, dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return true, nil
}

// Delete removes keys; missing keys are ignored
func (r *RedisStorage) Delete(ctx context.Context, keys ...string) error {
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete %v: %w", keys, err)
	}
	return nil
}

// Close closes the Redis connection
func (r *RedisStorage) Close() error {
	return r.client.Close()
}

// Ping checks the connection
func (r *RedisStorage) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
