// internal/common/database/redis.go
package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"loan-console/internal/common/config"

	"github.com/redis/go-redis/v9"
)

// ErrKeyNotFound is returned by Get for a missing key.
var ErrKeyNotFound = errors.New("key not found")

// RedisClient wraps the Redis client and namespaces every key with a prefix.
type RedisClient struct {
	Client *redis.Client
	prefix string
}

// NewRedis creates a new Redis client. The console holds at most a few
// keys, so the pool is kept small.
func NewRedis(cfg config.RedisConfig) (*RedisClient, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     2,
	})

	return &RedisClient{Client: rdb, prefix: cfg.KeyPrefix}, nil
}

// NewRedisFromClient wraps an existing client (redismock, miniredis).
func NewRedisFromClient(rdb *redis.Client, prefix string) *RedisClient {
	return &RedisClient{Client: rdb, prefix: prefix}
}

// Ping tests the Redis connection
func (c *RedisClient) Ping(ctx context.Context) error {
	if err := c.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Close closes the Redis connection
func (c *RedisClient) Close() error {
	if c.Client != nil {
		return c.Client.Close()
	}
	return nil
}

// Key returns the namespaced key.
func (c *RedisClient) Key(key string) string {
	return c.prefix + key
}

// Get retrieves a value by key
func (c *RedisClient) Get(ctx context.Context, key string) (string, error) {
	val, err := c.Client.Get(ctx, c.Key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrKeyNotFound
	}
	return val, err
}

// Set sets a value without expiration
func (c *RedisClient) Set(ctx context.Context, key, value string) error {
	return c.Client.Set(ctx, c.Key(key), value, 0).Err()
}

// Del deletes one key
func (c *RedisClient) Del(ctx context.Context, key string) error {
	return c.Client.Del(ctx, c.Key(key)).Err()
}
