package discovery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const cachePrefix = "discovery:"

// Cache stores raw discovery documents keyed by discovery URL.
// Get returns nil, nil on a miss.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	CheckHealth(ctx context.Context) error
}

// RedisCache implements Cache using Redis
type RedisCache struct {
	client redis.UniversalClient
}

// NewRedisCache creates a Redis-backed discovery cache
func NewRedisCache(client redis.UniversalClient) *RedisCache {
	return &RedisCache{client: client}
}

// Get retrieves a cached document
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := c.client.Get(ctx, cachePrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting cached document: %w", err)
	}
	return data, nil
}

// Set stores a document with expiration
func (c *RedisCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return errors.New("cache ttl must be positive")
	}
	if err := c.client.Set(ctx, cachePrefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("caching document: %w", err)
	}
	return nil
}

// CheckHealth verifies Redis connectivity
func (c *RedisCache) CheckHealth(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}
