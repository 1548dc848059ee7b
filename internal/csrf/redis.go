package csrf

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const tokenPrefix = "csrf:"

// RedisStore implements Store using Redis key expiry
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore creates a new Redis-backed CSRF token store
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

// SaveToken stores a CSRF token with expiration
func (s *RedisStore) SaveToken(ctx context.Context, token string, expiresIn time.Duration) error {
	if token == "" {
		return errors.New("empty token")
	}

	if err := s.client.Set(ctx, tokenPrefix+token, "1", expiresIn).Err(); err != nil {
		return fmt.Errorf("storing token: %w", err)
	}
	return nil
}

// ValidateToken checks that a token exists. Redis drops expired keys, so a
// missing key covers both unknown and expired tokens.
func (s *RedisStore) ValidateToken(ctx context.Context, token string) error {
	if token == "" {
		return ErrInvalidToken
	}

	ttl, err := s.client.TTL(ctx, tokenPrefix+token).Result()
	if err != nil {
		return fmt.Errorf("checking token: %w", err)
	}
	// -2 means the key does not exist
	if ttl == -2 {
		return ErrInvalidToken
	}
	if ttl == 0 {
		return ErrTokenExpired
	}
	return nil
}

// CheckHealth verifies Redis connectivity
func (s *RedisStore) CheckHealth(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}
