package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	sessionPrefix = "session:"
	statePrefix   = "state:"
)

// RedisStore keeps sessions in Redis with native key expiry.
type RedisStore struct {
	client *redis.Client
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, sessionID string) (*Session, error) {
	data, err := s.client.Get(ctx, sessionPrefix+sessionID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get session: %w", err)
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("parse session: %w", err)
	}
	if sess.IsExpired() {
		return nil, nil
	}
	return &sess, nil
}

func (s *RedisStore) Set(ctx context.Context, sess *Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		return s.Delete(ctx, sess.ID)
	}
	if err := s.client.Set(ctx, sessionPrefix+sess.ID, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set session: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, sessionPrefix+sessionID).Err(); err != nil {
		return fmt.Errorf("redis delete session: %w", err)
	}
	return nil
}

// Cleanup is a no-op: Redis expires keys itself.
func (s *RedisStore) Cleanup(ctx context.Context) error { return nil }

// Close does not close the shared client.
func (s *RedisStore) Close() error { return nil }

// RedisStateStore keeps state tokens in Redis.
type RedisStateStore struct {
	client *redis.Client
}

var _ StateStore = (*RedisStateStore)(nil)

// NewRedisStateStore wraps an existing client.
func NewRedisStateStore(client *redis.Client) *RedisStateStore {
	return &RedisStateStore{client: client}
}

func (s *RedisStateStore) Generate(ctx context.Context, ttl time.Duration) (string, error) {
	state, err := GenerateState()
	if err != nil {
		return "", err
	}
	if err := s.client.Set(ctx, statePrefix+state, "1", ttl).Err(); err != nil {
		return "", fmt.Errorf("redis set state: %w", err)
	}
	return state, nil
}

func (s *RedisStateStore) Validate(ctx context.Context, state string) (bool, error) {
	n, err := s.client.Del(ctx, statePrefix+state).Result()
	if err != nil {
		return false, fmt.Errorf("redis validate state: %w", err)
	}
	return n == 1, nil
}

// Cleanup is a no-op: Redis expires keys itself.
func (s *RedisStateStore) Cleanup(ctx context.Context) error { return nil }
