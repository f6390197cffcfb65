package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/cropwise/plantclinic/internal/models"
)

const redisKeyPrefix = "plantclinic:session:"

// RedisStore persists sessions in Redis with the TTL enforced natively per
// key, refreshed on every save.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to the Redis instance described by the URL
// (redis://host:port/db).
func NewRedisStore(url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	slog.Debug("NewRedisStore: store ready", "addr", opts.Addr)
	return &RedisStore{client: client}, nil
}

func redisKey(sessionID string) string { return redisKeyPrefix + sessionID }

// Load reads the session key. Expiry is handled by Redis itself.
func (s *RedisStore) Load(ctx context.Context, sessionID string) (*models.WorkflowState, error) {
	blob, err := s.client.Get(ctx, redisKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}
	var state models.WorkflowState
	if err := json.Unmarshal(blob, &state); err != nil {
		return nil, fmt.Errorf("failed to decode session %s: %w", sessionID, err)
	}
	return &state, nil
}

// Save writes the session and refreshes its TTL.
func (s *RedisStore) Save(ctx context.Context, state *models.WorkflowState) error {
	blob, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode session %s: %w", state.SessionID, err)
	}
	if err := s.client.Set(ctx, redisKey(state.SessionID), blob, TTL).Err(); err != nil {
		return fmt.Errorf("failed to save session %s: %w", state.SessionID, err)
	}
	return nil
}

// Delete removes the session key.
func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, redisKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to delete session %s: %w", sessionID, err)
	}
	return nil
}

// List scans for all live session keys.
func (s *RedisStore) List(ctx context.Context) ([]*models.WorkflowState, error) {
	var states []*models.WorkflowState
	iter := s.client.Scan(ctx, 0, redisKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		blob, err := s.client.Get(ctx, iter.Val()).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read session key %s: %w", iter.Val(), err)
		}
		var state models.WorkflowState
		if err := json.Unmarshal(blob, &state); err != nil {
			continue
		}
		states = append(states, &state)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan sessions: %w", err)
	}
	return states, nil
}

// Cleanup is a no-op: Redis expires keys natively.
func (s *RedisStore) Cleanup(ctx context.Context) (int, error) { return 0, nil }

// Close closes the client.
func (s *RedisStore) Close() error { return s.client.Close() }
