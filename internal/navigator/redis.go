package navigator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"sopgraph/internal/models"
)

const sessionKeyPrefix = "sopgraph:session:"

// defaultSessionTTL bounds how long an abandoned session lingers.
const defaultSessionTTL = 24 * time.Hour

// RedisSessionStore persists sessions in Redis so navigation state
// survives process restarts and is shared across instances.
type RedisSessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSessionStore connects to Redis and verifies the connection.
func NewRedisSessionStore(ctx context.Context, addr string, db int) (*RedisSessionStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return &RedisSessionStore{client: client, ttl: defaultSessionTTL}, nil
}

func (s *RedisSessionStore) Get(ctx context.Context, sessionID string) (models.SessionState, bool, error) {
	data, err := s.client.Get(ctx, sessionKeyPrefix+sessionID).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.SessionState{}, false, nil
	}
	if err != nil {
		return models.SessionState{}, false, fmt.Errorf("get session %s: %w", sessionID, err)
	}

	var state models.SessionState
	if err := json.Unmarshal(data, &state); err != nil {
		return models.SessionState{}, false, fmt.Errorf("decode session %s: %w", sessionID, err)
	}
	return state, true, nil
}

func (s *RedisSessionStore) Put(ctx context.Context, sessionID string, state models.SessionState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", sessionID, err)
	}
	if err := s.client.Set(ctx, sessionKeyPrefix+sessionID, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("put session %s: %w", sessionID, err)
	}
	return nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, sessionKeyPrefix+sessionID).Err(); err != nil {
		return fmt.Errorf("delete session %s: %w", sessionID, err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *RedisSessionStore) Close() error {
	return s.client.Close()
}
