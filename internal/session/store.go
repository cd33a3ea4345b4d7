package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store persists per-session chat state between turns.
type Store[T any] interface {
	Get(ctx context.Context, id string) (T, bool, error)
	Put(ctx context.Context, id string, state T) error
	Delete(ctx context.Context, id string) error
}

// RedisStore keeps each session as a JSON value with a sliding TTL.
type RedisStore[T any] struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisStore[T any](client *redis.Client, ttl time.Duration) *RedisStore[T] {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisStore[T]{client: client, ttl: ttl, prefix: "chat:session:"}
}

func (s *RedisStore[T]) key(id string) string {
	return s.prefix + id
}

func (s *RedisStore[T]) Get(ctx context.Context, id string) (T, bool, error) {
	var state T
	raw, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return state, false, nil
	}
	if err != nil {
		return state, false, fmt.Errorf("session: get %s: %w", id, err)
	}
	if err := json.Unmarshal(raw, &state); err != nil {
		return state, false, fmt.Errorf("session: decode %s: %w", id, err)
	}
	return state, true, nil
}

func (s *RedisStore[T]) Put(ctx context.Context, id string, state T) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("session: encode %s: %w", id, err)
	}
	if err := s.client.Set(ctx, s.key(id), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("session: put %s: %w", id, err)
	}
	return nil
}

func (s *RedisStore[T]) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("session: delete %s: %w", id, err)
	}
	return nil
}

// MemoryStore is an unbounded in-process store for local runs and tests.
type MemoryStore[T any] struct {
	mu       sync.RWMutex
	sessions map[string]T
}

func NewMemoryStore[T any]() *MemoryStore[T] {
	return &MemoryStore[T]{sessions: make(map[string]T)}
}

func (s *MemoryStore[T]) Get(_ context.Context, id string) (T, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.sessions[id]
	return state, ok, nil
}

func (s *MemoryStore[T]) Put(_ context.Context, id string, state T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = state
	return nil
}

func (s *MemoryStore[T]) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}
