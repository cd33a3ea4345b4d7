package redisclient

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockNotAcquired = errors.New("lock not acquired")
)

// Locker guards a critical section identified by key. A held key fails fast
// with ErrLockNotAcquired instead of waiting.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// BookingKey serialises bookings for one doctor on one day, which covers
// every span that could overlap.
func BookingKey(doctor, date string) string {
	return fmt.Sprintf("lock:booking:%s:%s", doctor, date)
}

// ReminderKey serialises reminder sends for one appointment.
func ReminderKey(appointmentID int64) string {
	return fmt.Sprintf("lock:reminder:%d", appointmentID)
}

type redisLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisLocker creates a locker backed by SET NX keys with a TTL.
func NewRedisLocker(client *redis.Client, ttl time.Duration) Locker {
	return &redisLocker{
		client: client,
		ttl:    ttl,
	}
}

func (l *redisLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return ErrLockNotAcquired
	}

	defer func() {
		_ = l.release(context.WithoutCancel(ctx), key, token)
	}()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *redisLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}

// LocalLocker is the single-process counterpart used with the in-memory store.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]struct{})}
}

func (l *LocalLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	if _, busy := l.held[key]; busy {
		l.mu.Unlock()
		return ErrLockNotAcquired
	}
	l.held[key] = struct{}{}
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		delete(l.held, key)
		l.mu.Unlock()
	}()

	return fn(ctx)
}
