package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Outlives one settlement job; a crashed holder frees the lock on expiry.
const defaultLockTTL = 5 * time.Minute

// ErrLockLost is returned by Extend when another worker owns the lock.
var ErrLockLost = errors.New("cron lock lost")

// Lock serializes settlement cycles across cron-worker replicas.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Extend(ctx context.Context) error
	Release(ctx context.Context) error
}

type lockStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
}

// RedisLock is a single-key lease. The holder writes a random token and
// only that token may extend or delete it.
type RedisLock struct {
	store lockStore
	key   string
	ttl   time.Duration
	token string
}

func NewRedisLock(store lockStore, key string, ttl time.Duration) (*RedisLock, error) {
	if store == nil {
		return nil, errors.New("redis client required for lock")
	}
	if key == "" {
		return nil, errors.New("lock key is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLock{store: store, key: key, ttl: ttl}, nil
}

func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	token := uuid.NewString()
	ok, err := l.store.SetNX(ctx, l.key, token, l.ttl)
	if err != nil {
		return false, fmt.Errorf("setnx %s: %w", l.key, err)
	}
	if ok {
		l.token = token
	}
	return ok, nil
}

// Extend pushes the lease out by another TTL. Called between jobs so a
// slow settlement batch does not let a second worker start the same cycle.
func (l *RedisLock) Extend(ctx context.Context) error {
	held, err := l.holds(ctx)
	if err != nil {
		return err
	}
	if !held {
		l.token = ""
		return ErrLockLost
	}
	ok, err := l.store.Expire(ctx, l.key, l.ttl)
	if err != nil {
		return fmt.Errorf("extend %s: %w", l.key, err)
	}
	if !ok {
		l.token = ""
		return ErrLockLost
	}
	return nil
}

// Release deletes the key if this instance still holds it.
func (l *RedisLock) Release(ctx context.Context) error {
	held, err := l.holds(ctx)
	if err != nil || !held {
		return err
	}
	if err := l.store.Del(ctx, l.key); err != nil {
		return fmt.Errorf("delete lock: %w", err)
	}
	l.token = ""
	return nil
}

func (l *RedisLock) holds(ctx context.Context) (bool, error) {
	if l.token == "" {
		return false, nil
	}
	current, err := l.store.Get(ctx, l.key)
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read lock owner: %w", err)
	}
	return current == l.token, nil
}
