// Package runlock keeps two processes from running the strategy at the same
// time. The lock lives in Redis under <prefix>lock:<key> and expires on its
// own if the holder dies.
package runlock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrHeld is returned by TryLock when another holder owns the key.
var ErrHeld = errors.New("run lock is held by another instance")

const DefaultPrefix = "investor:"

// UnlockFunc releases a lock. Releasing a lock that expired and was taken
// by someone else is a no-op.
type UnlockFunc func(ctx context.Context) error

const unlockScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end`

type Locker struct {
	client *redis.Client
	prefix string
}

func NewLocker(client *redis.Client, prefix string) *Locker {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Locker{client: client, prefix: prefix}
}

// NewFromURL connects to a redis:// URL and checks the connection.
func NewFromURL(ctx context.Context, url, prefix string) (*Locker, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return NewLocker(client, prefix), nil
}

func (l *Locker) Key(key string) string {
	return l.prefix + "lock:" + key
}

// TryLock takes key for ttl or fails at once with ErrHeld.
func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error) {
	lockKey := l.Key(key)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, lockKey, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire %s: %w", lockKey, err)
	}
	if !ok {
		return nil, ErrHeld
	}
	return func(ctx context.Context) error {
		if err := l.client.Eval(ctx, unlockScript, []string{lockKey}, token).Err(); err != nil {
			return fmt.Errorf("release %s: %w", lockKey, err)
		}
		return nil
	}, nil
}

func (l *Locker) Close() error {
	return l.client.Close()
}
