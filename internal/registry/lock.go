package registry

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rxtech-lab/argo-fusion/internal/config"
	"github.com/rxtech-lab/argo-fusion/pkg/errors"
)

// Locker serialises registry writers. Acquire blocks until the lock is held or ctx is done
// and returns the function that releases it.
type Locker interface {
	Acquire(ctx context.Context) (release func(), err error)
}

// LocalLocker is an in-process Locker.
type LocalLocker struct {
	ch chan struct{}
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{ch: make(chan struct{}, 1)}
}

func (l *LocalLocker) Acquire(ctx context.Context) (func(), error) {
	select {
	case l.ch <- struct{}{}:
		var once sync.Once

		return func() { once.Do(func() { <-l.ch }) }, nil
	case <-ctx.Done():
		return nil, errors.Wrap(errors.ErrCodeLockUnavailable, "timed out waiting for registry lock", ctx.Err())
	}
}

// releaseScript deletes the key only if this holder still owns it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a Locker shared by every process that points at the same Redis key.
// The key expires after ttl so a crashed holder cannot block activation forever.
type RedisLocker struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	retry  time.Duration
}

func NewRedisLocker(client *redis.Client, key string, ttl time.Duration) *RedisLocker {
	return &RedisLocker{
		client: client,
		key:    key,
		ttl:    ttl,
		retry:  100 * time.Millisecond,
	}
}

// NewRedisLockerFromConfig connects to the configured Redis server.
func NewRedisLockerFromConfig(ctx context.Context, cfg config.RedisConfig) (*RedisLocker, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()

		return nil, errors.Wrapf(errors.ErrCodeLockUnavailable, err, "failed to reach redis at %s", cfg.Addr)
	}

	return NewRedisLocker(client, cfg.LockKey, time.Duration(cfg.LockTTLSec)*time.Second), nil
}

func (l *RedisLocker) Acquire(ctx context.Context) (func(), error) {
	token := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeLockUnavailable, "failed to acquire registry lock", err)
		}

		if ok {
			break
		}

		select {
		case <-ctx.Done():
			return nil, errors.Wrap(errors.ErrCodeLockUnavailable, "timed out waiting for registry lock", ctx.Err())
		case <-time.After(l.retry):
		}
	}

	var once sync.Once

	return func() {
		once.Do(func() {
			// a failed release leaves the key to expire after ttl
			_ = releaseScript.Run(context.WithoutCancel(ctx), l.client, []string{l.key}, token).Err()
		})
	}, nil
}

// Close closes the Redis client.
func (l *RedisLocker) Close() error {
	return l.client.Close()
}
