// Package lock provides per-key mutual exclusion used to serialize work on a
// single conversation. This is part of the platform layer and contains no business logic.
package lock

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"sync"
	"time"

	"whatsapp_sdr_backend/platform/config"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired is returned when the lock could not be obtained before the wait deadline.
var ErrNotAcquired = errors.New("lock not acquired")

const (
	keyPrefix    = "sdr:lock:"
	retryBackoff = 50 * time.Millisecond
)

// Locker serializes work per key.
type Locker interface {
	// Acquire blocks until the lock for key is held, the wait budget elapses
	// or ctx is done. The returned release func is safe to call more than once.
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// releaseScript deletes the key only when it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker implements Locker with SET NX PX and a token-checked release.
type RedisLocker struct {
	client redis.UniversalClient
	ttl    time.Duration
	wait   time.Duration
}

// NewRedisLocker builds a locker from the configured Redis URL.
func NewRedisLocker(cfg config.LockConfig) (*RedisLocker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	if cfg.GetRedisTLSInsecure() {
		if opt.TLSConfig == nil {
			opt.TLSConfig = &tls.Config{}
		}
		opt.TLSConfig.InsecureSkipVerify = true
	}

	return NewRedisLockerWithClient(redis.NewClient(opt), cfg.GetConversationLockTTL(), cfg.GetConversationLockWait()), nil
}

// NewRedisLockerWithClient wraps an existing client.
func NewRedisLockerWithClient(client redis.UniversalClient, ttl, wait time.Duration) *RedisLocker {
	return &RedisLocker{client: client, ttl: ttl, wait: wait}
}

// Acquire implements Locker.
func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	redisKey := keyPrefix + key
	token := uuid.New().String()

	waitCtx, cancel := context.WithTimeout(ctx, l.wait)
	defer cancel()

	for {
		ok, err := l.client.SetNX(waitCtx, redisKey, token, l.ttl).Result()
		if err != nil && waitCtx.Err() == nil {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			var once sync.Once
			return func() {
				once.Do(func() {
					releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
					defer cancel()
					_ = releaseScript.Run(releaseCtx, l.client, []string{redisKey}, token).Err()
				})
			}, nil
		}

		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, ErrNotAcquired
		case <-time.After(retryBackoff):
		}
	}
}

// Close releases the underlying Redis client.
func (l *RedisLocker) Close() error {
	return l.client.Close()
}

// LocalLocker is an in-process Locker for single-instance deployments and tests.
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
	wait  time.Duration
}

// NewLocalLocker creates a LocalLocker that gives up after wait.
func NewLocalLocker(wait time.Duration) *LocalLocker {
	return &LocalLocker{slots: make(map[string]chan struct{}), wait: wait}
}

func (l *LocalLocker) slot(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.slots[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[key] = ch
	}
	return ch
}

// Acquire implements Locker.
func (l *LocalLocker) Acquire(ctx context.Context, key string) (func(), error) {
	ch := l.slot(key)
	timer := time.NewTimer(l.wait)
	defer timer.Stop()

	select {
	case ch <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-ch }) }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, ErrNotAcquired
	}
}
