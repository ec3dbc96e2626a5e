// Package redislock provides a small distributed mutex on top of Redis.
// This is part of the platform layer and contains no business logic.
package redislock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired is returned when the lock could not be taken before the
// wait budget ran out.
var ErrNotAcquired = errors.New("redislock: lock not acquired")

const (
	defaultTTL          = 5 * time.Second
	defaultPollInterval = 10 * time.Millisecond
	keyPrefix           = "lock:"
)

// releaseScript deletes the key only while it still holds our token, so an expired
// lock re-acquired by another holder is never removed.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Client is the subset of go-redis the locker needs. *redis.Client and
// *redis.ClusterClient satisfy it.
type Client interface {
	redis.Scripter
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// Locker hands out TTL-bounded locks keyed by name.
type Locker struct {
	client       Client
	ttl          time.Duration
	pollInterval time.Duration
}

// Option configures a Locker.
type Option func(*Locker)

// WithPollInterval sets how often a blocked Lock retries SET NX.
func WithPollInterval(d time.Duration) Option {
	return func(l *Locker) {
		if d > 0 {
			l.pollInterval = d
		}
	}
}

// New creates a Locker whose locks expire after ttl if never released.
func New(client Client, ttl time.Duration, opts ...Option) *Locker {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	l := &Locker{client: client, ttl: ttl, pollInterval: defaultPollInterval}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Lock blocks until the named lock is held, ctx is done, or one TTL has
// elapsed. The returned function releases the lock and may be called more than once.
func (l *Locker) Lock(ctx context.Context, name string) (func(), error) {
	key := keyPrefix + name
	token := uuid.NewString()

	waitCtx, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(waitCtx, key, token, l.ttl).Result()
		if err != nil && waitCtx.Err() == nil {
			return nil, fmt.Errorf("redislock: acquire %s: %w", name, err)
		}
		if ok {
			return l.unlockFunc(ctx, key, token), nil
		}

		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, ErrNotAcquired
		case <-ticker.C:
		}
	}
}

func (l *Locker) unlockFunc(ctx context.Context, key, token string) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			l.release(ctx, key, token)
		})
	}
}

// release runs even when the request context is already cancelled.
func (l *Locker) release(ctx context.Context, key, token string) {
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	_ = releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err()
}
