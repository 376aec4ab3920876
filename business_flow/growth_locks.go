package businessflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amirphl/tv-slot-pool/config"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// PoolGrowthLockKey is the redis key (before prefixing) guarding pool growth
const PoolGrowthLockKey = "pool:growth:lock"

// GrowthLocker serializes pool growth. Acquire blocks until the lock is held or ctx ends.
type GrowthLocker interface {
	Acquire(ctx context.Context) (release func(), err error)
}

// NewGrowthLocker returns a redis-backed lock when rc is set and an in-process one otherwise
func NewGrowthLocker(rc *redis.Client, cacheCfg config.CacheConfig, ttl, wait time.Duration) GrowthLocker {
	if rc == nil {
		return NewLocalGrowthLocker()
	}
	return &redisGrowthLocker{
		rc:   rc,
		key:  redisKey(cacheCfg, PoolGrowthLockKey),
		ttl:  ttl,
		wait: wait,
	}
}

type localGrowthLocker struct {
	sem chan struct{}
}

// NewLocalGrowthLocker returns a mutex-like lock scoped to this process
func NewLocalGrowthLocker() GrowthLocker {
	return &localGrowthLocker{sem: make(chan struct{}, 1)}
}

func (l *localGrowthLocker) Acquire(ctx context.Context) (func(), error) {
	select {
	case l.sem <- struct{}{}:
		return func() { <-l.sem }, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrGrowthLockBusy
		}
		return nil, ctx.Err()
	}
}

// releaseScript deletes the lock only if this holder still owns it
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

type redisGrowthLocker struct {
	rc   *redis.Client
	key  string
	ttl  time.Duration
	wait time.Duration
}

func (l *redisGrowthLocker) Acquire(ctx context.Context) (func(), error) {
	token := uuid.NewString()
	wait := l.wait
	if wait <= 0 {
		wait = 50 * time.Millisecond
	}

	for {
		// Acquire distributed lock (SETNX with TTL)
		ok, err := l.rc.SetNX(ctx, l.key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire growth lock: %w", err)
		}
		if ok {
			return func() {
				ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
				defer cancel()
				_ = releaseScript.Run(ctx, l.rc, []string{l.key}, token).Err()
			}, nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, ErrGrowthLockBusy
			}
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func redisKey(cfg config.CacheConfig, key string) string {
	return cfg.RedisPrefix + key
}
