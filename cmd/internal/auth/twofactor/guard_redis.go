package twofactor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrGuardBackend wraps Redis failures.
var ErrGuardBackend = errors.New("two-factor replay guard unavailable")

// RedisGuard is a ReplayGuard shared by every instance behind a load balancer.
type RedisGuard struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedisGuard returns a guard that namespaces keys under prefix (default "v2fa").
func NewRedisGuard(client redis.UniversalClient, prefix string) *RedisGuard {
	if prefix == "" {
		prefix = "v2fa"
	}
	return &RedisGuard{redis: client, prefix: prefix}
}

func (g *RedisGuard) key(k string) string {
	return g.prefix + ":" + k
}

func (g *RedisGuard) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := g.redis.SetNX(ctx, g.key(key), 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrGuardBackend, err)
	}
	return ok, nil
}

func (g *RedisGuard) Count(ctx context.Context, key string) (int64, error) {
	n, err := g.redis.Get(ctx, g.key(key)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrGuardBackend, err)
	}
	return n, nil
}

func (g *RedisGuard) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	k := g.key(key)

	n, err := g.redis.Incr(ctx, k).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrGuardBackend, err)
	}
	if n == 1 {
		if err := g.redis.Expire(ctx, k, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrGuardBackend, err)
		}
	}
	return n, nil
}
