package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/fallback-dispatch/internal/lease"
	goredis "github.com/redis/go-redis/v9"
)

const defaultLeaseTTL = 2 * time.Minute

// releaseScript deletes the key only while it still carries the caller's token.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

var _ lease.Locker = (*RedisLocker)(nil)

// RedisLocker hands out token-fenced leases with SET NX.
type RedisLocker struct {
	client   *goredis.Client
	newToken func() string
	script   *goredis.Script
}

func NewRedisLocker(client *goredis.Client) (*RedisLocker, error) {
	return newRedisLocker(client, func() string { return uuid.NewString() })
}

func newRedisLocker(client *goredis.Client, tokenFn func() string) (*RedisLocker, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if tokenFn == nil {
		tokenFn = func() string { return uuid.NewString() }
	}

	return &RedisLocker{
		client:   client,
		newToken: tokenFn,
		script:   releaseScript,
	}, nil
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (lease.Lease, bool, error) {
	if l == nil || l.client == nil {
		return nil, false, fmt.Errorf("locker is not initialized")
	}

	key = strings.TrimSpace(key)
	if key == "" {
		return nil, false, fmt.Errorf("lease key is required")
	}
	if ttl <= 0 {
		ttl = defaultLeaseTTL
	}

	token := l.newToken()
	acquired, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire lease %q: %w", key, err)
	}
	if !acquired {
		return nil, false, nil
	}

	return &redisLease{locker: l, key: key, token: token}, true, nil
}

type redisLease struct {
	locker *RedisLocker
	key    string
	token  string
}

func (r *redisLease) Release(ctx context.Context) error {
	if err := r.locker.script.Run(ctx, r.locker.client, []string{r.key}, r.token).Err(); err != nil {
		return fmt.Errorf("failed to release lease %q: %w", r.key, err)
	}
	return nil
}
