package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"complaintsync/internal/logger"
)

// unlockScript deletes the key only if it still holds our token, so an
// expired lock re-taken by another process is never released by us.
var unlockScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisGuard is a cross-process guard built on SET NX PX.
type RedisGuard struct {
	rdb *goredis.Client
	key string
	ttl time.Duration
	log *logger.Logger
}

// NewRedis parses a redis:// URL and pings the server.
func NewRedis(ctx context.Context, url, key string, ttl time.Duration, log *logger.Logger) (*RedisGuard, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = 5 * time.Second
	}
	rdb := goredis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisFromClient(rdb, key, ttl, log), nil
}

// NewRedisFromClient wraps an existing client.
func NewRedisFromClient(rdb *goredis.Client, key string, ttl time.Duration, log *logger.Logger) *RedisGuard {
	if log == nil {
		log = logger.Nop()
	}
	return &RedisGuard{rdb: rdb, key: key, ttl: ttl, log: log.With("component", "lock", "key", key)}
}

func (g *RedisGuard) TryAcquire(ctx context.Context) (func(), bool, error) {
	token := uuid.NewString()
	ok, err := g.rdb.SetNX(ctx, g.key, token, g.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("redis lock %s: %w", g.key, err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		// The caller's context may already be cancelled by shutdown.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := unlockScript.Run(ctx, g.rdb, []string{g.key}, token).Err(); err != nil {
			g.log.Warn("Failed to release lock, it will expire", "ttl", g.ttl.String(), "error", err)
		}
	}
	return release, true, nil
}

func (g *RedisGuard) Close() error {
	return g.rdb.Close()
}
