// internal/app/system/ratelimit/redis.go
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisWindow is a fixed-window counter shared by every instance that
// points at the same Redis.
type RedisWindow struct {
	rdb      *redis.Client
	prefix   string
	limit    int
	duration time.Duration
}

func NewRedisWindow(rdb *redis.Client, prefix string, limit int, duration time.Duration) *RedisWindow {
	return &RedisWindow{rdb: rdb, prefix: prefix, limit: limit, duration: duration}
}

// allowScript starts the window on the first hit so later hits do not
// extend it.
var allowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return current
`)

func (w *RedisWindow) Allow(ctx context.Context, key string) (bool, error) {
	ms := w.duration.Milliseconds()
	if ms <= 0 {
		ms = 1000
	}
	n, err := allowScript.Run(ctx, w.rdb, []string{w.prefix + key}, ms).Int64()
	if err != nil {
		return false, fmt.Errorf("rate limit: %w", err)
	}
	return n <= int64(w.limit), nil
}

func (w *RedisWindow) Reset(ctx context.Context, key string) error {
	return w.rdb.Del(ctx, w.prefix+key).Err()
}

// NewRedisLoginLimiter applies the NewLoginLimiter defaults over Redis.
func NewRedisLoginLimiter(rdb *redis.Client, prefix string, logger *zap.Logger) *LoginLimiter {
	return NewLoginLimiterWith(
		NewRedisWindow(rdb, prefix+"ip:", 10, time.Minute),
		NewRedisWindow(rdb, prefix+"email:", 5, 5*time.Minute),
		logger,
	)
}
