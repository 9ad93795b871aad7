package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// admitScript is the same prune, count, append sequence as Window, run
// atomically on a sorted set scored by unix milliseconds.
var admitScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
if redis.call('ZCARD', key) >= limit then
	return 0
end
redis.call('ZADD', key, now, ARGV[4])
redis.call('PEXPIRE', key, window)
return 1
`)

// RedisWindow shares the window between API instances.
type RedisWindow struct {
	client redis.Scripter
	max    int
	window time.Duration
	prefix string
	now    func() time.Time
}

func NewRedisWindow(client redis.Scripter, max int, window time.Duration) *RedisWindow {
	if max <= 0 {
		max = DefaultMax
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &RedisWindow{
		client: client,
		max:    max,
		window: window,
		prefix: "ratelimit:orders:",
		now:    time.Now,
	}
}

func (w *RedisWindow) Admit(ctx context.Context, clientID string) error {
	now := w.now().UnixMilli()
	admitted, err := admitScript.Run(ctx, w.client,
		[]string{w.prefix + clientID},
		now, w.window.Milliseconds(), w.max, fmt.Sprintf("%d-%s", now, uuid.NewString()),
	).Int()
	if err != nil {
		return fmt.Errorf("rate limit check: %w", err)
	}
	if admitted == 0 {
		return ErrRateLimited
	}
	return nil
}
