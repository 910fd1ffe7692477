package middleware

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var errNoRedisClient = errors.New("redis rate limiter has no client")

// Counter increment and expiry must be one atomic step: two round trips
// would let a crash between them leave a counter with no TTL.
var fixedWindowIncr = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return {n, redis.call("PTTL", KEYS[1])}
`)

// RedisFixedWindowLimiter counts requests per caller in Redis so the
// limit holds across every replica sharing the instance. Keys are
// namespaced by prefix (e.g. "quill:api", "quill:public") so the
// dashboard API and the public site consume separate windows.
type RedisFixedWindowLimiter struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisFixedWindowLimiter(client redis.UniversalClient, prefix string) *RedisFixedWindowLimiter {
	if prefix == "" {
		prefix = "quill:rl"
	}
	return &RedisFixedWindowLimiter{client: client, prefix: prefix}
}

func (l *RedisFixedWindowLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error) {
	if l.client == nil {
		return false, window, errNoRedisClient
	}
	if key == "" {
		key = "unknown"
	}
	windowMS := window.Milliseconds()
	if windowMS <= 0 {
		windowMS = time.Second.Milliseconds()
	}

	raw, err := fixedWindowIncr.Run(ctx, l.client, []string{l.prefix + ":" + key}, windowMS).Result()
	if err != nil {
		return false, window, fmt.Errorf("rate limit script: %w", err)
	}
	count, ttlMS, err := decodeFixedWindowReply(raw)
	if err != nil {
		return false, window, err
	}

	// PTTL answers -1/-2 when the key lost its expiry or vanished
	// between the INCR and the read; fall back to a full window.
	if ttlMS <= 0 {
		ttlMS = windowMS
	}
	return count <= int64(limit), time.Duration(ttlMS) * time.Millisecond, nil
}

func decodeFixedWindowReply(raw any) (count, ttlMS int64, err error) {
	values, ok := raw.([]any)
	if !ok || len(values) != 2 {
		return 0, 0, fmt.Errorf("rate limit script: unexpected reply %T", raw)
	}
	nums := make([]int64, 2)
	for i, v := range values {
		switch n := v.(type) {
		case int64:
			nums[i] = n
		case int:
			nums[i] = int64(n)
		default:
			return 0, 0, fmt.Errorf("rate limit script: unexpected element %T", v)
		}
	}
	return nums[0], nums[1], nil
}
