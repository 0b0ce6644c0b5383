package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const hitScript = `
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`

var hitLua = redis.NewScript(hitScript)

// Counter is a fixed-window hit counter keyed under a common prefix.
type Counter struct {
	redis  redis.UniversalClient
	prefix string
	window time.Duration
}

// NewCounter creates a [Counter]. Keys are prefix + key.
func NewCounter(rdb redis.UniversalClient, prefix string, window time.Duration) (*Counter, error) {
	if window <= 0 {
		return nil, ErrInvalidWindow
	}
	return &Counter{redis: rdb, prefix: prefix, window: window}, nil
}

// Key returns the Redis key backing key.
func (c *Counter) Key(key string) string {
	return c.prefix + key
}

// Window returns the counter's observation window.
func (c *Counter) Window() time.Duration {
	return c.window
}

// Hit increments the counter and returns the new count. The first hit in a
// window sets the window expiry in the same script.
//
//	Performance: 1 Redis EVALSHA.
func (c *Counter) Hit(ctx context.Context, key string) (int64, error) {
	count, err := hitLua.Run(ctx, c.redis, []string{c.Key(key)}, c.window.Milliseconds()).Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return count, nil
}

// Count returns the current count. Missing keys return zero.
func (c *Counter) Count(ctx context.Context, key string) (int64, error) {
	count, err := c.redis.Get(ctx, c.Key(key)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return count, nil
}

// Reset deletes the counter.
func (c *Counter) Reset(ctx context.Context, key string) error {
	if err := c.redis.Del(ctx, c.Key(key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
