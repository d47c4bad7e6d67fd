package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// FixedWindowAllow counts one hit for scope in the current window and reports
// whether the count is within limit. Counters are keyed by window start, so a
// failed EXPIRE never pins a scope past its window.
func (c *Client) FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error) {
	if c == nil || c.cmd == nil {
		return false, 0, ErrNotInitialized
	}
	if window <= 0 {
		return false, 0, fmt.Errorf("rate limit window must be positive, got %s", window)
	}

	start := c.now().UTC().Truncate(window)
	key := c.RateLimitKey(scope, strconv.FormatInt(start.Unix(), 10))

	count, err := c.cmd.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, fmt.Errorf("incr %s: %w", key, err)
	}
	if count == 1 {
		// one extra window of slack covers clock skew between api instances
		if err := c.cmd.Expire(ctx, key, 2*window).Err(); err != nil {
			return false, count, fmt.Errorf("expire %s: %w", key, err)
		}
	}
	return count <= limit, count, nil
}
