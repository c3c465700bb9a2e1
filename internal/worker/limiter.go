package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter caps how many executions a single worker may draw from the
// queue in one poll cycle across a fleet of cooperating workers. It is
// optional: a nil Limiter lets every worker draw up to its full batch
// size, which is sufficient for a single-worker deployment.
type Limiter interface {
	// Reserve returns how many of the wanted slots this worker may use
	// this cycle, decrementing a shared budget. It never returns more
	// than want.
	Reserve(ctx context.Context, workerID string, want int) (int, error)
}

// RedisLimiter rate-limits the fleet's total claims per polling
// interval using a single shared counter key with an INCRBY-based
// lease.
type RedisLimiter struct {
	client      *redis.Client
	key         string
	maxPerCycle int64
	cycle       time.Duration
}

// NewRedisLimiter creates a Limiter that allows at most maxPerCycle
// total claims across the whole fleet within each cycle window.
func NewRedisLimiter(client *redis.Client, key string, maxPerCycle int64, cycle time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, key: key, maxPerCycle: maxPerCycle, cycle: cycle}
}

// Reserve increments the fleet-wide counter by want (setting its expiry
// on first use) and trims the request back to whatever budget remains.
// A Redis error fails open: the worker falls back to its own want
// rather than stalling the whole fleet over a transient cache outage.
func (l *RedisLimiter) Reserve(ctx context.Context, workerID string, want int) (int, error) {
	if want <= 0 {
		return 0, nil
	}

	pipe := l.client.TxPipeline()
	incr := pipe.IncrBy(ctx, l.key, int64(want))
	pipe.ExpireNX(ctx, l.key, l.cycle)
	if _, err := pipe.Exec(ctx); err != nil {
		return want, fmt.Errorf("redis limiter reserve for %s: %w", workerID, err)
	}

	used := incr.Val()
	over := used - l.maxPerCycle
	if over <= 0 {
		return want, nil
	}
	granted := int64(want) - over
	if granted < 0 {
		granted = 0
	}
	return int(granted), nil
}
