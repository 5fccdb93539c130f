package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultRedisPrefix = "review-analyzer:daily:"

// RedisDailyLimiter shares counters across instances. Each key carries the
// day in its name and expires at the following local midnight.
type RedisDailyLimiter struct {
	client redis.Cmdable
	limit  int
	loc    *time.Location
	prefix string
	now    func() time.Time
}

func NewRedisDailyLimiter(client redis.Cmdable, limit int, loc *time.Location, prefix string) *RedisDailyLimiter {
	if loc == nil {
		loc = time.UTC
	}
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisDailyLimiter{
		client: client,
		limit:  limit,
		loc:    loc,
		prefix: prefix,
		now:    time.Now,
	}
}

func (l *RedisDailyLimiter) counterKey(day, key string) string {
	return l.prefix + day + ":" + key
}

// Allow increments the counter and sets its expiry in one MULTI/EXEC, so a
// counter never exists without a TTL.
func (l *RedisDailyLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	now := l.now().In(l.loc)
	reset := nextMidnight(now)
	day := now.Format(dayLayout)
	rkey := l.counterKey(day, key)

	var incr *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, rkey)
		pipe.ExpireAt(ctx, rkey, reset)
		return nil
	})
	if err != nil {
		return Decision{}, fmt.Errorf("failed to increment daily counter: %w", err)
	}
	used := incr.Val()

	d := Decision{Limit: l.limit, ResetAt: reset, key: key, day: day}
	if used > int64(l.limit) {
		return d, nil
	}
	d.Allowed = true
	d.Remaining = l.limit - int(used)
	return d, nil
}

func (l *RedisDailyLimiter) Release(ctx context.Context, d Decision) error {
	if !d.Allowed || d.day != l.now().In(l.loc).Format(dayLayout) {
		return nil
	}
	if err := l.client.Decr(ctx, l.counterKey(d.day, d.key)).Err(); err != nil {
		return fmt.Errorf("failed to release daily counter: %w", err)
	}
	return nil
}
