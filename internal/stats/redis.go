package stats

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const DefaultRedisPrefix = "review-analyzer:stats:"

// RedisStore keeps each counter in its own key and relies on INCR.
type RedisStore struct {
	client redis.Cmdable
	prefix string
}

func NewRedisStore(client redis.Cmdable, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(c Counter) string {
	return s.prefix + string(c)
}

func (s *RedisStore) Incr(ctx context.Context, c Counter) (int64, error) {
	if err := checkCounter(c); err != nil {
		return 0, err
	}
	v, err := s.client.Incr(ctx, s.key(c)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment %s: %w", c, err)
	}
	return v, nil
}

func (s *RedisStore) Snapshot(ctx context.Context) (Snapshot, error) {
	counters := []Counter{Visits, Analyses}
	keys := make([]string, len(counters))
	for i, c := range counters {
		keys[i] = s.key(c)
	}

	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return Snapshot{}, fmt.Errorf("failed to read counters: %w", err)
	}

	var snap Snapshot
	for i, v := range vals {
		if i >= len(counters) || v == nil {
			continue
		}
		str, ok := v.(string)
		if !ok {
			continue
		}
		n, err := strconv.ParseInt(str, 10, 64)
		if err != nil {
			return Snapshot{}, fmt.Errorf("counter %s is not a number: %w", counters[i], err)
		}
		snap.set(counters[i], n)
	}
	return snap, nil
}

// Close is a no-op; the client is owned by the caller.
func (s *RedisStore) Close() error {
	return nil
}
