// Package cache keeps weekly working and break intervals in Redis in front
// of an availability.Source. Leave and bookings always go to the source.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"praxis/internal/availability"
	"praxis/internal/timeofday"
)

const keyPrefix = "praxis:schedule:"

// ScheduleCache is an availability.Source that reads weekly intervals
// through Redis. A nil client or non-positive TTL disables caching.
type ScheduleCache struct {
	availability.Source
	redis *redis.Client
	ttl   time.Duration
}

var _ availability.Source = (*ScheduleCache)(nil)

func NewScheduleCache(src availability.Source, client *redis.Client, ttl time.Duration) *ScheduleCache {
	return &ScheduleCache{Source: src, redis: client, ttl: ttl}
}

func (c *ScheduleCache) WorkingIntervals(ctx context.Context, staffID string, weekday time.Weekday) ([]timeofday.Interval, error) {
	key := fmt.Sprintf("%sworking:%s:%d", keyPrefix, staffID, weekday)

	var out []timeofday.Interval
	if c.readCache(ctx, key, &out) {
		return out, nil
	}
	out, err := c.Source.WorkingIntervals(ctx, staffID, weekday)
	if err != nil {
		return nil, err
	}
	c.writeCache(ctx, key, out)
	return out, nil
}

func (c *ScheduleCache) BreakIntervals(ctx context.Context, staffID string, weekday time.Weekday) ([]timeofday.Interval, error) {
	key := fmt.Sprintf("%sbreaks:%s:%d", keyPrefix, staffID, weekday)

	var out []timeofday.Interval
	if c.readCache(ctx, key, &out) {
		return out, nil
	}
	out, err := c.Source.BreakIntervals(ctx, staffID, weekday)
	if err != nil {
		return nil, err
	}
	c.writeCache(ctx, key, out)
	return out, nil
}

// Invalidate drops every cached schedule entry. Call it after the clinic
// configuration has been synced.
func (c *ScheduleCache) Invalidate(ctx context.Context) error {
	if c.redis == nil {
		return nil
	}
	iter := c.redis.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan schedule keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("delete schedule keys: %w", err)
	}
	return nil
}

// Ping reports Redis health; a disabled cache is always healthy.
func (c *ScheduleCache) Ping(ctx context.Context) error {
	if c.redis == nil {
		return nil
	}
	return c.redis.Ping(ctx).Err()
}

func (c *ScheduleCache) readCache(ctx context.Context, key string, out any) bool {
	if c.redis == nil || c.ttl <= 0 {
		return false
	}
	val, err := c.redis.Get(ctx, key).Result()
	if err != nil {
		return false
	}
	if err := json.Unmarshal([]byte(val), out); err != nil {
		return false
	}
	return true
}

func (c *ScheduleCache) writeCache(ctx context.Context, key string, val any) {
	if c.redis == nil || c.ttl <= 0 {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, key, data, c.ttl).Err()
}
