package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const statsKeyPrefix = "eventharmony:stats:"

// StatsCache serves event statistics from Redis, collapsing concurrent
// misses for the same event into a single database aggregation.
type StatsCache struct {
	client *redis.Client
	ttl    time.Duration
	group  singleflight.Group
	logger *slog.Logger
}

// NewStatsCache constructs a StatsCache.
func NewStatsCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *StatsCache {
	return &StatsCache{client: client, ttl: ttl, logger: logger}
}

// Get returns the statistics for an event, computing them at most once per
// TTL window. Cache failures degrade to the computation; they never fail the
// request.
func (c *StatsCache) Get(ctx context.Context, eventID string, compute func(context.Context) (*Statistics, error)) (*Statistics, error) {
	key := statsKeyPrefix + eventID

	if payload, err := c.client.Get(ctx, key).Bytes(); err == nil {
		var stats Statistics
		if err := json.Unmarshal(payload, &stats); err == nil {
			return &stats, nil
		}
	} else if err != redis.Nil {
		c.logger.Warn("stats cache read", slog.Any("error", err), slog.String("event_id", eventID))
	}

	result, err, _ := c.group.Do(key, func() (interface{}, error) {
		stats, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		stats.GeneratedAt = time.Now().UTC()

		payload, err := json.Marshal(stats)
		if err == nil {
			if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
				c.logger.Warn("stats cache write", slog.Any("error", err), slog.String("event_id", eventID))
			}
		}
		return stats, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*Statistics), nil
}

// Invalidate drops the cached statistics for an event after a mutation.
func (c *StatsCache) Invalidate(ctx context.Context, eventID string) {
	if err := c.client.Del(ctx, statsKeyPrefix+eventID).Err(); err != nil {
		c.logger.Warn("stats cache invalidate", slog.Any("error", err), slog.String("event_id", eventID))
	}
}
