package scheduler

import (
	"context"
	"fmt"

	"funnel_backend/platform/config"

	"github.com/redis/go-redis/v9"
)

// RedisHealth pings the Redis instance backing the task queue.
type RedisHealth struct {
	client *redis.Client
}

func NewRedisHealth(cfg config.SchedulerConfig) (*RedisHealth, error) {
	if cfg.GetRedisURL() == "" {
		return nil, fmt.Errorf("redis url not configured")
	}
	opt, err := redisOptions(cfg.GetRedisURL(), cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}
	return &RedisHealth{client: redis.NewClient(opt)}, nil
}

func (h *RedisHealth) Ping(ctx context.Context) error {
	if err := h.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

func (h *RedisHealth) Close() error {
	if h == nil || h.client == nil {
		return nil
	}
	return h.client.Close()
}
