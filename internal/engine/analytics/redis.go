package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"worksphere/internal/platform/config"
)

const keyRetention = 90 * 24 * time.Hour

// RedisSink keeps one daily counter per organization and event name.
type RedisSink struct {
	client *redis.Client
}

func NewRedisSink(client *redis.Client) *RedisSink {
	return &RedisSink{client: client}
}

// NewRedisClient returns nil when no address is configured.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	if cfg.Addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

func (s *RedisSink) Write(ctx context.Context, event Event) error {
	key := buildKey(event)

	pipe := s.client.Pipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, keyRetention)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline: %w", err)
	}
	return nil
}

func buildKey(event Event) string {
	return fmt.Sprintf("ws:analytics:%s:%s:%s", event.OrganizationID, event.Name, event.At.UTC().Format("20060102"))
}
