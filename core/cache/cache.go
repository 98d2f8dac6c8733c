package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"funnel-api/core/config"
	"funnel-api/core/constants"
	"funnel-api/core/logger"

	"github.com/redis/go-redis/v9"
)

const slotKeyPrefix = "slots:"

type Cache interface {
	GetSlots(ctx context.Context, date string) ([]string, bool, error)
	SetSlots(ctx context.Context, date string, slots []string) error
	InvalidateSlots(ctx context.Context, date string) error
	Close() error
}

type redisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCache(cfg config.RedisConfig) (Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Error("Failed to connect to redis", "addr", cfg.Addr, "error", err)
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis connected", "addr", cfg.Addr, "db", cfg.DB)
	return &redisCache{client: client, ttl: constants.SlotCacheTTL}, nil
}

func (c *redisCache) GetSlots(ctx context.Context, date string) ([]string, bool, error) {
	raw, err := c.client.Get(ctx, slotKeyPrefix+date).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var slots []string
	if err := json.Unmarshal([]byte(raw), &slots); err != nil {
		// stale or corrupt entry, treat as a miss
		_ = c.client.Del(ctx, slotKeyPrefix+date).Err()
		return nil, false, nil
	}
	return slots, true, nil
}

func (c *redisCache) SetSlots(ctx context.Context, date string, slots []string) error {
	raw, err := json.Marshal(slots)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, slotKeyPrefix+date, raw, c.ttl).Err()
}

func (c *redisCache) InvalidateSlots(ctx context.Context, date string) error {
	return c.client.Del(ctx, slotKeyPrefix+date).Err()
}

func (c *redisCache) Close() error {
	return c.client.Close()
}
