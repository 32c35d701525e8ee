package fcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/moderncolours/paintops/internal/api"
)

// RedisCache is the shared backend for multi-instance deployments. Entries
// are JSON with a server-side TTL so restarts and peers see the same cache.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache connects to Redis and verifies the connection.
func NewRedisCache(addr, password string, db int) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &RedisCache{client: client, ttl: DefaultTTL}, nil
}

func (c *RedisCache) Get(ctx context.Context, skuID int64, region string, horizon int) (*api.ForecastResponse, error) {
	data, err := c.client.Get(ctx, cacheKey(skuID, region, horizon)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var resp api.ForecastResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode cached forecast: %w", err)
	}
	return &resp, nil
}

func (c *RedisCache) Set(ctx context.Context, resp *api.ForecastResponse) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("failed to encode forecast: %w", err)
	}
	key := cacheKey(resp.SKUID, resp.Region, resp.Horizon)
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Invalidate drops every horizon cached for the SKU/region pair using a
// cursor scan so large keyspaces don't block the server.
func (c *RedisCache) Invalidate(ctx context.Context, skuID int64, region string) error {
	pattern := fmt.Sprintf("forecast:%d|%s|*", skuID, region)
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return fmt.Errorf("redis scan failed: %w", err)
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("redis del failed: %w", err)
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
