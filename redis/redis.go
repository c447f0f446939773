package redis

import (
	"clurb/internal/config"
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Connect returns a client for REDIS_ADDRESS, or nil when Redis is not reachable.
func Connect(ctx context.Context, logger *zap.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: config.AppConfig.RedisAddress,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("Redis not available. Running without Redis.", zap.Error(err))
		client.Close()
		return nil
	}

	logger.Info("Redis connected successfully.", zap.String("address", config.AppConfig.RedisAddress))
	return client
}

// Cache is a JSON value cache with version keys for list invalidation.
// A Cache without a client misses on every read.
type Cache struct {
	client *redis.Client
}

func NewCache(client *redis.Client) *Cache {
	return &Cache{client: client}
}

func (c *Cache) Get(ctx context.Context, key string, dest any) (bool, error) {
	if c.client == nil {
		return false, nil
	}

	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if c.client == nil {
		return nil
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, raw, ttl).Err()
}

func (c *Cache) GetVersion(ctx context.Context, key string) int64 {
	if c.client == nil {
		return 0
	}
	v, err := c.client.Get(ctx, key).Int64()
	if err != nil {
		return 0
	}
	return v
}

func (c *Cache) IncrementVersion(ctx context.Context, key string) error {
	if c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, key).Err()
}
