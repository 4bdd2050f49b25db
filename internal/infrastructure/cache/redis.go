package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/wowseoweb3/dashboard-indexer/internal/config"
)

// ErrCacheMiss indicates the key was not found in cache
var ErrCacheMiss = errors.New("cache miss")

// NewRedisClient connects to Redis and verifies the connection
func NewRedisClient(cfg config.RedisConfig, logger *zap.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Connected to Redis",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
	)

	return client, nil
}

// RedisCache is a JSON cache whose keys all live under one prefix, so the
// whole namespace can be cleared at once
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisCache creates a cache storing keys as prefix + ":" + key
func NewRedisCache(client *redis.Client, prefix string, ttl time.Duration, logger *zap.Logger) *RedisCache {
	return &RedisCache{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		logger: logger,
	}
}

func (c *RedisCache) key(k string) string {
	return c.prefix + ":" + k
}

// Get retrieves a value from cache
func (c *RedisCache) Get(ctx context.Context, key string, dest interface{}) error {
	val, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCacheMiss
		}
		return fmt.Errorf("failed to get from cache: %w", err)
	}

	if err := json.Unmarshal(val, dest); err != nil {
		return fmt.Errorf("failed to unmarshal cached value: %w", err)
	}

	return nil
}

// Set stores a value with the cache TTL
func (c *RedisCache) Set(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	if err := c.client.Set(ctx, c.key(key), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set cache: %w", err)
	}

	return nil
}

// Delete removes a value from cache
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.key(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete from cache: %w", err)
	}
	return nil
}

// Clear removes every key under the cache prefix
func (c *RedisCache) Clear(ctx context.Context) error {
	var failed int
	iter := c.client.Scan(ctx, 0, c.prefix+":*", 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			failed++
			c.logger.Warn("Failed to delete cache key",
				zap.String("key", iter.Val()),
				zap.Error(err),
			)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan cache keys: %w", err)
	}
	if failed > 0 {
		return fmt.Errorf("failed to delete %d cache keys", failed)
	}
	return nil
}

// HealthCheck checks if Redis is reachable
func (c *RedisCache) HealthCheck(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
