// internal/common/database/redis.go
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"notification-workers/internal/common/config"
)

// RedisClient carries the change feed. Each live subscription holds one
// dedicated pub/sub connection outside the pool, so the pool only serves
// PUBLISH and health checks.
type RedisClient struct {
	Client *redis.Client
}

func NewRedis(cfg config.RedisConfig, clientName string) *RedisClient {
	rdb := redis.NewClient(&redis.Options{
		Addr:                  cfg.Address,
		Password:              cfg.Password,
		DB:                    cfg.DB,
		ClientName:            clientName,
		DialTimeout:           5 * time.Second,
		ReadTimeout:           3 * time.Second,
		WriteTimeout:          3 * time.Second,
		ContextTimeoutEnabled: true,
		PoolSize:              20,
		MinIdleConns:          2,
	})
	return &RedisClient{Client: rdb}
}

func (c *RedisClient) Ping(ctx context.Context) error {
	if err := c.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

func (c *RedisClient) Close() error {
	if c.Client == nil {
		return nil
	}
	return c.Client.Close()
}
