// Package redis manages the shared Redis connection used by the redis-backed
// secret cache and the distributed breaker state store.
// redis 包管理共享的 Redis 连接。
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/turtacn/gts/internal/config"
	"github.com/turtacn/gts/pkg/logger"
)

// connectTimeout bounds the startup ping.
const connectTimeout = 5 * time.Second

// Connection owns the lifecycle of a redis.UniversalClient. One connection is
// shared by every redis-backed component so they draw from a single pool.
type Connection struct {
	client redis.UniversalClient
	log    logger.Logger
}

// Connect builds a client from configuration and verifies connectivity with a
// ping. One address yields a standalone client, several a cluster client.
func Connect(cfg config.RedisConfig, log logger.Logger) (*Connection, error) {
	if log == nil {
		log = logger.NewNoopLogger()
	}
	log = log.WithComponent("redis")

	if len(cfg.Addresses) == 0 {
		return nil, fmt.Errorf("redis: no addresses configured")
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:        cfg.Addresses,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	})

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	log.Info(ctx, "Redis connection established",
		logger.Any("addresses", cfg.Addresses),
		logger.Int("db", cfg.DB),
	)

	return &Connection{client: client, log: log}, nil
}

// Client returns the shared client.
func (c *Connection) Client() redis.UniversalClient {
	return c.client
}

// Ping checks server connectivity. The readiness probe calls this.
func (c *Connection) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the connection pool.
func (c *Connection) Close() error {
	if err := c.client.Close(); err != nil {
		c.log.Error(context.Background(), "Failed to close Redis connection", err)
		return err
	}
	c.log.Info(context.Background(), "Redis connection closed")
	return nil
}
