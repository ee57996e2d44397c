package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/turtacn/gts/internal/domain/models"
	"github.com/turtacn/gts/internal/domain/service"
	"github.com/turtacn/gts/pkg/logger"
)

const (
	primaryKeyPrefix = "secret:primary:"
	staleKeyPrefix   = "secret:stale:"
)

// redisCache keeps both tiers in Redis under per-key TTLs, so multiple
// service instances share one cache and one warm stale tier.
type redisCache struct {
	client redis.UniversalClient
	cfg    Config
	stats  *statsCounter
	log    logger.Logger
}

// NewRedisCache creates the Redis-backed tiered cache.
func NewRedisCache(client redis.UniversalClient, cfg Config, log logger.Logger) (service.SecretCache, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if log == nil {
		log = logger.NewNoopLogger()
	}

	return &redisCache{
		client: client,
		cfg:    cfg.withDefaults(),
		stats:  &statsCounter{},
		log:    log.WithComponent("secret-cache"),
	}, nil
}

// Get returns the credential from the primary tier. Redis trouble is
// reported as a miss: the lookup path treats the cache as an optimization,
// never as a dependency.
func (c *redisCache) Get(ctx context.Context, key string) (*models.ConsumerSecret, bool) {
	start := time.Now()
	secret, found := c.read(ctx, primaryKeyPrefix+key)
	c.stats.observe(found, time.Since(start))
	return secret, found
}

// GetStale returns the credential from the stale tier.
func (c *redisCache) GetStale(ctx context.Context, key string) (*models.ConsumerSecret, bool) {
	secret, found := c.read(ctx, staleKeyPrefix+key)
	if found {
		c.log.Debug(ctx, "serving stale credential",
			logger.String("consumer_id", key))
	}
	return secret, found
}

func (c *redisCache) read(ctx context.Context, redisKey string) (*models.ConsumerSecret, bool) {
	data, err := c.client.Get(ctx, redisKey).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.log.Error(ctx, "cache read failed, treating as miss", err,
			logger.String("key", redisKey))
		return nil, false
	}

	var secret models.ConsumerSecret
	if err := json.Unmarshal(data, &secret); err != nil {
		c.log.Error(ctx, "cache entry corrupt, treating as miss", err,
			logger.String("key", redisKey))
		return nil, false
	}
	return &secret, true
}

// Set writes the credential to both tiers with their own TTLs.
func (c *redisCache) Set(ctx context.Context, key string, secret *models.ConsumerSecret) error {
	payload, err := json.Marshal(secret)
	if err != nil {
		return fmt.Errorf("encode credential for %q: %w", key, err)
	}

	if err := c.client.Set(ctx, primaryKeyPrefix+key, payload, c.cfg.PrimaryTTL).Err(); err != nil {
		return fmt.Errorf("cache credential for %q: %w", key, err)
	}
	if err := c.client.Set(ctx, staleKeyPrefix+key, payload, c.cfg.StaleTTL).Err(); err != nil {
		return fmt.Errorf("cache stale credential for %q: %w", key, err)
	}
	return nil
}

// Delete evicts the credential from both tiers.
func (c *redisCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, primaryKeyPrefix+key, staleKeyPrefix+key).Err()
}

// Clear evicts every credential from both tiers.
func (c *redisCache) Clear(ctx context.Context) error {
	for _, prefix := range []string{primaryKeyPrefix, staleKeyPrefix} {
		if err := c.deleteByPrefix(ctx, prefix); err != nil {
			return err
		}
	}
	return nil
}

// deleteByPrefix scans and deletes keys in batches, never blocking Redis
// the way KEYS would.
func (c *redisCache) deleteByPrefix(ctx context.Context, prefix string) error {
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, prefix+"*", 100).Result()
		if err != nil {
			return fmt.Errorf("scan %q: %w", prefix, err)
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("delete %d keys under %q: %w", len(keys), prefix, err)
			}
		}

		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

// Stats reports cache effectiveness. Redis expires keys itself, so Entries
// and ActiveEntries coincide.
func (c *redisCache) Stats(ctx context.Context) models.CacheStats {
	entries := 0
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, primaryKeyPrefix+"*", 100).Result()
		if err != nil {
			c.log.Error(ctx, "cache stats scan failed", err)
			break
		}
		entries += len(keys)

		cursor = next
		if cursor == 0 {
			break
		}
	}

	return models.CacheStats{
		Entries:          entries,
		ActiveEntries:    entries,
		HitRate:          c.stats.hitRate(),
		AverageLatencyMs: c.stats.averageLatencyMs(),
	}
}
