package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/turtacn/gts/internal/domain/models"
	"github.com/turtacn/gts/internal/domain/service"
	"github.com/turtacn/gts/pkg/constants"
	"github.com/turtacn/gts/pkg/logger"
)

// memoryCache keeps both tiers in process memory, one go-cache instance per
// tier so each key carries the tier's own TTL.
type memoryCache struct {
	primary *gocache.Cache
	stale   *gocache.Cache
	stats   *statsCounter
	log     logger.Logger
}

// NewMemoryCache creates the in-process tiered cache.
func NewMemoryCache(cfg Config, log logger.Logger) service.SecretCache {
	cfg = cfg.withDefaults()
	if log == nil {
		log = logger.NewNoopLogger()
	}

	return &memoryCache{
		primary: gocache.New(cfg.PrimaryTTL, constants.CacheCleanupInterval),
		stale:   gocache.New(cfg.StaleTTL, constants.CacheCleanupInterval),
		stats:   &statsCounter{},
		log:     log.WithComponent("secret-cache"),
	}
}

// Get returns the credential from the primary tier.
func (c *memoryCache) Get(ctx context.Context, key string) (*models.ConsumerSecret, bool) {
	start := time.Now()
	value, found := c.primary.Get(key)
	c.stats.observe(found, time.Since(start))

	if !found {
		return nil, false
	}
	return value.(*models.ConsumerSecret), true
}

// GetStale returns the credential from the stale tier.
func (c *memoryCache) GetStale(ctx context.Context, key string) (*models.ConsumerSecret, bool) {
	value, found := c.stale.Get(key)
	if !found {
		return nil, false
	}

	c.log.Debug(ctx, "serving stale credential",
		logger.String("consumer_id", key))
	return value.(*models.ConsumerSecret), true
}

// Set writes the credential to both tiers.
func (c *memoryCache) Set(ctx context.Context, key string, secret *models.ConsumerSecret) error {
	c.primary.Set(key, secret, gocache.DefaultExpiration)
	c.stale.Set(key, secret, gocache.DefaultExpiration)
	return nil
}

// Delete evicts the credential from both tiers.
func (c *memoryCache) Delete(ctx context.Context, key string) error {
	c.primary.Delete(key)
	c.stale.Delete(key)
	return nil
}

// Clear evicts everything from both tiers.
func (c *memoryCache) Clear(ctx context.Context) error {
	c.primary.Flush()
	c.stale.Flush()
	return nil
}

// Stats reports cache effectiveness. Entries includes expired items awaiting
// the janitor; ActiveEntries counts only live primary-tier items.
func (c *memoryCache) Stats(ctx context.Context) models.CacheStats {
	return models.CacheStats{
		Entries:          c.primary.ItemCount(),
		ActiveEntries:    len(c.primary.Items()),
		HitRate:          c.stats.hitRate(),
		AverageLatencyMs: c.stats.averageLatencyMs(),
	}
}
